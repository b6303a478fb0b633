// Package image 提供统一的图像生成 Provider 契约与具体后端适配器。
//
// Provider 是本模块唯一依赖的外部接口：每个后端适配器负责把上游
// 原始错误在边界处分类为 types.Error（429 → rate_limit、503/冷启动 →
// provider、网络失败 → transport、参数错误 → validation），上层组件
// 不再接触原始错误。
package image
