// Package types 定义 imageflow 的共享错误类型。
//
// 所有组件边界上的失败都规范化为 *types.Error：Provider 适配器负责
// 把上游原始错误分类到 ErrorKind 分类法，重试执行器只依据 Retryable
// 字段做重试决策，编排器只聚合信封用于上报。
package types
