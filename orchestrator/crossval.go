package orchestrator

import (
	"fmt"
	"math"

	"github.com/BaSui01/imageflow/image"
)

// Scorer 对两个成功结果打分并选出胜者。
// 显式可插拔：契约是 (resp, resp) → report，具体权重只是占位启发式。
type Scorer interface {
	// CrossValidate 对比两个成功响应，产出含胜者与理由的报告。
	CrossValidate(a, b *image.GenerateResponse) *CrossValidationReport
}

// maxScorer 默认实现：各自独立打分，共识策略取最大值。
type maxScorer struct{}

// NewMaxScorer 创建默认的最大值共识打分器。
func NewMaxScorer() Scorer {
	return &maxScorer{}
}

const scorerVersion = "quality-heuristic/v1"

// CrossValidate 实现 Scorer.CrossValidate。
// 平分时确定性地偏向 provider A。
func (s *maxScorer) CrossValidate(a, b *image.GenerateResponse) *CrossValidationReport {
	scoreA := scoreResponse(a)
	scoreB := scoreResponse(b)

	winner := a.Provider
	if scoreB > scoreA {
		winner = b.Provider
	}

	message := fmt.Sprintf("%s won with score %.3f against %.3f", winner, math.Max(scoreA, scoreB), math.Min(scoreA, scoreB))
	if scoreA == scoreB {
		message = fmt.Sprintf("%s won the deterministic tie-break at score %.3f", winner, scoreA)
	}

	return &CrossValidationReport{
		Validator: scorerVersion,
		Strategy:  "max",
		ProviderA: a.Provider,
		ProviderB: b.Provider,
		Results: map[string]ProviderScore{
			a.Provider: {Valid: true, Score: scoreA, Messages: []string{message}},
			b.Provider: {Valid: true, Score: scoreB, Messages: []string{message}},
		},
		Winner:         winner,
		CompositeScore: math.Max(scoreA, scoreB),
	}
}

// scoreResponse 计算单个响应的质量分 [0,1]：
// 基准 0.5；有产出 +0.2；首个资产带宽高 +0.1；
// 延迟越低加分越多，上限 +0.2，30 秒处归零。
func scoreResponse(r *image.GenerateResponse) float64 {
	score := 0.5

	if len(r.Assets) > 0 {
		score += 0.2
		if r.Assets[0].Width > 0 && r.Assets[0].Height > 0 {
			score += 0.1
		}
	}

	score += 0.2 * math.Max(0, 1-float64(r.LatencyMs)/30000)
	return score
}
