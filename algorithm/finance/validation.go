package finance

import (
	"fmt"
	"math"

	"github.com/wyfcoding/optionlab/xerrors"
)

// Comparison 蒙特卡洛价格与解析价格的对比结果。
// 是否可接受由展示层决定，这里不做阈值判断。
type Comparison struct {
	MonteCarlo  float64
	Analytical  float64
	Diff        float64 // mc - bs，带符号
	Absolute    float64 // |mc - bs|
	RelativePct float64 // 100 * (mc - bs) / bs
}

// Compare 比较蒙特卡洛价格与解析价格。
// 解析价为 0 时相对误差无定义，返回 ErrDegenerateResult。
func Compare(mcPrice, bsPrice float64) (Comparison, error) {
	if !finite(mcPrice) || mcPrice < 0 {
		return Comparison{}, xerrors.InvalidParameter("mc_price", mcPrice)
	}
	if !finite(bsPrice) || bsPrice < 0 {
		return Comparison{}, xerrors.InvalidParameter("bs_price", bsPrice)
	}
	if bsPrice == 0 {
		return Comparison{}, xerrors.DegenerateResult(fmt.Sprintf("bs_price=0, mc_price=%g", mcPrice))
	}

	diff := mcPrice - bsPrice
	rel := 100 * diff / bsPrice
	// 解析价为次正规数时相对误差会溢出。
	if !finite(rel) {
		return Comparison{}, xerrors.DegenerateResult(fmt.Sprintf("relative error overflows, bs_price=%g, mc_price=%g", bsPrice, mcPrice))
	}
	return Comparison{
		MonteCarlo:  mcPrice,
		Analytical:  bsPrice,
		Diff:        diff,
		Absolute:    math.Abs(diff),
		RelativePct: rel,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
