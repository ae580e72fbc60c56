package sim

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/xerrors"
)

// 95% 双侧置信区间的正态分位数.
const z95 = 1.959963984540054

// Estimate 蒙特卡洛价格估计及其抽样误差.
type Estimate struct {
	Price    float64
	StdError float64 // 价格估计的标准误，样本不足 2 个时为 0.
	Lower    float64 // 95% 置信区间下界，截断于 0.
	Upper    float64
	Samples  int // 用于估计方差的独立样本数（对偶对按一个样本计）.
}

func validatePricing(ps *PathSet, strike, rate, maturity float64, typ types.OptionType) error {
	if ps == nil || ps.rows == 0 {
		return xerrors.InvalidParameter("paths", 0)
	}
	if math.IsNaN(strike) || math.IsInf(strike, 0) || strike <= 0 {
		return xerrors.InvalidParameter("strike", strike)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return xerrors.InvalidParameter("rate", rate)
	}
	if math.IsNaN(maturity) || math.IsInf(maturity, 0) || maturity <= 0 {
		return xerrors.InvalidParameter("maturity", maturity)
	}
	return typ.Validate()
}

// PriceMonteCarlo 计算贴现后的期望收益 exp(-rT)·mean(payoff).
// 收益和用 decimal 精确累加，最后一次性相除，路径数很大时不损失精度.
func PriceMonteCarlo(ps *PathSet, strike, rate, maturity float64, typ types.OptionType) (float64, error) {
	if err := validatePricing(ps, strike, rate, maturity, typ); err != nil {
		return 0, err
	}

	last := ps.cols - 1
	total := decimal.Zero
	for i := range ps.rows {
		payoff := typ.Payoff(ps.At(i, last), strike)
		if math.IsInf(payoff, 0) || math.IsNaN(payoff) {
			return 0, xerrors.DegenerateResult(fmt.Sprintf("non-finite payoff on path %d", i))
		}
		if payoff > 0 {
			total = total.Add(decimal.NewFromFloat(payoff))
		}
	}
	avgPayoff := total.Div(decimal.NewFromInt(int64(ps.rows))).InexactFloat64()
	price := math.Exp(-rate*maturity) * avgPayoff
	if math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, xerrors.DegenerateResult(fmt.Sprintf("discounted price overflows, rate=%g maturity=%g", rate, maturity))
	}
	return price, nil
}

// EstimateMonteCarlo 在 PriceMonteCarlo 的基础上给出标准误与置信区间.
// 对偶路径彼此负相关，方差按对平均值估计；奇数补充的独立路径不参与方差估计.
func EstimateMonteCarlo(ps *PathSet, strike, rate, maturity float64, typ types.OptionType) (Estimate, error) {
	price, err := PriceMonteCarlo(ps, strike, rate, maturity, typ)
	if err != nil {
		return Estimate{}, err
	}

	df := math.Exp(-rate * maturity)
	last := ps.cols - 1
	var samples []float64
	if ps.pairs > 0 {
		samples = make([]float64, ps.pairs)
		for k := range samples {
			a := typ.Payoff(ps.At(2*k, last), strike)
			b := typ.Payoff(ps.At(2*k+1, last), strike)
			samples[k] = df * 0.5 * (a + b)
		}
	} else {
		samples = make([]float64, ps.rows)
		for i := range samples {
			samples[i] = df * typ.Payoff(ps.At(i, last), strike)
		}
	}

	est := Estimate{Price: price, Lower: price, Upper: price, Samples: len(samples)}
	if len(samples) < 2 {
		return est, nil
	}
	_, std := stat.MeanStdDev(samples, nil)
	est.StdError = std / math.Sqrt(float64(len(samples)))
	est.Lower = math.Max(price-z95*est.StdError, 0)
	est.Upper = price + z95*est.StdError
	return est, nil
}
