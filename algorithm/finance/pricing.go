// Package finance - 期权定价算法（Black-Scholes 模型）。
package finance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/xerrors"
)

// BlackScholesCalculator Black-Scholes 期权定价计算器。
// 无状态，可并发使用。
type BlackScholesCalculator struct {
	norm distuv.Normal
}

// NewBlackScholesCalculator 创建 Black-Scholes 计算器。
func NewBlackScholesCalculator() *BlackScholesCalculator {
	return &BlackScholesCalculator{norm: distuv.UnitNormal}
}

// BlackScholesResult 包含计算出的期权价格及其希腊字母。
type BlackScholesResult struct {
	Type  types.OptionType
	D1    float64
	D2    float64
	Price float64
	Delta float64
	Gamma float64
	Vega  float64 // 波动率每变动 1 个百分点的价格变化
	Theta float64 // 每日 theta
	Rho   float64 // 利率每变动 1 个百分点的价格变化
}

// d1d2 计算 d1 与 d2，调用前参数必须已通过校验。
func d1d2(p types.Params) (d1, d2 float64) {
	volSqrtT := p.Volatility * math.Sqrt(p.Maturity)
	d1 = (math.Log(p.Spot/p.Strike) + (p.Rate+0.5*p.Volatility*p.Volatility)*p.Maturity) / volSqrtT
	d2 = d1 - volSqrtT
	return d1, d2
}

func validate(p types.Params, typ types.OptionType) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return typ.Validate()
}

// Price 计算期权的解析价格。
func (bsc *BlackScholesCalculator) Price(p types.Params, typ types.OptionType) (float64, error) {
	if err := validate(p, typ); err != nil {
		return 0, err
	}
	d1, d2 := d1d2(p)
	price := bsc.price(p, typ, d1, d2)
	if !finite(price) {
		return 0, xerrors.DegenerateResult(fmt.Sprintf("closed-form %s price is not finite", typ))
	}
	return price, nil
}

func (bsc *BlackScholesCalculator) price(p types.Params, typ types.OptionType, d1, d2 float64) float64 {
	df := p.Discount()
	var price float64
	switch typ {
	case types.OptionTypeCall:
		price = p.Spot*bsc.norm.CDF(d1) - p.Strike*df*bsc.norm.CDF(d2)
	case types.OptionTypePut:
		price = p.Strike*df*bsc.norm.CDF(-d2) - p.Spot*bsc.norm.CDF(-d1)
	}
	// 深度虚值时两项相减可能得到 -1e-17 量级的舍入误差。
	return math.Max(price, 0)
}

// Delta 计算 Delta：看涨 Φ(d1)，看跌 Φ(d1)-1。
func (bsc *BlackScholesCalculator) Delta(p types.Params, typ types.OptionType) (float64, error) {
	if err := validate(p, typ); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	return bsc.delta(typ, d1), nil
}

func (bsc *BlackScholesCalculator) delta(typ types.OptionType, d1 float64) float64 {
	if typ == types.OptionTypeCall {
		return bsc.norm.CDF(d1)
	}
	return bsc.norm.CDF(d1) - 1
}

// Gamma 计算 Gamma。看涨与看跌的 Gamma 相同，因此不接受期权类型参数。
func (bsc *BlackScholesCalculator) Gamma(p types.Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	return bsc.gamma(p, d1), nil
}

func (bsc *BlackScholesCalculator) gamma(p types.Params, d1 float64) float64 {
	return bsc.norm.Prob(d1) / (p.Spot * p.Volatility * math.Sqrt(p.Maturity))
}

// Vega 计算 Vega，与期权类型无关。
func (bsc *BlackScholesCalculator) Vega(p types.Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	d1, _ := d1d2(p)
	return bsc.vega(p, d1), nil
}

func (bsc *BlackScholesCalculator) vega(p types.Params, d1 float64) float64 {
	return p.Spot * bsc.norm.Prob(d1) * math.Sqrt(p.Maturity) / 100
}

// Theta 计算每日 Theta。
func (bsc *BlackScholesCalculator) Theta(p types.Params, typ types.OptionType) (float64, error) {
	if err := validate(p, typ); err != nil {
		return 0, err
	}
	d1, d2 := d1d2(p)
	return bsc.theta(p, typ, d1, d2), nil
}

func (bsc *BlackScholesCalculator) theta(p types.Params, typ types.OptionType, d1, d2 float64) float64 {
	decay := -p.Spot * bsc.norm.Prob(d1) * p.Volatility / (2 * math.Sqrt(p.Maturity))
	carry := p.Rate * p.Strike * p.Discount()
	var theta float64
	if typ == types.OptionTypeCall {
		theta = decay - carry*bsc.norm.CDF(d2)
	} else {
		theta = decay + carry*bsc.norm.CDF(-d2)
	}
	return theta / 365
}

// Rho 计算 Rho。
func (bsc *BlackScholesCalculator) Rho(p types.Params, typ types.OptionType) (float64, error) {
	if err := validate(p, typ); err != nil {
		return 0, err
	}
	_, d2 := d1d2(p)
	return bsc.rho(p, typ, d2), nil
}

func (bsc *BlackScholesCalculator) rho(p types.Params, typ types.OptionType, d2 float64) float64 {
	kt := p.Strike * p.Maturity * p.Discount()
	if typ == types.OptionTypeCall {
		return kt * bsc.norm.CDF(d2) / 100
	}
	return -kt * bsc.norm.CDF(-d2) / 100
}

// Calculate 一次性计算期权价格及所有希腊字母。
func (bsc *BlackScholesCalculator) Calculate(p types.Params, typ types.OptionType) (*BlackScholesResult, error) {
	if err := validate(p, typ); err != nil {
		return nil, err
	}
	d1, d2 := d1d2(p)
	res := &BlackScholesResult{
		Type:  typ,
		D1:    d1,
		D2:    d2,
		Price: bsc.price(p, typ, d1, d2),
		Delta: bsc.delta(typ, d1),
		Gamma: bsc.gamma(p, d1),
		Vega:  bsc.vega(p, d1),
		Theta: bsc.theta(p, typ, d1, d2),
		Rho:   bsc.rho(p, typ, d2),
	}
	for _, v := range []float64{res.Price, res.Delta, res.Gamma, res.Vega, res.Theta, res.Rho} {
		if !finite(v) {
			return nil, xerrors.DegenerateResult(fmt.Sprintf("closed-form %s result is not finite", typ))
		}
	}
	return res, nil
}

// ParityGap 返回 (C - P) - (S0 - K·e^{-rT})，理论上为 0。
func (bsc *BlackScholesCalculator) ParityGap(p types.Params) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	d1, d2 := d1d2(p)
	call := bsc.price(p, types.OptionTypeCall, d1, d2)
	put := bsc.price(p, types.OptionTypePut, d1, d2)
	return (call - put) - (p.Spot - p.Strike*p.Discount()), nil
}

// GammaProfile 在 [lo, hi] 上等距取 n 个现价，返回对应的 Gamma 曲线。
func (bsc *BlackScholesCalculator) GammaProfile(p types.Params, lo, hi float64, n int) (spots, gammas []float64, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if n < 2 {
		return nil, nil, xerrors.InvalidParameter("points", n)
	}
	if !(lo > 0) || math.IsInf(hi, 0) || !(hi > lo) {
		return nil, nil, xerrors.InvalidParameter("spot_range", [2]float64{lo, hi})
	}

	spots = floats.Span(make([]float64, n), lo, hi)
	gammas = make([]float64, n)
	for i, s := range spots {
		q := p.WithSpot(s)
		d1, _ := d1d2(q)
		gammas[i] = bsc.gamma(q, d1)
	}
	return spots, gammas, nil
}
