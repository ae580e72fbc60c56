// Package types 定义期权定价各模块共享的领域模型。
package types

import (
	"math"
	"strings"

	"github.com/wyfcoding/optionlab/xerrors"
)

// OptionType 定义期权类型，是封闭枚举，零值非法。
type OptionType uint8

const (
	// OptionTypeCall 看涨期权。
	OptionTypeCall OptionType = iota + 1
	// OptionTypePut 看跌期权。
	OptionTypePut
)

// OptionTypes 按固定顺序列出所有期权类型。
var OptionTypes = [...]OptionType{OptionTypeCall, OptionTypePut}

func (t OptionType) String() string {
	switch t {
	case OptionTypeCall:
		return "call"
	case OptionTypePut:
		return "put"
	default:
		return "unknown"
	}
}

// Validate 校验期权类型是否为 call 或 put。
func (t OptionType) Validate() error {
	switch t {
	case OptionTypeCall, OptionTypePut:
		return nil
	default:
		return xerrors.InvalidOptionType(uint8(t))
	}
}

// Payoff 返回到期价格 terminal 下的内在价值 max(±(S_T-K), 0)。
// 调用方需先 Validate。
func (t OptionType) Payoff(terminal, strike float64) float64 {
	if t == OptionTypeCall {
		return math.Max(terminal-strike, 0)
	}
	return math.Max(strike-terminal, 0)
}

// ParseOptionType 从配置或外部输入解析期权类型，大小写不敏感。
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return OptionTypeCall, nil
	case "put", "p":
		return OptionTypePut, nil
	default:
		return 0, xerrors.InvalidOptionType(s)
	}
}

// Params 是单个定价问题的模型参数，按值传递，创建后不修改。
type Params struct {
	Spot       float64 // 标的现价 S0
	Strike     float64 // 行权价 K
	Rate       float64 // 无风险利率 r（连续复利）
	Volatility float64 // 年化波动率 σ
	Maturity   float64 // 到期时间 T（年）
}

// Validate 校验 S0、K、σ、T 为正且全部字段有限。
func (p Params) Validate() error {
	if err := positive("spot", p.Spot); err != nil {
		return err
	}
	if err := positive("strike", p.Strike); err != nil {
		return err
	}
	if math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) {
		return xerrors.InvalidParameter("rate", p.Rate)
	}
	if err := positive("volatility", p.Volatility); err != nil {
		return err
	}
	return positive("maturity", p.Maturity)
}

// Discount 返回折现因子 exp(-rT)。
func (p Params) Discount() float64 {
	return math.Exp(-p.Rate * p.Maturity)
}

// WithSpot 返回替换了现价的副本，用于扫描 Gamma 曲线。
func (p Params) WithSpot(spot float64) Params {
	p.Spot = spot
	return p
}

func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return xerrors.InvalidParameter(field, v)
	}
	return nil
}
