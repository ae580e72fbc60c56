package xerrors

import "fmt"

const (
	// CodeInvalidParameter 模型参数或路径配置非法。
	CodeInvalidParameter = 400101
	// CodeInvalidOptionType 期权类型不在 {call, put} 中，属于参数非法的子类。
	CodeInvalidOptionType = 400102
	// CodeDegenerateResult 计算结果退化（如参考价为零导致相对误差无定义）。
	CodeDegenerateResult = 422001
)

var (
	// ErrInvalidParameter 参数非法的哨兵错误，配合 errors.Is 使用。
	ErrInvalidParameter = New(ErrInvalidArg, CodeInvalidParameter, "invalid parameter", "spot, strike, volatility and maturity must be positive; steps and paths must be at least 1", nil)
	// ErrInvalidOptionType 无效的期权类型。
	ErrInvalidOptionType = New(ErrInvalidArg, CodeInvalidOptionType, "invalid option type", "supported types: call, put", nil)
	// ErrDegenerateResult 退化结果的哨兵错误。
	ErrDegenerateResult = New(ErrDegenerate, CodeDegenerateResult, "degenerate result", "result is zero or not representable as a finite float64", nil)
)

func parentCode(code int) int {
	switch code {
	case CodeInvalidOptionType:
		return CodeInvalidParameter
	default:
		return 0
	}
}

// InvalidParameter 构造一个携带字段名与取值的参数错误。
func InvalidParameter(field string, value any) *Error {
	return New(ErrInvalidArg, CodeInvalidParameter, "invalid parameter", fmt.Sprintf("%s=%v", field, value), nil).
		WithContext("field", field).
		WithContext("value", value)
}

// InvalidOptionType 构造期权类型错误。
func InvalidOptionType(value any) *Error {
	return New(ErrInvalidArg, CodeInvalidOptionType, "invalid option type", fmt.Sprintf("option_type=%v", value), nil).
		WithContext("value", value)
}

// DegenerateResult 构造退化结果错误。
func DegenerateResult(detail string) *Error {
	return New(ErrDegenerate, CodeDegenerateResult, "degenerate result", detail, nil)
}
