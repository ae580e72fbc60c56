package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidParameterMatchesSentinel(t *testing.T) {
	err := InvalidParameter("volatility", 0.0)

	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrDegenerateResult)
	assert.Equal(t, "volatility", err.Context["field"])
	assert.Contains(t, err.Error(), "volatility=0")
	assert.NotEmpty(t, err.Stack)
}

func TestInvalidOptionTypeIsInvalidParameter(t *testing.T) {
	err := InvalidOptionType("straddle")

	assert.ErrorIs(t, err, ErrInvalidOptionType)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, ErrInvalidParameter, ErrInvalidOptionType)
}

func TestDegenerateResult(t *testing.T) {
	err := DegenerateResult("bs_price=0")

	assert.ErrorIs(t, err, ErrDegenerateResult)
	assert.Equal(t, ErrDegenerate, err.Type)
	assert.Equal(t, "Degenerate", err.Type.String())
}

func TestWrapKeepsCode(t *testing.T) {
	inner := InvalidParameter("steps", 0)
	wrapped := Wrap(inner, ErrInternal, "generate paths")

	require.NotNil(t, wrapped)
	assert.Equal(t, CodeInvalidParameter, wrapped.Code)
	assert.ErrorIs(t, wrapped, ErrInvalidParameter)
	assert.Equal(t, "generate paths", wrapped.Message)
	// 原错误不应被修改
	assert.Equal(t, "invalid parameter", inner.Message)

	plain := Wrap(errors.New("boom"), ErrInternal, "run")
	assert.Equal(t, ErrInternal, plain.Type)
	assert.Nil(t, Wrap(nil, ErrInternal, "noop"))
}

func TestErrorsIsThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("pricing call: %w", InvalidParameter("strike", -1))
	assert.ErrorIs(t, err, ErrInvalidParameter)

	e, ok := FromError(InvalidParameter("x", 1))
	require.True(t, ok)
	assert.Equal(t, CodeInvalidParameter, e.Code)
	assert.Equal(t, "x", e.Context["field"])

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)
}
