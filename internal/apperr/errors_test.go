package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type stockErr struct{}

func (stockErr) Error() string { return "short" }
func (stockErr) Kind() Kind    { return KindInsufficientStock }

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrap: %w", NotFound("op", "order %s", "X"))))
	require.Equal(t, KindInsufficientStock, KindOf(fmt.Errorf("wrap: %w", stockErr{})))
}

func TestErrorMessage(t *testing.T) {
	err := Validation("checkout", map[string]string{"shipping.city": "required", "items": "cart is empty"})
	require.Equal(t, "checkout: validation failed (items: cart is empty; shipping.city: required)", err.Error())
	require.Equal(t, map[string]string{"shipping.city": "required", "items": "cart is empty"}, FieldsOf(err))

	inner := errors.New("dial tcp")
	gw := Gateway("snap", inner)
	require.ErrorIs(t, gw, inner)
	require.Equal(t, "snap: payment gateway failure: dial tcp", gw.Error())
}

func TestPublic(t *testing.T) {
	require.True(t, Public(KindValidation))
	require.True(t, Public(KindInsufficientStock))
	require.False(t, Public(KindGateway))
	require.False(t, Public(KindInternal))
}
