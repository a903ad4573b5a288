package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New("loud")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.InfoLevel))
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(" DEBUG ")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestContextRoundTrip(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := WithLogger(context.Background(), l)
	require.Same(t, l, FromContext(ctx))
	require.Equal(t, ctx, WithLogger(ctx, nil))
}
