package extension_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqlforge/internal/extension"
	"github.com/hanpama/gqlforge/internal/upstream"
)

func TestInvoke(t *testing.T) {
	r := extension.NewRegistry()
	r.Register("echo", func(_ context.Context, params, value any) (any, error) {
		return map[string]any{"params": params, "value": value}, nil
	})
	require.True(t, r.Has("echo"))
	require.False(t, r.Has("missing"))

	got, err := r.Invoke(context.Background(), &upstream.ExtensionRequest{Library: "echo", Params: "p", Value: 1})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"params": "p", "value": 1}, got)

	_, err = r.Invoke(context.Background(), &upstream.ExtensionRequest{Library: "missing"})
	require.EqualError(t, err, `extension "missing" is not registered`)
}
