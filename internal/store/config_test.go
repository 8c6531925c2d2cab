package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetGetList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.ConfigValue(ctx, "weekly_quota")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "weekly_quota", "3"))
	require.NoError(t, s.SetConfig(ctx, "weekly_quota", "4"))
	require.NoError(t, s.SetConfig(ctx, "timezone", "UTC"))

	v, ok, err := s.ConfigValue(ctx, "weekly_quota")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", v)

	all, err := s.AllConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"weekly_quota": "4", "timezone": "UTC"}, all)
}
