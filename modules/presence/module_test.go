package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModule_InMemory(t *testing.T) {
	ctx := context.Background()
	m := NewModule(Config{}, &mockLogger{})

	assert.Equal(t, "presence", m.Name())
	assert.False(t, m.Health(ctx).Healthy)

	require.NoError(t, m.Start(ctx))
	assert.Nil(t, m.Client())
	require.NotNil(t, m.Tracker())

	require.NoError(t, m.Tracker().Touch(ctx, "room-1", "alice", time.Now()))

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, "memory", health.Details["backend"])
	assert.Equal(t, map[string]int{"room-1": 1}, health.Details["room_counts"])

	require.NoError(t, m.Stop(ctx))
}

func TestModule_UnreachableRedis(t *testing.T) {
	m := NewModule(Config{RedisAddr: "127.0.0.1:1"}, &mockLogger{})
	assert.Error(t, m.Start(context.Background()))
}
