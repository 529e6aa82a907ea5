package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CHAT_TEST_STRING", "value")
	t.Setenv("CHAT_TEST_INT", "42")
	t.Setenv("CHAT_TEST_BAD_INT", "forty-two")
	t.Setenv("CHAT_TEST_BOOL", "true")
	t.Setenv("CHAT_TEST_DURATION", "90s")
	t.Setenv("CHAT_TEST_BAD_DURATION", "soon")
	t.Setenv("CHAT_TEST_LIST", "nats://a:6222, nats://b:6222,,")

	assert.Equal(t, "value", getEnv("CHAT_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("CHAT_TEST_UNSET", "default"))
	assert.Equal(t, 42, getEnvInt("CHAT_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("CHAT_TEST_BAD_INT", 7))
	assert.True(t, getEnvBool("CHAT_TEST_BOOL", false))
	assert.False(t, getEnvBool("CHAT_TEST_UNSET", false))
	assert.Equal(t, 90*time.Second, getEnvDuration("CHAT_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, getEnvDuration("CHAT_TEST_BAD_DURATION", time.Minute))
	assert.Equal(t, []string{"nats://a:6222", "nats://b:6222"}, getEnvList("CHAT_TEST_LIST"))
	assert.Nil(t, getEnvList("CHAT_TEST_UNSET"))
}
