package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyLeadEmailFormat(t *testing.T) {
	result := VerifyLeadEmail("not-an-email")
	assert.Equal(t, "invalid", result.Status)
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyLeadEmailDisposable(t *testing.T) {
	result := VerifyLeadEmail("Someone@Mailinator.com")
	assert.Equal(t, "disposable", result.Status)
	assert.Equal(t, "someone@mailinator.com", result.Email)
	assert.True(t, result.IsBounceRisk)
}

func TestVerifyLeadEmailUsesMXCache(t *testing.T) {
	mxCache.Lock()
	mxCache.m["cached-good.example"] = true
	mxCache.Unlock()

	result := VerifyLeadEmail("lead@cached-good.example")
	assert.Equal(t, "valid", result.Status)
	assert.True(t, result.HasMX)
	assert.False(t, result.IsBounceRisk)
}
