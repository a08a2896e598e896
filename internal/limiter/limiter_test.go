package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowBoundsInflightPerHost(t *testing.T) {
	a := &Adaptive{maxInflight: 2, sem: map[string]chan struct{}{}}

	rel1, ok := a.Allow("law.example.edu")
	assert.True(t, ok)
	_, ok = a.Allow("law.example.edu")
	assert.True(t, ok)

	_, ok = a.Allow("law.example.edu")
	assert.False(t, ok, "third concurrent fetch must be rejected")

	// Hosts do not share slots.
	_, ok = a.Allow("review.example.org")
	assert.True(t, ok)

	rel1()
	_, ok = a.Allow("law.example.edu")
	assert.True(t, ok)
}

func TestAllowIsCaseInsensitive(t *testing.T) {
	a := &Adaptive{maxInflight: 1, sem: map[string]chan struct{}{}}
	_, ok := a.Allow("Law.Example.EDU")
	assert.True(t, ok)
	_, ok = a.Allow("law.example.edu")
	assert.False(t, ok)
}
