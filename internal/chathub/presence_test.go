package chathub_test

import (
	"testing"

	"github.com/danikhandev/serve-u/internal/chathub"

	"github.com/stretchr/testify/assert"
)

func TestPresence_RefCountedAcrossTabs(t *testing.T) {
	p := chathub.NewPresenceRegistry()

	assert.True(t, p.Add("user_A"), "first connection brings the identity online")
	assert.False(t, p.Add("user_A"), "second tab must not re-announce online")
	assert.True(t, p.IsOnline("user_A"))

	assert.False(t, p.Remove("user_A"), "identity stays online while one tab remains")
	assert.True(t, p.IsOnline("user_A"))

	assert.True(t, p.Remove("user_A"), "last connection takes the identity offline")
	assert.False(t, p.IsOnline("user_A"))
}

func TestPresence_RemoveUnknownIsNoop(t *testing.T) {
	p := chathub.NewPresenceRegistry()
	assert.False(t, p.Remove("ghost"))
	assert.False(t, p.IsOnline("ghost"))
}

func TestPresence_OnlineSnapshot(t *testing.T) {
	p := chathub.NewPresenceRegistry()
	p.Add("user_A")
	p.Add("user_B")
	p.Add("user_B")

	online := p.Online()
	assert.ElementsMatch(t, []string{"user_A", "user_B"}, online)
}
