package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already e164", "+15550001234", "+15550001234"},
		{"spaces and dashes", "+1 555-000-1234", "+15550001234"},
		{"parentheses and dots", "(555) 000.1234", "+5550001234"},
		{"missing plus", "15550001234", "+15550001234"},
		{"double zero prefix", "0015550001234", "+15550001234"},
		{"leading whitespace", "  +49 171 1234567 ", "+491711234567"},
		{"stray letters dropped", "+1555call0123", "+15550123"},
		{"empty", "", ""},
		{"only plus", "+", ""},
		{"only separators", " -() ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsPlausible(t *testing.T) {
	assert.True(t, IsPlausible("+15550001234"))
	assert.True(t, IsPlausible("+4917112345"))
	assert.False(t, IsPlausible("15550001234"), "must require leading +")
	assert.False(t, IsPlausible("+123"), "too short")
	assert.False(t, IsPlausible("+1234567890123456"), "too long")
}
