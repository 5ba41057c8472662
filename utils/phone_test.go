package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+972-54-123-4567", "972541234567"},
		{"972541234567", "972541234567"},
		{"054-123-4567", "972541234567"},
		{"0541234567", "972541234567"},
		{"00972541234567", "972541234567"},
		{"+1 (415) 555-0182", "14155550182"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhoneNumber(tt.raw), "raw=%q", tt.raw)
	}
}

func TestSamePhoneNumber(t *testing.T) {
	assert.True(t, SamePhoneNumber("054-123-4567", "+972541234567"))
	assert.False(t, SamePhoneNumber("0541234567", "0541234568"))
}
