package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskTarget(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"user@example.com", "u**r@example.com"},
		{"ab@example.com", "**@example.com"},
		{"+14155550123", "+14*******23"},
		{"+123", "****"},
		{"", ""},
		{"  user@example.com  ", "u**r@example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskTarget(tt.input), "input %q", tt.input)
	}
}

func TestMaskTargetNeverLeaksFullLocalPart(t *testing.T) {
	masked := MaskTarget("sensitive.user@example.com")
	assert.NotContains(t, masked, "sensitive.user")
}
