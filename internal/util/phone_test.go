package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayPhone(t *testing.T) {
	tests := map[string]string{
		"+15551234567":   "(555) 123-4567",
		"5551234567":     "(555) 123-4567",
		" +15551234567 ": "(555) 123-4567",
		"+447911123456":  "+(447) 911-123456",
		"12345":          "12345",
		"":               "",
		"AcmeShortCode":  "AcmeShortCode",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayPhone(in), "input %q", in)
	}
}
