package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "trims and drops duplicates preserving order",
			input:    []string{"  foo ", "bar", "foo", "", "  "},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "nil passes through",
			input:    nil,
			expected: nil,
		},
		{
			name:     "all blank collapses to empty",
			input:    []string{"", "   "},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "consent_type", ToSnakeCase("ConsentType"))
	assert.Equal(t, "request_id", ToSnakeCase("RequestID"))
	assert.Equal(t, "subject", ToSnakeCase("Subject"))
}
