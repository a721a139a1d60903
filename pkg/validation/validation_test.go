package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "leadcrm/pkg/domain-errors"
)

type sampleRequest struct {
	Subject     string `validate:"required,email"`
	ConsentType string `validate:"required,oneof=marketing analytics"`
	Reason      string `validate:"omitempty,max=10"`
	Note        string `validate:"omitempty,notblank"`
}

func TestValidatePasses(t *testing.T) {
	err := Validate(&sampleRequest{
		Subject:     "jane.doe@example.com",
		ConsentType: "marketing",
	})
	assert.NoError(t, err)
}

func TestValidateReturnsDomainError(t *testing.T) {
	err := Validate(&sampleRequest{ConsentType: "marketing"})
	require.Error(t, err)

	var dErr *dErrors.Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, dErrors.CodeValidation, dErr.Code)
	assert.Equal(t, "subject is required", dErr.Message)
}

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name     string
		req      sampleRequest
		expected string
	}{
		{
			name:     "invalid email",
			req:      sampleRequest{Subject: "not-an-email", ConsentType: "marketing"},
			expected: "subject must be a valid email",
		},
		{
			name:     "oneof violation names choices",
			req:      sampleRequest{Subject: "a@b.com", ConsentType: "bogus"},
			expected: "consent_type must be one of [marketing analytics]",
		},
		{
			name:     "max length",
			req:      sampleRequest{Subject: "a@b.com", ConsentType: "marketing", Reason: "far too long a reason"},
			expected: "reason must be at most 10",
		},
		{
			name:     "blank note",
			req:      sampleRequest{Subject: "a@b.com", ConsentType: "marketing", Note: "   "},
			expected: "note must not be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}
