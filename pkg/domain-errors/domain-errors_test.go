package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite tests the domain error primitives.
//
// These are core error primitives used at every trust boundary. Unit tests
// ensure invariants like "wrapped domain errors preserve original code" and
// "errors.Is matches by code" are maintained.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorInterface() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeNotFound, Message: "subject not found"}
		s.Equal("subject not found", err.Error())
	})

	s.Run("returns code when message is empty", func() {
		err := &Error{Code: CodeRequestConflict}
		s.Equal("request_conflict", err.Error())
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	s.Run("returns wrapped error", func() {
		inner := errors.New("database connection failed")
		err := &Error{Code: CodeInternal, Message: "service error", Err: inner}
		s.Equal(inner, err.Unwrap())
	})

	s.Run("returns nil when no wrapped error", func() {
		err := &Error{Code: CodeNotFound, Message: "not found"}
		s.Nil(err.Unwrap())
	})
}

func (s *DomainErrorsSuite) TestIsMatching() {
	s.Run("matches by code only", func() {
		err1 := &Error{Code: CodeInvalidTransition, Message: "request already completed"}
		err2 := &Error{Code: CodeInvalidTransition, Message: "request already failed"}
		s.True(err1.Is(err2))
	})

	s.Run("does not match different codes", func() {
		err1 := &Error{Code: CodeNoActiveConsent}
		err2 := &Error{Code: CodeDuplicateConsent}
		s.False(err1.Is(err2))
	})
}

func (s *DomainErrorsSuite) TestWrapPreservesCode() {
	s.Run("wrapping a domain error keeps the original code", func() {
		inner := New(CodeRequestConflict, "in-flight export exists")
		wrapped := Wrap(inner, CodeInternal, "submit failed")
		s.True(HasCode(wrapped, CodeRequestConflict))
		s.Equal("submit failed", wrapped.Error())
	})

	s.Run("wrapping a plain error applies the given code", func() {
		inner := errors.New("connection reset")
		wrapped := Wrap(inner, CodeDeletionFailure, "deletion aborted")
		s.True(HasCode(wrapped, CodeDeletionFailure))
		s.ErrorIs(wrapped, inner)
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("false for nil", func() {
		s.False(HasCode(nil, CodeNotFound))
	})

	s.Run("false for non-domain errors", func() {
		s.False(HasCode(errors.New("plain"), CodeNotFound))
	})

	s.Run("matches through wrapping chains", func() {
		err := Wrap(New(CodeCollectionFailure, "leads query failed"), CodeInternal, "export failed")
		s.True(HasCode(err, CodeCollectionFailure))
	})
}
