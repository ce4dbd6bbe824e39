package common

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := NewAppError(KindValidation, "bad amount", errors.New("cause"))
	wrapped := fmt.Errorf("service: %w", orig)

	got := Classify(wrapped)
	require.Same(t, orig, got)
}

func TestClassifyWireCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"unique violation", &WireError{Status: 409, Code: CodeUniqueViolation, Message: "duplicate key"}, KindValidation},
		{"fk violation", &WireError{Status: 409, Code: CodeForeignKeyViolation, Message: "fk"}, KindValidation},
		{"rls denied", &WireError{Status: 403, Code: CodeRLSDenied, Message: "denied"}, KindPermission},
		{"connection failure code", &WireError{Status: 500, Code: "08006", Message: "terminated"}, KindNetwork},
		{"unauthorized", &WireError{Status: 401, Message: "jwt expired"}, KindAuth},
		{"bad gateway", &WireError{Status: 502, Message: "bad gateway"}, KindNetwork},
		{"teapot", &WireError{Status: 418, Message: "teapot"}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestClassifyAuthCodes(t *testing.T) {
	tests := []struct {
		code string
		msg  string
	}{
		{AuthCodeInvalidCredentials, "invalid email or password"},
		{AuthCodeEmailNotConfirmed, "the account email has not been confirmed"},
		{AuthCodeUserExists, "an account with this email already exists"},
		{"something_else", "authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := Classify(&AuthError{Status: 400, Code: tt.code})
			require.Equal(t, KindAuth, got.Kind)
			assert.Equal(t, tt.msg, got.Message)
		})
	}
}

func TestClassifyNetwork(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	got := Classify(fmt.Errorf("list: %w", opErr))
	assert.Equal(t, KindNetwork, got.Kind)
}

func TestClassifyUnknown(t *testing.T) {
	got := Classify(errors.New("weird"))
	assert.Equal(t, KindUnknown, got.Kind)
}

func TestRetryablePredicates(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}

	assert.True(t, Retryable(netErr))
	assert.True(t, Retryable(&WireError{Status: 500, Code: "08006"}))
	assert.False(t, Retryable(&WireError{Status: 409, Code: CodeUniqueViolation}))
	assert.False(t, Retryable(&AuthError{Status: 400, Code: AuthCodeInvalidCredentials}))

	assert.True(t, RetryableAuth(netErr))
	assert.False(t, RetryableAuth(&WireError{Status: 500, Code: "08006"}))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, MsgOffline, UserMessage(Offline()))
	assert.Equal(t, userMessages[KindValidation], UserMessage(&WireError{Code: CodeUniqueViolation}))
	assert.Equal(t, userMessages[KindUnknown], UserMessage(errors.New("weird")))
	assert.Empty(t, UserMessage(nil))
}
