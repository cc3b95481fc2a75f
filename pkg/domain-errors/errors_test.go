package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := New(CodeClaim, "missing schema reference")
	assert.True(t, HasCode(err, CodeClaim))
	assert.False(t, HasCode(err, CodeSchema))
	assert.False(t, HasCode(errors.New("plain"), CodeClaim))
	assert.False(t, HasCode(nil, CodeClaim))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeChainTimeout, "confirmation timed out")
	outer := fmt.Errorf("issue credential: %w", inner)
	assert.True(t, HasCode(outer, CodeChainTimeout))
	assert.Equal(t, CodeChainTimeout, CodeOf(outer))
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeChainSubmission, "send transaction")
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "chain_submission")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, ToHTTPStatus(CodeClaim))
	assert.Equal(t, 404, ToHTTPStatus(CodeUnknownIssuer))
	assert.Equal(t, 409, ToHTTPStatus(CodeAlreadyRevoked))
	assert.Equal(t, 422, ToHTTPStatus(CodeUnsupportedNetwork))
	assert.Equal(t, 502, ToHTTPStatus(CodeChainSubmission))
	assert.Equal(t, 504, ToHTTPStatus(CodeChainTimeout))
	assert.Equal(t, 500, ToHTTPStatus(CodeInternal))
	assert.Equal(t, 500, ToHTTPStatus(Code("unknown")))
}

func TestWithField(t *testing.T) {
	err := New(CodeStorage, "save credential").
		WithField("tx_hash", "0xabc").
		WithField("revision", "3")
	assert.Equal(t, "0xabc", err.Field("tx_hash"))
	assert.Equal(t, "3", err.Field("revision"))
	// original untouched
	assert.Empty(t, New(CodeStorage, "save credential").Field("tx_hash"))
}
