package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/platform/config"
	dErrors "signet/pkg/domain-errors"
)

const (
	keyA = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
	keyB = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

func TestNewPreservesConfigurationOrder(t *testing.T) {
	r, err := New([]config.IssuerKey{
		{DID: "did:iden3:polygon:Ax1", PrivateKeyHex: keyA},
		{DID: "did:iden3:mumbai:Bx2", PrivateKeyHex: keyB},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"did:iden3:polygon:Ax1", "did:iden3:mumbai:Bx2"}, r.List())
}

func TestResolve(t *testing.T) {
	r, err := New([]config.IssuerKey{{DID: "did:iden3:polygon:Ax1", PrivateKeyHex: keyA}})
	require.NoError(t, err)

	id, err := r.Resolve("did:iden3:polygon:Ax1")
	require.NoError(t, err)
	assert.Equal(t, "polygon", id.NetworkID)
	assert.NotNil(t, id.PrivateKey())

	_, err = r.Resolve("did:iden3:polygon:Zz9")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownIssuer))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New([]config.IssuerKey{{DID: "not-a-did", PrivateKeyHex: keyA}})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))

	_, err = New([]config.IssuerKey{{DID: "did:iden3:polygon:Ax1", PrivateKeyHex: "zz"}})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
}
