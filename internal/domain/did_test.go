package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signet/pkg/domain-errors"
)

func TestParseDID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantNet string
		wantID  string
		wantErr bool
	}{
		{name: "polygon issuer", input: "did:iden3:polygon:Ax1", wantNet: "polygon", wantID: "Ax1"},
		{name: "mumbai subject", input: "did:iden3:mumbai:Bx2-3_c", wantNet: "mumbai", wantID: "Bx2-3_c"},
		{name: "unknown network", input: "did:iden3:solana:Ax1", wantErr: true},
		{name: "wrong method", input: "did:key:z6Mk", wantErr: true},
		{name: "missing identifier", input: "did:iden3:polygon:", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "bare address", input: "0xdeadbeef", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			did, err := ParseDID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, did.String())
			assert.Equal(t, tt.wantNet, did.NetworkID())
			assert.Equal(t, tt.wantID, did.Identifier())
		})
	}
}

func TestIsValidDID(t *testing.T) {
	assert.True(t, IsValidDID("did:iden3:polygon:Ax1"))
	assert.False(t, IsValidDID("did:iden3:polygon"))
}
