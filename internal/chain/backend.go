// Package chain talks to the per-network identity-state contracts. Clients
// are lazily constructed singletons; submission helpers classify failures
// into the chain error codes so callers can tell a rejected send from a
// confirmation timeout from a revert.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	dErrors "signet/pkg/domain-errors"
)

// stateContractABI covers exactly the operations this node invokes plus
// the read-only revocation check.
const stateContractABI = `[
	{"type":"function","name":"addClaim","stateMutability":"nonpayable","inputs":[{"name":"hi","type":"uint256"},{"name":"ht","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"revoke","stateMutability":"nonpayable","inputs":[{"name":"nonce","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"isRevoked","stateMutability":"view","inputs":[{"name":"nonce","type":"uint64"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Backend is what the issuance pipeline needs from one network. Submit
// methods block until the transaction is confirmed or the bounded wait
// expires; a nil error means the state change is committed on chain.
type Backend interface {
	SubmitClaim(ctx context.Context, key *ecdsa.PrivateKey, hi, hv *big.Int) (txHash string, err error)
	SubmitRevocation(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64) (txHash string, err error)
	IsRevoked(ctx context.Context, nonce uint64) (bool, error)
}

// ethBackend is the go-ethereum implementation of Backend, bound to one
// network's RPC endpoint and state contract.
type ethBackend struct {
	networkID      string
	client         *ethclient.Client
	chainID        *big.Int
	contract       *bind.BoundContract
	confirmTimeout time.Duration
}

func dialEthereum(ctx context.Context, networkID, rpcURL, contractAddr string, confirmTimeout time.Duration) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeChainSubmission, "dial "+networkID+" RPC")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeChainSubmission, "fetch "+networkID+" chain id")
	}
	parsed, err := abi.JSON(strings.NewReader(stateContractABI))
	if err != nil {
		client.Close()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse state contract ABI")
	}
	contract := bind.NewBoundContract(common.HexToAddress(contractAddr), parsed, client, client, client)
	return &ethBackend{
		networkID:      networkID,
		client:         client,
		chainID:        chainID,
		contract:       contract,
		confirmTimeout: confirmTimeout,
	}, nil
}

func (b *ethBackend) SubmitClaim(ctx context.Context, key *ecdsa.PrivateKey, hi, hv *big.Int) (string, error) {
	return b.transact(ctx, key, "addClaim", hi, hv)
}

func (b *ethBackend) SubmitRevocation(ctx context.Context, key *ecdsa.PrivateKey, nonce uint64) (string, error) {
	return b.transact(ctx, key, "revoke", nonce)
}

func (b *ethBackend) IsRevoked(ctx context.Context, nonce uint64) (bool, error) {
	var out []interface{}
	if err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isRevoked", nonce); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeChainSubmission, "query revocation status")
	}
	if len(out) != 1 {
		return false, dErrors.New(dErrors.CodeChainSubmission, "unexpected isRevoked return arity")
	}
	revoked, ok := out[0].(bool)
	if !ok {
		return false, dErrors.New(dErrors.CodeChainSubmission, "unexpected isRevoked return type")
	}
	return revoked, nil
}

// transact signs with the issuer key, sends, and waits for the receipt
// under the configured confirmation bound. A submitted-but-unconfirmed
// transaction is never rolled back; it either lands or the network drops it.
func (b *ethBackend) transact(ctx context.Context, key *ecdsa.PrivateKey, method string, args ...any) (string, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, b.chainID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeChainSubmission, "build transactor")
	}
	auth.Context = ctx

	tx, err := b.contract.Transact(auth, method, args...)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeChainSubmission, method+" submission rejected")
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.confirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, b.client, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", dErrors.New(dErrors.CodeChainTimeout, method+" confirmation timed out").
				WithField("tx_hash", tx.Hash().Hex())
		}
		return "", dErrors.Wrap(err, dErrors.CodeChainSubmission, "wait for "+method+" confirmation")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", dErrors.New(dErrors.CodeChainRevert, method+" reverted").
			WithField("tx_hash", tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}
