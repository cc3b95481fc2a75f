// Package config builds validated runtime configuration from environment
// variables so main stays lean. Malformed entries are rejected at startup
// rather than silently skipped.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	dErrors "signet/pkg/domain-errors"
)

const (
	defaultAddr           = ":8080"
	defaultIPFSGateway    = "https://ipfs.io"
	defaultConfirmTimeout = 60 * time.Second
)

var privateKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// IssuerKey binds one issuer DID to its signing key. Keys never appear in
// logs or serialized output.
type IssuerKey struct {
	DID           string
	PrivateKeyHex string
}

// Config is the full node configuration.
type Config struct {
	Addr string

	// RPC endpoint and identity-state contract address per network id.
	RPCEndpoints      map[string]string
	ContractAddresses map[string]string

	// Issuer signing keys in configuration order.
	IssuerKeys []IssuerKey

	DatabaseURL string
	StorageMode string // "postgres" (default) or "memory"

	IPFSGateway string
	RedisURL    string

	KafkaBrokers []string
	AuditTopic   string

	ConfirmTimeout time.Duration
}

// FromEnv parses and validates the environment. It fails fast: an empty
// RPC map, contract map, or issuer list is a configuration error, as is
// any malformed pair entry.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:           envOr("SIGNET_ADDR", defaultAddr),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StorageMode:    envOr("STORAGE_MODE", "postgres"),
		IPFSGateway:    envOr("IPFS_GATEWAY", defaultIPFSGateway),
		RedisURL:       os.Getenv("REDIS_URL"),
		AuditTopic:     envOr("AUDIT_TOPIC", "signet.audit"),
		ConfirmTimeout: defaultConfirmTimeout,
	}

	var err error
	if cfg.RPCEndpoints, err = parsePairs("SUPPORTED_RPC", os.Getenv("SUPPORTED_RPC")); err != nil {
		return Config{}, err
	}
	if cfg.ContractAddresses, err = parsePairs("SUPPORTED_STATE_CONTRACTS", os.Getenv("SUPPORTED_STATE_CONTRACTS")); err != nil {
		return Config{}, err
	}
	if cfg.IssuerKeys, err = ParseIssuerKeys(os.Getenv("ISSUERS_PRIVATE_KEY")); err != nil {
		return Config{}, err
	}

	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("CHAIN_CONFIRM_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, dErrors.Newf(dErrors.CodeConfig, "CHAIN_CONFIRM_TIMEOUT: invalid duration %q", raw)
		}
		cfg.ConfirmTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.RPCEndpoints) == 0 {
		return dErrors.New(dErrors.CodeConfig, "SUPPORTED_RPC: no RPC endpoints configured")
	}
	if len(c.ContractAddresses) == 0 {
		return dErrors.New(dErrors.CodeConfig, "SUPPORTED_STATE_CONTRACTS: no state contracts configured")
	}
	if len(c.IssuerKeys) == 0 {
		return dErrors.New(dErrors.CodeConfig, "ISSUERS_PRIVATE_KEY: no issuer keys configured")
	}
	switch c.StorageMode {
	case "postgres":
		if c.DatabaseURL == "" {
			return dErrors.New(dErrors.CodeConfig, "DATABASE_URL is required when STORAGE_MODE=postgres")
		}
	case "memory":
	default:
		return dErrors.Newf(dErrors.CodeConfig, "STORAGE_MODE: unknown mode %q", c.StorageMode)
	}
	return nil
}

// parsePairs parses "key=value,key=value" lists. Every entry must be a
// well-formed pair; a malformed entry fails configuration instead of being
// dropped.
func parsePairs(name, raw string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, dErrors.Newf(dErrors.CodeConfig, "%s: malformed entry %q", name, pair)
		}
		if _, dup := out[key]; dup {
			return nil, dErrors.Newf(dErrors.CodeConfig, "%s: duplicate key %q", name, key)
		}
		out[key] = value
	}
	return out, nil
}

// ParseIssuerKeys parses "did=privateKeyHex,did=privateKeyHex" preserving
// configuration order. Private keys must be exactly 64 hex characters.
func ParseIssuerKeys(raw string) ([]IssuerKey, error) {
	var keys []IssuerKey
	if strings.TrimSpace(raw) == "" {
		return keys, nil
	}
	seen := make(map[string]struct{})
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		did, key, ok := strings.Cut(pair, "=")
		did, key = strings.TrimSpace(did), strings.TrimSpace(key)
		if !ok || did == "" || key == "" {
			return nil, dErrors.Newf(dErrors.CodeConfig, "ISSUERS_PRIVATE_KEY: malformed entry %q", pair)
		}
		if !privateKeyPattern.MatchString(key) {
			return nil, dErrors.Newf(dErrors.CodeConfig, "ISSUERS_PRIVATE_KEY: private key for %s must be 64 hex characters", did)
		}
		if _, dup := seen[did]; dup {
			return nil, dErrors.Newf(dErrors.CodeConfig, "ISSUERS_PRIVATE_KEY: duplicate issuer %s", did)
		}
		seen[did] = struct{}{}
		keys = append(keys, IssuerKey{DID: did, PrivateKeyHex: key})
	}
	return keys, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
