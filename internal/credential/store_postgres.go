package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signet/internal/domain"
	"signet/pkg/platform/sentinel"
)

// PostgresStore persists credentials, identity states and revocation
// records in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed store over an existing pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema. Idempotent; called at startup.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			issuer      TEXT        NOT NULL,
			id          TEXT        NOT NULL,
			subject     TEXT        NOT NULL,
			schema_type TEXT        NOT NULL,
			document    JSONB       NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (issuer, id)
		);
		CREATE INDEX IF NOT EXISTS credentials_by_user
			ON credentials (issuer, subject, schema_type);

		CREATE TABLE IF NOT EXISTS identity_states (
			issuer     TEXT        NOT NULL,
			network    TEXT        NOT NULL,
			root       TEXT        NOT NULL,
			revision   BIGINT      NOT NULL,
			tx_hash    TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (issuer, network)
		);

		CREATE TABLE IF NOT EXISTS revocations (
			issuer     TEXT        NOT NULL,
			nonce      BIGINT      NOT NULL,
			tx_hash    TEXT        NOT NULL,
			revoked_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (issuer, nonce)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate credential schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, cred domain.Credential) (string, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	document, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("marshal credential document: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO credentials (issuer, id, subject, schema_type, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.Issuer, cred.ID, cred.Subject(), cred.CredentialSchema.Type, document, cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", sentinel.ErrAlreadyExists
		}
		return "", fmt.Errorf("insert credential: %w", err)
	}
	return cred.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, issuer, credentialID string) (domain.Credential, error) {
	var document []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM credentials WHERE issuer = $1 AND id = $2`,
		issuer, credentialID).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credential{}, sentinel.ErrNotFound
		}
		return domain.Credential{}, fmt.Errorf("select credential by id: %w", err)
	}
	return unmarshalCredential(document)
}

func (s *PostgresStore) GetByUser(ctx context.Context, issuer, subject, schemaType string) ([]domain.Credential, error) {
	query := `SELECT document FROM credentials WHERE issuer = $1 AND subject = $2`
	args := []any{issuer, subject}
	if schemaType != "" {
		query += ` AND schema_type = $3`
		args = append(args, schemaType)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select credentials by user: %w", err)
	}
	defer rows.Close()

	out := []domain.Credential{}
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		cred, err := unmarshalCredential(document)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveState(ctx context.Context, state domain.PublishedState) error {
	// The WHERE clause keeps the row monotonic: a write that does not
	// advance the stored revision updates nothing and is reported as stale
	// instead of silently rolling the state backwards.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO identity_states (issuer, network, root, revision, tx_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (issuer, network) DO UPDATE
		SET root = EXCLUDED.root, revision = EXCLUDED.revision,
		    tx_hash = EXCLUDED.tx_hash, updated_at = EXCLUDED.updated_at
		WHERE identity_states.revision < EXCLUDED.revision`,
		state.IssuerDID, state.NetworkID, state.Root, state.Revision, state.TxHash, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert identity state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrStaleWrite
	}
	return nil
}

func (s *PostgresStore) UsedNonces(ctx context.Context, issuer string) ([]uint64, error) {
	// Nonces are extracted as text: revocation nonces use the full uint64
	// range, which a BIGINT cast could overflow.
	rows, err := s.pool.Query(ctx, `
		SELECT document#>>'{credentialStatus,revocationNonce}'
		FROM credentials
		WHERE issuer = $1
		  AND document#>>'{credentialStatus,revocationNonce}' IS NOT NULL`,
		issuer)
	if err != nil {
		return nil, fmt.Errorf("select used nonces: %w", err)
	}
	defer rows.Close()

	out := []uint64{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan nonce row: %w", err)
		}
		nonce, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse stored nonce %q: %w", raw, err)
		}
		out = append(out, nonce)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestState(ctx context.Context, issuer, networkID string) (domain.PublishedState, error) {
	var state domain.PublishedState
	err := s.pool.QueryRow(ctx, `
		SELECT issuer, network, root, revision, tx_hash, updated_at
		FROM identity_states WHERE issuer = $1 AND network = $2`,
		issuer, networkID).
		Scan(&state.IssuerDID, &state.NetworkID, &state.Root, &state.Revision, &state.TxHash, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PublishedState{}, sentinel.ErrNotFound
		}
		return domain.PublishedState{}, fmt.Errorf("select identity state: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) SaveRevocation(ctx context.Context, rec domain.RevocationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revocations (issuer, nonce, tx_hash, revoked_at)
		VALUES ($1, $2, $3, $4)`,
		rec.IssuerDID, int64(rec.Nonce), rec.TxHash, rec.RevokedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRevocation(ctx context.Context, issuer string, nonce uint64) (domain.RevocationRecord, error) {
	var rec domain.RevocationRecord
	var storedNonce int64
	err := s.pool.QueryRow(ctx, `
		SELECT issuer, nonce, tx_hash, revoked_at
		FROM revocations WHERE issuer = $1 AND nonce = $2`,
		issuer, int64(nonce)).
		Scan(&rec.IssuerDID, &storedNonce, &rec.TxHash, &rec.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RevocationRecord{}, sentinel.ErrNotFound
		}
		return domain.RevocationRecord{}, fmt.Errorf("select revocation: %w", err)
	}
	rec.Nonce = uint64(storedNonce)
	return rec, nil
}

func unmarshalCredential(document []byte) (domain.Credential, error) {
	var cred domain.Credential
	if err := json.Unmarshal(document, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("unmarshal credential document: %w", err)
	}
	return cred, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
