// Package credential implements the per-tenant, per-provider encrypted
// credential store (C1): at most one active credential per (tenant,
// provider), symmetric encryption of secret material, and cache
// invalidation of the provider registry on every mutation.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrichloop/core/pkg/id"
	"github.com/enrichloop/core/pkg/sanitizer"
)

// Credential is the decrypted-on-read view of an api_keys row.
type Credential struct {
	ID         string
	TenantID   string
	ProviderID string
	Label      string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Invalidator is the narrow view of the provider Registry the store needs.
// Satisfied by (*provider.Registry).Invalidate.
type Invalidator interface {
	Invalidate(tenant, providerID string)
}

// Store is the C1 implementation over Postgres.
type Store struct {
	pool    *pgxpool.Pool
	codec   *codec
	invalid Invalidator
	logger  *slog.Logger
}

// New constructs a Store. encryptionKey must be exactly 32 bytes
// (ENCRYPTION_KEY); the process must refuse to start without it (§6).
func New(pool *pgxpool.Pool, encryptionKey []byte, invalidator Invalidator, logger *slog.Logger) (*Store, error) {
	c, err := newCodec(encryptionKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, codec: c, invalid: invalidator, logger: logger}, nil
}

// GetActive returns the active credential for (tenant, provider), or
// ErrNotFound if none is active.
func (s *Store) GetActive(ctx context.Context, tenant, providerID string) (*Credential, error) {
	const q = `
		SELECT id, tenant_id, provider_id, label, is_active, created_at, updated_at
		FROM api_keys
		WHERE tenant_id = $1 AND provider_id = $2 AND is_active = true`

	row := s.pool.QueryRow(ctx, q, tenant, providerID)
	return scanCredential(row)
}

// ActiveSecret decrypts and returns the raw secret for the active
// credential, implementing provider.CredentialSource. A decryption failure
// deactivates the row and evicts the registry entry before returning
// ErrDecryptFailed, per the §7 self-healing recovery path.
func (s *Store) ActiveSecret(ctx context.Context, tenant, providerID string) (string, error) {
	const q = `
		SELECT id, key_material
		FROM api_keys
		WHERE tenant_id = $1 AND provider_id = $2 AND is_active = true`

	var credID, encrypted string
	err := s.pool.QueryRow(ctx, q, tenant, providerID).Scan(&credID, &encrypted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoActiveCredential
	}
	if err != nil {
		return "", fmt.Errorf("credential: query active secret: %w", err)
	}

	secret, err := s.codec.decrypt(encrypted)
	if err != nil {
		s.deactivateOnDecryptFailure(ctx, tenant, providerID, credID)
		return "", ErrDecryptFailed
	}
	return secret, nil
}

func (s *Store) deactivateOnDecryptFailure(ctx context.Context, tenant, providerID, credID string) {
	const q = `UPDATE api_keys SET is_active = false, updated_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, credID); err != nil {
		s.logger.Error("failed to deactivate undecryptable credential",
			slog.String("credential_id", credID), slog.Any("error", err))
	}
	s.invalid.Invalidate(tenant, providerID)
}

// List returns every credential row for (tenant, provider), most recent
// first.
func (s *Store) List(ctx context.Context, tenant, providerID string) ([]Credential, error) {
	const q = `
		SELECT id, tenant_id, provider_id, label, is_active, created_at, updated_at
		FROM api_keys
		WHERE tenant_id = $1 AND provider_id = $2
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, tenant, providerID)
	if err != nil {
		return nil, fmt.Errorf("credential: list: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		c, err := scanCredentialRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Add stores a new, inactive credential. Labels are tenant-supplied free
// text, ultimately rendered at the edge, so they are run through
// bluemonday's strict policy before storage.
func (s *Store) Add(ctx context.Context, tenant, providerID, label, raw string) (*Credential, error) {
	label = sanitizer.SanitizeStrict(label)

	encrypted, err := s.codec.encrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("credential: encrypt: %w", err)
	}

	credID := id.NewULID()
	const q = `
		INSERT INTO api_keys (id, tenant_id, provider_id, label, key_material, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, now(), now())
		RETURNING id, tenant_id, provider_id, label, is_active, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, credID, tenant, providerID, label, encrypted)
	cred, err := scanCredential(row)
	if err != nil {
		return nil, err
	}

	s.invalid.Invalidate(tenant, providerID)
	return cred, nil
}

// Activate atomically clears every other active credential for
// (tenant, provider) and activates credID, enforcing the at-most-one-active
// invariant (§8 testable property).
func (s *Store) Activate(ctx context.Context, tenant, credID string) error {
	var providerID string
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const findQ = `SELECT provider_id FROM api_keys WHERE id = $1 AND tenant_id = $2`
		if err := tx.QueryRow(ctx, findQ, credID, tenant).Scan(&providerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("credential: find for activate: %w", err)
		}

		const clearQ = `UPDATE api_keys SET is_active = false, updated_at = now() WHERE tenant_id = $1 AND provider_id = $2 AND is_active = true`
		if _, err := tx.Exec(ctx, clearQ, tenant, providerID); err != nil {
			return fmt.Errorf("credential: clear active: %w", err)
		}

		const activateQ = `UPDATE api_keys SET is_active = true, updated_at = now() WHERE id = $1`
		if _, err := tx.Exec(ctx, activateQ, credID); err != nil {
			return fmt.Errorf("credential: activate: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	// Invalidate only after the transaction has committed: a registry
	// lookup that races the invalidation must never repopulate its cache
	// with the pre-activation instance and then have nothing evict it.
	s.invalid.Invalidate(tenant, providerID)
	return nil
}

// Update mutates label and/or raw secret material for an existing
// credential. Either field may be left nil to leave it unchanged.
func (s *Store) Update(ctx context.Context, tenant, credID string, label, raw *string) error {
	var providerID string
	const findQ = `SELECT provider_id FROM api_keys WHERE id = $1 AND tenant_id = $2`
	if err := s.pool.QueryRow(ctx, findQ, credID, tenant).Scan(&providerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("credential: find for update: %w", err)
	}

	if label != nil {
		clean := sanitizer.SanitizeStrict(*label)
		const q = `UPDATE api_keys SET label = $1, updated_at = now() WHERE id = $2`
		if _, err := s.pool.Exec(ctx, q, clean, credID); err != nil {
			return fmt.Errorf("credential: update label: %w", err)
		}
	}
	if raw != nil {
		encrypted, err := s.codec.encrypt(*raw)
		if err != nil {
			return fmt.Errorf("credential: encrypt: %w", err)
		}
		const q = `UPDATE api_keys SET key_material = $1, updated_at = now() WHERE id = $2`
		if _, err := s.pool.Exec(ctx, q, encrypted, credID); err != nil {
			return fmt.Errorf("credential: update secret: %w", err)
		}
	}

	s.invalid.Invalidate(tenant, providerID)
	return nil
}

// Delete removes a credential row and invalidates the registry entry.
func (s *Store) Delete(ctx context.Context, tenant, credID string) error {
	var providerID string
	const findQ = `SELECT provider_id FROM api_keys WHERE id = $1 AND tenant_id = $2`
	if err := s.pool.QueryRow(ctx, findQ, credID, tenant).Scan(&providerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("credential: find for delete: %w", err)
	}

	const q = `DELETE FROM api_keys WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, credID); err != nil {
		return fmt.Errorf("credential: delete: %w", err)
	}

	s.invalid.Invalidate(tenant, providerID)
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("credential: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type row interface {
	Scan(dest ...any) error
}

func scanCredential(r row) (*Credential, error) {
	var c Credential
	err := r.Scan(&c.ID, &c.TenantID, &c.ProviderID, &c.Label, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credential: scan: %w", err)
	}
	return &c, nil
}

func scanCredentialRows(r pgx.Rows) (*Credential, error) {
	var c Credential
	if err := r.Scan(&c.ID, &c.TenantID, &c.ProviderID, &c.Label, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("credential: scan row: %w", err)
	}
	return &c, nil
}
