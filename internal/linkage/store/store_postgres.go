package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scorevc/internal/eth"
	"scorevc/internal/linkage/models"
	"scorevc/pkg/domain"
	"scorevc/pkg/platform/sentinel"
	txcontext "scorevc/pkg/platform/tx"
)

// linkAttempts bounds select-then-insert rounds inside one Link transaction.
const linkAttempts = 2

// PostgresStore persists links in the principal_scores table. Both columns
// carry unique constraints.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) queryer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Link runs the check-then-write inside one transaction with the matching
// rows locked FOR UPDATE. When no rows match there is nothing to lock, so a
// concurrent first link can commit between the select and the insert. The
// insert then does nothing and the rows are selected again, now visible
// under READ COMMITTED, so an identical pair takes the score-update path and
// only a genuine conflict is reported.
func (s *PostgresStore) Link(ctx context.Context, principal domain.Principal, addressHash eth.AddressHash, score float64, now time.Time) (*models.Link, error) {
	var result *models.Link
	err := txcontext.Run(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for attempt := 0; attempt < linkAttempts; attempt++ {
			found, err := selectLinksForUpdate(ctx, tx, principal, addressHash)
			if err != nil {
				return err
			}

			switch {
			case len(found) == 1 && found[0].Matches(principal, addressHash):
				if _, err := tx.ExecContext(ctx, `
					UPDATE principal_scores SET score = $2, updated_at = $3 WHERE principal = $1
				`, principal.Bytes(), score, now); err != nil {
					return fmt.Errorf("update score: %w", err)
				}
				link := found[0]
				link.Score = score
				link.UpdatedAt = now
				result = &link
				return nil
			case len(found) > 0:
				return sentinel.ErrConflict
			}

			res, err := tx.ExecContext(ctx, `
				INSERT INTO principal_scores (principal, address_hash, score, linked_at, updated_at)
				VALUES ($1, $2, $3, $4, $4)
				ON CONFLICT DO NOTHING
			`, principal.Bytes(), addressHash[:], score, now)
			if err != nil {
				return fmt.Errorf("insert link: %w", err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("insert link: %w", err)
			}
			if inserted == 1 {
				result = &models.Link{
					Principal:   principal,
					AddressHash: addressHash,
					Score:       score,
					LinkedAt:    now,
					UpdatedAt:   now,
				}
				return nil
			}
		}
		// Rows keep appearing and disappearing between statements.
		return sentinel.ErrConflict
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func selectLinksForUpdate(ctx context.Context, tx *sql.Tx, principal domain.Principal, addressHash eth.AddressHash) ([]models.Link, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT principal, address_hash, score, linked_at, updated_at
		FROM principal_scores
		WHERE principal = $1 OR address_hash = $2
		FOR UPDATE
	`, principal.Bytes(), addressHash[:])
	if err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	defer rows.Close()

	var found []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) Get(ctx context.Context, principal domain.Principal) (*models.Link, error) {
	row := s.queryer(ctx).QueryRowContext(ctx, `
		SELECT principal, address_hash, score, linked_at, updated_at
		FROM principal_scores
		WHERE principal = $1
	`, principal.Bytes())
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *PostgresStore) Score(ctx context.Context, principal domain.Principal) (float64, error) {
	link, err := s.Get(ctx, principal)
	if err != nil {
		return 0, err
	}
	return link.Score, nil
}

func (s *PostgresStore) PrincipalByAddress(ctx context.Context, addressHash eth.AddressHash) (domain.Principal, error) {
	var raw []byte
	err := s.queryer(ctx).QueryRowContext(ctx, `
		SELECT principal FROM principal_scores WHERE address_hash = $1
	`, addressHash[:]).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Principal{}, sentinel.ErrNotFound
		}
		return domain.Principal{}, fmt.Errorf("get principal by address: %w", err)
	}
	return domain.PrincipalFromBytes(raw)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*models.Link, error) {
	var (
		rawPrincipal []byte
		rawHash      []byte
		link         models.Link
	)
	if err := row.Scan(&rawPrincipal, &rawHash, &link.Score, &link.LinkedAt, &link.UpdatedAt); err != nil {
		return nil, err
	}
	principal, err := domain.PrincipalFromBytes(rawPrincipal)
	if err != nil {
		return nil, fmt.Errorf("stored principal: %w", err)
	}
	if len(rawHash) != len(link.AddressHash) {
		return nil, fmt.Errorf("stored address hash has %d bytes", len(rawHash))
	}
	link.Principal = principal
	copy(link.AddressHash[:], rawHash)
	return &link, nil
}
