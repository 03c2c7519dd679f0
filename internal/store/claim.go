package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/model"
)

type claimStore struct {
	q db.Querier
}

func (s *claimStore) Claim(ctx context.Context, key string, from, to model.ClaimStatus) (bool, error) {
	// One conditional statement either way: the database decides who wins.
	if from == model.ClaimStatusNotStarted {
		// An absent row counts as not_started, so the claim is an upsert that
		// only advances rows still in not_started.
		tag, err := s.q.Exec(ctx, `
			INSERT INTO claims (key, status, claimed_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT (key) DO UPDATE
			SET status = EXCLUDED.status, reason = NULL, claimed_at = now(), updated_at = now()
			WHERE claims.status = 'not_started'`, key, to)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE claims
		SET status = $3, reason = NULL, claimed_at = now(), updated_at = now()
		WHERE key = $1 AND status = $2`, key, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *claimStore) SetStatus(ctx context.Context, key string, status model.ClaimStatus, reason *string) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE claims
		SET status = $2, reason = $3, updated_at = now()
		WHERE key = $1`, key, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *claimStore) Get(ctx context.Context, key string) (*model.Claim, error) {
	row := s.q.QueryRow(ctx, `
		SELECT key, status, reason, claimed_at, updated_at
		FROM claims
		WHERE key = $1`, key)

	var c model.Claim
	if err := row.Scan(&c.Key, &c.Status, &c.Reason, &c.ClaimedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
