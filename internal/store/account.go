package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/model"
)

type accountStore struct {
	q db.Querier
}

func (s *accountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, email, responses_remaining, webhook_secret, personas, created_at, updated_at
		FROM accounts
		WHERE id = $1`, id)

	var a model.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.ResponsesRemaining, &a.WebhookSecret, &a.Personas, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *accountStore) Create(ctx context.Context, account *model.Account) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO accounts (id, name, email, responses_remaining, webhook_secret, personas)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		account.ID, account.Name, account.Email, account.ResponsesRemaining, account.WebhookSecret, account.Personas)
	return row.Scan(&account.CreatedAt, &account.UpdatedAt)
}

func (s *accountStore) HasResponseQuota(ctx context.Context, id int64) (bool, error) {
	row := s.q.QueryRow(ctx, `
		SELECT responses_remaining > 0
		FROM accounts
		WHERE id = $1`, id)

	var ok bool
	if err := row.Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return ok, nil
}

func (s *accountStore) ConsumeResponseQuota(ctx context.Context, id int64) (bool, error) {
	// Conditional decrement: only one caller can take the last unit, and the
	// counter never goes below zero.
	tag, err := s.q.Exec(ctx, `
		UPDATE accounts
		SET responses_remaining = responses_remaining - 1, updated_at = now()
		WHERE id = $1 AND responses_remaining > 0`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
