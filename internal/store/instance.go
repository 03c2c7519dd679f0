package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/model"
)

type instanceStore struct {
	q db.Querier
}

func (s *instanceStore) GetByID(ctx context.Context, id int64) (*model.ConversationInstance, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, account_id, title, objectives, branding, email_notifications, created_at, updated_at
		FROM conversation_instances
		WHERE id = $1`, id)

	var (
		inst          model.ConversationInstance
		objectivesRaw []byte
		brandingRaw   []byte
	)
	if err := row.Scan(&inst.ID, &inst.AccountID, &inst.Title, &objectivesRaw, &brandingRaw, &inst.EmailNotifications, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(objectivesRaw, &inst.Objectives); err != nil {
		return nil, fmt.Errorf("decoding objectives: %w", err)
	}
	if err := json.Unmarshal(brandingRaw, &inst.Branding); err != nil {
		return nil, fmt.Errorf("decoding branding: %w", err)
	}
	return &inst, nil
}

func (s *instanceStore) Create(ctx context.Context, instance *model.ConversationInstance) error {
	objectivesRaw, err := json.Marshal(instance.Objectives)
	if err != nil {
		return fmt.Errorf("encoding objectives: %w", err)
	}
	brandingRaw, err := json.Marshal(instance.Branding)
	if err != nil {
		return fmt.Errorf("encoding branding: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO conversation_instances (id, account_id, title, objectives, branding, email_notifications)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		instance.ID, instance.AccountID, instance.Title, objectivesRaw, brandingRaw, instance.EmailNotifications)
	return row.Scan(&instance.CreatedAt, &instance.UpdatedAt)
}
