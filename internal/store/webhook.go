package store

import (
	"context"

	"echoform.app/echoform/core/db"
	"echoform.app/echoform/internal/model"
)

type webhookStore struct {
	q db.Querier
}

func (s *webhookStore) ListEnabledByInstance(ctx context.Context, instanceID int64) ([]model.WebhookEndpoint, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, instance_id, url, enabled, created_at
		FROM webhook_endpoints
		WHERE instance_id = $1 AND enabled`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.WebhookEndpoint
	for rows.Next() {
		var ep model.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.InstanceID, &ep.URL, &ep.Enabled, &ep.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ep)
	}
	return result, rows.Err()
}

func (s *webhookStore) Create(ctx context.Context, endpoint *model.WebhookEndpoint) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (id, instance_id, url, enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		endpoint.ID, endpoint.InstanceID, endpoint.URL, endpoint.Enabled)
	return row.Scan(&endpoint.CreatedAt)
}
