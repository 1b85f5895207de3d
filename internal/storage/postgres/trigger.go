package postgres

import (
	"context"
	"fmt"

	"github.com/stratmarket/engine/internal/types"
)

func (b *Backend) CreateRegisteredTrigger(ctx context.Context, trigger types.RegisteredTrigger) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        INSERT INTO registered_triggers (id, cron_expression, callback_endpoint, strategy_id, active)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING
    `
	_, err := b.pool.Exec(ctx, query,
		trigger.ID,
		trigger.CronExpression,
		trigger.CallbackEndpoint,
		trigger.StrategyID,
		trigger.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create registered trigger: %w", err)
	}
	return nil
}

func (b *Backend) DeleteRegisteredTrigger(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := b.pool.Exec(ctx, `DELETE FROM registered_triggers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registered trigger: %w", err)
	}
	return nil
}

func (b *Backend) ListActiveTriggers(ctx context.Context) ([]types.RegisteredTrigger, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        SELECT id, cron_expression, callback_endpoint, strategy_id, active, created_at
        FROM registered_triggers
        WHERE active = TRUE
        ORDER BY created_at
    `
	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active triggers: %w", err)
	}
	defer rows.Close()

	var triggers []types.RegisteredTrigger
	for rows.Next() {
		var t types.RegisteredTrigger
		err := rows.Scan(
			&t.ID,
			&t.CronExpression,
			&t.CallbackEndpoint,
			&t.StrategyID,
			&t.Active,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trigger row: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}
