package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stratmarket/engine/internal/storage"
	"github.com/stratmarket/engine/internal/types"
)

const (
	constraintStrategyCreatorHash = "strategies_creator_hash_key"
	constraintPurchaseBuyer       = "purchases_buyer_strategy_key"
	constraintPurchasePaymentID   = "purchases_payment_id_key"
)

// classifyUniqueViolation maps a constraint violation to the matching storage
// sentinel, or returns nil when err is not a unique violation.
func classifyUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	if pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintStrategyCreatorHash:
		return storage.ErrDuplicateStrategy
	case constraintPurchaseBuyer:
		return storage.ErrDuplicatePurchase
	case constraintPurchasePaymentID:
		return storage.ErrDuplicatePaymentID
	}
	return nil
}

func (b *Backend) CreateStrategy(ctx context.Context, strategy *types.Strategy, hash string) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	document, err := json.Marshal(strategy)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal strategy document: %w", err)
	}

	query := `
        INSERT INTO strategies (creator_address, name, description, hash, document)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	var id uuid.UUID
	err = b.pool.QueryRow(ctx, query,
		strategy.Creator.Address,
		strategy.Name,
		strategy.Description,
		hash,
		document,
	).Scan(&id)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return uuid.Nil, dup
		}
		return uuid.Nil, fmt.Errorf("failed to create strategy: %w", err)
	}
	return id, nil
}

func (b *Backend) GetStrategy(ctx context.Context, id uuid.UUID) (*types.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        SELECT id, document, created_at
        FROM strategies
        WHERE id = $1
    `
	var (
		document []byte
		strategy types.Strategy
	)
	err := b.pool.QueryRow(ctx, query, id).Scan(&strategy.ID, &document, &strategy.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}

	rowID, rowCreatedAt := strategy.ID, strategy.CreatedAt
	if err := json.Unmarshal(document, &strategy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strategy document: %w", err)
	}
	strategy.ID = rowID
	strategy.CreatedAt = rowCreatedAt
	return &strategy, nil
}

func (b *Backend) ListStrategies(ctx context.Context, creator string) ([]types.Strategy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        SELECT id, document, created_at
        FROM strategies
        WHERE ($1 = '' OR creator_address = $1)
        ORDER BY created_at DESC
    `
	rows, err := b.pool.Query(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []types.Strategy
	for rows.Next() {
		var (
			strategy types.Strategy
			document []byte
		)
		if err := rows.Scan(&strategy.ID, &document, &strategy.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		rowID, rowCreatedAt := strategy.ID, strategy.CreatedAt
		if err := json.Unmarshal(document, &strategy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strategy document: %w", err)
		}
		strategy.ID = rowID
		strategy.CreatedAt = rowCreatedAt
		strategies = append(strategies, strategy)
	}
	return strategies, rows.Err()
}
