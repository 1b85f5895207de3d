package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stratmarket/engine/internal/types"
)

func (b *Backend) CreatePurchase(ctx context.Context, purchase types.Purchase) (*types.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        INSERT INTO purchases (
            buyer_address, strategy_id, payment_amount, payment_recipient,
            payment_currency, payment_status, payment_id, tx_hash
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, purchased_at
    `
	err := b.pool.QueryRow(ctx, query,
		purchase.BuyerAddress,
		purchase.StrategyID,
		purchase.PaymentAmount,
		purchase.PaymentRecipient,
		purchase.PaymentCurrency,
		purchase.PaymentStatus,
		purchase.PaymentID,
		purchase.TxHash,
	).Scan(&purchase.ID, &purchase.PurchasedAt)
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	return &purchase, nil
}

func (b *Backend) HasPurchase(ctx context.Context, buyer string, strategyID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        SELECT EXISTS (
            SELECT 1 FROM purchases
            WHERE buyer_address = $1 AND strategy_id = $2
        )
    `
	var exists bool
	if err := b.pool.QueryRow(ctx, query, buyer, strategyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return exists, nil
}

func (b *Backend) ListPurchasesByBuyer(ctx context.Context, buyer string) ([]types.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
        SELECT id, buyer_address, strategy_id, payment_amount, payment_recipient,
               payment_currency, payment_status, payment_id, tx_hash, purchased_at
        FROM purchases
        WHERE buyer_address = $1
        ORDER BY purchased_at DESC
    `
	rows, err := b.pool.Query(ctx, query, buyer)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []types.Purchase
	for rows.Next() {
		var p types.Purchase
		err := rows.Scan(
			&p.ID,
			&p.BuyerAddress,
			&p.StrategyID,
			&p.PaymentAmount,
			&p.PaymentRecipient,
			&p.PaymentCurrency,
			&p.PaymentStatus,
			&p.PaymentID,
			&p.TxHash,
			&p.PurchasedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase row: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
