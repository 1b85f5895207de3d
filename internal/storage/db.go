package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stratmarket/engine/internal/types"
)

var (
	ErrNotFound = errors.New("not found")

	// Duplicate classifications mirror the unique constraints so handlers
	// can answer 409 with a precise reason.
	ErrDuplicateStrategy  = errors.New("strategy already exists for this creator")
	ErrDuplicatePurchase  = errors.New("buyer already owns this strategy")
	ErrDuplicatePaymentID = errors.New("payment id already used")
)

// Store is the ledger surface: strategy documents, purchase records and the
// durable trigger registry. Passed explicitly to every component that needs
// it; connect/close lifecycle is owned by main.
type Store interface {
	Close() error

	CreateStrategy(ctx context.Context, strategy *types.Strategy, hash string) (uuid.UUID, error)
	GetStrategy(ctx context.Context, id uuid.UUID) (*types.Strategy, error)
	ListStrategies(ctx context.Context, creator string) ([]types.Strategy, error)

	CreatePurchase(ctx context.Context, purchase types.Purchase) (*types.Purchase, error)
	HasPurchase(ctx context.Context, buyer string, strategyID uuid.UUID) (bool, error)
	ListPurchasesByBuyer(ctx context.Context, buyer string) ([]types.Purchase, error)

	CreateRegisteredTrigger(ctx context.Context, trigger types.RegisteredTrigger) error
	DeleteRegisteredTrigger(ctx context.Context, id string) error
	ListActiveTriggers(ctx context.Context) ([]types.RegisteredTrigger, error)
}
