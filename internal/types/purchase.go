package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Purchase records a settled payment for one strategy. A buyer may own a
// given strategy at most once; PaymentID is the payment credential's unique
// identifier and is globally unique.
type Purchase struct {
	ID               uuid.UUID       `json:"id"`
	BuyerAddress     string          `json:"buyer_address"`
	StrategyID       uuid.UUID       `json:"strategy_id"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	PaymentRecipient string          `json:"payment_recipient"`
	PaymentCurrency  string          `json:"payment_currency"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentID        string          `json:"payment_id"`
	TxHash           *string         `json:"tx_hash,omitempty"`
	PurchasedAt      time.Time       `json:"purchased_at"`
}

// RegisteredTrigger is a durable scheduler registry entry. The in-memory cron
// index is rebuilt from these rows on startup so scheduled executions survive
// process restarts.
type RegisteredTrigger struct {
	ID               string    `json:"id"`
	CronExpression   string    `json:"cron_expression"`
	CallbackEndpoint string    `json:"callback_endpoint"`
	StrategyID       uuid.UUID `json:"strategy_id"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}
