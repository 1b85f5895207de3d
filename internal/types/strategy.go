package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChainAddress identifies a token, wallet or contract on a specific chain.
// It is never conflated with a human display name.
type ChainAddress struct {
	ChainID string `json:"chainId"`
	Address string `json:"address"`
}

var addressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

func (a ChainAddress) Validate() error {
	if a.ChainID == "" {
		return fmt.Errorf("chainId is required")
	}
	if !addressRe.MatchString(a.Address) {
		return fmt.Errorf("invalid address %q, expected 20-byte hex", a.Address)
	}
	return nil
}

// Fee is the price of a strategy purchase. Amount is a decimal value in the
// fee asset's display units; conversion to atomic units happens when payment
// requirements are computed.
type Fee struct {
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
	Asset     ChainAddress    `json:"asset"`
}

type PaymentMode string

const PaymentModeX402 PaymentMode = "x402"

const IntegrationUniswap = "uniswap"

// IntegrationBlock groups an ordered list of steps executed against one
// integration. Only "uniswap" is supported; anything else is rejected at
// validation time, never silently skipped.
type IntegrationBlock struct {
	IntegrationType string   `json:"integration_type"`
	Steps           StepList `json:"steps"`
}

// Strategy is an immutable declarative recipe of on-chain steps. Identity for
// deduplication is the content hash over (triggers, execution_steps) only,
// unique per (creator_address, hash).
type Strategy struct {
	ID             uuid.UUID          `json:"id,omitempty"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Creator        ChainAddress       `json:"creator"`
	Triggers       TriggerList        `json:"triggers"`
	ExecutionSteps []IntegrationBlock `json:"execution_steps"`
	Fee            Fee                `json:"fee"`
	PaymentMode    PaymentMode        `json:"payment_mode"`
	CreatedAt      time.Time          `json:"created_at,omitempty"`
}

// Hash returns the deterministic content digest of the strategy. The JSON
// document is round-tripped through an untyped map so object keys are emitted
// in sorted order regardless of how the strategy was built.
func (s *Strategy) Hash() (string, error) {
	input := map[string]interface{}{
		"triggers":        s.Triggers,
		"execution_steps": s.ExecutionSteps,
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal hash input: %w", err)
	}
	var canonical interface{}
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return "", fmt.Errorf("failed to canonicalize hash input: %w", err)
	}
	normalized, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical form: %w", err)
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// Validate checks the document shape ahead of persistence. Execution-level
// validation (step dispatchability) lives with the orchestrator.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.Creator.Validate(); err != nil {
		return fmt.Errorf("creator: %w", err)
	}
	if len(s.Triggers) > 1 {
		return fmt.Errorf("at most one trigger is allowed, got %d", len(s.Triggers))
	}
	if len(s.ExecutionSteps) == 0 {
		return fmt.Errorf("execution_steps must not be empty")
	}
	for i, block := range s.ExecutionSteps {
		if block.IntegrationType != IntegrationUniswap {
			return fmt.Errorf("execution_steps[%d]: unsupported integration type %q", i, block.IntegrationType)
		}
		if len(block.Steps) == 0 {
			return fmt.Errorf("execution_steps[%d]: integration block has no steps", i)
		}
	}
	if !addressRe.MatchString(s.Fee.Recipient) {
		return fmt.Errorf("fee.recipient: invalid address %q", s.Fee.Recipient)
	}
	if err := s.Fee.Asset.Validate(); err != nil {
		return fmt.Errorf("fee.asset: %w", err)
	}
	if s.Fee.Amount.IsNegative() {
		return fmt.Errorf("fee.amount must not be negative")
	}
	if s.PaymentMode != PaymentModeX402 {
		return fmt.Errorf("unsupported payment_mode %q", s.PaymentMode)
	}
	return nil
}
