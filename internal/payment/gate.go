package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/types"
)

// ErrSettlementFailed marks the terminal state where a payment verified but
// could not be settled. No purchase record may exist past this error.
var ErrSettlementFailed = errors.New("payment verified but settlement failed")

// Gate enforces that no purchase record is created unless a valid,
// on-chain-settleable payment accompanies the request. Verification and
// settlement are two explicit phases with no state written between them, so
// the "verified but not settled" window stays observable and testable.
type Gate struct {
	facilitator Facilitator
	network     string
	logger      *logrus.Logger
}

func NewGate(facilitator Facilitator, network string, logger *logrus.Logger) *Gate {
	return &Gate{
		facilitator: facilitator,
		network:     network,
		logger:      logger.WithField("pkg", "payment.Gate").Logger,
	}
}

// Requirements computes the accepted payment requirement set for one
// purchase attempt. Fails with ErrFeeConfig when the strategy's fee cannot
// be resolved.
func (g *Gate) Requirements(strategy *types.Strategy, resource string) ([]PaymentRequirement, error) {
	req, err := ComputeRequirement(strategy, g.network, resource)
	if err != nil {
		return nil, err
	}
	return []PaymentRequirement{req}, nil
}

// Verify asks the facilitator whether the presented credential satisfies one
// of the offered requirements. It never mutates state.
func (g *Gate) Verify(ctx context.Context, payload *PaymentPayload, requirements []PaymentRequirement) (*VerifyResponse, PaymentRequirement, error) {
	requirement := MatchRequirement(requirements, payload)
	res, err := g.facilitator.Verify(ctx, payload, requirement)
	if err != nil {
		return nil, requirement, fmt.Errorf("verification call failed: %w", err)
	}
	if !res.IsValid {
		g.logger.WithFields(logrus.Fields{
			"reason": res.InvalidReason,
			"payer":  res.Payer,
		}).Warn("payment verification rejected")
	}
	return res, requirement, nil
}

// Settle finalizes a verified payment. Callers must not write any purchase
// record until it returns successfully; a failure here wraps
// ErrSettlementFailed and is terminal for the attempt.
func (g *Gate) Settle(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) (*SettleResponse, error) {
	res, err := g.facilitator.Settle(ctx, payload, requirement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, res.ErrorReason)
	}

	g.logger.WithFields(logrus.Fields{
		"payment_id": payload.PaymentID(),
		"tx":         res.Transaction,
	}).Info("payment settled")
	return res, nil
}
