package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/metrics"
	"github.com/stratmarket/engine/internal/payment"
	"github.com/stratmarket/engine/internal/storage"
	"github.com/stratmarket/engine/internal/types"
)

const (
	headerPayment         = "X-PAYMENT"
	headerPaymentResponse = "X-PAYMENT-RESPONSE"
)

type purchaseRequest struct {
	StrategyID   uuid.UUID `json:"strategy_id" validate:"required"`
	BuyerAddress string    `json:"buyer_address" validate:"required,eth_addr_hex"`
}

type purchaseResponse struct {
	PurchaseID      uuid.UUID `json:"purchase_id"`
	StrategyID      uuid.UUID `json:"strategy_id"`
	BuyerAddress    string    `json:"buyer_address"`
	PaymentAmount   string    `json:"payment_amount"`
	PaymentCurrency string    `json:"payment_currency"`
	TxHash          *string   `json:"tx_hash,omitempty"`
}

// paymentRequiredResponse is the 402 challenge body. Every 402 carries the
// accepts list so a client can retry with a correctly formed credential.
type paymentRequiredResponse struct {
	X402Version int                          `json:"x402Version"`
	Error       string                       `json:"error"`
	Accepts     []payment.PaymentRequirement `json:"accepts"`
}

// Purchase gates strategy ownership behind a settled payment. The flow is a
// two-phase saga: verify never mutates state, and no purchase row is written
// until settlement succeeds.
func (s *Server) Purchase(c echo.Context) error {
	ctx := c.Request().Context()

	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(msgRequestParseFailed))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(msgRequestParseFailed, err.Error()))
	}

	strategy, err := s.db.GetStrategy(ctx, req.StrategyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(msgStrategyNotFound))
		}
		s.logger.WithError(err).Error("failed to load strategy for purchase")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}

	resource := c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path
	accepts, err := s.gate.Requirements(strategy, resource)
	if err != nil {
		s.logger.WithError(err).Error("failed to compute payment requirements")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}

	header := c.Request().Header.Get(headerPayment)
	if header == "" {
		return c.JSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: payment.X402Version,
			Error:       "payment required",
			Accepts:     accepts,
		})
	}

	payload, err := payment.DecodePayment(header)
	if err != nil {
		metrics.RecordPurchase("rejected")
		return c.JSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: payment.X402Version,
			Error:       "invalid payment",
			Accepts:     accepts,
		})
	}

	// Cheap conflict check before spending a facilitator round trip. The
	// unique constraints below still close the race window.
	owned, err := s.db.HasPurchase(ctx, req.BuyerAddress, req.StrategyID)
	if err != nil {
		s.logger.WithError(err).Error("failed to check purchase ownership")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}
	if owned {
		metrics.RecordPurchase("conflict")
		return c.JSON(http.StatusConflict, NewErrorResponseWithMessage("Buyer already owns this strategy"))
	}

	verify, requirement, err := s.gate.Verify(ctx, payload, accepts)
	if err != nil {
		// A facilitator outage is recovered locally into a fresh challenge so
		// the client can retry with the same credential.
		metrics.RecordPurchase("rejected")
		s.logger.WithError(err).Error("payment verification call failed")
		return c.JSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: payment.X402Version,
			Error:       "payment verification failed",
			Accepts:     accepts,
		})
	}
	if !verify.IsValid {
		metrics.RecordPurchase("rejected")
		return c.JSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: payment.X402Version,
			Error:       verify.InvalidReason,
			Accepts:     accepts,
		})
	}

	receipt, err := s.gate.Settle(ctx, payload, requirement)
	if err != nil {
		metrics.RecordPurchase("settlement_failed")
		s.logger.WithError(err).WithField("payment_id", payload.PaymentID()).
			Error("payment settlement failed, no purchase recorded")
		return c.JSON(http.StatusPaymentRequired, paymentRequiredResponse{
			X402Version: payment.X402Version,
			Error:       err.Error(),
			Accepts:     accepts,
		})
	}

	currency := strategy.Fee.Asset.Address
	if info, err := payment.LookupAsset(s.cfg.Facilitator.Network, strategy.Fee.Asset); err == nil {
		currency = info.Symbol
	}

	txHash := receipt.Transaction
	purchase := types.Purchase{
		BuyerAddress:     req.BuyerAddress,
		StrategyID:       req.StrategyID,
		PaymentAmount:    strategy.Fee.Amount,
		PaymentRecipient: strategy.Fee.Recipient,
		PaymentCurrency:  currency,
		PaymentStatus:    types.PaymentStatusCompleted,
		PaymentID:        payload.PaymentID(),
	}
	if txHash != "" {
		purchase.TxHash = &txHash
	}

	created, err := s.db.CreatePurchase(ctx, purchase)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicatePurchase) || errors.Is(err, storage.ErrDuplicatePaymentID) {
			metrics.RecordPurchase("conflict")
			return c.JSON(http.StatusConflict, NewErrorResponseWithMessage(err.Error()))
		}
		s.logger.WithError(err).Error("failed to record purchase after settlement")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}

	s.registerStrategyTriggers(strategy, created)

	encoded, err := receipt.EncodeHeader()
	if err != nil {
		s.logger.WithError(err).Error("failed to encode settlement receipt header")
	} else {
		c.Response().Header().Set(headerPaymentResponse, encoded)
	}

	metrics.RecordPurchase("completed")
	return c.JSON(http.StatusCreated, purchaseResponse{
		PurchaseID:      created.ID,
		StrategyID:      created.StrategyID,
		BuyerAddress:    created.BuyerAddress,
		PaymentAmount:   created.PaymentAmount.String(),
		PaymentCurrency: created.PaymentCurrency,
		TxHash:          created.TxHash,
	})
}

// registerTriggerTimeout bounds the post-settlement registration step.
const registerTriggerTimeout = 10 * time.Second

// registerStrategyTriggers schedules the strategy's time trigger after a
// successful purchase. Registration failure is logged, never fatal: the buyer
// paid and owns the strategy either way. Runs on a detached context so a
// client disconnect after settlement cannot cancel the durable registration.
func (s *Server) registerStrategyTriggers(strategy *types.Strategy, purchase *types.Purchase) {
	if s.sched == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), registerTriggerTimeout)
	defer cancel()

	for _, trigger := range strategy.Triggers {
		timeTrigger, ok := trigger.(types.TimeTrigger)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"strategy_id":  strategy.ID,
				"trigger_type": trigger.TriggerType(),
			}).Warn("trigger type is not schedulable, skipping")
			continue
		}
		err := s.sched.Register(ctx, types.RegisteredTrigger{
			ID:               purchase.ID.String(),
			CronExpression:   timeTrigger.CronExpression,
			CallbackEndpoint: s.cfg.Scheduler.CallbackURL,
			StrategyID:       strategy.ID,
			Active:           true,
		})
		if err != nil {
			s.logger.WithError(err).WithField("strategy_id", strategy.ID).
				Error("failed to register trigger after purchase")
		}
	}
}
