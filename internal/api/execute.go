package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stratmarket/engine/internal/metrics"
	"github.com/stratmarket/engine/internal/storage"
)

type executeRequest struct {
	StrategyID uuid.UUID `json:"strategy_id" validate:"required"`
	TriggerID  string    `json:"trigger_id,omitempty"`
}

// Execute runs a strategy's steps immediately. It serves both ad-hoc requests
// and scheduler callbacks; the response always carries per-step detail so a
// partial failure is diagnosable without server logs.
func (s *Server) Execute(c echo.Context) error {
	ctx := c.Request().Context()

	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(msgRequestParseFailed))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(msgRequestParseFailed, err.Error()))
	}

	log := s.logger.WithField("strategy_id", req.StrategyID)
	if req.TriggerID != "" {
		log = log.WithField("trigger_id", req.TriggerID)
	}

	strategy, err := s.db.GetStrategy(ctx, req.StrategyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(msgStrategyNotFound))
		}
		log.WithError(err).Error("failed to load strategy for execution")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}

	if err := s.executor.Validate(strategy); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(msgStrategyInvalid, err.Error()))
	}

	result := s.executor.Execute(ctx, strategy)

	metrics.RecordExecution(result.Success, result.EndTime.Sub(result.StartTime), result.TotalGasUsed)
	for _, step := range result.Steps {
		metrics.RecordStep(string(step.StepType), step.Result.Success)
	}

	if !result.Success {
		log.WithField("error", result.Error).Warn("strategy execution failed")
		return c.JSON(http.StatusInternalServerError, result)
	}
	return c.JSON(http.StatusOK, result)
}
