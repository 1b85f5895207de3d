package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stratmarket/engine/internal/storage"
	"github.com/stratmarket/engine/internal/types"
)

func (s *Server) CreateStrategy(c echo.Context) error {
	var strategy types.Strategy
	if err := c.Bind(&strategy); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(msgRequestParseFailed))
	}
	if err := strategy.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithDetails(msgStrategyInvalid, err.Error()))
	}

	hash, err := strategy.Hash()
	if err != nil {
		s.logger.WithError(err).Error("failed to hash strategy")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}

	id, err := s.db.CreateStrategy(c.Request().Context(), &strategy, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateStrategy) {
			return c.JSON(http.StatusConflict, NewErrorResponseWithMessage(msgStrategyConflict))
		}
		s.logger.WithError(err).Error("failed to create strategy")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgStrategyCreateFailed))
	}
	strategy.ID = id

	return c.JSON(http.StatusCreated, NewSuccessResponse(http.StatusCreated, strategy))
}

func (s *Server) GetStrategies(c echo.Context) error {
	creator := c.QueryParam("creator")
	strategies, err := s.db.ListStrategies(c.Request().Context(), creator)
	if err != nil {
		s.logger.WithError(err).Error("failed to list strategies")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgStrategyListFailed))
	}
	if strategies == nil {
		strategies = []types.Strategy{}
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, strategies))
}

func (s *Server) GetStrategy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("strategyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(msgRequestParseFailed))
	}

	strategy, err := s.db.GetStrategy(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(msgStrategyNotFound))
		}
		s.logger.WithError(err).Error("failed to get strategy")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgInternalError))
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, strategy))
}

func (s *Server) GetUserPurchases(c echo.Context) error {
	address := c.Param("address")
	if !ethAddressRe.MatchString(address) {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(msgRequestParseFailed))
	}

	purchases, err := s.db.ListPurchasesByBuyer(c.Request().Context(), address)
	if err != nil {
		s.logger.WithError(err).Error("failed to list purchases")
		return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(msgPurchaseListFailed))
	}
	if purchases == nil {
		purchases = []types.Purchase{}
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, purchases))
}
