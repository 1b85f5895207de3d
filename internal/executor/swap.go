package executor

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

// defaultV3FeeTier is the 0.3% pool fee used when a v3 step does not name one.
const defaultV3FeeTier = 3000

// SwapExecutor submits a fixed-input swap through the configured router.
// amount_out_min is taken from the step as-is and never derived from a live
// quote; slippage protection is the strategy author's responsibility.
type SwapExecutor struct {
	client  chain.Client
	routers chain.Routers
	logger  *logrus.Logger
}

func NewSwapExecutor(client chain.Client, routers chain.Routers, logger *logrus.Logger) *SwapExecutor {
	return &SwapExecutor{
		client:  client,
		routers: routers,
		logger:  logger.WithField("pkg", "executor.Swap").Logger,
	}
}

func (e *SwapExecutor) Execute(ctx context.Context, step types.Step) types.ExecutionResult {
	swap, ok := step.(types.SwapStep)
	if !ok {
		return wrongStepResult(types.StepTypeSwap, step)
	}

	if swap.Version != types.UniswapV2 && swap.Version != types.UniswapV3 {
		return types.FailedResult(
			types.ErrKindUnsupportedVersion,
			fmt.Sprintf("unsupported uniswap version %q", swap.Version),
		)
	}

	amountIn, err := swap.AmountIn.BigInt()
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid amount_in: %v", err))
	}
	amountOutMin, err := swap.AmountOutMin.BigInt()
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid amount_out_min: %v", err))
	}
	deadline, err := routerDeadline(swap.Deadline)
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid deadline: %v", err))
	}

	recipient := toAddress(swap.Recipient)

	var (
		data   []byte
		router common.Address
	)
	switch swap.Version {
	case types.UniswapV2:
		// Direct pair by default; an explicit path enables multi-hop.
		path := []common.Address{toAddress(swap.TokenIn), toAddress(swap.TokenOut)}
		if len(swap.Path) > 0 {
			path = make([]common.Address, 0, len(swap.Path))
			for _, hop := range swap.Path {
				path = append(path, toAddress(hop))
			}
		}
		data, err = chain.PackSwapExactTokensForTokens(amountIn, amountOutMin, path, recipient, deadline)
		router = e.routers.V2
	case types.UniswapV3:
		fee := int64(defaultV3FeeTier)
		if raw, exists := swap.Extra["fee"]; exists {
			fee, err = strconv.ParseInt(raw, 10, 32)
			if err != nil {
				return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid fee tier %q", raw))
			}
		}
		data, err = chain.PackExactInputSingle(chain.ExactInputSingleParams{
			TokenIn:           toAddress(swap.TokenIn),
			TokenOut:          toAddress(swap.TokenOut),
			Fee:               big.NewInt(fee),
			Recipient:         recipient,
			Deadline:          deadline,
			AmountIn:          amountIn,
			AmountOutMinimum:  amountOutMin,
			SqrtPriceLimitX96: big.NewInt(0), // no price limit
		})
		router = e.routers.V3
	}
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, fmt.Sprintf("failed to pack swap call: %v", err))
	}

	e.logger.WithFields(logrus.Fields{
		"version":   swap.Version,
		"token_in":  swap.TokenIn.Address,
		"token_out": swap.TokenOut.Address,
		"router":    router.Hex(),
	}).Info("submitting swap")

	return submitAndConfirm(ctx, e.client, router, data)
}
