package executor

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

// AddLiquidityExecutor supplies a V2-style token pair position. Minimum
// amounts default to 99% of the desired amounts (1% slippage tolerance) when
// the step does not provide them.
type AddLiquidityExecutor struct {
	client  chain.Client
	routers chain.Routers
	logger  *logrus.Logger
}

func NewAddLiquidityExecutor(client chain.Client, routers chain.Routers, logger *logrus.Logger) *AddLiquidityExecutor {
	return &AddLiquidityExecutor{
		client:  client,
		routers: routers,
		logger:  logger.WithField("pkg", "executor.AddLiquidity").Logger,
	}
}

func (e *AddLiquidityExecutor) Execute(ctx context.Context, step types.Step) types.ExecutionResult {
	add, ok := step.(types.AddLiquidityStep)
	if !ok {
		return wrongStepResult(types.StepTypeAddLiquidity, step)
	}

	if add.Version != types.UniswapV2 {
		return types.FailedResult(
			types.ErrKindUnsupportedVersion,
			fmt.Sprintf("unsupported uniswap version %q for add_liquidity", add.Version),
		)
	}

	amountA, err := add.AmountA.BigInt()
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid amount_a: %v", err))
	}
	amountB, err := add.AmountB.BigInt()
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid amount_b: %v", err))
	}

	minA, err := minOrDefault(add.MinA, amountA)
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid min_a: %v", err))
	}
	minB, err := minOrDefault(add.MinB, amountB)
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid min_b: %v", err))
	}

	deadline, err := routerDeadline("")
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, err.Error())
	}

	data, err := chain.PackAddLiquidity(
		toAddress(add.TokenA),
		toAddress(add.TokenB),
		amountA,
		amountB,
		minA,
		minB,
		toAddress(add.Recipient),
		deadline,
	)
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, fmt.Sprintf("failed to pack addLiquidity call: %v", err))
	}

	e.logger.WithFields(logrus.Fields{
		"token_a": add.TokenA.Address,
		"token_b": add.TokenB.Address,
	}).Info("submitting add liquidity")

	return submitAndConfirm(ctx, e.client, e.routers.V2, data)
}

// minOrDefault returns the explicit minimum or 99% of the desired amount.
func minOrDefault(explicit types.Amount, desired *big.Int) (*big.Int, error) {
	if explicit != "" {
		return explicit.BigInt()
	}
	min := new(big.Int).Mul(desired, big.NewInt(99))
	return min.Div(min, big.NewInt(100)), nil
}

// RemoveLiquidityExecutor is deliberately unimplemented: resolving the
// underlying token pair from an LP token address needs an extra on-chain
// lookup that is not designed yet. It fails loudly instead of no-opping.
type RemoveLiquidityExecutor struct{}

func NewRemoveLiquidityExecutor() *RemoveLiquidityExecutor {
	return &RemoveLiquidityExecutor{}
}

func (e *RemoveLiquidityExecutor) Execute(_ context.Context, step types.Step) types.ExecutionResult {
	if _, ok := step.(types.RemoveLiquidityStep); !ok {
		return wrongStepResult(types.StepTypeRemoveLiquidity, step)
	}
	return types.FailedResult(
		types.ErrKindNotImplemented,
		"remove_liquidity is not implemented: token pair lookup from LP token is not supported yet",
	)
}
