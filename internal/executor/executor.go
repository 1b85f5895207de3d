package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

// defaultDeadline is applied to router calls when the step carries none.
const defaultDeadline = 20 * time.Minute

// Executor turns one declarative step into at most one chain transaction and
// its confirmation. Executors never retry internally; retries belong to the
// caller.
type Executor interface {
	Execute(ctx context.Context, step types.Step) types.ExecutionResult
}

// submitAndConfirm is the single shared submit path: broadcast, wait for the
// receipt within the bounded timeout, then classify the outcome. A submitted
// but unconfirmed transaction is never reported as success.
func submitAndConfirm(ctx context.Context, c chain.Client, to common.Address, data []byte) types.ExecutionResult {
	hash, err := c.SubmitTransaction(ctx, to, data)
	if err != nil {
		return types.FailedResult(types.ErrKindRPC, fmt.Sprintf("failed to submit transaction: %v", err))
	}

	hexHash := hash.Hex()
	rec, err := c.WaitForReceipt(ctx, hash)
	if err != nil {
		kind := types.ErrKindRPC
		if errors.Is(err, chain.ErrWaitTimeout) {
			kind = types.ErrKindTimeout
		}
		res := types.FailedResult(kind, err.Error())
		res.TxHash = &hexHash
		return res
	}

	if rec.Status != etypes.ReceiptStatusSuccessful {
		res := types.FailedResult(types.ErrKindRevert, "transaction reverted")
		res.TxHash = &hexHash
		res.GasUsed = rec.GasUsed
		return res
	}

	return types.ExecutionResult{
		Success: true,
		TxHash:  &hexHash,
		GasUsed: rec.GasUsed,
	}
}

func toAddress(a types.ChainAddress) common.Address {
	return common.HexToAddress(a.Address)
}

func routerDeadline(step types.Amount) (*big.Int, error) {
	if step == "" {
		return big.NewInt(time.Now().Add(defaultDeadline).Unix()), nil
	}
	return step.BigInt()
}

// wrongStepResult reports a step that reached an executor it was not built
// for. Validation catches this earlier; hitting it at runtime is a
// programmer error but must not crash the orchestrator.
func wrongStepResult(want types.StepType, got types.Step) types.ExecutionResult {
	return types.FailedResult(
		types.ErrKindUnsupportedOp,
		fmt.Sprintf("executor for %q received step of type %q", want, got.StepType()),
	)
}
