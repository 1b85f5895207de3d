package executor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

// ApprovalExecutor grants an ERC-20 allowance to a spender. When the current
// allowance already covers the requested amount no transaction is sent; the
// skip is visible to callers as a success with a nil tx hash.
type ApprovalExecutor struct {
	client chain.Client
	logger *logrus.Logger
}

func NewApprovalExecutor(client chain.Client, logger *logrus.Logger) *ApprovalExecutor {
	return &ApprovalExecutor{
		client: client,
		logger: logger.WithField("pkg", "executor.Approval").Logger,
	}
}

func (e *ApprovalExecutor) Execute(ctx context.Context, step types.Step) types.ExecutionResult {
	approval, ok := step.(types.ApprovalStep)
	if !ok {
		return wrongStepResult(types.StepTypeApproval, step)
	}

	amount, err := approval.Amount.BigInt()
	if err != nil {
		return types.FailedResult(types.ErrKindValidation, fmt.Sprintf("invalid approval amount: %v", err))
	}

	token := toAddress(approval.Token)
	spender := toAddress(approval.Spender)
	owner := e.client.SignerAddress()

	allowanceCall, err := chain.PackAllowance(owner, spender)
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, fmt.Sprintf("failed to pack allowance call: %v", err))
	}
	raw, err := e.client.CallContract(ctx, token, allowanceCall)
	if err != nil {
		return types.FailedResult(types.ErrKindRPC, fmt.Sprintf("failed to read allowance: %v", err))
	}
	allowance, err := chain.UnpackUint256(raw)
	if err != nil {
		return types.FailedResult(types.ErrKindRPC, fmt.Sprintf("failed to decode allowance: %v", err))
	}

	if allowance.Cmp(amount) >= 0 {
		e.logger.WithFields(logrus.Fields{
			"token":   approval.Token.Address,
			"spender": approval.Spender.Address,
		}).Info("sufficient allowance already exists, skipping approval")
		return types.ExecutionResult{Success: true}
	}

	balanceCall, err := chain.PackBalanceOf(owner)
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, fmt.Sprintf("failed to pack balanceOf call: %v", err))
	}
	raw, err = e.client.CallContract(ctx, token, balanceCall)
	if err != nil {
		return types.FailedResult(types.ErrKindRPC, fmt.Sprintf("failed to read balance: %v", err))
	}
	balance, err := chain.UnpackUint256(raw)
	if err != nil {
		return types.FailedResult(types.ErrKindRPC, fmt.Sprintf("failed to decode balance: %v", err))
	}

	if balance.Cmp(amount) < 0 {
		return types.FailedResult(
			types.ErrKindInsufficientBalance,
			fmt.Sprintf("insufficient token balance: have %s, need %s", balance, amount),
		)
	}

	data, err := chain.PackApprove(spender, amount)
	if err != nil {
		return types.FailedResult(types.ErrKindInternal, fmt.Sprintf("failed to pack approve call: %v", err))
	}

	return submitAndConfirm(ctx, e.client, token, data)
}
