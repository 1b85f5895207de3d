package types

import (
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies step and confirmation failures so callers can tell an
// on-chain revert apart from a wait timeout or a plain RPC error.
type ErrorKind string

const (
	ErrKindValidation          ErrorKind = "validation"
	ErrKindUnsupportedVersion  ErrorKind = "unsupported_version"
	ErrKindUnsupportedOp       ErrorKind = "unsupported_operation"
	ErrKindNotImplemented      ErrorKind = "not_implemented"
	ErrKindInsufficientBalance ErrorKind = "insufficient_balance"
	ErrKindRevert              ErrorKind = "revert"
	ErrKindTimeout             ErrorKind = "timeout"
	ErrKindRPC                 ErrorKind = "rpc_error"
	ErrKindInternal            ErrorKind = "internal"
)

// ExecutionResult is the atomic unit returned by every step executor and by
// transaction confirmation. TxHash is nil when no transaction was submitted,
// which is how an approval skip stays distinguishable from a sent approval.
type ExecutionResult struct {
	Success   bool      `json:"success"`
	TxHash    *string   `json:"tx_hash,omitempty"`
	GasUsed   uint64    `json:"gas_used,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func FailedResult(kind ErrorKind, msg string) ExecutionResult {
	return ExecutionResult{Success: false, ErrorKind: kind, Error: msg}
}

// ExecutionStepRecord is one append-only log entry per executed step.
// StepIndex is a flat counter across all integration blocks.
type ExecutionStepRecord struct {
	StepType  StepType        `json:"step_type"`
	StepIndex int             `json:"step_index"`
	Result    ExecutionResult `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

type StrategyExecutionResult struct {
	Success      bool                  `json:"success"`
	StrategyID   uuid.UUID             `json:"strategy_id"`
	Steps        []ExecutionStepRecord `json:"steps"`
	StartTime    time.Time             `json:"start_time"`
	EndTime      time.Time             `json:"end_time"`
	TotalGasUsed uint64                `json:"total_gas_used"`
	Error        string                `json:"error,omitempty"`
}
