package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

// Orchestrator runs every step of every integration block in document order
// and reports one aggregated result. The first failed step terminates the
// run: a partially-failed plan never keeps spending money.
type Orchestrator struct {
	executors map[types.StepType]Executor
	logger    *logrus.Logger
}

func NewOrchestrator(client chain.Client, routers chain.Routers, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		executors: map[types.StepType]Executor{
			types.StepTypeApproval:        NewApprovalExecutor(client, logger),
			types.StepTypeSwap:            NewSwapExecutor(client, routers, logger),
			types.StepTypeAddLiquidity:    NewAddLiquidityExecutor(client, routers, logger),
			types.StepTypeRemoveLiquidity: NewRemoveLiquidityExecutor(),
		},
		logger: logger.WithField("pkg", "executor.Orchestrator").Logger,
	}
}

// Validate rejects a strategy before any transaction is attempted: every
// block must be a supported integration with at least one step, and every
// step must have a dispatchable executor.
func (o *Orchestrator) Validate(strategy *types.Strategy) error {
	if len(strategy.ExecutionSteps) == 0 {
		return fmt.Errorf("strategy has no execution steps")
	}
	for i, block := range strategy.ExecutionSteps {
		if block.IntegrationType != types.IntegrationUniswap {
			return fmt.Errorf("unsupported integration type %q", block.IntegrationType)
		}
		if len(block.Steps) == 0 {
			return fmt.Errorf("integration block %d has no steps", i)
		}
		for _, step := range block.Steps {
			if _, ok := o.executors[step.StepType()]; !ok {
				return fmt.Errorf("unsupported step type %q", step.StepType())
			}
		}
	}
	return nil
}

// Execute runs the strategy's steps strictly sequentially: step N+1 is never
// dispatched before step N's confirmation is known. The step index is a flat
// counter across all blocks so log records correlate unambiguously.
func (o *Orchestrator) Execute(ctx context.Context, strategy *types.Strategy) types.StrategyExecutionResult {
	result := types.StrategyExecutionResult{
		StrategyID: strategy.ID,
		StartTime:  time.Now().UTC(),
	}

	log := o.logger.WithFields(logrus.Fields{
		"strategy_id": strategy.ID,
		"creator":     strategy.Creator.Address,
	})
	log.Infof("starting strategy execution with %d block(s)", len(strategy.ExecutionSteps))

	stepIndex := 0
	for _, block := range strategy.ExecutionSteps {
		for _, step := range block.Steps {
			stepResult := o.dispatch(ctx, step)

			record := types.ExecutionStepRecord{
				StepType:  step.StepType(),
				StepIndex: stepIndex,
				Result:    stepResult,
				Timestamp: time.Now().UTC(),
			}
			result.Steps = append(result.Steps, record)
			result.TotalGasUsed += stepResult.GasUsed

			entry := log.WithFields(logrus.Fields{
				"step_index": stepIndex,
				"step_type":  step.StepType(),
				"success":    stepResult.Success,
				"gas_used":   stepResult.GasUsed,
			})

			if !stepResult.Success {
				entry.WithField("error_kind", stepResult.ErrorKind).
					Errorf("step failed, stopping strategy execution: %s", stepResult.Error)
				result.Success = false
				result.EndTime = time.Now().UTC()
				result.Error = fmt.Sprintf("execution failed at step %d: %s", stepIndex, stepResult.Error)
				return result
			}

			entry.Info("step completed")
			stepIndex++
		}
	}

	result.Success = true
	result.EndTime = time.Now().UTC()
	log.WithFields(logrus.Fields{
		"steps":          len(result.Steps),
		"total_gas_used": result.TotalGasUsed,
	}).Info("strategy execution completed")
	return result
}

func (o *Orchestrator) dispatch(ctx context.Context, step types.Step) types.ExecutionResult {
	exec, ok := o.executors[step.StepType()]
	if !ok {
		// Validation catches this before execution; reaching it here is a
		// programmer error but must fail the step, not crash the run.
		return types.FailedResult(
			types.ErrKindUnsupportedOp,
			fmt.Sprintf("no executor registered for step type %q", step.StepType()),
		)
	}
	return exec.Execute(ctx, step)
}
