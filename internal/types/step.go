package types

import (
	"encoding/json"
	"fmt"
	"math/big"
)

type StepType string

const (
	StepTypeApproval        StepType = "approval"
	StepTypeSwap            StepType = "swap"
	StepTypeAddLiquidity    StepType = "add_liquidity"
	StepTypeRemoveLiquidity StepType = "remove_liquidity"
	StepTypeContractCall    StepType = "contract_call"
)

type UniswapVersion string

const (
	UniswapV2 UniswapVersion = "v2"
	UniswapV3 UniswapVersion = "v3"
)

// Step is the sealed union of declarative on-chain operations. Concrete
// variants are discriminated by step_type on the wire; adding a variant means
// extending StepList dispatch and the executor registry together.
type Step interface {
	StepType() StepType
}

// Amount carries an on-chain integer quantity as a decimal-digit string so
// arbitrary-precision values survive JSON without float truncation.
type Amount string

func (a Amount) BigInt() (*big.Int, error) {
	if a == "" {
		return nil, fmt.Errorf("amount is empty")
	}
	v, ok := new(big.Int).SetString(string(a), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q, expected non-negative decimal digits", string(a))
	}
	return v, nil
}

type ApprovalStep struct {
	Token   ChainAddress `json:"token"`
	Spender ChainAddress `json:"spender"`
	Amount  Amount       `json:"amount"`
}

func (s ApprovalStep) StepType() StepType { return StepTypeApproval }

func (s ApprovalStep) MarshalJSON() ([]byte, error) {
	type alias ApprovalStep
	return marshalStep(StepTypeApproval, alias(s))
}

type SwapStep struct {
	Version      UniswapVersion    `json:"version"`
	TokenIn      ChainAddress      `json:"token_in"`
	TokenOut     ChainAddress      `json:"token_out"`
	AmountIn     Amount            `json:"amount_in"`
	AmountOutMin Amount            `json:"amount_out_min"`
	Path         []ChainAddress    `json:"path,omitempty"`
	Recipient    ChainAddress      `json:"recipient"`
	Deadline     Amount            `json:"deadline,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func (s SwapStep) StepType() StepType { return StepTypeSwap }

func (s SwapStep) MarshalJSON() ([]byte, error) {
	type alias SwapStep
	return marshalStep(StepTypeSwap, alias(s))
}

type AddLiquidityStep struct {
	Version   UniswapVersion `json:"version"`
	TokenA    ChainAddress   `json:"token_a"`
	TokenB    ChainAddress   `json:"token_b"`
	AmountA   Amount         `json:"amount_a"`
	AmountB   Amount         `json:"amount_b"`
	MinA      Amount         `json:"min_a,omitempty"`
	MinB      Amount         `json:"min_b,omitempty"`
	Recipient ChainAddress   `json:"recipient"`
}

func (s AddLiquidityStep) StepType() StepType { return StepTypeAddLiquidity }

func (s AddLiquidityStep) MarshalJSON() ([]byte, error) {
	type alias AddLiquidityStep
	return marshalStep(StepTypeAddLiquidity, alias(s))
}

type RemoveLiquidityStep struct {
	Version   UniswapVersion `json:"version"`
	LPToken   ChainAddress   `json:"lp_token"`
	Amount    Amount         `json:"amount"`
	Recipient ChainAddress   `json:"recipient"`
}

func (s RemoveLiquidityStep) StepType() StepType { return StepTypeRemoveLiquidity }

func (s RemoveLiquidityStep) MarshalJSON() ([]byte, error) {
	type alias RemoveLiquidityStep
	return marshalStep(StepTypeRemoveLiquidity, alias(s))
}

// ContractCallStep is a generic escape hatch. It parses but is rejected by
// orchestrator validation since no executor handles it yet.
type ContractCallStep struct {
	ContractAddress ChainAddress               `json:"contract_address"`
	FunctionName    string                     `json:"function_name"`
	Parameters      map[string]json.RawMessage `json:"parameters,omitempty"`
}

func (s ContractCallStep) StepType() StepType { return StepTypeContractCall }

func (s ContractCallStep) MarshalJSON() ([]byte, error) {
	type alias ContractCallStep
	return marshalStep(StepTypeContractCall, alias(s))
}

// marshalStep injects the step_type discriminator into the variant's fields.
func marshalStep(t StepType, v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["step_type"] = json.RawMessage(fmt.Sprintf("%q", t))
	return json.Marshal(fields)
}

// StepList unmarshals a heterogeneous JSON array into concrete step variants.
type StepList []Step

type stepEnvelope struct {
	StepType StepType `json:"step_type"`
}

func (l *StepList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	steps := make([]Step, 0, len(raws))
	for i, raw := range raws {
		var env stepEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		var (
			step Step
			err  error
		)
		switch env.StepType {
		case StepTypeApproval:
			var s ApprovalStep
			err = json.Unmarshal(raw, &s)
			step = s
		case StepTypeSwap:
			var s SwapStep
			err = json.Unmarshal(raw, &s)
			step = s
		case StepTypeAddLiquidity:
			var s AddLiquidityStep
			err = json.Unmarshal(raw, &s)
			step = s
		case StepTypeRemoveLiquidity:
			var s RemoveLiquidityStep
			err = json.Unmarshal(raw, &s)
			step = s
		case StepTypeContractCall:
			var s ContractCallStep
			err = json.Unmarshal(raw, &s)
			step = s
		default:
			return fmt.Errorf("step %d: unknown step_type %q", i, env.StepType)
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, env.StepType, err)
		}
		steps = append(steps, step)
	}
	*l = steps
	return nil
}
