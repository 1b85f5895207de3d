package executor

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/types"
)

var (
	tokenA    = types.ChainAddress{ChainID: "80002", Address: "0x41e94eb019c0762f9bfcf9fb1e58725bfb0e7582"}
	tokenB    = types.ChainAddress{ChainID: "80002", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"}
	recipient = types.ChainAddress{ChainID: "80002", Address: "0x1111111111111111111111111111111111111111"}

	allowanceSel = []byte{0xdd, 0x62, 0xed, 0x3e}
	balanceOfSel = []byte{0x70, 0xa0, 0x82, 0x31}
	approveSel   = []byte{0x09, 0x5e, 0xa7, 0xb3}
)

type txOutcome struct {
	submitErr error
	waitErr   error
	status    uint64
	gasUsed   uint64
}

type submission struct {
	to   common.Address
	data []byte
}

// fakeClient serves allowance/balance reads and plays back scripted
// transaction outcomes in submission order.
type fakeClient struct {
	signer    common.Address
	allowance *big.Int
	balance   *big.Int
	outcomes  []txOutcome

	reads     int
	submitted []submission
	waitIdx   int
}

func (f *fakeClient) SignerAddress() common.Address { return f.signer }

func (f *fakeClient) CallContract(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	f.reads++
	switch {
	case bytes.HasPrefix(data, allowanceSel):
		return common.BigToHash(f.allowance).Bytes(), nil
	case bytes.HasPrefix(data, balanceOfSel):
		return common.BigToHash(f.balance).Bytes(), nil
	}
	return nil, fmt.Errorf("unexpected read selector %x", data[:4])
}

func (f *fakeClient) SubmitTransaction(_ context.Context, to common.Address, data []byte) (common.Hash, error) {
	idx := len(f.submitted)
	if idx >= len(f.outcomes) {
		return common.Hash{}, fmt.Errorf("unexpected submission %d", idx)
	}
	if f.outcomes[idx].submitErr != nil {
		return common.Hash{}, f.outcomes[idx].submitErr
	}
	f.submitted = append(f.submitted, submission{to: to, data: data})
	return common.BigToHash(big.NewInt(int64(idx + 1))), nil
}

func (f *fakeClient) WaitForReceipt(_ context.Context, _ common.Hash) (*etypes.Receipt, error) {
	out := f.outcomes[f.waitIdx]
	f.waitIdx++
	if out.waitErr != nil {
		return nil, out.waitErr
	}
	return &etypes.Receipt{Status: out.status, GasUsed: out.gasUsed}, nil
}

func newFake(outcomes ...txOutcome) *fakeClient {
	return &fakeClient{
		signer:    common.HexToAddress("0x2222222222222222222222222222222222222222"),
		allowance: big.NewInt(0),
		balance:   big.NewInt(0),
		outcomes:  outcomes,
	}
}

func swapStep(amountIn string) types.SwapStep {
	return types.SwapStep{
		Version:      types.UniswapV2,
		TokenIn:      tokenA,
		TokenOut:     tokenB,
		AmountIn:     types.Amount(amountIn),
		AmountOutMin: "1",
		Recipient:    recipient,
	}
}

func strategyWithSteps(steps ...types.Step) *types.Strategy {
	return &types.Strategy{
		Name: "test",
		ExecutionSteps: []types.IntegrationBlock{
			{IntegrationType: types.IntegrationUniswap, Steps: steps},
		},
	}
}

func TestOrchestratorFailFast(t *testing.T) {
	client := newFake(
		txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 21000},
		txOutcome{status: etypes.ReceiptStatusFailed, gasUsed: 150000},
		txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 30000},
	)
	o := NewOrchestrator(client, chain.DefaultRouters(), logrus.New())

	result := o.Execute(context.Background(), strategyWithSteps(
		swapStep("100"), swapStep("200"), swapStep("300"),
	))

	assert.False(t, result.Success)
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Result.Success)
	assert.False(t, result.Steps[1].Result.Success)
	assert.Equal(t, types.ErrKindRevert, result.Steps[1].Result.ErrorKind)
	assert.Equal(t, 0, result.Steps[0].StepIndex)
	assert.Equal(t, 1, result.Steps[1].StepIndex)
	// Gas from the reverted step still counts toward the total.
	assert.Equal(t, uint64(171000), result.TotalGasUsed)
	assert.Contains(t, result.Error, "execution failed at step 1")
	// The third step was never dispatched.
	assert.Len(t, client.submitted, 2)
}

func TestOrchestratorFlatStepIndexAcrossBlocks(t *testing.T) {
	client := newFake(
		txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 1},
		txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 2},
		txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 3},
	)
	o := NewOrchestrator(client, chain.DefaultRouters(), logrus.New())

	strategy := &types.Strategy{
		Name: "two blocks",
		ExecutionSteps: []types.IntegrationBlock{
			{IntegrationType: types.IntegrationUniswap, Steps: types.StepList{swapStep("1"), swapStep("2")}},
			{IntegrationType: types.IntegrationUniswap, Steps: types.StepList{swapStep("3")}},
		},
	}
	result := o.Execute(context.Background(), strategy)

	assert.True(t, result.Success)
	require.Len(t, result.Steps, 3)
	for i, step := range result.Steps {
		assert.Equal(t, i, step.StepIndex)
	}
	assert.Equal(t, uint64(6), result.TotalGasUsed)
}

func TestOrchestratorValidate(t *testing.T) {
	o := NewOrchestrator(newFake(), chain.DefaultRouters(), logrus.New())

	assert.NoError(t, o.Validate(strategyWithSteps(swapStep("1"))))

	assert.ErrorContains(t, o.Validate(&types.Strategy{}), "no execution steps")

	badIntegration := strategyWithSteps(swapStep("1"))
	badIntegration.ExecutionSteps[0].IntegrationType = "curve"
	assert.ErrorContains(t, o.Validate(badIntegration), "unsupported integration type")

	emptyBlock := &types.Strategy{ExecutionSteps: []types.IntegrationBlock{
		{IntegrationType: types.IntegrationUniswap},
	}}
	assert.ErrorContains(t, o.Validate(emptyBlock), "no steps")

	contractCall := strategyWithSteps(types.ContractCallStep{FunctionName: "mint"})
	assert.ErrorContains(t, o.Validate(contractCall), `unsupported step type "contract_call"`)
}

func TestApprovalSkipsWhenAllowanceSufficient(t *testing.T) {
	client := newFake()
	client.allowance = big.NewInt(1000)
	e := NewApprovalExecutor(client, logrus.New())

	result := e.Execute(context.Background(), types.ApprovalStep{
		Token: tokenA, Spender: tokenB, Amount: "1000",
	})

	assert.True(t, result.Success)
	assert.Nil(t, result.TxHash)
	assert.Zero(t, result.GasUsed)
	assert.Empty(t, client.submitted)
}

func TestApprovalInsufficientBalance(t *testing.T) {
	client := newFake()
	client.balance = big.NewInt(10)
	e := NewApprovalExecutor(client, logrus.New())

	result := e.Execute(context.Background(), types.ApprovalStep{
		Token: tokenA, Spender: tokenB, Amount: "1000",
	})

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindInsufficientBalance, result.ErrorKind)
	assert.Empty(t, client.submitted)
}

func TestApprovalSubmitsWhenNeeded(t *testing.T) {
	client := newFake(txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 46000})
	client.balance = big.NewInt(5000)
	e := NewApprovalExecutor(client, logrus.New())

	result := e.Execute(context.Background(), types.ApprovalStep{
		Token: tokenA, Spender: tokenB, Amount: "1000",
	})

	require.True(t, result.Success)
	require.NotNil(t, result.TxHash)
	assert.Equal(t, uint64(46000), result.GasUsed)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, common.HexToAddress(tokenA.Address), client.submitted[0].to)
	assert.True(t, bytes.HasPrefix(client.submitted[0].data, approveSel))
}

func TestSwapRejectsUnsupportedVersionBeforeAnyChainCall(t *testing.T) {
	client := newFake()
	e := NewSwapExecutor(client, chain.DefaultRouters(), logrus.New())

	step := swapStep("100")
	step.Version = "v4"
	result := e.Execute(context.Background(), step)

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindUnsupportedVersion, result.ErrorKind)
	assert.Zero(t, client.reads)
	assert.Empty(t, client.submitted)
}

func TestSwapRoutesByVersion(t *testing.T) {
	routers := chain.Routers{
		V2: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		V3: common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}

	client := newFake(txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 120000})
	e := NewSwapExecutor(client, routers, logrus.New())
	result := e.Execute(context.Background(), swapStep("100"))
	require.True(t, result.Success)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, routers.V2, client.submitted[0].to)

	client = newFake(txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 130000})
	e = NewSwapExecutor(client, routers, logrus.New())
	v3 := swapStep("100")
	v3.Version = types.UniswapV3
	result = e.Execute(context.Background(), v3)
	require.True(t, result.Success)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, routers.V3, client.submitted[0].to)
}

func TestSwapTimeoutReportedWithHash(t *testing.T) {
	client := newFake(txOutcome{waitErr: fmt.Errorf("gave up: %w", chain.ErrWaitTimeout)})
	e := NewSwapExecutor(client, chain.DefaultRouters(), logrus.New())

	result := e.Execute(context.Background(), swapStep("100"))

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindTimeout, result.ErrorKind)
	require.NotNil(t, result.TxHash)
}

func TestAddLiquidityDefaultsMinimumsTo99Percent(t *testing.T) {
	client := newFake(txOutcome{status: etypes.ReceiptStatusSuccessful, gasUsed: 200000})
	e := NewAddLiquidityExecutor(client, chain.DefaultRouters(), logrus.New())

	result := e.Execute(context.Background(), types.AddLiquidityStep{
		Version:   types.UniswapV2,
		TokenA:    tokenA,
		TokenB:    tokenB,
		AmountA:   "1000",
		AmountB:   "2000",
		Recipient: recipient,
	})
	require.True(t, result.Success)
	require.Len(t, client.submitted, 1)

	// Everything up to the min amounts is position-encoded ahead of the
	// recipient and deadline, so the prefix pins the defaulted values.
	expected, err := chain.PackAddLiquidity(
		common.HexToAddress(tokenA.Address),
		common.HexToAddress(tokenB.Address),
		big.NewInt(1000), big.NewInt(2000),
		big.NewInt(990), big.NewInt(1980),
		common.HexToAddress(recipient.Address),
		big.NewInt(0),
	)
	require.NoError(t, err)
	prefix := 4 + 6*32
	assert.Equal(t, expected[:prefix], client.submitted[0].data[:prefix])
}

func TestAddLiquidityRejectsV3(t *testing.T) {
	client := newFake()
	e := NewAddLiquidityExecutor(client, chain.DefaultRouters(), logrus.New())

	result := e.Execute(context.Background(), types.AddLiquidityStep{
		Version: types.UniswapV3,
		TokenA:  tokenA,
		TokenB:  tokenB,
		AmountA: "1",
		AmountB: "1",
	})

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindUnsupportedVersion, result.ErrorKind)
	assert.Empty(t, client.submitted)
}

func TestRemoveLiquidityNotImplemented(t *testing.T) {
	e := NewRemoveLiquidityExecutor()

	result := e.Execute(context.Background(), types.RemoveLiquidityStep{
		Version: types.UniswapV2,
		LPToken: tokenA,
		Amount:  "5",
	})

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindNotImplemented, result.ErrorKind)
}

func TestDispatchUnknownStepDoesNotCrash(t *testing.T) {
	o := NewOrchestrator(newFake(), chain.DefaultRouters(), logrus.New())

	result := o.dispatch(context.Background(), types.ContractCallStep{FunctionName: "mint"})

	assert.False(t, result.Success)
	assert.Equal(t, types.ErrKindUnsupportedOp, result.ErrorKind)
}
