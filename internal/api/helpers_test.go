package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stratmarket/engine/config"
	"github.com/stratmarket/engine/internal/payment"
	"github.com/stratmarket/engine/internal/storage"
	"github.com/stratmarket/engine/internal/types"
)

const (
	buyerAddr  = "0x1111111111111111111111111111111111111111"
	sellerAddr = "0x2222222222222222222222222222222222222222"
	usdcAmoy   = "0x41e94eb019c0762f9bfcf9fb1e58725bfb0e7582"
	wmaticAmoy = "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359"
)

// fakeStore is an in-memory storage.Store enforcing the same uniqueness rules
// as the real backend.
type fakeStore struct {
	mu         sync.Mutex
	strategies map[uuid.UUID]*types.Strategy
	purchases  []types.Purchase
	triggers   map[string]types.RegisteredTrigger
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		strategies: make(map[uuid.UUID]*types.Strategy),
		triggers:   make(map[string]types.RegisteredTrigger),
	}
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateStrategy(_ context.Context, strategy *types.Strategy, hash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.strategies {
		existingHash, _ := existing.Hash()
		if existing.Creator.Address == strategy.Creator.Address && existingHash == hash {
			return uuid.Nil, storage.ErrDuplicateStrategy
		}
	}
	id := uuid.New()
	cp := *strategy
	cp.ID = id
	f.strategies[id] = &cp
	return id, nil
}

func (f *fakeStore) GetStrategy(_ context.Context, id uuid.UUID) (*types.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	strategy, ok := f.strategies[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *strategy
	return &cp, nil
}

func (f *fakeStore) ListStrategies(_ context.Context, creator string) ([]types.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Strategy
	for _, s := range f.strategies {
		if creator == "" || s.Creator.Address == creator {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreatePurchase(_ context.Context, purchase types.Purchase) (*types.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.purchases {
		if existing.BuyerAddress == purchase.BuyerAddress && existing.StrategyID == purchase.StrategyID {
			return nil, storage.ErrDuplicatePurchase
		}
		if existing.PaymentID == purchase.PaymentID {
			return nil, storage.ErrDuplicatePaymentID
		}
	}
	purchase.ID = uuid.New()
	f.purchases = append(f.purchases, purchase)
	return &purchase, nil
}

func (f *fakeStore) HasPurchase(_ context.Context, buyer string, strategyID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.purchases {
		if existing.BuyerAddress == buyer && existing.StrategyID == strategyID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListPurchasesByBuyer(_ context.Context, buyer string) ([]types.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Purchase
	for _, p := range f.purchases {
		if p.BuyerAddress == buyer {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRegisteredTrigger(_ context.Context, trigger types.RegisteredTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers[trigger.ID] = trigger
	return nil
}

func (f *fakeStore) DeleteRegisteredTrigger(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.triggers, id)
	return nil
}

func (f *fakeStore) ListActiveTriggers(_ context.Context) ([]types.RegisteredTrigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.RegisteredTrigger
	for _, t := range f.triggers {
		out = append(out, t)
	}
	return out, nil
}

// fakeExecutor satisfies StrategyExecutor with scripted outcomes.
type fakeExecutor struct {
	validateErr error
	result      types.StrategyExecutionResult
	executed    int
}

func (f *fakeExecutor) Validate(_ *types.Strategy) error { return f.validateErr }

func (f *fakeExecutor) Execute(_ context.Context, strategy *types.Strategy) types.StrategyExecutionResult {
	f.executed++
	f.result.StrategyID = strategy.ID
	return f.result
}

func purchasableStrategy() *types.Strategy {
	return &types.Strategy{
		Name:        "weekly dca",
		Description: "swap usdc for wmatic weekly",
		Creator:     types.ChainAddress{ChainID: "80002", Address: sellerAddr},
		Triggers: types.TriggerList{
			types.TimeTrigger{CronExpression: "0 0 * * 1"},
		},
		ExecutionSteps: []types.IntegrationBlock{
			{
				IntegrationType: types.IntegrationUniswap,
				Steps: types.StepList{
					types.SwapStep{
						Version:      types.UniswapV2,
						TokenIn:      types.ChainAddress{ChainID: "80002", Address: usdcAmoy},
						TokenOut:     types.ChainAddress{ChainID: "80002", Address: wmaticAmoy},
						AmountIn:     "1000000",
						AmountOutMin: "990000",
						Recipient:    types.ChainAddress{ChainID: "80002", Address: buyerAddr},
					},
				},
			},
		},
		Fee: types.Fee{
			Amount:    decimal.RequireFromString("1.5"),
			Recipient: sellerAddr,
			Asset:     types.ChainAddress{ChainID: "80002", Address: usdcAmoy},
		},
		PaymentMode: types.PaymentModeX402,
	}
}

// newFacilitatorStub scripts the facilitator's verify and settle verdicts.
func newFacilitatorStub(t *testing.T, verify payment.VerifyResponse, settle payment.SettleResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/verify":
			_ = json.NewEncoder(w).Encode(verify)
		case "/settle":
			_ = json.NewEncoder(w).Encode(settle)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testServer(t *testing.T, db storage.Store, facilitatorURL string, exec StrategyExecutor) *Server {
	t.Helper()
	logger := logrus.New()
	cfg := &config.Config{}
	cfg.Facilitator.Network = "polygon-amoy"
	cfg.Scheduler.CallbackURL = "http://localhost:8080/execute"

	gate := payment.NewGate(payment.NewFacilitatorClient(facilitatorURL, logger), "polygon-amoy", logger)
	return NewServer(cfg, db, gate, exec, nil, nil, logger)
}

func paymentHeader(t *testing.T, nonce string) string {
	t.Helper()
	raw, err := json.Marshal(payment.PaymentPayload{
		X402Version: payment.X402Version,
		Scheme:      payment.SchemeExact,
		Network:     "polygon-amoy",
		Payload: payment.ExactEvmPayload{
			Signature: "0xsigned",
			Authorization: payment.Authorization{
				From:        buyerAddr,
				To:          sellerAddr,
				Value:       "1500000",
				ValidAfter:  "0",
				ValidBefore: "9999999999",
				Nonce:       nonce,
			},
		},
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, strings.NewReader(string(raw)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req, httptest.NewRecorder()
}

func newContext(req *http.Request, rec *httptest.ResponseRecorder) echo.Context {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e.NewContext(req, rec)
}
