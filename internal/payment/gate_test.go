package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() *PaymentPayload {
	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      SchemeExact,
		Network:     "polygon-amoy",
		Payload: ExactEvmPayload{
			Signature: "0xdeadbeef",
			Authorization: Authorization{
				From:        "0x1111111111111111111111111111111111111111",
				To:          "0x2222222222222222222222222222222222222222",
				Value:       "1500000",
				ValidAfter:  "0",
				ValidBefore: "9999999999",
				Nonce:       "0xabc123",
			},
		},
	}
}

func testRequirement() PaymentRequirement {
	return PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           "polygon-amoy",
		MaxAmountRequired: "1500000",
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxTimeoutSeconds: 60,
		Asset:             "0x41e94eb019c0762f9bfcf9fb1e58725bfb0e7582",
	}
}

// fakeFacilitator serves /verify and /settle with scripted responses and
// records which endpoints were hit.
func fakeFacilitator(t *testing.T, verify VerifyResponse, settle SettleResponse, hits *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits = append(*hits, r.URL.Path)

		var req facilitatorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, X402Version, req.X402Version)
		require.NotNil(t, req.PaymentPayload)

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

func TestGateVerifyThenSettle(t *testing.T) {
	var hits []string
	srv := fakeFacilitator(t,
		VerifyResponse{IsValid: true, Payer: "0x1111111111111111111111111111111111111111"},
		SettleResponse{Success: true, Transaction: "0xfeed", Network: "polygon-amoy"},
		&hits,
	)
	defer srv.Close()

	gate := NewGate(NewFacilitatorClient(srv.URL, logrus.New()), "polygon-amoy", logrus.New())
	payload := testPayload()
	accepts := []PaymentRequirement{testRequirement()}

	verify, requirement, err := gate.Verify(context.Background(), payload, accepts)
	require.NoError(t, err)
	assert.True(t, verify.IsValid)
	assert.Equal(t, accepts[0], requirement)
	// Verify alone must not settle anything.
	assert.Equal(t, []string{"/verify"}, hits)

	receipt, err := gate.Settle(context.Background(), payload, requirement)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", receipt.Transaction)
	assert.Equal(t, []string{"/verify", "/settle"}, hits)
}

func TestGateSettleFailureIsTerminal(t *testing.T) {
	var hits []string
	srv := fakeFacilitator(t,
		VerifyResponse{IsValid: true},
		SettleResponse{Success: false, ErrorReason: "authorization expired"},
		&hits,
	)
	defer srv.Close()

	gate := NewGate(NewFacilitatorClient(srv.URL, logrus.New()), "polygon-amoy", logrus.New())

	_, err := gate.Settle(context.Background(), testPayload(), testRequirement())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.ErrorContains(t, err, "authorization expired")
}

func TestGateVerifyInvalidCredential(t *testing.T) {
	var hits []string
	srv := fakeFacilitator(t,
		VerifyResponse{IsValid: false, InvalidReason: "bad signature"},
		SettleResponse{},
		&hits,
	)
	defer srv.Close()

	gate := NewGate(NewFacilitatorClient(srv.URL, logrus.New()), "polygon-amoy", logrus.New())

	verify, _, err := gate.Verify(context.Background(), testPayload(), []PaymentRequirement{testRequirement()})
	require.NoError(t, err)
	assert.False(t, verify.IsValid)
	assert.Equal(t, "bad signature", verify.InvalidReason)
}

func TestDecodePayment(t *testing.T) {
	raw, err := json.Marshal(testPayload())
	require.NoError(t, err)
	header := base64.StdEncoding.EncodeToString(raw)

	payload, err := DecodePayment(header)
	require.NoError(t, err)
	assert.Equal(t, SchemeExact, payload.Scheme)
	assert.Equal(t, "0xabc123", payload.PaymentID())

	_, err = DecodePayment("not base64!!!")
	assert.Error(t, err)

	empty := base64.StdEncoding.EncodeToString([]byte(`{}`))
	_, err = DecodePayment(empty)
	assert.ErrorContains(t, err, "missing scheme or network")
}

func TestMatchRequirement(t *testing.T) {
	base := testRequirement()
	other := base
	other.Network = "base-sepolia"
	accepts := []PaymentRequirement{other, base}

	payload := testPayload()
	assert.Equal(t, base, MatchRequirement(accepts, payload))

	// Unknown network falls back to the first offer.
	payload.Network = "optimism"
	assert.Equal(t, other, MatchRequirement(accepts, payload))
}
