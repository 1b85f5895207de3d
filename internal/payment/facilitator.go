package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Facilitator verifies and settles presented payment credentials against
// computed requirements. The gate only ever talks to this interface; the
// HTTP implementation below targets an x402 facilitator service.
type Facilitator interface {
	Verify(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) (*VerifyResponse, error)
	Settle(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) (*SettleResponse, error)
}

type facilitatorRequest struct {
	X402Version         int                `json:"x402Version"`
	PaymentPayload      *PaymentPayload    `json:"paymentPayload"`
	PaymentRequirements PaymentRequirement `json:"paymentRequirements"`
}

type FacilitatorClient struct {
	baseURL string
	client  *retryablehttp.Client
	logger  *logrus.Logger
}

var _ Facilitator = (*FacilitatorClient)(nil)

func NewFacilitatorClient(baseURL string, logger *logrus.Logger) *FacilitatorClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &FacilitatorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger.WithField("pkg", "payment.FacilitatorClient").Logger,
	}
}

func (c *FacilitatorClient) Verify(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) (*VerifyResponse, error) {
	var res VerifyResponse
	if err := c.post(ctx, "/verify", payload, requirement, &res); err != nil {
		return nil, fmt.Errorf("facilitator verify: %w", err)
	}
	return &res, nil
}

func (c *FacilitatorClient) Settle(ctx context.Context, payload *PaymentPayload, requirement PaymentRequirement) (*SettleResponse, error) {
	var res SettleResponse
	if err := c.post(ctx, "/settle", payload, requirement, &res); err != nil {
		return nil, fmt.Errorf("facilitator settle: %w", err)
	}
	return &res, nil
}

func (c *FacilitatorClient) post(ctx context.Context, path string, payload *PaymentPayload, requirement PaymentRequirement, out interface{}) error {
	body, err := json.Marshal(facilitatorRequest{
		X402Version:         X402Version,
		PaymentPayload:      payload,
		PaymentRequirements: requirement,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(resBody))
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
