package payment

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// X402Version is the protocol version spoken with clients and facilitators.
const X402Version = 1

const SchemeExact = "exact"

// PaymentRequirement describes one acceptable way to pay for a resource.
// Requirements are computed fresh per purchase attempt and never persisted.
type PaymentRequirement struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Authorization carries the EIP-3009 transferWithAuthorization parameters.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// ExactEvmPayload is the exact-scheme payload for EVM networks.
type ExactEvmPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the decoded X-PAYMENT header.
type PaymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme"`
	Network     string          `json:"network"`
	Payload     ExactEvmPayload `json:"payload"`
}

// PaymentID returns the credential's unique identifier, which becomes the
// purchase's payment_id. The EIP-3009 nonce is unique per authorization.
func (p *PaymentPayload) PaymentID() string {
	return p.Payload.Authorization.Nonce
}

// DecodePayment parses the opaque base64 X-PAYMENT header value.
func DecodePayment(header string) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("failed to base64 decode payment header: %w", err)
	}
	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment payload: %w", err)
	}
	if payload.Scheme == "" || payload.Network == "" {
		return nil, fmt.Errorf("payment payload missing scheme or network")
	}
	return &payload, nil
}

// VerifyResponse is the facilitator's verdict on a presented payment.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the facilitator's settlement receipt.
type SettleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// EncodeHeader renders the receipt for the X-PAYMENT-RESPONSE header.
func (s *SettleResponse) EncodeHeader() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settle response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// MatchRequirement picks the requirement the payload was built against,
// falling back to the first one offered.
func MatchRequirement(requirements []PaymentRequirement, payload *PaymentPayload) PaymentRequirement {
	for _, req := range requirements {
		if req.Scheme == payload.Scheme && req.Network == payload.Network {
			return req
		}
	}
	return requirements[0]
}
