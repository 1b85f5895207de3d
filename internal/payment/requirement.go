package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/stratmarket/engine/internal/types"
)

// ErrFeeConfig marks a strategy fee that cannot be resolved into an atomic
// payment requirement (unknown asset, unsupported precision).
var ErrFeeConfig = errors.New("fee configuration cannot be resolved")

// AssetInfo describes a payment asset the gate knows how to price. The
// EIP-712 domain fields ride along in the requirement's extra map so clients
// can sign transferWithAuthorization payloads.
type AssetInfo struct {
	Symbol        string
	Decimals      int32
	EIP712Name    string
	EIP712Version string
}

// knownAssets is keyed by "network/lowercase-address".
var knownAssets = map[string]AssetInfo{
	"polygon-amoy/0x41e94eb019c0762f9bfcf9fb1e58725bfb0e7582": {
		Symbol: "USDC", Decimals: 6, EIP712Name: "USDC", EIP712Version: "2",
	},
	"polygon/0x3c499c542cef5e3811e1192ce70d8cc03d5c3359": {
		Symbol: "USDC", Decimals: 6, EIP712Name: "USD Coin", EIP712Version: "2",
	},
	"base/0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": {
		Symbol: "USDC", Decimals: 6, EIP712Name: "USD Coin", EIP712Version: "2",
	},
	"base-sepolia/0x036cbd53842c5426634e7929541ec2318f3dcf7e": {
		Symbol: "USDC", Decimals: 6, EIP712Name: "USDC", EIP712Version: "2",
	},
}

// LookupAsset resolves a fee asset on a network, or fails with ErrFeeConfig.
func LookupAsset(network string, asset types.ChainAddress) (AssetInfo, error) {
	info, ok := knownAssets[network+"/"+strings.ToLower(asset.Address)]
	if !ok {
		return AssetInfo{}, fmt.Errorf("%w: asset %s is not known on network %s", ErrFeeConfig, asset.Address, network)
	}
	return info, nil
}

// ComputeRequirement turns a strategy's fee into the single exact-scheme
// payment requirement offered in 402 challenges.
func ComputeRequirement(strategy *types.Strategy, network, resource string) (PaymentRequirement, error) {
	info, err := LookupAsset(network, strategy.Fee.Asset)
	if err != nil {
		return PaymentRequirement{}, err
	}

	atomic := strategy.Fee.Amount.Mul(decimal.New(1, info.Decimals))
	if !atomic.Equal(atomic.Truncate(0)) {
		return PaymentRequirement{}, fmt.Errorf(
			"%w: amount %s has sub-atomic precision for %s",
			ErrFeeConfig, strategy.Fee.Amount, info.Symbol,
		)
	}

	return PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           network,
		MaxAmountRequired: atomic.String(),
		Resource:          resource,
		Description:       fmt.Sprintf("Purchase strategy %q", strategy.Name),
		MimeType:          "application/json",
		PayTo:             strategy.Fee.Recipient,
		MaxTimeoutSeconds: 60,
		Asset:             strategy.Fee.Asset.Address,
		Extra: map[string]string{
			"name":    info.EIP712Name,
			"version": info.EIP712Version,
		},
	}, nil
}
