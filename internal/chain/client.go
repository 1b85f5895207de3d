package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const (
	dialTimeout = 30 * time.Second
	// DefaultWaitTimeout bounds how long a submitted transaction is polled
	// for a receipt before the wait is reported as timed out.
	DefaultWaitTimeout = 60 * time.Second

	receiptPollInterval = 2 * time.Second
)

// ErrWaitTimeout marks a confirmation wait that ran out of time. It is a
// different failure than an on-chain revert and callers alert on it
// separately.
var ErrWaitTimeout = errors.New("timed out waiting for transaction receipt")

// Client is the narrow chain surface step executors run against. The
// concrete implementation is EvmClient; tests substitute a fake.
type Client interface {
	// CallContract performs a read-only contract call.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// SubmitTransaction signs and broadcasts a transaction from the
	// configured signer and returns its hash.
	SubmitTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	// WaitForReceipt polls until the transaction is mined or the wait
	// timeout elapses, in which case the error wraps ErrWaitTimeout.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*etypes.Receipt, error)
	// SignerAddress is the account transactions are sent from.
	SignerAddress() common.Address
}

var _ Client = (*EvmClient)(nil)

type EvmClient struct {
	rpc         *ethclient.Client
	key         *ecdsa.PrivateKey
	from        common.Address
	chainID     *big.Int
	waitTimeout time.Duration
	logger      *logrus.Logger

	// submitMu serializes transaction submission so concurrent strategy
	// runs from the same signer cannot race for nonce assignment.
	submitMu sync.Mutex
}

func NewEvmClient(c context.Context, logger *logrus.Logger, rpcURL, signerKeyHex string, chainID int64) (*EvmClient, error) {
	ctx, cancel := context.WithTimeout(c, dialTimeout)
	defer cancel()

	cl, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ethclient.DialContext: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key: %w", err)
	}

	return &EvmClient{
		rpc:         cl,
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:     big.NewInt(chainID),
		waitTimeout: DefaultWaitTimeout,
		logger:      logger.WithField("pkg", "chain.EvmClient").Logger,
	}, nil
}

func (c *EvmClient) SignerAddress() common.Address {
	return c.from
}

func (c *EvmClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("c.rpc.CallContract: %w", err)
	}
	return out, nil
}

func (c *EvmClient) SubmitTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("c.rpc.PendingNonceAt: %w", err)
	}

	tip, err := c.rpc.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("c.rpc.SuggestGasTipCap: %w", err)
	}

	head, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("c.rpc.HeaderByNumber: %w", err)
	}
	feeCap := new(big.Int).Add(
		tip,
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
	)

	gasLimit, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From:      c.from,
		To:        &to,
		Data:      data,
		GasTipCap: tip,
		GasFeeCap: feeCap,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("c.rpc.EstimateGas: %w", err)
	}

	tx := etypes.NewTx(&etypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Data:      data,
	})

	signed, err := etypes.SignTx(tx, etypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("c.rpc.SendTransaction: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"tx_hash": signed.Hash().Hex(),
		"to":      to.Hex(),
		"nonce":   nonce,
	}).Info("transaction submitted")

	return signed.Hash(), nil
}

func (c *EvmClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (*etypes.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		rec, err := c.rpc.TransactionReceipt(waitCtx, txHash)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("c.rpc.TransactionReceipt: %w", err)
		}

		select {
		case <-waitCtx.Done():
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: tx=%s after %s", ErrWaitTimeout, txHash.Hex(), c.waitTimeout)
			}
			return nil, waitCtx.Err()
		case <-ticker.C:
		}
	}
}
