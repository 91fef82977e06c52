package anchor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EVMAnchor anchors manifest hashes on an EVM chain with zero-value
// self-transactions. The calldata format is
//
//	trust-anchor:{namespace}:{version}:{manifestHash}
//
// which any observer can scan for without contract bindings.
type EVMAnchor struct {
	client *ethclient.Client
	key    *ecdsa.PrivateKey
	from   common.Address
	log    *slog.Logger
}

// NewEVMAnchor connects to an EVM JSON-RPC endpoint. The private key funds
// the anchoring transactions; it is unrelated to any trust root key.
func NewEVMAnchor(rpcURL, privateKeyHex string, log *slog.Logger) (*EVMAnchor, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM endpoint: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid anchor private key: %w", err)
	}

	return &EVMAnchor{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
		log:    log,
	}, nil
}

// AnchorManifest submits the anchoring transaction and returns once it is
// accepted by the node's mempool. It does not wait for inclusion; the anchor
// is an append-only trail, not a synchronization point.
func (a *EVMAnchor) AnchorManifest(ctx context.Context, namespace string, version uint64, manifestHash string) error {
	payload := []byte(fmt.Sprintf("trust-anchor:%s:%d:%s", namespace, version, manifestHash))

	chainID, err := a.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch chain id: %w", err)
	}
	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch gas price: %w", err)
	}
	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From: a.from,
		To:   &a.from,
		Data: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.from,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     payload,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.key)
	if err != nil {
		return fmt.Errorf("failed to sign anchor transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send anchor transaction: %w", err)
	}

	a.log.Info("Anchored manifest on chain",
		slog.String("namespace", namespace),
		slog.Uint64("version", version),
		slog.String("txHash", signed.Hash().Hex()))

	return nil
}
