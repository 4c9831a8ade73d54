package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// erc20TransferSelector is the 4-byte selector of transfer(address,uint256).
var erc20TransferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// EthereumOptions parameterise the on-chain transfer adapter.
type EthereumOptions struct {
	RPCURL         string
	TokenAddress   string
	TokenDecimals  int32
	PrivateKey     string
	ChainID        int64
	GasLimit       uint64
	Timeout        time.Duration
	WaitForReceipt bool
}

// Ethereum submits ERC-20 stablecoin transfers over JSON-RPC. It is the
// one concrete ChainTransferor shipped with the engine; any other rail
// integration plugs in behind the same interface.
type Ethereum struct {
	opts      EthereumOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewEthereum builds the adapter; the RPC connection is dialed lazily.
func NewEthereum(opts EthereumOptions, logger zerolog.Logger) *Ethereum {
	if opts.TokenDecimals <= 0 {
		opts.TokenDecimals = 6
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = 90000
	}
	return &Ethereum{opts: opts, logger: logger.With().Str("component", "eth_transferor").Logger()}
}

// TransferOnChain sends amount (token units) to destination and returns
// the transaction hash.
func (e *Ethereum) TransferOnChain(ctx context.Context, amount decimal.Decimal, destination string) (Receipt, error) {
	if e.opts.RPCURL == "" {
		return Receipt{}, errors.New("ethereum rpc url not configured")
	}
	if e.opts.TokenAddress == "" {
		return Receipt{}, errors.New("token contract address not configured")
	}
	if !common.IsHexAddress(destination) {
		return Receipt{}, fmt.Errorf("invalid destination address %q", destination)
	}
	if amount.Sign() <= 0 {
		return Receipt{}, fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	timeout := e.opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := e.getClient(ctx)
	if err != nil {
		return Receipt{}, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(e.opts.PrivateKey, "0x"))
	if err != nil {
		return Receipt{}, fmt.Errorf("parse signing key: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return Receipt{}, fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("suggest gas price: %w", err)
	}

	units := amount.Shift(e.opts.TokenDecimals).Truncate(0).BigInt()
	token := common.HexToAddress(e.opts.TokenAddress)
	to := common.HexToAddress(destination)

	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(units.Bytes(), 32)...)

	tx := types.NewTransaction(nonce, token, big.NewInt(0), e.opts.GasLimit, gasPrice, data)

	chainID := big.NewInt(e.opts.ChainID)
	if e.opts.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return Receipt{}, fmt.Errorf("fetch chain id: %w", err)
		}
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return Receipt{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return Receipt{}, fmt.Errorf("broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	e.logger.Info().Str("tx_hash", hash).Str("destination", destination).Str("amount", amount.String()).Msg("链上转账已广播")

	if e.opts.WaitForReceipt {
		if err := e.waitForReceipt(ctx, client, signed.Hash()); err != nil {
			return Receipt{}, err
		}
	}

	return Receipt{TxHash: hash}, nil
}

func (e *Ethereum) waitForReceipt(ctx context.Context, client *ethclient.Client, hash common.Hash) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (e *Ethereum) getClient(ctx context.Context) (*ethclient.Client, error) {
	e.clientMux.Lock()
	defer e.clientMux.Unlock()

	if e.client != nil {
		return e.client, nil
	}

	client, err := ethclient.DialContext(ctx, e.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}

var _ ChainTransferor = (*Ethereum)(nil)
