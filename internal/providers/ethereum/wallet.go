package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
)

// MINT_TO_ABI is the payable mintTo(uint256 fid, string uri) entry point of the collection contract
const MINT_TO_ABI = `[{"inputs":[{"internalType":"uint256","name":"fid","type":"uint256"},{"internalType":"string","name":"uri","type":"string"}],"name":"mintTo","outputs":[],"stateMutability":"payable","type":"function"}]`

// Config holds the chain write configuration
type Config struct {
	RPCURL              string
	ChainID             domain.Chain
	ContractAddress     string
	SignerPrivateKey    string // hex, with or without 0x prefix
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	GasLimitMultiplier  float64
}

// Wallet is a connected signer able to pay for and submit the mint call
//
//go:generate mockgen -source=wallet.go -destination=../../mocks/wallet.go -package=mocks -mock_names=Wallet=MockWallet,Connector=MockWalletConnector
type Wallet interface {
	// Address returns the checksummed signer address
	Address() string
	// Balance returns the native balance of the signer in wei
	Balance(ctx context.Context) (*big.Int, error)
	// MintTo submits mintTo(fid, uri) with value attached and waits for a successful receipt
	MintTo(ctx context.Context, fid *big.Int, uri string, value *big.Int) (*domain.TxResult, error)
}

// Connector hands out connected wallets
type Connector interface {
	// Connect dials the chain if needed and returns a wallet bound to the configured signer
	Connect(ctx context.Context) (Wallet, error)
	// Close closes the underlying chain connection
	Close()
}

type connector struct {
	config   Config
	dialer   adapter.EthClientDialer
	key      *ecdsa.PrivateKey
	from     common.Address
	contract common.Address
	chainID  *big.Int
	mintABI  abi.ABI

	mu     sync.Mutex
	client adapter.EthClient

	// sendMu serializes nonce allocation and submission for the shared signer
	sendMu sync.Mutex

	// pending holds submitted mint transactions without a receipt, by fid
	pendingMu sync.Mutex
	pending   map[string]common.Hash
}

// PendingTransactionError reports a submitted mint whose receipt did not arrive in time.
// The next MintTo for the same fid waits on TxHash instead of submitting again.
type PendingTransactionError struct {
	TxHash string
	Err    error
}

func (e *PendingTransactionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrTransactionPending, e.TxHash, e.Err)
}

func (e *PendingTransactionError) Unwrap() error {
	return domain.ErrTransactionPending
}

// NewConnector validates the chain configuration and creates a connector.
// No network call is made until Connect.
func NewConnector(cfg Config, dialer adapter.EthClientDialer) (Connector, error) {
	if cfg.RPCURL == "" {
		return nil, domain.NewError(domain.KindConfiguration, "wallet", errors.New("rpc url not configured"))
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, domain.NewError(domain.KindConfiguration, "wallet", fmt.Errorf("invalid contract address: %q", cfg.ContractAddress))
	}

	chainID, err := cfg.ChainID.ChainID()
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "wallet", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerPrivateKey, "0x"))
	if err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "wallet", fmt.Errorf("invalid signer private key: %w", err))
	}

	mintABI, err := abi.JSON(strings.NewReader(MINT_TO_ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	if cfg.GasLimitMultiplier < 1 {
		cfg.GasLimitMultiplier = 1
	}
	if cfg.ReceiptTimeout == 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.ReceiptPollInterval == 0 {
		cfg.ReceiptPollInterval = time.Second
	}

	return &connector{
		config:   cfg,
		dialer:   dialer,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  chainID,
		mintABI:  mintABI,
		pending:  make(map[string]common.Hash),
	}, nil
}

// Connect dials once and verifies the node serves the configured chain
func (c *connector) Connect(ctx context.Context) (Wallet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		client, err := c.dialer.Dial(ctx, c.config.RPCURL)
		if err != nil {
			return nil, domain.NewError(domain.KindTransport, "connect wallet", fmt.Errorf("failed to dial rpc: %w", err))
		}

		nodeChainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, domain.NewError(domain.KindTransport, "connect wallet", fmt.Errorf("failed to get chain id: %w", err))
		}
		if nodeChainID.Cmp(c.chainID) != 0 {
			client.Close()
			return nil, domain.NewError(domain.KindConfiguration, "connect wallet",
				fmt.Errorf("rpc serves chain %s, expected %s", nodeChainID, c.chainID))
		}

		c.client = client
		logger.InfoCtx(ctx, "Connected to chain",
			zap.String("chain", string(c.config.ChainID)),
			zap.String("signer", c.from.Hex()))
	}

	return &wallet{connector: c, client: c.client}, nil
}

// Close closes the chain connection
func (c *connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

type wallet struct {
	connector *connector
	client    adapter.EthClient
}

func (w *wallet) Address() string {
	return w.connector.from.Hex()
}

func (w *wallet) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := w.client.BalanceAt(ctx, w.connector.from, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, "balance", fmt.Errorf("failed to get balance: %w", err))
	}
	return balance, nil
}

// MintTo signs and submits the mint call, then waits for its receipt.
// A mint of the same fid still pending from an earlier call is confirmed instead of resubmitted.
func (w *wallet) MintTo(ctx context.Context, fid *big.Int, uri string, value *big.Int) (*domain.TxResult, error) {
	key := fid.String()
	if hash, ok := w.connector.pendingMint(key); ok {
		logger.InfoCtx(ctx, "Waiting on pending mint transaction",
			zap.String("txHash", hash.Hex()),
			zap.String("fid", key))

		result, err := w.confirm(ctx, key, hash)
		if !errors.Is(err, domain.ErrTransactionReverted) {
			return result, err
		}
	}

	data, err := w.connector.mintABI.Pack("mintTo", fid, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	signedTx, err := w.submit(ctx, data, value)
	if err != nil {
		return nil, domain.NewError(domain.KindChain, "mint", err)
	}
	w.connector.setPendingMint(key, signedTx.Hash())

	logger.InfoCtx(ctx, "Mint transaction submitted",
		zap.String("txHash", signedTx.Hash().Hex()),
		zap.String("fid", key))

	return w.confirm(ctx, key, signedTx.Hash())
}

// confirm waits for the receipt of a submitted mint; the hash stays pending until a receipt exists
func (w *wallet) confirm(ctx context.Context, key string, hash common.Hash) (*domain.TxResult, error) {
	receipt, err := w.waitForReceipt(ctx, hash)
	if err != nil {
		return nil, domain.NewError(domain.KindChain, "mint", &PendingTransactionError{TxHash: hash.Hex(), Err: err})
	}
	w.connector.clearPendingMint(key)

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, domain.NewError(domain.KindChain, "mint",
			fmt.Errorf("%w: %s", domain.ErrTransactionReverted, hash.Hex()))
	}

	result := &domain.TxResult{TxHash: hash.Hex()}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}

	return result, nil
}

func (c *connector) pendingMint(key string) (common.Hash, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	hash, ok := c.pending[key]
	return hash, ok
}

func (c *connector) setPendingMint(key string, hash common.Hash) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending[key] = hash
}

func (c *connector) clearPendingMint(key string) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	delete(c.pending, key)
}

// submit allocates a nonce, signs and sends the transaction while holding the send lock
func (w *wallet) submit(ctx context.Context, data []byte, value *big.Int) (*types.Transaction, error) {
	c := w.connector
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := w.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	gas, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     c.from,
		To:       &c.contract,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gasLimit := uint64(float64(gas) * c.config.GasLimitMultiplier)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.contract,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx, nil
}

// waitForReceipt polls for the receipt until it exists or the receipt timeout elapses
func (w *wallet) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	cfg := w.connector.config
	ctx, cancel := context.WithTimeout(ctx, cfg.ReceiptTimeout)
	defer cancel()

	var receipt *types.Receipt
	operation := func() error {
		r, err := w.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if !errors.Is(err, ethereum.NotFound) {
				logger.WarnCtx(ctx, "Failed to fetch receipt, retrying", zap.Error(err), zap.String("txHash", hash.Hex()))
			}
			return err
		}
		receipt = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReceiptPollInterval
	b.MaxInterval = 4 * cfg.ReceiptPollInterval
	b.MaxElapsedTime = 0 // bounded by the context deadline
	b.Multiplier = 1.5

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("transaction receipt not found: %w", err)
	}

	return receipt, nil
}

// ParseEther converts a decimal ether amount such as "0.01" to wei
func ParseEther(amount string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(amount))
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("invalid ether amount: %q", amount)
	}

	wei := new(big.Rat).Mul(r, new(big.Rat).SetInt(big.NewInt(1e18)))
	if !wei.IsInt() {
		return nil, fmt.Errorf("ether amount has more than 18 decimals: %q", amount)
	}

	return wei.Num(), nil
}
