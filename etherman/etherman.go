package etherman

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	cfgtypes "github.com/docanchor/docanchor/config/types"
	"github.com/docanchor/docanchor/log"
)

type ethereumClient interface {
	ethereum.TransactionReader

	bind.ContractBackend
	bind.DeployBackend
}

// Config of the ledger client.
type Config struct {
	// URL of the ledger JSON-RPC node
	URL string `mapstructure:"URL"`
	// AnchorAddr is the address of the DocumentAnchor contract
	AnchorAddr common.Address `mapstructure:"AnchorAddr"`
	// ChainID of the ledger network
	ChainID uint64 `mapstructure:"ChainID"`
	// Network tag persisted inside proof records (e.g. "sepolia")
	Network string `mapstructure:"Network"`
	// ExplorerURL persisted inside proof records
	ExplorerURL string `mapstructure:"ExplorerURL"`
	// Timeout is the canonical timeout applied to every ledger call
	Timeout cfgtypes.Duration `mapstructure:"Timeout"`
	// RetryAttempts bounds the retries of read calls
	RetryAttempts int `mapstructure:"RetryAttempts"`
	// RetryPeriod is the linear backoff unit between retries
	RetryPeriod cfgtypes.Duration `mapstructure:"RetryPeriod"`
}

// InvalidationStatus is the result of an isInvalidated ledger read.
type InvalidationStatus struct {
	Status    string
	Timestamp uint64
}

// Client talks to the DocumentAnchor contract on the external ledger.
type Client struct {
	EthClient ethereumClient
	anchor    *anchorContract

	cfg  Config
	auth map[common.Address]bind.TransactOpts // empty in case of read-only client
}

// NewClient creates a new ledger client.
func NewClient(cfg Config) (*Client, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		log.Errorf("error connecting to %s: %+v", cfg.URL, err)
		return nil, err
	}
	return NewClientWithBackend(cfg, ethClient)
}

// NewClientWithBackend creates a client over an already connected backend.
func NewClientWithBackend(cfg Config, backend ethereumClient) (*Client, error) {
	anchor, err := newAnchorContract(cfg.AnchorAddr, backend)
	if err != nil {
		return nil, err
	}
	return &Client{
		EthClient: backend,
		anchor:    anchor,
		cfg:       cfg,
		auth:      map[common.Address]bind.TransactOpts{},
	}, nil
}

// Network returns the network tag persisted in proof records.
func (etherMan *Client) Network() string {
	return etherMan.cfg.Network
}

// ExplorerURL returns the explorer base URL persisted in proof records.
func (etherMan *Client) ExplorerURL() string {
	return etherMan.cfg.ExplorerURL
}

// withRetry runs fn with bounded retry and linear backoff. On exhaustion the
// last error is wrapped as ErrLedgerUnreachable: callers must never interpret
// an unreachable ledger as an invalid document.
func (etherMan *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := etherMan.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if etherMan.cfg.Timeout.Duration > 0 {
			callCtx, cancel = context.WithTimeout(ctx, etherMan.cfg.Timeout.Duration)
		}
		err = fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if i < attempts-1 {
			backoff := time.Duration(i+1) * etherMan.cfg.RetryPeriod.Duration
			log.Warnf("ledger call failed (attempt %d/%d), retrying in %s: %v",
				i+1, attempts, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrLedgerUnreachable, ctx.Err())
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
}

// GetRootTimestamp returns the anchoring timestamp of a root. Zero means the
// root is not anchored.
func (etherMan *Client) GetRootTimestamp(ctx context.Context, root common.Hash) (uint64, error) {
	var ts uint64
	err := etherMan.withRetry(ctx, func(ctx context.Context) error {
		var out []interface{}
		err := etherMan.anchor.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRootTimestamp", root)
		if err != nil {
			return err
		}
		ts = abiBig(out[0]).Uint64()
		return nil
	})
	return ts, err
}

// IsWorker reports whether the account is authorized to anchor roots.
func (etherMan *Client) IsWorker(ctx context.Context, account common.Address) (bool, error) {
	var isWorker bool
	err := etherMan.withRetry(ctx, func(ctx context.Context) error {
		var out []interface{}
		err := etherMan.anchor.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isWorker", account)
		if err != nil {
			return err
		}
		isWorker = out[0].(bool)
		return nil
	})
	return isWorker, err
}

// IsInvalidated returns the ledger's invalidation verdict for a document.
func (etherMan *Client) IsInvalidated(
	ctx context.Context,
	docHash, root common.Hash,
	issuerID string,
	invalidationExpiry, issuedAt uint64,
) (InvalidationStatus, error) {
	var status InvalidationStatus
	err := etherMan.withRetry(ctx, func(ctx context.Context) error {
		var out []interface{}
		err := etherMan.anchor.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isInvalidated",
			docHash, root, issuerID,
			new(big.Int).SetUint64(invalidationExpiry),
			new(big.Int).SetUint64(issuedAt))
		if err != nil {
			return err
		}
		status.Status = out[0].(string)
		status.Timestamp = abiBig(out[1]).Uint64()
		return nil
	})
	return status, err
}

// dryRun simulates a state-changing call before it is submitted, so a doomed
// transaction is caught without spending gas.
func (etherMan *Client) dryRun(ctx context.Context, from common.Address, method string, args ...interface{}) error {
	input, err := etherMan.anchor.abi.Pack(method, args...)
	if err != nil {
		return err
	}
	to := etherMan.anchor.address
	_, err = etherMan.EthClient.CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: input,
	}, nil)
	if err != nil {
		if parsed, ok := TryParseError(err); ok {
			return parsed
		}
		return err
	}
	return nil
}

func (etherMan *Client) transact(ctx context.Context, from common.Address, method string, args ...interface{}) (*types.Transaction, error) {
	if err := etherMan.dryRun(ctx, from, method, args...); err != nil {
		return nil, err
	}
	auth, err := etherMan.getAuthByAddress(from)
	if err != nil {
		return nil, ErrPrivateKeyNotFound
	}
	auth.Context = ctx
	tx, err := etherMan.anchor.contract.Transact(&auth, method, args...)
	if err != nil {
		if parsed, ok := TryParseError(err); ok {
			return nil, parsed
		}
		return nil, err
	}
	log.Infof("%s tx sent: %s", method, tx.Hash().Hex())
	return tx, nil
}

// PutRoot anchors a batch root. A root that already has a non-zero timestamp
// short-circuits with ErrRootAlreadyAnchored before any transaction is built:
// the ledger, not a client-side lock, is the source of truth for pending
// anchors.
func (etherMan *Client) PutRoot(ctx context.Context, from common.Address, root common.Hash) (*types.Transaction, error) {
	ts, err := etherMan.GetRootTimestamp(ctx, root)
	if err != nil {
		return nil, err
	}
	if ts != 0 {
		return nil, fmt.Errorf("%w: root %s anchored at %d", ErrRootAlreadyAnchored, root.Hex(), ts)
	}
	authorized, err := etherMan.IsWorker(ctx, from)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, fmt.Errorf("%w: %s", ErrNotWorker, from.Hex())
	}
	return etherMan.transact(ctx, from, "putRoot", root)
}

// RegisterIssuer registers an issuer identity on the ledger.
func (etherMan *Client) RegisterIssuer(ctx context.Context, from common.Address, issuerID string, invalidationExpiry uint64, metadata string) (*types.Transaction, error) {
	return etherMan.transact(ctx, from, "registerIssuer",
		issuerID, new(big.Int).SetUint64(invalidationExpiry), metadata)
}

// InvalidateRoot marks a whole batch as invalidated.
func (etherMan *Client) InvalidateRoot(ctx context.Context, from common.Address, root common.Hash, signature []byte, issuerID string) (*types.Transaction, error) {
	return etherMan.transact(ctx, from, "invalidateRoot", root, signature, issuerID)
}

// InvalidateDocument marks one document as invalidated.
func (etherMan *Client) InvalidateDocument(ctx context.Context, from common.Address, docHash common.Hash, signature []byte, issuerID string) (*types.Transaction, error) {
	return etherMan.transact(ctx, from, "invalidateDocument", docHash, signature, issuerID)
}

// WaitTxToBeMined waits until the transaction reaches a terminal state. A
// mined-but-reverted transaction is a hard failure.
func (etherMan *Client) WaitTxToBeMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) error {
	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	receipt, err := bind.WaitMined(waitCtx, etherMan.EthClient, tx)
	if err != nil {
		return fmt.Errorf("%w: waiting for tx %s: %v", ErrLedgerUnreachable, tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("%w: tx %s", ErrTxFailed, tx.Hash().Hex())
	}
	log.Infof("tx %s mined in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	return nil
}

// CheckTxWasMined check if a tx was already mined
func (etherMan *Client) CheckTxWasMined(ctx context.Context, txHash common.Hash) (bool, *types.Receipt, error) {
	receipt, err := etherMan.EthClient.TransactionReceipt(ctx, txHash)
	if err == ethereum.NotFound {
		return false, nil, nil
	} else if err != nil {
		return false, nil, err
	}
	return true, receipt, nil
}

// AddOrReplaceAuth adds an authorization or replace an existent one to the same account
func (etherMan *Client) AddOrReplaceAuth(auth bind.TransactOpts) error {
	log.Infof("added or replaced authorization for address: %v", auth.From.String())
	etherMan.auth[auth.From] = auth
	return nil
}

// LoadAuthFromKeyStore loads an authorization from a key store file
func (etherMan *Client) LoadAuthFromKeyStore(path, password string) (*bind.TransactOpts, *ecdsa.PrivateKey, error) {
	auth, pk, err := newAuthFromKeystore(path, password, etherMan.cfg.ChainID)
	if err != nil {
		return nil, nil, err
	}
	if err := etherMan.AddOrReplaceAuth(auth); err != nil {
		return nil, nil, err
	}
	return &auth, pk, nil
}

// newKeyFromKeystore creates an instance of a keystore key from a keystore file
func newKeyFromKeystore(path, password string) (*keystore.Key, error) {
	if path == "" && password == "" {
		return nil, nil
	}
	keystoreEncrypted, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	log.Infof("decrypting key from: %v", path)
	key, err := keystore.DecryptKey(keystoreEncrypted, password)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// newAuthFromKeystore an authorization instance from a keystore file
func newAuthFromKeystore(path, password string, chainID uint64) (bind.TransactOpts, *ecdsa.PrivateKey, error) {
	log.Infof("reading key from: %v", path)
	key, err := newKeyFromKeystore(path, password)
	if err != nil {
		return bind.TransactOpts{}, nil, err
	}
	if key == nil {
		return bind.TransactOpts{}, nil, nil
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key.PrivateKey, new(big.Int).SetUint64(chainID))
	if err != nil {
		return bind.TransactOpts{}, nil, err
	}
	return *auth, key.PrivateKey, nil
}

// getAuthByAddress tries to get an authorization from the authorizations map
func (etherMan *Client) getAuthByAddress(addr common.Address) (bind.TransactOpts, error) {
	auth, found := etherMan.auth[addr]
	if !found {
		return bind.TransactOpts{}, ErrNotFound
	}
	return auth, nil
}

func abiBig(v interface{}) *big.Int {
	b, ok := v.(*big.Int)
	if !ok {
		return big.NewInt(0)
	}
	return b
}
