package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Chain and transaction constants for the BSC auction contracts.
const (
	ChainID  = 56
	GasLimit = 800_000

	// GasPriceWei is a fixed 15 gwei.
	GasPriceWei = 15_000_000_000

	// UnitScale is the marketplace's fixed-point scale: listing prices and
	// rule ceilings are expressed in units of 1e-9 native tokens.
	UnitScale = 1_000_000_000

	// ContractScale converts a marketplace price to the contract's integer
	// representation.
	ContractScale = 1_000_000_000
)

var (
	MomoContractAddress = common.HexToAddress("0xcb0cffc2b12739d4be791b8af7fbf49bc1d6a8c2")
	GemContractAddress  = common.HexToAddress("0x819e97c7da2c784403b790121304db9e6a038de9")
)

const momoBidABI = `[{"inputs":[
	{"internalType":"address","name":"auctor_","type":"address"},
	{"internalType":"uint256","name":"index_","type":"uint256"},
	{"internalType":"uint256","name":"startTime_","type":"uint256"},
	{"internalType":"uint256","name":"price_","type":"uint256"}
],"name":"bid","outputs":[],"stateMutability":"payable","type":"function"}]`

const gemBidABI = `[{"inputs":[
	{"internalType":"address","name":"_platform","type":"address"},
	{"internalType":"uint256","name":"_index","type":"uint256"},
	{"internalType":"uint256","name":"price","type":"uint256"}
],"name":"bid","outputs":[],"stateMutability":"payable","type":"function"}]`

var ErrNoPrivateKey = errors.New("wallet private key required")

// Client wraps the RPC connection, the signing key and the nonce sequencer
// for one wallet. It is the only component that talks to the chain.
type Client struct {
	rpc     *ethclient.Client
	key     *ecdsa.PrivateKey
	wallet  common.Address
	signer  ethtypes.Signer
	momoABI abi.ABI
	gemABI  abi.ABI
	nonces  *NonceSequencer
}

// NewClient dials the RPC endpoint and prepares the signer. The private key
// is hex-encoded, with or without a 0x prefix.
func NewClient(rpcURL, privateKeyHex string) (*Client, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if privateKeyHex == "" {
		return nil, ErrNoPrivateKey
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger RPC %q: %w", rpcURL, err)
	}

	momoABI, err := abi.JSON(strings.NewReader(momoBidABI))
	if err != nil {
		return nil, fmt.Errorf("parse momo bid ABI: %w", err)
	}
	gemABI, err := abi.JSON(strings.NewReader(gemBidABI))
	if err != nil {
		return nil, fmt.Errorf("parse gem bid ABI: %w", err)
	}

	wallet := crypto.PubkeyToAddress(key.PublicKey)
	return &Client{
		rpc:     rpc,
		key:     key,
		wallet:  wallet,
		signer:  ethtypes.NewEIP155Signer(big.NewInt(ChainID)),
		momoABI: momoABI,
		gemABI:  gemABI,
		nonces:  NewNonceSequencer(rpc, wallet),
	}, nil
}

// Wallet returns the address derived from the signing key.
func (c *Client) Wallet() common.Address {
	return c.wallet
}

// AllocateNonce hands out the next collision-free nonce for the wallet.
func (c *Client) AllocateNonce(ctx context.Context) (uint64, error) {
	return c.nonces.Allocate(ctx)
}

// SignMomoBid builds and signs a bid against the momo auction contract.
func (c *Client) SignMomoBid(seller string, index, startTime int64, price *big.Int, nonce uint64) (*ethtypes.Transaction, error) {
	sellerAddr, err := checksumAddress(seller)
	if err != nil {
		return nil, err
	}

	data, err := c.momoABI.Pack("bid", sellerAddr, big.NewInt(index), big.NewInt(startTime), price)
	if err != nil {
		return nil, fmt.Errorf("pack momo bid: %w", err)
	}

	return c.sign(MomoContractAddress, data, nonce)
}

// SignGemBid builds and signs a bid against the gem auction contract.
func (c *Client) SignGemBid(seller string, orderID int64, price *big.Int, nonce uint64) (*ethtypes.Transaction, error) {
	sellerAddr, err := checksumAddress(seller)
	if err != nil {
		return nil, err
	}

	data, err := c.gemABI.Pack("bid", sellerAddr, big.NewInt(orderID), price)
	if err != nil {
		return nil, fmt.Errorf("pack gem bid: %w", err)
	}

	return c.sign(GemContractAddress, data, nonce)
}

func (c *Client) sign(contract common.Address, data []byte, nonce uint64) (*ethtypes.Transaction, error) {
	tx := ethtypes.NewTransaction(nonce, contract, big.NewInt(0), GasLimit, big.NewInt(GasPriceWei), data)
	signed, err := ethtypes.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// Submit broadcasts a signed transaction and returns its hash.
func (c *Client) Submit(ctx context.Context, tx *ethtypes.Transaction) (common.Hash, error) {
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return tx.Hash(), nil
}

// checksumAddress parses a hex address into its canonical checksum form.
func checksumAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}
