package etherman

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/wbtc-cafe/convert-go/common"
)

// adapterABI is the surface of the conversion adapter contract: mint the
// attested deposit and swap it to the wrapped asset, or swap the wrapped
// asset back and burn it.
const adapterABI = `[
	{"type":"function","name":"mintThenSwap","stateMutability":"nonpayable","inputs":[
		{"name":"_minExchangeRate","type":"uint256"},
		{"name":"_newMinExchangeRate","type":"uint256"},
		{"name":"_slippage","type":"uint256"},
		{"name":"_wbtcDestination","type":"address"},
		{"name":"_amount","type":"uint256"},
		{"name":"_nHash","type":"bytes32"},
		{"name":"_sig","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"swapThenBurn","stateMutability":"nonpayable","inputs":[
		{"name":"_to","type":"bytes"},
		{"name":"_amount","type":"uint256"},
		{"name":"_minSwapProceeds","type":"uint256"}],"outputs":[]}
]`

type ethereumClient interface {
	ethereum.TransactionReader
	ethereum.ChainReader

	bind.ContractBackend
}

// Etherman wraps the destination-chain node connection and the bound
// adapter contract.
type Etherman struct {
	ethClient      ethereumClient
	adapterAddress ethcommon.Address
	adapter        *bind.BoundContract
	auth           *bind.TransactOpts
}

func NewEtherman(cfg *Config) (*Etherman, error) {
	ethClient, err := ethclient.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing eth node")
	}

	sk, err := crypto.HexToECDSA(cfg.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "parsing signer key")
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "fetching chain id")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(sk, chainID)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(adapterABI))
	if err != nil {
		return nil, err
	}
	adapterAddress := ethcommon.HexToAddress(cfg.AdapterAddress)
	adapter := bind.NewBoundContract(adapterAddress, parsed, ethClient, ethClient, ethClient)

	return &Etherman{
		ethClient:      ethClient,
		adapterAddress: adapterAddress,
		adapter:        adapter,
		auth:           auth,
	}, nil
}

// Sender returns the signer's address; it is the _msgSender fixed into
// the deposit-request parameters at creation time.
func (e *Etherman) Sender() string {
	return e.auth.From.Hex()
}

// Backend exposes the node connection for other contract bindings that
// share it, such as the liquidity-pool quote calls.
func (e *Etherman) Backend() bind.ContractBackend {
	return e.ethClient
}

func (e *Etherman) SubmitMintThenSwap(ctx context.Context, params *MintParams) (string, error) {
	opts := *e.auth
	opts.Context = ctx

	tx, err := e.adapter.Transact(&opts, "mintThenSwap",
		big.NewInt(params.MinExchangeRateSats),
		big.NewInt(params.NewMinExchangeRateSats),
		big.NewInt(params.SlippageBps),
		ethcommon.HexToAddress(params.WbtcDestination),
		big.NewInt(params.AmountSats),
		common.HexStrToBytes32(params.NonceHash),
		params.Signature,
	)
	if err != nil {
		return "", errors.Wrap(err, "broadcasting mintThenSwap")
	}
	return tx.Hash().Hex(), nil
}

func (e *Etherman) SubmitSwapThenBurn(ctx context.Context, params *BurnParams) (string, error) {
	opts := *e.auth
	opts.Context = ctx

	tx, err := e.adapter.Transact(&opts, "swapThenBurn",
		[]byte(params.BtcDestination),
		big.NewInt(params.AmountSats),
		big.NewInt(params.MinSwapProceedsSats),
	)
	if err != nil {
		return "", errors.Wrap(err, "broadcasting swapThenBurn")
	}
	return tx.Hash().Hex(), nil
}

func (e *Etherman) LookupTransaction(ctx context.Context, txHash string) (*TxLookup, error) {
	tx, pending, err := e.ethClient.TransactionByHash(ctx, ethcommon.HexToHash(txHash))
	if err == ethereum.NotFound {
		return &TxLookup{Found: false}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching transaction")
	}
	lookup := &TxLookup{Found: tx != nil, Pending: pending}
	if !pending {
		receipt, err := e.ethClient.TransactionReceipt(ctx, ethcommon.HexToHash(txHash))
		if err != nil && err != ethereum.NotFound {
			return nil, errors.Wrap(err, "fetching receipt for block number")
		}
		if receipt != nil {
			lookup.BlockNumber = receipt.BlockNumber.Uint64()
		} else {
			lookup.Pending = true
		}
	}
	return lookup, nil
}

func (e *Etherman) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := e.ethClient.TransactionReceipt(ctx, ethcommon.HexToHash(txHash))
	if err != nil {
		return nil, errors.Wrap(err, "fetching receipt")
	}
	return &Receipt{
		Succeeded:   receipt.Status == 1,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (e *Etherman) BlockNumber(ctx context.Context) (uint64, error) {
	header, err := e.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "fetching latest header")
	}
	return header.Number.Uint64(), nil
}
