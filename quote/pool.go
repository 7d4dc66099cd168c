package quote

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// curvePoolABI is the read-only quote surface of the liquidity pool.
const curvePoolABI = `[
	{"type":"function","name":"get_dy","stateMutability":"view","inputs":[
		{"name":"i","type":"int128"},
		{"name":"j","type":"int128"},
		{"name":"dx","type":"uint256"}],
	"outputs":[{"name":"","type":"uint256"}]}
]`

// CurvePool quotes swaps against an on-chain stable-swap pool.
type CurvePool struct {
	contract *bind.BoundContract
}

func NewCurvePool(address string, caller bind.ContractCaller) (*CurvePool, error) {
	parsed, err := abi.JSON(strings.NewReader(curvePoolABI))
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(ethcommon.HexToAddress(address), parsed, caller, nil, nil)
	return &CurvePool{contract: contract}, nil
}

func (p *CurvePool) Swap(ctx context.Context, i, j int, dxSats int64) (int64, error) {
	var out []interface{}
	err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, "get_dy",
		big.NewInt(int64(i)), big.NewInt(int64(j)), big.NewInt(dxSats))
	if err != nil {
		return 0, errors.Wrap(err, "calling get_dy")
	}
	dy, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("unexpected get_dy return type")
	}
	return dy.Int64(), nil
}

// RatioPool is a Pool for tests: output is input scaled by a fixed
// ratio, regardless of direction.
type RatioPool struct {
	Ratio float64
	Err   error
}

func (p *RatioPool) Swap(ctx context.Context, i, j int, dxSats int64) (int64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return int64(float64(dxSats) * p.Ratio), nil
}
