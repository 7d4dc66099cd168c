package etherman

import (
	"context"
	"fmt"
	"sync"

	"github.com/wbtc-cafe/convert-go/common"
)

// Simulated is an in-memory Client for tests. Broadcasts mint into
// scripted hashes; receipts and confirmations are set by the test.
type Simulated struct {
	mu sync.Mutex

	head     uint64
	txBlocks map[string]uint64
	receipts map[string]*Receipt

	// next broadcast outcome
	BroadcastErr error

	MintCalls []*MintParams
	BurnCalls []*BurnParams

	seq int
}

func NewSimulated() *Simulated {
	return &Simulated{
		txBlocks: make(map[string]uint64),
		receipts: make(map[string]*Receipt),
	}
}

// MineTx places a broadcast transaction into a block with the given
// receipt status and advances the head so it has confs confirmations.
func (s *Simulated) MineTx(txHash string, succeeded bool, confs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block := s.head + 1
	s.txBlocks[txHash] = block
	s.receipts[txHash] = &Receipt{Succeeded: succeeded, BlockNumber: block}
	s.head = block + confs
}

// DropTx forgets a transaction, simulating a reorg or replaced tx.
func (s *Simulated) DropTx(txHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txBlocks, txHash)
	delete(s.receipts, txHash)
}

func (s *Simulated) SubmitMintThenSwap(ctx context.Context, params *MintParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BroadcastErr != nil {
		return "", s.BroadcastErr
	}
	s.MintCalls = append(s.MintCalls, params)
	return s.nextHash(), nil
}

func (s *Simulated) SubmitSwapThenBurn(ctx context.Context, params *BurnParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BroadcastErr != nil {
		return "", s.BroadcastErr
	}
	s.BurnCalls = append(s.BurnCalls, params)
	return s.nextHash(), nil
}

func (s *Simulated) LookupTransaction(ctx context.Context, txHash string) (*TxLookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, ok := s.txBlocks[txHash]
	if !ok {
		return &TxLookup{Found: false}, nil
	}
	return &TxLookup{Found: true, BlockNumber: block}, nil
}

func (s *Simulated) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return receipt, nil
}

func (s *Simulated) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

// nextHash must be called with the lock held.
func (s *Simulated) nextHash() string {
	s.seq++
	var b [32]byte
	copy(b[:], fmt.Sprintf("simulated-tx-%d", s.seq))
	return common.Bytes32ToHexStr(b)
}
