package bridge

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Simulated is a scripted in-memory SDK for tests. Deposits are pushed
// through Deposit(); call counters let tests assert that restores do not
// duplicate external calls.
type Simulated struct {
	mu sync.Mutex

	Gateway     string
	GatewayErr  error
	Attestation *Attestation
	AttestErr   error

	releases map[string]ReleaseState

	// one deposit channel per constructed handle nonce, shared across
	// reconstructions of the same params
	depositCh map[string]chan UTXO

	ConstructCalls int
	AttestCalls    int
}

func NewSimulated(gateway string) *Simulated {
	return &Simulated{
		Gateway:   gateway,
		releases:  make(map[string]ReleaseState),
		depositCh: make(map[string]chan UTXO),
	}
}

func (s *Simulated) ConstructDeposit(ctx context.Context, params *DepositParams) (DepositHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ConstructCalls++
	if s.GatewayErr != nil {
		return nil, s.GatewayErr
	}
	if _, ok := s.depositCh[params.Nonce]; !ok {
		s.depositCh[params.Nonce] = make(chan UTXO, 16)
	}
	return &simulatedHandle{sdk: s, nonce: params.Nonce}, nil
}

func (s *Simulated) ReleaseStatus(ctx context.Context, sourceTxHash string) (ReleaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.releases[sourceTxHash]; ok {
		return st, nil
	}
	return ReleaseStatusPending, nil
}

// ConstructCount reports how many deposit constructions have run.
func (s *Simulated) ConstructCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ConstructCalls
}

// AttestCount reports how many attestation submissions have run.
func (s *Simulated) AttestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AttestCalls
}

// SetReleaseStatus scripts the network's release answer for a burn.
func (s *Simulated) SetReleaseStatus(sourceTxHash string, st ReleaseState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[sourceTxHash] = st
}

// Deposit pushes a deposit observation to every waiter on the nonce.
func (s *Simulated) Deposit(nonce string, utxo UTXO) {
	s.mu.Lock()
	ch, ok := s.depositCh[nonce]
	s.mu.Unlock()
	if ok {
		ch <- utxo
	}
}

type simulatedHandle struct {
	sdk   *Simulated
	nonce string
}

func (h *simulatedHandle) GatewayAddress(ctx context.Context) (string, error) {
	if h.sdk.GatewayErr != nil {
		return "", h.sdk.GatewayErr
	}
	return h.sdk.Gateway, nil
}

func (h *simulatedHandle) WaitForDeposit(ctx context.Context, minConfs int64, known *UTXO, emit func(UTXO)) error {
	h.sdk.mu.Lock()
	ch := h.sdk.depositCh[h.nonce]
	h.sdk.mu.Unlock()

	if known != nil {
		emit(*known)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case utxo := <-ch:
			emit(utxo)
		}
	}
}

func (h *simulatedHandle) SubmitAttestation(ctx context.Context, utxo UTXO) (*Attestation, error) {
	h.sdk.mu.Lock()
	defer h.sdk.mu.Unlock()

	h.sdk.AttestCalls++
	if h.sdk.AttestErr != nil {
		return nil, h.sdk.AttestErr
	}
	if h.sdk.Attestation == nil {
		return nil, errors.New("simulated bridge has no attestation scripted")
	}
	att := *h.sdk.Attestation
	if att.UtxoAmountSats == 0 {
		att.UtxoAmountSats = utxo.AmountSats
	}
	return &att, nil
}
