package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPFeeService fetches the fee schedule from the bridge network's
// lightnode over JSON-RPC.
type HTTPFeeService struct {
	url    string
	client *http.Client
}

func NewHTTPFeeService(url string) *HTTPFeeService {
	return &HTTPFeeService{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type feeQueryRequest struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  struct{} `json:"params"`
}

type feeQueryResponse struct {
	Result struct {
		Btc struct {
			Lock     int64 `json:"lock"`
			Release  int64 `json:"release"`
			Ethereum struct {
				Mint int64 `json:"mint"`
				Burn int64 `json:"burn"`
			} `json:"ethereum"`
		} `json:"btc"`
	} `json:"result"`
}

func (s *HTTPFeeService) Fees(ctx context.Context) (*Schedule, error) {
	body, err := json.Marshal(&feeQueryRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  "queryFees",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee schedule")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fee schedule query returned status %d", resp.StatusCode)
	}

	var decoded feeQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding fee schedule")
	}

	return &Schedule{
		LockSats:    decoded.Result.Btc.Lock,
		ReleaseSats: decoded.Result.Btc.Release,
		MintBps:     decoded.Result.Btc.Ethereum.Mint,
		BurnBps:     decoded.Result.Btc.Ethereum.Burn,
	}, nil
}

// StaticFeeService returns a fixed schedule; used in tests and as a
// cached fallback.
type StaticFeeService struct {
	Schedule Schedule
	Err      error
}

func (s *StaticFeeService) Fees(ctx context.Context) (*Schedule, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	schedule := s.Schedule
	return &schedule, nil
}
