package bridge

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/common"
)

const (
	lightnodePollInterval = 15 * time.Second
	lightnodeHTTPTimeout  = 30 * time.Second
)

// Lightnode is an SDK over the bridge network's JSON-RPC gateway node.
type Lightnode struct {
	url    string
	client *http.Client
}

func NewLightnode(url string) *Lightnode {
	return &Lightnode{
		url:    url,
		client: &http.Client{Timeout: lightnodeHTTPTimeout},
	}
}

type rpcRequest struct {
	ID      int         `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (l *Lightnode) call(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(&rpcRequest{ID: 1, JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrapf(err, "decoding %s response", method)
	}
	if envelope.Error != nil {
		return errors.Errorf("%s failed: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	return json.Unmarshal(envelope.Result, result)
}

type gatewayParams struct {
	Nonce               string `json:"nonce"`
	AdapterAddress      string `json:"adapterAddress"`
	AmountSats          int64  `json:"amountSats"`
	MinExchangeRateSats int64  `json:"minExchangeRateSats"`
	SlippageBps         int64  `json:"slippageBps"`
	DestAddress         string `json:"destAddress"`
	Sender              string `json:"sender"`
}

func (l *Lightnode) ConstructDeposit(ctx context.Context, params *DepositParams) (DepositHandle, error) {
	var result struct {
		Gateway string `json:"gateway"`
	}
	err := l.call(ctx, "constructGateway", &gatewayParams{
		Nonce:               params.Nonce,
		AdapterAddress:      params.AdapterAddress,
		AmountSats:          params.AmountSats,
		MinExchangeRateSats: params.MinExchangeRateSats,
		SlippageBps:         params.SlippageBps,
		DestAddress:         params.DestAddress,
		Sender:              params.Sender,
	}, &result)
	if err != nil {
		return nil, err
	}
	if result.Gateway == "" {
		return nil, errors.New("network returned an empty gateway address")
	}
	return &lightnodeHandle{node: l, nonce: params.Nonce, gateway: result.Gateway}, nil
}

func (l *Lightnode) ReleaseStatus(ctx context.Context, sourceTxHash string) (ReleaseState, error) {
	var result struct {
		Status string `json:"status"`
	}
	err := l.call(ctx, "queryRelease", map[string]string{"txHash": sourceTxHash}, &result)
	if err != nil {
		return ReleaseStatusPending, err
	}
	if result.Status == "done" {
		return ReleaseStatusDone, nil
	}
	return ReleaseStatusPending, nil
}

type lightnodeHandle struct {
	node    *Lightnode
	nonce   string
	gateway string
}

func (h *lightnodeHandle) GatewayAddress(ctx context.Context) (string, error) {
	return h.gateway, nil
}

type depositRecord struct {
	TxHash        string `json:"txHash"`
	VOut          int    `json:"vOut"`
	Confirmations int64  `json:"confirmations"`
	AmountSats    int64  `json:"amountSats"`
}

// WaitForDeposit polls the gateway. Each observation is re-emitted even
// when only the confirmation count moved; the consumer dedupes.
func (h *lightnodeHandle) WaitForDeposit(ctx context.Context, minConfs int64, known *UTXO, emit func(UTXO)) error {
	if known != nil {
		emit(*known)
	}

	ticker := time.NewTicker(lightnodePollInterval)
	defer ticker.Stop()

	last := make(map[string]int64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var result struct {
			Deposits []depositRecord `json:"deposits"`
		}
		err := h.node.call(ctx, "queryDeposits", map[string]string{"gateway": h.gateway}, &result)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithField("gateway", h.gateway).Warnf("querying deposits: %v", err)
			continue
		}

		for _, d := range result.Deposits {
			if !common.IsValidBtcTxId(d.TxHash) {
				logger.WithField("gateway", h.gateway).Warnf("skipping deposit with malformed txid %q", d.TxHash)
				continue
			}
			if known != nil && (d.TxHash != known.TxHash || d.VOut != known.VOut) {
				continue
			}
			key := d.TxHash
			if prev, ok := last[key]; ok && d.Confirmations <= prev {
				continue
			}
			last[key] = d.Confirmations
			emit(UTXO{
				TxHash:        d.TxHash,
				VOut:          d.VOut,
				Confirmations: d.Confirmations,
				AmountSats:    d.AmountSats,
			})
		}
	}
}

type proofParams struct {
	Nonce      string `json:"nonce"`
	TxHash     string `json:"txHash"`
	VOut       int    `json:"vOut"`
	AmountSats int64  `json:"amountSats"`
}

// SubmitAttestation submits the deposit proof, then polls until the
// network has signed.
func (h *lightnodeHandle) SubmitAttestation(ctx context.Context, utxo UTXO) (*Attestation, error) {
	params := &proofParams{Nonce: h.nonce, TxHash: utxo.TxHash, VOut: utxo.VOut, AmountSats: utxo.AmountSats}

	var submitted struct {
		ProofID string `json:"proofId"`
	}
	if err := h.node.call(ctx, "submitDepositProof", params, &submitted); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(lightnodePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var result struct {
			Status             string `json:"status"`
			AttestedAmountSats int64  `json:"attestedAmountSats"`
			UtxoAmountSats     int64  `json:"utxoAmountSats"`
			NonceHash          string `json:"nonceHash"`
			Signature          string `json:"signature"`
			Raw                string `json:"raw"`
		}
		err := h.node.call(ctx, "queryAttestation", map[string]string{"proofId": submitted.ProofID}, &result)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.WithField("proofId", submitted.ProofID).Warnf("querying attestation: %v", err)
			continue
		}
		if result.Status != "done" {
			continue
		}

		sig, err := hex.DecodeString(result.Signature)
		if err != nil {
			return nil, errors.Wrap(err, "decoding attestation signature")
		}
		return &Attestation{
			AttestedAmountSats: result.AttestedAmountSats,
			UtxoAmountSats:     result.UtxoAmountSats,
			NonceHash:          result.NonceHash,
			Signature:          sig,
			Raw:                result.Raw,
		}, nil
	}
}
