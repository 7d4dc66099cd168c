// This is the http surface of the conversion client.
// It publishes the transaction collection on read routes and forwards
// conversion requests to the lifecycle engine.

package reporter

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/wbtc-cafe/convert-go/engine"
	"github.com/wbtc-cafe/convert-go/txstore"
)

const (
	ROUTE_HEALTH       = "/health"
	ROUTE_TRANSACTIONS = "/transactions"
	ROUTE_TRANSACTION  = "/transactions/:id"
	ROUTE_COMPLETE     = "/transactions/:id/complete"
	ROUTE_MINT         = "/mint"
	ROUTE_BURN         = "/burn"
)

type HttpReporter struct {
	serverIP   string // listen ip
	serverPort string // listen port

	// upstream data sources
	store  *txstore.Store
	engine *engine.Engine
}

func NewHttpReporter(serverIP string, serverPort string, store *txstore.Store, eng *engine.Engine) *HttpReporter {
	return &HttpReporter{
		serverIP:   serverIP,
		serverPort: serverPort,
		store:      store,
		engine:     eng,
	}
}

// Hook up routes & handlers
func (h *HttpReporter) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.GET(ROUTE_HEALTH, Health)
	router.GET(ROUTE_TRANSACTIONS, h.ListTransactions)
	router.GET(ROUTE_TRANSACTION, h.GetTransaction)
	router.POST(ROUTE_MINT, h.Mint)
	router.POST(ROUTE_BURN, h.Burn)
	router.POST(ROUTE_COMPLETE, h.Complete)
	router.DELETE(ROUTE_TRANSACTION, h.Cancel)

	return router
}

// Hook up router & ip:port
func (h *HttpReporter) Run() {
	router := h.SetupRouter()
	address := h.serverIP + ":" + h.serverPort
	if err := router.Run(address); err != nil {
		panic(err)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *HttpReporter) ListTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.store.List()})
}

func (h *HttpReporter) GetTransaction(c *gin.Context) {
	tx, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transaction found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tx})
}

func (h *HttpReporter) Mint(c *gin.Context) {
	var req engine.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.engine.InitiateMint(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tx})
}

func (h *HttpReporter) Burn(c *gin.Context) {
	var req engine.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.engine.InitiateBurn(c.Request.Context(), &req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": tx})
}

// Complete submits an attested deposit to the destination chain.
// ?override=true accepts an exchange rate below the committed minimum;
// ?fallback=true keeps the committed minimum and takes the intermediate
// bridge asset when the swap falls through.
func (h *HttpReporter) Complete(c *gin.Context) {
	mode := engine.CompleteAtCommittedRate
	switch {
	case c.Query("fallback") == "true":
		mode = engine.CompleteAsIntermediate
	case c.Query("override") == "true":
		mode = engine.CompleteAtNewRate
	}

	err := h.engine.CompleteMint(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "submitted"})
}

func (h *HttpReporter) Cancel(c *gin.Context) {
	err := h.engine.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, txstore.ErrTxNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidDestAddress):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrRateBelowMinimum),
		errors.Is(err, engine.ErrNotClaimable),
		errors.Is(err, engine.ErrMissingAttestation),
		errors.Is(err, engine.ErrSubmissionInFlight),
		errors.Is(err, engine.ErrNotCancelable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
