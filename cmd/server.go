// Wiring helpers for the cafe server binary.

package cmd

import (
	"context"
	"database/sql"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"

	"github.com/wbtc-cafe/convert-go/bridge"
	"github.com/wbtc-cafe/convert-go/common"
	"github.com/wbtc-cafe/convert-go/engine"
	"github.com/wbtc-cafe/convert-go/etherman"
	"github.com/wbtc-cafe/convert-go/monitor"
	"github.com/wbtc-cafe/convert-go/quote"
	"github.com/wbtc-cafe/convert-go/reporter"
	"github.com/wbtc-cafe/convert-go/txstore"
)

type CafeServerConfig struct {
	// network side
	NetworkVersion string // "mainnet" or "testnet"
	LightnodeURL   string
	FeeServiceURL  string

	// eth side
	EthRpcUrl          string
	EthCoreAccountPriv string
	AdapterAddress     string
	CurvePoolAddress   string

	// store side
	DbFilePath  string
	PostgresDSN string // optional remote mirror
	OwnerAddr   string
	OwnerSig    string

	// http side
	HttpIp   string
	HttpPort string
}

func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// StartCafeServerAndWait wires every component, replays persisted
// transactions and blocks until an interrupt.
func StartCafeServerAndWait(cfg *CafeServerConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("received interrupt signal, shutting down")
		cancel()
	}()

	// destination chain
	eth, err := etherman.NewEtherman(&etherman.Config{
		URL:            cfg.EthRpcUrl,
		AdapterAddress: cfg.AdapterAddress,
		PrivateKey:     cfg.EthCoreAccountPriv,
	})
	if err != nil {
		return err
	}

	// persistence
	sqldb, err := sql.Open("sqlite3", cfg.DbFilePath)
	if err != nil {
		return err
	}
	defer sqldb.Close()

	local, err := txstore.NewSqliteBackend(sqldb)
	if err != nil {
		return err
	}
	backends := []txstore.Backend{local}
	if cfg.PostgresDSN != "" {
		remote, err := txstore.OpenPostgresBackend(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer remote.Close()
		backends = append(backends, remote)
	}

	ownerSig, err := hex.DecodeString(common.Trim0xPrefix(cfg.OwnerSig))
	if err != nil {
		return err
	}
	store := txstore.New(txstore.OwnerKey(cfg.OwnerAddr, ownerSig), backends...)
	if err := store.Load(ctx); err != nil {
		logger.Warnf("loading persisted transactions: %v", err)
	}

	// quoting
	quoterPool, err := quote.NewCurvePool(cfg.CurvePoolAddress, eth.Backend())
	if err != nil {
		return err
	}
	quoter := quote.New(quoterPool, quote.NewHTTPFeeService(cfg.FeeServiceURL))

	// lifecycle
	engineCfg := engine.DefaultConfig(cfg.NetworkVersion, cfg.AdapterAddress, eth.Sender())
	sdk := bridge.NewLightnode(cfg.LightnodeURL)
	eng := engine.New(engineCfg, store, sdk, eth, quoter)

	mon := monitor.New(&monitor.Config{
		Interval:       monitor.DefaultInterval,
		DestConfTarget: engine.DestConfTarget,
		BurnConfTarget: engineCfg.BurnConfTarget,
	}, store, eth, sdk, eng)

	go func() {
		if err := eng.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("engine stopped: %v", err)
			cancel()
		}
	}()
	go func() {
		if err := mon.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("monitor stopped: %v", err)
			cancel()
		}
	}()

	eng.StartMonitoring(ctx)

	// http surface; Run blocks, so serve it off the main goroutine and
	// let the interrupt unwind us
	rep := reporter.NewHttpReporter(cfg.HttpIp, cfg.HttpPort, store, eng)
	go rep.Run()

	<-ctx.Done()
	return nil
}
