package common

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	if _, err := btcutil.DecodeAddress(address, cfg); err != nil {
		return false
	}

	return true
}

func IsValidBtcTxId(txid string) bool {
	_, err := chainhash.NewHashFromStr(txid)
	return err == nil
}

// BtcParams maps a network version tag to btcd chain parameters.
func BtcParams(networkVersion string) *chaincfg.Params {
	if networkVersion == "testnet" {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}
