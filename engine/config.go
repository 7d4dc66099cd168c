package engine

// Confirmation targets per network version. Source-chain targets gate
// acceptance of a deposit; burn targets gate submission of the burn
// proof to the bridge network.
const (
	TestnetSourceConfTarget = 2
	MainnetSourceConfTarget = 6

	TestnetBurnConfTarget = 13
	MainnetBurnConfTarget = 30

	// One destination-chain confirmation is enough: the receipt status
	// already tells success from revert.
	DestConfTarget = 1

	defaultQueueSize = 64
)

type Config struct {
	// NetworkVersion is "mainnet" or "testnet"
	NetworkVersion string

	// AdapterAddress is the conversion adapter contract on the
	// destination chain, in hex
	AdapterAddress string

	// Sender is the local wallet address submitting destination-chain
	// transactions, in hex
	Sender string

	// SourceConfTarget is the number of source-chain confirmations
	// before a deposit is accepted
	SourceConfTarget int64

	// BurnConfTarget is the number of destination-chain confirmations
	// before a burn proof is handed to the bridge network
	BurnConfTarget int64

	// QueueSize is the capacity of the event queue
	QueueSize int
}

// DefaultConfig fills in the confirmation targets for the given network
// version.
func DefaultConfig(networkVersion, adapterAddress, sender string) *Config {
	cfg := &Config{
		NetworkVersion:   networkVersion,
		AdapterAddress:   adapterAddress,
		Sender:           sender,
		SourceConfTarget: MainnetSourceConfTarget,
		BurnConfTarget:   MainnetBurnConfTarget,
		QueueSize:        defaultQueueSize,
	}
	if networkVersion == "testnet" {
		cfg.SourceConfTarget = TestnetSourceConfTarget
		cfg.BurnConfTarget = TestnetBurnConfTarget
	}
	return cfg
}

func (cfg *Config) queueSize() int {
	if cfg.QueueSize > 0 {
		return cfg.QueueSize
	}
	return defaultQueueSize
}
