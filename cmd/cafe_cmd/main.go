package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wbtc-cafe/convert-go/cmd"
	"github.com/wbtc-cafe/convert-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "CAFE_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Cafe server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Cafe server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	if !initializeViper(_config_file) {
		return
	}

	csc := PrepareCafeServerConfig()
	if csc == nil {
		fmt.Printf("Error loading cafe server configuration\n")
		return
	}

	fmt.Println("Starting cafe server... press Ctrl+C to kill the server")
	if err := cmd.StartCafeServerAndWait(csc); err != nil {
		fmt.Printf("Cafe server exited with error: %v\n", err)
	}
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareCafeServerConfig reads configuration variables and returns a CafeServerConfig.
func PrepareCafeServerConfig() *cmd.CafeServerConfig {
	networkVersion := viper.GetString("NETWORK_VERSION")
	switch networkVersion {
	case "mainnet", "testnet":
	default:
		// default to testnet
		networkVersion = "testnet"
	}

	return &cmd.CafeServerConfig{
		// network side
		NetworkVersion: networkVersion,
		LightnodeURL:   viper.GetString("LIGHTNODE_URL"),
		FeeServiceURL:  viper.GetString("FEE_SERVICE_URL"),
		// eth side
		EthRpcUrl:          viper.GetString("ETH_RPC_URL"),
		EthCoreAccountPriv: viper.GetString("ETH_CORE_ACCOUNT_PRIV"),
		AdapterAddress:     viper.GetString("ADAPTER_ADDRESS"),
		CurvePoolAddress:   viper.GetString("CURVE_POOL_ADDRESS"),
		// store side
		DbFilePath:  viper.GetString("DB_FILE_PATH"),
		PostgresDSN: viper.GetString("POSTGRES_DSN"),
		OwnerAddr:   viper.GetString("OWNER_ADDRESS"),
		OwnerSig:    viper.GetString("OWNER_SIGNATURE"),
		// http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
