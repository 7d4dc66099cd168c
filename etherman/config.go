package etherman

type Config struct {
	// URL is the URL of the destination-chain node
	URL string

	// AdapterAddress is the deployed conversion adapter contract address
	// in hex string
	AdapterAddress string

	// PrivateKey is the hex-encoded signer key of the local wallet
	PrivateKey string
}
