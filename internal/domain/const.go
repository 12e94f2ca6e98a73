package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY = "https://gateway.pinata.cloud"
	IPFS_SCHEME          = "ipfs://"

	// Rarity rank thresholds
	RARITY_TIER_SIZE = 1000
)
