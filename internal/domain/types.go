package domain

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainBaseMainnet     Chain = "eip155:8453"
	ChainBaseSepolia     Chain = "eip155:84532"
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainBaseMainnet ||
		chain == ChainBaseSepolia ||
		chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia
}

// ChainID returns the numeric EVM chain ID of a CAIP-2 chain
func (c Chain) ChainID() (*big.Int, error) {
	parts := strings.SplitN(string(c), ":", 2)
	if len(parts) != 2 || parts[0] != "eip155" {
		return nil, fmt.Errorf("unsupported chain: %s", c)
	}
	id, ok := new(big.Int).SetString(parts[1], 10)
	if !ok {
		return nil, fmt.Errorf("invalid chain reference: %s", c)
	}
	return id, nil
}

// RarityTier is one of four ordered categories derived from the assigned index
type RarityTier string

const (
	RarityPurple RarityTier = "purple"
	RarityYellow RarityTier = "yellow"
	RarityBlue   RarityTier = "blue"
	RarityGreen  RarityTier = "green"
)

// RarityByRank maps an assigned index to its tier.
// [0,1000) purple, [1000,2000) yellow, [2000,3000) blue, everything above green.
func RarityByRank(rank int) RarityTier {
	switch {
	case rank < RARITY_TIER_SIZE:
		return RarityPurple
	case rank < 2*RARITY_TIER_SIZE:
		return RarityYellow
	case rank < 3*RARITY_TIER_SIZE:
		return RarityBlue
	default:
		return RarityGreen
	}
}

// Valid checks if the tier is one of the known tiers
func (r RarityTier) Valid() bool {
	return r == RarityPurple || r == RarityYellow || r == RarityBlue || r == RarityGreen
}

// Identity is the caller's stable identifier (FID) and optional display name
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// Numeric returns the identity as an unsigned integer for the mint call
func (i Identity) Numeric() (*big.Int, error) {
	if !validIdentity(i.ID) {
		return nil, fmt.Errorf("identity %q is not numeric", i.ID)
	}
	n, _ := new(big.Int).SetString(i.ID, 10)
	return n, nil
}

// Label returns "<display name> #<id>" or "User #<id>"
func (i Identity) Label() string {
	if i.DisplayName != "" {
		return fmt.Sprintf("%s #%s", i.DisplayName, i.ID)
	}
	return fmt.Sprintf("User #%s", i.ID)
}

// AssignmentRecord is the single persisted row per identity
type AssignmentRecord struct {
	Identity       string         `json:"identity"`
	AssignedIndex  int            `json:"assigned_index"`
	RarityTier     RarityTier     `json:"rarity_tier"`
	Minted         bool           `json:"minted"`
	MintedMetadata *TokenMetadata `json:"minted_metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	MintedAt       *time.Time     `json:"minted_at,omitempty"`
}

// Attribute is a single trait of the token metadata
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// TokenMetadata is the document published to the content-addressable store
type TokenMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Validate checks the fields required by the pinning service
func (m *TokenMetadata) Validate() error {
	if m == nil || m.Name == "" || m.Image == "" {
		return ErrMissingNameOrImage
	}
	return nil
}

// MetadataDocument is a free-form metadata document as uploaded by clients
type MetadataDocument map[string]any

// Validate checks that name and image are non-empty strings, other fields are left as sent
func (d MetadataDocument) Validate() error {
	if d.Name() == "" {
		return ErrMissingNameOrImage
	}
	if image, _ := d["image"].(string); image == "" {
		return ErrMissingNameOrImage
	}
	return nil
}

// Name returns the document name, empty when absent or not a string
func (d MetadataDocument) Name() string {
	name, _ := d["name"].(string)
	return name
}

// ContentReference is the immutable address returned for a published document
type ContentReference struct {
	URI        string `json:"ipfs"`
	GatewayURL string `json:"gateway"`
	Hash       string `json:"hash"`
}

// TxResult is the outcome of a successful chain submission
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
}

// NormalizeAddress normalizes an EVM address to its checksummed form
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).String()
}

var identityPattern = regexp.MustCompile(`^[0-9]+$`)

// validIdentity checks that an identity is a non-empty decimal number
func validIdentity(id string) bool {
	return identityPattern.MatchString(id)
}
