package metadata

import (
	"fmt"
	"strings"

	"github.com/feral-file/ff-minter/internal/domain"
)

const (
	TRAIT_RANK_COLOR = "Rank Color"
	TRAIT_FID        = "FID"
	TRAIT_USERNAME   = "Username"

	// missingUsername is the Username trait value when no display name is known
	missingUsername = "-"
)

// Builder builds the token metadata document for an assignment
type Builder struct {
	imageBaseURL string
}

// NewBuilder creates a builder serving images from imageBaseURL
func NewBuilder(imageBaseURL string) *Builder {
	return &Builder{imageBaseURL: strings.TrimSuffix(imageBaseURL, "/")}
}

// ImageURL returns the image address of a pool index; images are numbered from 1
func (b *Builder) ImageURL(assignedIndex int) string {
	return fmt.Sprintf("%s/%d.png", b.imageBaseURL, assignedIndex+1)
}

// Build returns the metadata document for an identity and its assignment
func (b *Builder) Build(identity domain.Identity, record *domain.AssignmentRecord) domain.TokenMetadata {
	subject := identity.DisplayName
	if subject == "" {
		subject = identity.ID
	}

	username := identity.DisplayName
	if username == "" {
		username = missingUsername
	}

	return domain.TokenMetadata{
		Name:        identity.Label(),
		Description: fmt.Sprintf("NFT for Farcaster user %s", subject),
		Image:       b.ImageURL(record.AssignedIndex),
		Attributes: []domain.Attribute{
			{TraitType: TRAIT_RANK_COLOR, Value: string(record.RarityTier)},
			{TraitType: TRAIT_FID, Value: identity.ID},
			{TraitType: TRAIT_USERNAME, Value: username},
		},
	}
}
