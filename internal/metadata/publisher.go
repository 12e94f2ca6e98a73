package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/providers/pinata"
)

// Publisher publishes metadata documents to content-addressable storage
//
//go:generate mockgen -source=publisher.go -destination=../mocks/metadata_publisher.go -package=mocks -mock_names=Publisher=MockMetadataPublisher
type Publisher interface {
	// Publish pins the canonical form of doc and returns its immutable address
	Publish(ctx context.Context, doc domain.TokenMetadata) (*domain.ContentReference, error)

	// PublishDocument pins a free-form document, keeping every field it carries
	PublishDocument(ctx context.Context, doc domain.MetadataDocument) (*domain.ContentReference, error)
}

type publisher struct {
	pinata     pinata.Client
	json       adapter.JSON
	jcs        adapter.JCS
	gatewayURL string
}

// NewPublisher creates a publisher backed by Pinata
func NewPublisher(pinataClient pinata.Client, jsonAdapter adapter.JSON, jcsAdapter adapter.JCS, gatewayURL string) Publisher {
	if gatewayURL == "" {
		gatewayURL = domain.DEFAULT_IPFS_GATEWAY
	}

	return &publisher{
		pinata:     pinataClient,
		json:       jsonAdapter,
		jcs:        jcsAdapter,
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
	}
}

// Publish validates, canonicalizes and pins a metadata document
func (p *publisher) Publish(ctx context.Context, doc domain.TokenMetadata) (*domain.ContentReference, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return p.pin(ctx, doc.Name, doc)
}

// PublishDocument validates, canonicalizes and pins an uploaded document
func (p *publisher) PublishDocument(ctx context.Context, doc domain.MetadataDocument) (*domain.ContentReference, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return p.pin(ctx, doc.Name(), doc)
}

func (p *publisher) pin(ctx context.Context, name string, doc any) (*domain.ContentReference, error) {
	canonical, err := Canonical(p.json, p.jcs, doc)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(canonical)
	logger.DebugCtx(ctx, "Publishing metadata",
		zap.String("name", name),
		zap.String("sha256", hex.EncodeToString(digest[:])))

	hash, err := p.pinata.PinJSON(ctx, name, canonical)
	if err != nil {
		return nil, err
	}

	return &domain.ContentReference{
		URI:        domain.IPFS_SCHEME + hash,
		GatewayURL: fmt.Sprintf("%s/ipfs/%s", p.gatewayURL, hash),
		Hash:       hash,
	}, nil
}

// Canonical returns the RFC 8785 canonical JSON form of a metadata document
func Canonical(jsonAdapter adapter.JSON, jcsAdapter adapter.JCS, doc any) ([]byte, error) {
	raw, err := jsonAdapter.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	canonical, err := jcsAdapter.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize metadata: %w", err)
	}

	return canonical, nil
}
