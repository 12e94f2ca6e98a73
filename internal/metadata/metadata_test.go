package metadata_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/mocks"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func TestBuilder_Build(t *testing.T) {
	builder := metadata.NewBuilder("https://minter.example.com/images/")
	record := &domain.AssignmentRecord{Identity: "123", AssignedIndex: 0, RarityTier: domain.RarityPurple}

	tests := []struct {
		name     string
		identity domain.Identity
		expected domain.TokenMetadata
	}{
		{
			name:     "with display name",
			identity: domain.Identity{ID: "123", DisplayName: "alice"},
			expected: domain.TokenMetadata{
				Name:        "alice #123",
				Description: "NFT for Farcaster user alice",
				Image:       "https://minter.example.com/images/1.png",
				Attributes: []domain.Attribute{
					{TraitType: "Rank Color", Value: "purple"},
					{TraitType: "FID", Value: "123"},
					{TraitType: "Username", Value: "alice"},
				},
			},
		},
		{
			name:     "without display name",
			identity: domain.Identity{ID: "123"},
			expected: domain.TokenMetadata{
				Name:        "User #123",
				Description: "NFT for Farcaster user 123",
				Image:       "https://minter.example.com/images/1.png",
				Attributes: []domain.Attribute{
					{TraitType: "Rank Color", Value: "purple"},
					{TraitType: "FID", Value: "123"},
					{TraitType: "Username", Value: "-"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, builder.Build(tt.identity, record))
		})
	}
}

func TestBuilder_ImageURL(t *testing.T) {
	builder := metadata.NewBuilder("https://cdn.example.com")
	assert.Equal(t, "https://cdn.example.com/1.png", builder.ImageURL(0))
	assert.Equal(t, "https://cdn.example.com/1500.png", builder.ImageURL(1499))
}

func TestCanonical_IsStable(t *testing.T) {
	doc := domain.TokenMetadata{
		Name:        "alice #123",
		Description: "NFT for Farcaster user alice",
		Image:       "https://minter.example.com/images/1.png",
		Attributes:  []domain.Attribute{{TraitType: "FID", Value: "123"}},
	}

	first, err := metadata.Canonical(adapter.NewJSON(), adapter.NewJCS(), doc)
	require.NoError(t, err)
	second, err := metadata.Canonical(adapter.NewJSON(), adapter.NewJCS(), doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Keys are sorted in canonical form
	assert.Equal(t,
		`{"attributes":[{"trait_type":"FID","value":"123"}],"description":"NFT for Farcaster user alice","image":"https://minter.example.com/images/1.png","name":"alice #123"}`,
		string(first))
}

func TestPublisher_Publish(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pinataClient := mocks.NewMockPinataClient(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), adapter.NewJCS(), "")

	doc := metadata.NewBuilder("https://minter.example.com/images").Build(
		domain.Identity{ID: "123", DisplayName: "alice"},
		&domain.AssignmentRecord{AssignedIndex: 0, RarityTier: domain.RarityPurple},
	)
	canonical, err := metadata.Canonical(adapter.NewJSON(), adapter.NewJCS(), doc)
	require.NoError(t, err)

	pinataClient.
		EXPECT().
		PinJSON(gomock.Any(), "alice #123", canonical).
		Return("QmHash", nil)

	ref, err := publisher.Publish(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmHash", ref.URI)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmHash", ref.GatewayURL)
	assert.Equal(t, "QmHash", ref.Hash)
}

func TestPublisher_Publish_MissingNameOrImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No pin call is expected
	pinataClient := mocks.NewMockPinataClient(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), adapter.NewJCS(), "https://gw.example.com")

	_, err := publisher.Publish(context.Background(), domain.TokenMetadata{Name: "only name"})
	assert.ErrorIs(t, err, domain.ErrMissingNameOrImage)
}

func TestPublisher_Publish_PinFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pinataClient := mocks.NewMockPinataClient(ctrl)
	jcsAdapter := mocks.NewMockJCS(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), jcsAdapter, "https://gw.example.com")

	jcsAdapter.EXPECT().Transform(gomock.Any()).Return([]byte(`{}`), nil)
	pinataClient.
		EXPECT().
		PinJSON(gomock.Any(), "n", []byte(`{}`)).
		Return("", domain.NewError(domain.KindTransport, "pinata", domain.ErrUploadFailed))

	_, err := publisher.Publish(context.Background(), domain.TokenMetadata{Name: "n", Image: "i"})
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.True(t, domain.Retryable(err))
}

func TestPublisher_Publish_CanonicalizeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pinataClient := mocks.NewMockPinataClient(ctrl)
	jcsAdapter := mocks.NewMockJCS(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), jcsAdapter, "")

	jcsAdapter.EXPECT().Transform(gomock.Any()).Return(nil, errors.New("bad number"))

	_, err := publisher.Publish(context.Background(), domain.TokenMetadata{Name: "n", Image: "i"})
	assert.ErrorContains(t, err, "failed to canonicalize metadata")
}

func TestPublisher_PublishDocument_KeepsExtraFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pinataClient := mocks.NewMockPinataClient(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), adapter.NewJCS(), "")

	doc := domain.MetadataDocument{
		"name":         "alice #123",
		"image":        "https://minter.example.com/images/1.png",
		"external_url": "https://minter.example.com/",
		"attributes": []any{
			map[string]any{"trait_type": "Rank", "value": float64(42)},
			map[string]any{"trait_type": "Rare", "value": true},
		},
	}

	pinataClient.
		EXPECT().
		PinJSON(gomock.Any(), "alice #123", []byte(
			`{"attributes":[{"trait_type":"Rank","value":42},{"trait_type":"Rare","value":true}],`+
				`"external_url":"https://minter.example.com/","image":"https://minter.example.com/images/1.png","name":"alice #123"}`)).
		Return("QmHash", nil)

	ref, err := publisher.PublishDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmHash", ref.URI)
}

func TestPublisher_PublishDocument_MissingNameOrImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No pin call is expected
	pinataClient := mocks.NewMockPinataClient(ctrl)
	publisher := metadata.NewPublisher(pinataClient, adapter.NewJSON(), adapter.NewJCS(), "")

	for _, doc := range []domain.MetadataDocument{
		nil,
		{"name": "only name"},
		{"name": "n", "image": ""},
		{"name": 1, "image": "i"},
	} {
		_, err := publisher.PublishDocument(context.Background(), doc)
		assert.ErrorIs(t, err, domain.ErrMissingNameOrImage)
	}
}
