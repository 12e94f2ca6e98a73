package pinata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
)

const (
	// API_ENDPOINT is the base URL for the Pinata API
	API_ENDPOINT = "https://api.pinata.cloud"

	// PIN_JSON_PATH pins a JSON document to IPFS
	PIN_JSON_PATH = "/pinning/pinJSONToIPFS"
)

// Credentials authenticate against Pinata, either with a JWT or with an API key pair
type Credentials struct {
	JWT          string
	APIKey       string
	SecretAPIKey string
}

// headers returns the auth headers, JWT taking precedence over the key pair
func (c Credentials) headers() (map[string]string, error) {
	switch {
	case c.JWT != "":
		return map[string]string{"Authorization": "Bearer " + c.JWT}, nil
	case c.APIKey != "" && c.SecretAPIKey != "":
		return map[string]string{
			"pinata_api_key":        c.APIKey,
			"pinata_secret_api_key": c.SecretAPIKey,
		}, nil
	default:
		return nil, domain.ErrMissingCredentials
	}
}

// PinResponse is the pinJSONToIPFS response body
type PinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinRequest struct {
	PinataMetadata pinMetadata     `json:"pinataMetadata"`
	PinataContent  json.RawMessage `json:"pinataContent"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

// NonJSONResponseError carries the raw body of a response that could not be decoded
type NonJSONResponseError struct {
	StatusCode int
	Body       string
}

func (e *NonJSONResponseError) Error() string {
	return fmt.Sprintf("%s (status %d)", domain.ErrNonJSONResponse, e.StatusCode)
}

func (e *NonJSONResponseError) Unwrap() error {
	return domain.ErrNonJSONResponse
}

// Client defines the interface for Pinata client operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../../mocks/pinata_client.go -package=mocks -mock_names=Client=MockPinataClient
type Client interface {
	// PinJSON pins a JSON document under the given name and returns its content hash
	PinJSON(ctx context.Context, name string, content []byte) (string, error)
}

// PinataClient implements Pinata client
type PinataClient struct {
	httpClient  adapter.HTTPClient
	json        adapter.JSON
	apiBaseURL  string
	credentials Credentials
}

// NewClient creates a new Pinata client. It fails fast when no credentials are configured.
func NewClient(httpClient adapter.HTTPClient, jsonAdapter adapter.JSON, apiBaseURL string, credentials Credentials) (Client, error) {
	if _, err := credentials.headers(); err != nil {
		return nil, domain.NewError(domain.KindConfiguration, "pinata", err)
	}
	if apiBaseURL == "" {
		apiBaseURL = API_ENDPOINT
	}

	return &PinataClient{
		httpClient:  httpClient,
		json:        jsonAdapter,
		apiBaseURL:  strings.TrimSuffix(apiBaseURL, "/"),
		credentials: credentials,
	}, nil
}

// PinJSON pins a JSON document to IPFS
func (c *PinataClient) PinJSON(ctx context.Context, name string, content []byte) (string, error) {
	headers, err := c.credentials.headers()
	if err != nil {
		return "", domain.NewError(domain.KindConfiguration, "pinata", err)
	}
	headers["Content-Type"] = "application/json"

	body, err := c.json.Marshal(pinRequest{
		PinataMetadata: pinMetadata{Name: name},
		PinataContent:  json.RawMessage(content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal pin request: %w", err)
	}

	resp, err := c.httpClient.PostBytes(ctx, c.apiBaseURL+PIN_JSON_PATH, headers, body)
	if err != nil {
		return "", domain.NewError(domain.KindTransport, "pinata", err)
	}

	// The body is read as text first so a non-JSON reply can be reported verbatim
	if !c.json.Valid(resp.Body) {
		logger.WarnCtx(ctx, "Pinata returned a non-JSON response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(resp.Body)))
		return "", domain.NewError(domain.KindTransport, "pinata", &NonJSONResponseError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		})
	}

	var pinned PinResponse
	if err := c.json.Unmarshal(resp.Body, &pinned); err != nil {
		return "", domain.NewError(domain.KindTransport, "pinata", &NonJSONResponseError{
			StatusCode: resp.StatusCode,
			Body:       string(resp.Body),
		})
	}

	if !resp.OK() || pinned.IpfsHash == "" {
		logger.WarnCtx(ctx, "Pinata upload failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(resp.Body)))
		return "", domain.NewError(domain.KindTransport, "pinata",
			fmt.Errorf("%w (status %d): %s", domain.ErrUploadFailed, resp.StatusCode, string(resp.Body)))
	}

	return pinned.IpfsHash, nil
}
