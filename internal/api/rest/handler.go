package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-minter/internal/api/middleware"
	"github.com/feral-file/ff-minter/internal/api/rest/dto"
	"github.com/feral-file/ff-minter/internal/domain"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/session"
	"github.com/feral-file/ff-minter/internal/store"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
type Handler interface {
	// CreateSession bootstraps a session from the host credentials
	// POST /api/v1/sessions
	CreateSession(c *gin.Context)

	// GetSession returns the session snapshot
	// GET /api/v1/sessions/:id
	GetSession(c *gin.Context)

	// Generate runs the generate action of a session
	// POST /api/v1/sessions/:id/generate
	Generate(c *gin.Context)

	// Mint runs one mint pass of a session
	// POST /api/v1/sessions/:id/mint
	Mint(c *gin.Context)

	// GetRecord returns the assignment record of an identity
	// GET /api/v1/records/:identity
	GetRecord(c *gin.Context)

	// UploadMetadata validates and pins a metadata document
	// POST /api/v1/metadata
	UploadMetadata(c *gin.Context)

	// GetStats returns the advisory minted count
	// GET /api/v1/stats
	GetStats(c *gin.Context)

	// Frame serves the static frame embed page
	// GET /frame
	Frame(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// Config holds the handler settings
type Config struct {
	MaxSupply           int
	MintedCountFallback int64
	Frame               FrameConfig
}

// handler implements the Handler interface
type handler struct {
	config    Config
	sessions  *session.Manager
	store     store.Store
	builder   *metadata.Builder
	publisher metadata.Publisher
}

// NewHandler creates a new REST API handler
func NewHandler(config Config, sessions *session.Manager, st store.Store, builder *metadata.Builder, publisher metadata.Publisher) Handler {
	return &handler{
		config:    config,
		sessions:  sessions,
		store:     st,
		builder:   builder,
		publisher: publisher,
	}
}

// CreateSession resolves the identity once and returns the initial snapshot
func (h *handler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	creds := middleware.CredentialsFromContext(c)
	if creds.DisplayNameHint == "" {
		creds.DisplayNameHint = req.DisplayName
	}

	s := h.sessions.Create(c.Request.Context(), creds)
	c.JSON(http.StatusCreated, s.Snapshot())
}

// GetSession returns the current snapshot, used to poll generate progress
func (h *handler) GetSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, s.Snapshot())
}

// Generate runs the generate action to its terminal outcome
func (h *handler) Generate(c *gin.Context) {
	h.runAction(c, (*session.Session).Generate)
}

// Mint runs one mint pass to its terminal outcome
func (h *handler) Mint(c *gin.Context) {
	h.runAction(c, (*session.Session).Mint)
}

// runAction detaches the action from the request so a client navigating away
// abandons the response but never the action or its lock
func (h *handler) runAction(c *gin.Context, action func(*session.Session, context.Context) error) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondDomainError(c, err, nil)
		return
	}

	err = action(s, context.WithoutCancel(c.Request.Context()))
	snap := s.Snapshot()
	if err != nil {
		respondDomainError(c, err, &snap)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// GetRecord reads the authoritative record of an identity
func (h *handler) GetRecord(c *gin.Context) {
	id := c.Param("identity")
	if _, err := (domain.Identity{ID: id}).Numeric(); err != nil {
		respondBadRequest(c, "Invalid identity", err.Error())
		return
	}

	record, err := h.store.GetRecord(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "Failed to get record", zap.String("identity", id))
		return
	}
	if record == nil {
		respondNotFound(c, "Record not found")
		return
	}

	c.JSON(http.StatusOK, dto.NewRecordResponse(record, h.builder.ImageURL(record.AssignedIndex)))
}

// UploadMetadata pins an arbitrary metadata document
func (h *handler) UploadMetadata(c *gin.Context) {
	var doc domain.MetadataDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		respondValidationError(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if err := doc.Validate(); err != nil {
		respondBadRequest(c, "Missing name or image")
		return
	}

	ref, err := h.publisher.PublishDocument(c.Request.Context(), doc)
	if err != nil {
		respondDomainError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, dto.UploadMetadataResponse{
		Success: true,
		IPFS:    ref.URI,
		Gateway: ref.GatewayURL,
		Hash:    ref.Hash,
	})
}

// GetStats returns the minted count, falling back to the placeholder on failure
func (h *handler) GetStats(c *gin.Context) {
	resp := dto.StatsResponse{MaxSupply: h.config.MaxSupply}

	count, err := h.store.CountMinted(c.Request.Context())
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "Failed to count minted records", zap.Error(err))
		resp.MintedCount = h.config.MintedCountFallback
		resp.Placeholder = true
	} else {
		resp.MintedCount = count
	}

	c.JSON(http.StatusOK, resp)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "ff-minter-api",
	})
}
