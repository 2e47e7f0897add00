package history

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/account"
	"github.com/mohdghattas/mt4-online-server/pkg/response"
)

const (
	DefaultLimit = 500
	MaxLimit     = 5000
)

// Service captures and serves account history
type Service struct {
	db  *Database
	loc *time.Location
	now func() time.Time
}

// NewService creates a history service. Snapshot times are stored in UTC and
// presented in loc.
func NewService(gormDB *gorm.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:  NewDatabase(gormDB),
		loc: loc,
		now: time.Now,
	}
}

// Capture copies the current state of one account, or of all accounts when
// accountNumber is 0, into history. Every row of one run shares a batch id.
func (s *Service) Capture(ctx context.Context, accountNumber int64) (*CaptureResult, error) {
	batchID := uuid.New().String()
	at := s.now().UTC()

	n, err := s.db.CopyAccounts(ctx, accountNumber, batchID, at)
	if err != nil {
		log.Error().Err(err).Str("service", "history").Str("batch_id", batchID).Msg("history capture failed")
		return nil, err
	}
	if n == 0 && accountNumber != 0 {
		return nil, account.ErrNotFound
	}

	log.Info().
		Str("service", "history").
		Str("batch_id", batchID).
		Int("captured", n).
		Time("snapshot_time", at.In(s.loc)).
		Msg("history captured")

	return &CaptureResult{Captured: n, BatchID: batchID}, nil
}

// List returns history entries newest first. The limit defaults to
// DefaultLimit and is capped at MaxLimit.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if !f.Since.IsZero() {
		f.Since = f.Since.UTC()
	}

	entries, err := s.db.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	for i := range entries {
		entries[i].SnapshotTime = entries[i].SnapshotTime.In(s.loc)
	}
	return entries, nil
}

// GinHandlers contains HTTP handlers for history endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type captureRequest struct {
	AccountNumber int64 `json:"account_number"`
}

// ListHandler handles GET /api/history
// Query parameters: account_number, since (RFC3339), limit
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var f Filter

		if raw := c.Query("account_number"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				response.BadRequest(c, "account_number must be a positive integer")
				return
			}
			f.AccountNumber = n
		}
		if raw := c.Query("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(c, "since must be an RFC3339 timestamp")
				return
			}
			f.Since = since
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				response.BadRequest(c, "limit must be a positive integer")
				return
			}
			f.Limit = n
		}

		entries, err := h.service.List(c.Request.Context(), f)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"history": entries})
	}
}

// CaptureHandler handles POST /api/history. An empty body captures every
// account.
func (h *GinHandlers) CaptureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req captureRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, "Invalid request body")
			return
		}
		if req.AccountNumber < 0 {
			response.BadRequest(c, "account_number must be a positive integer")
			return
		}

		result, err := h.service.Capture(c.Request.Context(), req.AccountNumber)
		if errors.Is(err, account.ErrNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, result)
	}
}
