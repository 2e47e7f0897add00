package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/internal/alert"
	"github.com/mohdghattas/mt4-online-server/internal/config"
	"github.com/mohdghattas/mt4-online-server/internal/framing"
	"github.com/mohdghattas/mt4-online-server/internal/stream"
	"github.com/mohdghattas/mt4-online-server/pkg/response"
)

// Publisher delivers stream events to dashboard clients
type Publisher interface {
	Publish(ctx context.Context, ev stream.Event) error
}

// sortColumns maps accepted sort keys to columns
var sortColumns = map[string]string{
	"account_number":      "account_number",
	"broker":              "broker",
	"balance":             "balance",
	"equity":              "equity",
	"margin_percent":      "margin_percent",
	"profit_loss":         "profit_loss",
	"realized_pl_daily":   "realized_pl_daily",
	"realized_pl_weekly":  "realized_pl_weekly",
	"realized_pl_monthly": "realized_pl_monthly",
	"realized_pl_yearly":  "realized_pl_yearly",
	"realized_pl_alltime": "realized_pl_alltime",
	"open_trades":         "open_trades",
	"updated_at":          "updated_at",
}

// windowColumns maps analytics windows to realized P/L columns
var windowColumns = map[string]string{
	"daily":   "realized_pl_daily",
	"weekly":  "realized_pl_weekly",
	"monthly": "realized_pl_monthly",
	"yearly":  "realized_pl_yearly",
	"alltime": "realized_pl_alltime",
}

var marginBuckets = []string{"idle", "critical", "warning", "healthy"}

const (
	defaultTopAccounts = 5
	maxTopAccounts     = 100
)

// Rejection explains why one object of a request body was not stored
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// IngestResult reports how one request body was handled
type IngestResult struct {
	Stored   []Snapshot
	Rejected []Rejection
}

// Service handles account snapshot ingestion and queries
type Service struct {
	db        *Database
	publisher Publisher
	alerts    *alert.Evaluator
	analytics config.AnalyticsConfig
}

// NewService creates a new account service. publisher and alerts may be nil.
func NewService(gormDB *gorm.DB, publisher Publisher, alerts *alert.Evaluator, analytics config.AnalyticsConfig) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		publisher: publisher,
		alerts:    alerts,
		analytics: analytics,
	}
}

// Ingest recovers every JSON object in body, stores the valid ones and skips
// the rest. Valid snapshots are committed together; a database failure
// stores none of them.
func (s *Service) Ingest(ctx context.Context, body []byte) (*IngestResult, error) {
	logger := log.With().Str("service", "account").Logger()

	frames := framing.Split(framing.Normalize(body))
	if frames.Discarded > 0 {
		logger.Debug().Int("bytes", frames.Discarded).Msg("ignored bytes outside JSON objects")
	}

	result := &IngestResult{}
	for i, span := range frames.Objects {
		snap, err := decodeSnapshot(span)
		if err != nil {
			logger.Warn().Err(err).Int("object", i).Msg("skipping account snapshot")
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		result.Stored = append(result.Stored, *snap)
	}

	if frames.Trailing != "" {
		logger.Warn().Int("length", len(frames.Trailing)).Msg("skipping incomplete trailing object")
		result.Rejected = append(result.Rejected, Rejection{
			Index:  len(frames.Objects),
			Reason: "incomplete JSON object at end of body",
		})
	}

	if len(frames.Objects) == 0 {
		return result, ErrNoObjects
	}
	if len(result.Stored) == 0 {
		return result, fmt.Errorf("%w: %s", ErrNothingStored, result.Rejected[0].Reason)
	}

	if err := s.db.UpsertSnapshots(ctx, result.Stored); err != nil {
		logger.Error().Err(err).Int("snapshots", len(result.Stored)).Msg("failed to store account snapshots")
		return result, fmt.Errorf("failed to store snapshots: %w", err)
	}

	for _, snap := range result.Stored {
		logger.Info().
			Int64("account_number", snap.AccountNumber).
			Str("broker", snap.Broker).
			Str("equity", snap.Equity.StringFixed(2)).
			Msg("account snapshot stored")
		s.notify(ctx, snap)
	}

	return result, nil
}

// notify publishes the update and any alerts it triggers. Failures are
// logged; the snapshot is already stored.
func (s *Service) notify(ctx context.Context, snap Snapshot) {
	logger := log.With().Str("service", "account").Int64("account_number", snap.AccountNumber).Logger()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, stream.NewEvent(stream.EventAccountUpdate, snap)); err != nil {
			logger.Warn().Err(err).Msg("failed to publish account update")
		}
	}

	for _, a := range s.alerts.Evaluate(snap.reading()) {
		logger.Warn().Str("rule", a.Rule).Str("alert_id", a.ID).Msg(a.Message)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.Publish(ctx, stream.NewEvent(stream.EventAlert, a)); err != nil {
			logger.Warn().Err(err).Msg("failed to publish alert")
		}
	}
}

func (s Snapshot) reading() alert.Reading {
	return alert.Reading{
		AccountNumber: s.AccountNumber,
		Broker:        s.Broker,
		Equity:        s.Equity,
		MarginUsed:    s.MarginUsed,
		MarginPercent: s.MarginPercent,
		ProfitLoss:    s.ProfitLoss,
		Autotrading:   s.Autotrading,
	}
}

// List returns every account. sortBy must be a sortable column; order is
// "asc" or "desc" and defaults to "desc" when sortBy is given.
func (s *Service) List(ctx context.Context, sortBy, order string) ([]Snapshot, error) {
	column := "account_number"
	desc := false

	if sortBy != "" {
		col, ok := sortColumns[strings.ToLower(sortBy)]
		if !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidQuery, sortBy)
		}
		column = col
		desc = true
	}

	switch strings.ToLower(order) {
	case "":
	case "asc":
		desc = false
	case "desc":
		desc = true
	default:
		return nil, fmt.Errorf("%w: order must be asc or desc", ErrInvalidQuery)
	}

	snaps, err := s.db.ListSnapshots(ctx, column, desc)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}
	return snaps, nil
}

// Get returns one account by number
func (s *Service) Get(ctx context.Context, accountNumber int64) (*Snapshot, error) {
	return s.db.GetSnapshot(ctx, accountNumber)
}

// Analytics builds broker aggregates, the top accounts by realized P/L over
// window and margin-health counts.
func (s *Service) Analytics(ctx context.Context, window string, top int) (*Analytics, error) {
	if window == "" {
		window = "daily"
	}
	column, ok := windowColumns[strings.ToLower(window)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown window %q", ErrInvalidQuery, window)
	}
	if top <= 0 {
		top = defaultTopAccounts
	}
	if top > maxTopAccounts {
		top = maxTopAccounts
	}

	brokers, err := s.db.BrokerSummaries(ctx, column)
	if err != nil {
		return nil, err
	}
	topAccounts, err := s.db.TopAccounts(ctx, column, top)
	if err != nil {
		return nil, err
	}
	buckets, err := s.db.MarginHealth(ctx, s.analytics.MarginCritical, s.analytics.MarginWarning)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		counts[b.Bucket] = b.Accounts
	}
	health := make([]MarginBucket, 0, len(marginBuckets))
	for _, name := range marginBuckets {
		health = append(health, MarginBucket{Bucket: name, Accounts: counts[name]})
	}

	if brokers == nil {
		brokers = []BrokerSummary{}
	}
	if topAccounts == nil {
		topAccounts = []Snapshot{}
	}

	return &Analytics{
		Window:       strings.ToLower(window),
		Brokers:      brokers,
		TopAccounts:  topAccounts,
		MarginHealth: health,
	}, nil
}

// SweepStale deletes accounts that have not reported within maxAge and
// announces each removal.
func (s *Service) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	logger := log.With().Str("service", "account").Logger()

	removed, err := s.db.DeleteStale(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale accounts: %w", err)
	}

	for _, n := range removed {
		s.alerts.Forget(n)
		if s.publisher == nil {
			continue
		}
		ev := stream.NewEvent(stream.EventAccountRemove, map[string]int64{"account_number": n})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logger.Warn().Err(err).Int64("account_number", n).Msg("failed to publish account removal")
		}
	}

	if len(removed) > 0 {
		logger.Info().Int("removed", len(removed)).Dur("max_age", maxAge).Msg("swept stale accounts")
	}
	return len(removed), nil
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service      *Service
	maxBodyBytes int64
}

// NewGinHandlers creates account handlers. Request bodies above maxBodyBytes
// are refused.
func NewGinHandlers(service *Service, maxBodyBytes int64) *GinHandlers {
	return &GinHandlers{
		service:      service,
		maxBodyBytes: maxBodyBytes,
	}
}

// IngestHandler handles POST /api/mt4data. The body may hold one JSON object
// or several concatenated ones.
func (h *GinHandlers) IngestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reader := c.Request.Body
		if h.maxBodyBytes > 0 {
			reader = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
		}

		body, err := io.ReadAll(reader)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.TooLarge(c, "request body too large")
				return
			}
			response.BadRequest(c, "failed to read request body")
			return
		}

		result, err := h.service.Ingest(c.Request.Context(), body)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoObjects):
			response.BadRequest(c, ErrNoObjects.Error())
			return
		case errors.Is(err, ErrNothingStored):
			response.ValidationFailed(c, result.Rejected[0].Reason, result.Rejected)
			return
		default:
			response.InternalError(c, "database error")
			return
		}

		rejected := result.Rejected
		if rejected == nil {
			rejected = []Rejection{}
		}
		response.Success(c, gin.H{
			"message": "Data stored successfully",
			"stored":  len(result.Stored),
			"skipped": len(result.Rejected),
			"errors":  rejected,
		})
	}
}

// ListAccountsHandler handles GET /api/accounts
// Query parameters: sort (column), order (asc|desc)
func (h *GinHandlers) ListAccountsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snaps, err := h.service.List(c.Request.Context(), c.Query("sort"), c.Query("order"))
		if err != nil {
			if errors.Is(err, ErrInvalidQuery) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"accounts": snaps})
	}
}

// GetAccountHandler handles GET /api/accounts/:account_number
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := strconv.ParseInt(c.Param("account_number"), 10, 64)
		if err != nil || n <= 0 {
			response.BadRequest(c, "account_number must be a positive integer")
			return
		}

		snap, err := h.service.Get(c.Request.Context(), n)
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"account": snap})
	}
}

// AnalyticsHandler handles GET /api/analytics
// Query parameters: window (daily|weekly|monthly|yearly|alltime), top (N)
func (h *GinHandlers) AnalyticsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		top := 0
		if raw := c.Query("top"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				response.BadRequest(c, "top must be an integer")
				return
			}
			top = n
		}

		analytics, err := h.service.Analytics(c.Request.Context(), c.Query("window"), top)
		if err != nil {
			if errors.Is(err, ErrInvalidQuery) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, analytics)
	}
}
