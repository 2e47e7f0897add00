package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mohdghattas/mt4-online-server/pkg/response"
)

const maxKeyLength = 120

var (
	ErrInvalidKey   = errors.New("invalid setting key")
	ErrInvalidValue = errors.New("invalid setting value")
)

// Service stores dashboard preferences as a flat key-value map
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{db: NewDatabase(gormDB)}
}

// All returns every stored setting keyed by name
func (s *Service) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value.Data().Value
	}
	return out, nil
}

// Put upserts each entry of values. Existing keys not named in values are
// left alone.
func (s *Service) Put(ctx context.Context, values map[string]json.RawMessage) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		key := strings.TrimSpace(k)
		if key == "" || len(key) > maxKeyLength {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
		if !json.Valid(values[k]) {
			return fmt.Errorf("%w: %q", ErrInvalidValue, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]Setting, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Setting{Key: strings.TrimSpace(k), Value: datatypes.NewJSONType(Stored{Value: values[k]})})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := s.db.UpsertSettings(ctx, rows); err != nil {
		return err
	}
	log.Info().Str("service", "settings").Strs("keys", keys).Msg("settings updated")
	return nil
}

// GinHandlers contains HTTP handlers for settings endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// GetHandler handles GET /api/settings
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		values, err := h.service.All(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"settings": values})
	}
}

// PutHandler handles POST /api/settings. The body must be a JSON object.
func (h *GinHandlers) PutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var values map[string]json.RawMessage
		if err := c.ShouldBindJSON(&values); err != nil || values == nil {
			response.BadRequest(c, "settings body must be a JSON object")
			return
		}

		if err := h.service.Put(c.Request.Context(), values); err != nil {
			if errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrInvalidValue) {
				response.BadRequest(c, err.Error())
				return
			}
			response.Handle(c, nil, err)
			return
		}

		all, err := h.service.All(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"settings": all})
	}
}
