package query

import (
	"github.com/blackdoglabs/pulse/internal/core/storage"
	"github.com/gin-gonic/gin"
)

const (
	// DefaultLimit applies when the client sends no limit parameter.
	DefaultLimit = 50
	// MaxLimit bounds a single page.
	MaxLimit = 100
)

// Service owns the read path: filtered, cursor-paginated event scans.
type Service struct {
	store storage.EventStore
}

func NewService(store storage.EventStore) *Service {
	if store == nil {
		panic("query: store must not be nil")
	}
	return &Service{store: store}
}

// RegisterRoutes registers the query service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/api/v1/events", s.QueryHandler)
}
