package planner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/availability"
	"habitflow/internal/repository"
)

const (
	DefaultHorizonDays = 7
	MaxHorizonDays     = 31
	MaxSuggestions     = 3

	DefaultLowSuccessThreshold = 70
)

// Service answers the read-only planning queries.
type Service struct {
	reader    repository.Reader
	cache     *InsightsCache
	settings  availability.Settings
	threshold int
	logger    *zap.Logger
	now       func() time.Time
}

// NewService builds the planner. cache may be nil.
func NewService(reader repository.Reader, cache *InsightsCache, settings availability.Settings, lowSuccessThreshold int, logger *zap.Logger) *Service {
	if lowSuccessThreshold <= 0 {
		lowSuccessThreshold = DefaultLowSuccessThreshold
	}
	return &Service{
		reader:    reader,
		cache:     cache,
		settings:  settings,
		threshold: lowSuccessThreshold,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) requireOwner(ctx context.Context, ownerID int64) error {
	exists, err := s.reader.UserExists(ctx, ownerID)
	if err != nil {
		return &availability.PersistenceError{Op: "check owner", Err: err}
	}
	if !exists {
		return &availability.NotFoundError{Resource: "user", ID: ownerID}
	}
	return nil
}

// Invalidate drops the owner's cached insights.
func (s *Service) Invalidate(ctx context.Context, ownerID int64) error {
	return s.cache.Invalidate(ctx, ownerID)
}
