package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"strategy-backend/internal/domain"
)

// InMemoryStrategyStore implements the remote strategy store in process
// memory. It backs local development when Firebase credentials are absent
// and the service tests.
type InMemoryStrategyStore struct {
	mu        sync.RWMutex
	overviews map[string]*domain.StrategyOverview
	configs   map[string]*domain.StrategyConfiguration
}

func NewInMemoryStrategyStore() *InMemoryStrategyStore {
	return &InMemoryStrategyStore{
		overviews: make(map[string]*domain.StrategyOverview),
		configs:   make(map[string]*domain.StrategyConfiguration),
	}
}

func (s *InMemoryStrategyStore) ListOverviews(ctx context.Context, userID string) ([]*domain.StrategyOverview, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	overviews := make([]*domain.StrategyOverview, 0)
	for _, o := range s.overviews {
		if o.UserID == userID {
			c := cloneOverview(o)
			overviews = append(overviews, c)
		}
	}
	sort.Slice(overviews, func(i, j int) bool {
		return overviews[i].CreatedAt.Before(overviews[j].CreatedAt)
	})
	return overviews, nil
}

func (s *InMemoryStrategyStore) GetOverview(ctx context.Context, id string) (*domain.StrategyOverview, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overviews[id]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	return cloneOverview(o), nil
}

func (s *InMemoryStrategyStore) GetConfiguration(ctx context.Context, id string) (*domain.StrategyConfiguration, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configs[id]
	if !ok {
		return nil, domain.ErrStrategyNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *InMemoryStrategyStore) CreateStrategy(ctx context.Context, overview *domain.StrategyOverview, config *domain.StrategyConfiguration) (string, string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	overviewID := uuid.NewString()
	configID := uuid.NewString()
	now := time.Now()

	ov := cloneOverview(overview)
	ov.ID = overviewID
	ov.ConfigurationID = configID
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = now
	}
	ov.UpdatedAt = now

	cfg := *config
	cfg.ID = configID
	cfg.UpdatedAt = now

	s.overviews[overviewID] = ov
	s.configs[configID] = &cfg

	overview.ID = overviewID
	overview.ConfigurationID = configID
	config.ID = configID
	return overviewID, configID, nil
}

func (s *InMemoryStrategyStore) UpdateOverview(ctx context.Context, overview *domain.StrategyOverview) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overviews[overview.ID]; !ok {
		return domain.ErrStrategyNotFound
	}
	ov := cloneOverview(overview)
	ov.UpdatedAt = time.Now()
	s.overviews[overview.ID] = ov
	return nil
}

func (s *InMemoryStrategyStore) UpdateConfiguration(ctx context.Context, config *domain.StrategyConfiguration) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[config.ID]; !ok {
		return domain.ErrStrategyNotFound
	}
	cfg := *config
	cfg.UpdatedAt = time.Now()
	s.configs[config.ID] = &cfg
	return nil
}

func cloneOverview(o *domain.StrategyOverview) *domain.StrategyOverview {
	c := *o
	c.DateActive = append([]time.Time(nil), o.DateActive...)
	c.DateInactive = append([]time.Time(nil), o.DateInactive...)
	if o.DeletedAt != nil {
		t := *o.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

var _ domain.StrategyStore = (*InMemoryStrategyStore)(nil)
