package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"strategy-backend/internal/cache"
	"strategy-backend/internal/domain"
	"strategy-backend/internal/infrastructure/audit"
	"strategy-backend/internal/ratelimit"
)

const (
	// Two configuration fetches in flight, refilled over this interval. The
	// remote store throttles aggressively; pacing the bulk load trades
	// latency for never tripping the limiter.
	defaultFetchConcurrency = 2
	defaultFetchInterval    = 500 * time.Millisecond

	mutationRetries = 3
)

// StrategyItem is one strategy prepared for display: normalized
// configuration plus the derived fields the UI renders.
type StrategyItem struct {
	Overview        *domain.StrategyOverview      `json:"overview"`
	Configuration   *domain.StrategyConfiguration `json:"configuration"`
	ActiveRuleCount int                           `json:"activeRuleCount"`
	LastModified    string                        `json:"lastModified"`
}

// StrategyView is the reconciled picture of a user's strategies: the single
// active one, everything else, and the plan-limitation evaluation. Derived
// data is computed only after the full set has loaded.
type StrategyView struct {
	Active       *StrategyItem            `json:"active,omitempty"`
	Others       []*StrategyItem          `json:"others"`
	Count        int                      `json:"count"` // non-deleted strategies, loaded or not
	AccountCount int                      `json:"accountCount"`
	CanCreate    *domain.CreationDecision `json:"canCreate,omitempty"`
	Limitations  *domain.Limitations      `json:"limitations,omitempty"`
	// RateLimited is set when at least one strategy was omitted from this
	// cycle because the store throttled its configuration fetch. Omitted
	// strategies are picked up by the next full reload.
	RateLimited bool `json:"rateLimited,omitempty"`
	// Degraded is set when the overview load itself failed and an empty
	// state is shown instead of an error page.
	Degraded bool `json:"degraded,omitempty"`
}

// MutationResult is the outcome of create/copy. When the plan guard or a
// precondition denied the request, Decision carries the modal payload and no
// strategy was written.
type MutationResult struct {
	Decision   *domain.CreationDecision `json:"decision,omitempty"`
	FirstUse   bool                     `json:"firstUse,omitempty"`
	StrategyID string                   `json:"strategyId,omitempty"`
	View       *StrategyView            `json:"view,omitempty"`
}

// StrategyService reconciles the remote strategy store with the session
// cache and serializes every mutating operation through the same
// invalidate-and-reload path, so overlapping user actions cannot interleave
// their reload cycles.
type StrategyService struct {
	store    domain.StrategyStore
	accounts domain.AccountRepository
	cache    *cache.StrategyCache
	guard    *PlanGuard
	pacer    *ratelimit.Pacer
	audit    *audit.Publisher
	notifier *NotificationService

	fetchConcurrency int

	mu  sync.Mutex // serializes mutations (single flight)
	now func() time.Time
}

func NewStrategyService(
	store domain.StrategyStore,
	accounts domain.AccountRepository,
	strategyCache *cache.StrategyCache,
	guard *PlanGuard,
	audit *audit.Publisher,
	notifier *NotificationService,
) *StrategyService {
	return &StrategyService{
		store:            store,
		accounts:         accounts,
		cache:            strategyCache,
		guard:            guard,
		pacer:            ratelimit.NewPacer(defaultFetchConcurrency, defaultFetchInterval),
		audit:            audit,
		notifier:         notifier,
		fetchConcurrency: defaultFetchConcurrency,
		now:              time.Now,
	}
}

// SetClock overrides the clock, for tests.
func (s *StrategyService) SetClock(now func() time.Time) {
	s.now = now
}

// SetPacer swaps the fetch pacer, for tests and tuning.
func (s *StrategyService) SetPacer(p *ratelimit.Pacer) {
	s.pacer = p
}

// LoadView returns the reconciled strategy view. A warm cache is served
// as-is unless force is set; force clears both memory and mirror first so no
// stale entry survives an externally driven reload.
func (s *StrategyService) LoadView(ctx context.Context, userID string, force bool) (*StrategyView, error) {
	if force {
		s.cache.Clear(ctx, userID)
	} else if s.cache.Size(userID) > 0 {
		return s.viewFromCache(ctx, userID)
	}
	return s.loadFresh(ctx, userID)
}

// loadFresh bulk-loads every overview, fetches configurations with bounded
// concurrency, populates the cache and builds the view. Individual
// throttled fetches are omitted from this cycle rather than aborting the
// load.
func (s *StrategyService) loadFresh(ctx context.Context, userID string) (*StrategyView, error) {
	accountCount := s.accountCount(ctx, userID)

	overviews, err := s.store.ListOverviews(ctx, userID)
	if err != nil {
		// Degrade to an empty, still-usable state.
		log.Printf("strategy load: listing overviews for user %s: %v", userID, err)
		view := &StrategyView{Others: []*StrategyItem{}, AccountCount: accountCount, Degraded: true}
		view.RateLimited = errors.Is(err, domain.ErrRateLimited)
		s.evaluateLimits(ctx, view, userID, 0, accountCount)
		return view, nil
	}

	live := make([]*domain.StrategyOverview, 0, len(overviews))
	for _, o := range overviews {
		if !o.Deleted {
			live = append(live, o)
		}
	}

	var (
		itemsMu     sync.Mutex
		items       []*StrategyItem
		rateLimited bool
	)

	p := pool.New().WithMaxGoroutines(s.fetchConcurrency)
	for _, overview := range live {
		overview := overview
		p.Go(func() {
			if err := s.pacer.Wait(ctx); err != nil {
				return
			}
			config, err := s.store.GetConfiguration(ctx, overview.ConfigurationID)
			if err != nil {
				if errors.Is(err, domain.ErrRateLimited) {
					// Omit this strategy; the next full reload retries it.
					log.Printf("strategy load: rate limited fetching configuration for %s, skipping", overview.ID)
					itemsMu.Lock()
					rateLimited = true
					itemsMu.Unlock()
				} else {
					log.Printf("strategy load: fetching configuration for %s: %v", overview.ID, err)
				}
				return
			}

			s.cache.Set(ctx, userID, overview.ID, overview, config)
			item := s.buildItem(overview, config)
			itemsMu.Lock()
			items = append(items, item)
			itemsMu.Unlock()
		})
	}
	p.Wait()

	view := s.assembleView(items, len(live), accountCount)
	view.RateLimited = rateLimited
	s.evaluateLimits(ctx, view, userID, len(live), accountCount)
	return view, nil
}

// viewFromCache serves the warm path after navigation events.
func (s *StrategyService) viewFromCache(ctx context.Context, userID string) (*StrategyView, error) {
	accountCount := s.accountCount(ctx, userID)

	entries := s.cache.Entries(userID)
	items := make([]*StrategyItem, 0, len(entries))
	for _, e := range entries {
		if e.Overview == nil || e.Overview.Deleted {
			continue
		}
		items = append(items, s.buildItem(e.Overview, e.Configuration))
	}

	view := s.assembleView(items, len(items), accountCount)
	s.evaluateLimits(ctx, view, userID, len(items), accountCount)
	return view, nil
}

// GetStrategy fetches one strategy for the editor. The cache is consulted
// first; a miss falls through to the store. A missing id is fatal to the
// action: the caller aborts instead of opening a blank editor.
func (s *StrategyService) GetStrategy(ctx context.Context, userID, id string) (*StrategyItem, error) {
	if entry, ok := s.cache.Get(ctx, userID, id); ok && entry.Overview != nil && !entry.Overview.Deleted {
		if entry.Overview.UserID != userID {
			return nil, domain.ErrStrategyNotFound
		}
		return s.buildItem(entry.Overview, entry.Configuration), nil
	}

	overview, err := s.store.GetOverview(ctx, id)
	if err != nil {
		return nil, err
	}
	if overview.UserID != userID || overview.Deleted {
		return nil, domain.ErrStrategyNotFound
	}
	config, err := s.store.GetConfiguration(ctx, overview.ConfigurationID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, userID, overview.ID, overview, config)
	return s.buildItem(overview, config), nil
}

// Create writes a new strategy. The first-ever strategy for a user is
// created active and flags the first-use guidance flow; every later one is
// created inactive with its audit cycle closed at creation.
func (s *StrategyService) Create(ctx context.Context, userID, name string, config *domain.StrategyConfiguration) (*MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountCount(ctx, userID) == 0 {
		return &MutationResult{Decision: &domain.CreationDecision{
			Reason: "Link a trading account before creating a strategy.",
		}}, nil
	}

	overviews, err := s.store.ListOverviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	names, liveCount := liveNames(overviews)

	decision, err := s.guard.CanCreateStrategy(ctx, userID, liveCount)
	if err != nil {
		return nil, err
	}
	if !decision.CanCreate {
		return &MutationResult{Decision: decision}, nil
	}

	now := s.now()
	first := liveCount == 0

	overview := &domain.StrategyOverview{
		UserID:    userID,
		Name:      GenerateUniqueName(name, names),
		Status:    first,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if first {
		overview.DateActive = []time.Time{now}
	} else {
		// Created inactive: stamp the closing side of the audit cycle in
		// the same write so reporting never observes an open cycle.
		overview.DateInactive = []time.Time{now}
	}

	cfg := *config
	cfg.ID = ""
	cfg.UserID = userID
	cfg.UpdatedAt = now

	var overviewID string
	err = ratelimit.RetryTransient(ctx, mutationRetries, isPermanentStoreErr, func() error {
		var createErr error
		overviewID, _, createErr = s.store.CreateStrategy(ctx, overview, &cfg)
		return createErr
	})
	if err != nil {
		return nil, fmt.Errorf("create strategy: %w", err)
	}

	s.audit.Publish(ctx, audit.Event{UserID: userID, StrategyID: overviewID, Kind: "CREATED", OccurredAt: now})
	if first {
		s.audit.Publish(ctx, audit.Event{UserID: userID, StrategyID: overviewID, Kind: "ACTIVATED", OccurredAt: now})
	}

	view, err := s.reloadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notifyChanged(userID, "created", overview.Name)

	return &MutationResult{
		Decision:   decision,
		FirstUse:   first,
		StrategyID: overviewID,
		View:       view,
	}, nil
}

// Activate makes the target the single active strategy. The currently
// active one is deactivated first; a failure between the two writes leaves
// zero active strategies, which reloads cleanly, rather than two.
func (s *StrategyService) Activate(ctx context.Context, userID, id string) (*StrategyView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.ownedOverview(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if target.Status {
		return s.reloadLocked(ctx, userID)
	}

	overviews, err := s.store.ListOverviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}

	now := s.now()
	for _, current := range overviews {
		if !current.Status || current.Deleted || current.ID == id {
			continue
		}
		var closes *time.Time
		if n := len(current.DateActive); n > 0 {
			t := current.DateActive[n-1]
			closes = &t
		}
		current.Status = false
		current.DateInactive = append(current.DateInactive, now)
		if err := s.updateOverviewRetry(ctx, current); err != nil {
			s.cache.Clear(ctx, userID)
			return nil, fmt.Errorf("deactivate current strategy: %w", err)
		}
		s.audit.Publish(ctx, audit.Event{
			UserID: userID, StrategyID: current.ID, Kind: "DEACTIVATED",
			OccurredAt: now, ClosesActive: closes,
		})
	}

	target.Status = true
	target.DateActive = append(target.DateActive, now)
	if err := s.updateOverviewRetry(ctx, target); err != nil {
		// Zero strategies active now; the next reload re-derives that state.
		s.cache.Clear(ctx, userID)
		return nil, fmt.Errorf("activate strategy: %w", err)
	}
	s.audit.Publish(ctx, audit.Event{UserID: userID, StrategyID: id, Kind: "ACTIVATED", OccurredAt: now})

	view, err := s.reloadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notifyChanged(userID, "activated", target.Name)
	return view, nil
}

// Delete soft-deletes a strategy. The record survives for the reporting and
// audit consumers; it just stops counting and rendering.
func (s *StrategyService) Delete(ctx context.Context, userID, id string) (*StrategyView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.ownedOverview(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	target.Deleted = true
	target.DeletedAt = &now
	if target.Status {
		target.Status = false
		target.DateInactive = append(target.DateInactive, now)
	}
	if err := s.updateOverviewRetry(ctx, target); err != nil {
		s.cache.Clear(ctx, userID)
		return nil, fmt.Errorf("delete strategy: %w", err)
	}
	s.audit.Publish(ctx, audit.Event{UserID: userID, StrategyID: id, Kind: "DELETED", OccurredAt: now})

	view, err := s.reloadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notifyChanged(userID, "deleted", target.Name)
	return view, nil
}

// Copy duplicates a strategy's configuration under a collision-free name.
// The copy is always created inactive; when the source is the active
// strategy, the synthetic deactivation stamp that closes the copy's audit
// cycle is part of the creation write itself.
func (s *StrategyService) Copy(ctx context.Context, userID, id string) (*MutationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, err := s.ownedOverview(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	overviews, err := s.store.ListOverviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	names, liveCount := liveNames(overviews)

	decision, err := s.guard.CanCreateStrategy(ctx, userID, liveCount)
	if err != nil {
		return nil, err
	}
	if !decision.CanCreate {
		return &MutationResult{Decision: decision}, nil
	}

	sourceConfig, err := s.sourceConfiguration(ctx, userID, source)
	if err != nil {
		return nil, err
	}

	now := s.now()
	overview := &domain.StrategyOverview{
		UserID:    userID,
		Name:      GenerateUniqueName(source.Name, names),
		Status:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if source.Status {
		// Prevents the copy from being miscounted as a second active
		// record by downstream consumers.
		overview.DateInactive = []time.Time{now}
	}

	cfg := *sourceConfig
	cfg.ID = ""
	cfg.UserID = userID
	cfg.UpdatedAt = now

	var overviewID string
	err = ratelimit.RetryTransient(ctx, mutationRetries, isPermanentStoreErr, func() error {
		var createErr error
		overviewID, _, createErr = s.store.CreateStrategy(ctx, overview, &cfg)
		return createErr
	})
	if err != nil {
		return nil, fmt.Errorf("copy strategy: %w", err)
	}
	s.audit.Publish(ctx, audit.Event{UserID: userID, StrategyID: overviewID, Kind: "CREATED", OccurredAt: now})

	view, err := s.reloadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notifyChanged(userID, "copied", overview.Name)

	return &MutationResult{Decision: decision, StrategyID: overviewID, View: view}, nil
}

// Rename changes the display name, disambiguating collisions the same way
// create and copy do.
func (s *StrategyService) Rename(ctx context.Context, userID, id, newName string) (*StrategyView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.ownedOverview(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	overviews, err := s.store.ListOverviews(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	names := make([]string, 0, len(overviews))
	for _, o := range overviews {
		if !o.Deleted && o.ID != id {
			names = append(names, o.Name)
		}
	}

	target.Name = GenerateUniqueName(newName, names)
	target.UpdatedAt = s.now()
	if err := s.updateOverviewRetry(ctx, target); err != nil {
		s.cache.Clear(ctx, userID)
		return nil, fmt.Errorf("rename strategy: %w", err)
	}

	view, err := s.reloadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.notifyChanged(userID, "renamed", target.Name)
	return view, nil
}

// UpdateConfiguration saves the editor's rule blocks for one strategy.
func (s *StrategyService) UpdateConfiguration(ctx context.Context, userID string, config *domain.StrategyConfiguration) (*StrategyView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetConfiguration(ctx, config.ID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, domain.ErrStrategyNotFound
	}

	cfg := *config
	cfg.UserID = userID
	cfg.UpdatedAt = s.now()
	err = ratelimit.RetryTransient(ctx, mutationRetries, isPermanentStoreErr, func() error {
		return s.store.UpdateConfiguration(ctx, &cfg)
	})
	if err != nil {
		s.cache.Clear(ctx, userID)
		return nil, fmt.Errorf("update configuration: %w", err)
	}

	return s.reloadLocked(ctx, userID)
}

// --- internals ---

// reloadLocked is the invalidate-and-reload every mutation funnels through.
// Caller holds s.mu.
func (s *StrategyService) reloadLocked(ctx context.Context, userID string) (*StrategyView, error) {
	s.cache.Clear(ctx, userID)
	return s.loadFresh(ctx, userID)
}

func (s *StrategyService) ownedOverview(ctx context.Context, userID, id string) (*domain.StrategyOverview, error) {
	overview, err := s.store.GetOverview(ctx, id)
	if err != nil {
		return nil, err
	}
	if overview.UserID != userID || overview.Deleted {
		return nil, domain.ErrStrategyNotFound
	}
	return overview, nil
}

func (s *StrategyService) sourceConfiguration(ctx context.Context, userID string, source *domain.StrategyOverview) (*domain.StrategyConfiguration, error) {
	if entry, ok := s.cache.Get(ctx, userID, source.ID); ok && entry.Configuration != nil {
		clone := *entry.Configuration
		return &clone, nil
	}
	return s.store.GetConfiguration(ctx, source.ConfigurationID)
}

func (s *StrategyService) updateOverviewRetry(ctx context.Context, overview *domain.StrategyOverview) error {
	overview.UpdatedAt = s.now()
	return ratelimit.RetryTransient(ctx, mutationRetries, isPermanentStoreErr, func() error {
		return s.store.UpdateOverview(ctx, overview)
	})
}

func (s *StrategyService) accountCount(ctx context.Context, userID string) int {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("strategy load: listing accounts for user %s: %v", userID, err)
		return 0
	}
	return len(accounts)
}

func (s *StrategyService) buildItem(overview *domain.StrategyOverview, config *domain.StrategyConfiguration) *StrategyItem {
	ov := *overview
	ov.RecomputeDaysActive(s.now())

	item := &StrategyItem{
		Overview:     &ov,
		LastModified: ov.UpdatedAt.Format("2 Jan 2006 15:04"),
	}
	if config != nil {
		cfg := *config
		cfg.NormalizeInactive()
		item.Configuration = &cfg
		item.ActiveRuleCount = cfg.ActiveRuleCount()
	}
	return item
}

func (s *StrategyService) assembleView(items []*StrategyItem, liveCount, accountCount int) *StrategyView {
	view := &StrategyView{
		Others:       make([]*StrategyItem, 0, len(items)),
		Count:        liveCount,
		AccountCount: accountCount,
	}
	for _, item := range items {
		if item.Overview.Status && view.Active == nil {
			view.Active = item
			continue
		}
		view.Others = append(view.Others, item)
	}
	sortItemsByCreation(view.Others)
	return view
}

func (s *StrategyService) evaluateLimits(ctx context.Context, view *StrategyView, userID string, liveCount, accountCount int) {
	lim, err := s.guard.CheckUserLimitations(ctx, userID, liveCount)
	if err != nil {
		log.Printf("strategy load: evaluating limitations for user %s: %v", userID, err)
		return
	}
	view.Limitations = lim

	if accountCount == 0 {
		view.CanCreate = &domain.CreationDecision{
			Reason: "Link a trading account before creating a strategy.",
		}
		return
	}
	decision, err := s.guard.CanCreateStrategy(ctx, userID, liveCount)
	if err != nil {
		log.Printf("strategy load: evaluating creation for user %s: %v", userID, err)
		return
	}
	view.CanCreate = decision
}

func (s *StrategyService) notifyChanged(userID, action, name string) {
	if s.notifier == nil {
		return
	}
	s.notifier.StrategiesChanged(userID, action, name)
}

func liveNames(overviews []*domain.StrategyOverview) ([]string, int) {
	names := make([]string, 0, len(overviews))
	for _, o := range overviews {
		if !o.Deleted {
			names = append(names, o.Name)
		}
	}
	return names, len(names)
}

func sortItemsByCreation(items []*StrategyItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Overview.CreatedAt.Before(items[j].Overview.CreatedAt)
	})
}

func isPermanentStoreErr(err error) bool {
	return errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrStrategyNotFound)
}
