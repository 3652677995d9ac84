package firestore

import (
	"context"
	"fmt"

	cloudfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"strategy-backend/internal/domain"
)

const (
	overviewCollection = "strategy_overviews"
	configCollection   = "strategy_configurations"
)

// StrategyStore is the Firestore-backed remote strategy store. Throttling
// responses surface as domain.ErrRateLimited so the bulk loader can omit the
// affected strategy instead of aborting the load.
type StrategyStore struct {
	client *cloudfirestore.Client
}

func NewStrategyStore(client *cloudfirestore.Client) *StrategyStore {
	return &StrategyStore{client: client}
}

// mapErr translates Firestore/gRPC failures into the domain taxonomy.
func mapErr(err error) error {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
	case codes.NotFound:
		return domain.ErrStrategyNotFound
	}
	return err
}

func (s *StrategyStore) ListOverviews(ctx context.Context, userID string) ([]*domain.StrategyOverview, error) {
	iter := s.client.Collection(overviewCollection).
		Where("userId", "==", userID).
		OrderBy("created_at", cloudfirestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	overviews := make([]*domain.StrategyOverview, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}

		var overview domain.StrategyOverview
		if err := snap.DataTo(&overview); err != nil {
			return nil, fmt.Errorf("decode overview %s: %w", snap.Ref.ID, err)
		}
		overview.ID = snap.Ref.ID
		overviews = append(overviews, &overview)
	}
	return overviews, nil
}

func (s *StrategyStore) GetOverview(ctx context.Context, id string) (*domain.StrategyOverview, error) {
	snap, err := s.client.Collection(overviewCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	var overview domain.StrategyOverview
	if err := snap.DataTo(&overview); err != nil {
		return nil, fmt.Errorf("decode overview %s: %w", id, err)
	}
	overview.ID = snap.Ref.ID
	return &overview, nil
}

func (s *StrategyStore) GetConfiguration(ctx context.Context, id string) (*domain.StrategyConfiguration, error) {
	snap, err := s.client.Collection(configCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	var config domain.StrategyConfiguration
	if err := snap.DataTo(&config); err != nil {
		return nil, fmt.Errorf("decode configuration %s: %w", id, err)
	}
	config.ID = snap.Ref.ID
	return &config, nil
}

// CreateStrategy writes the overview and its configuration in one
// transaction, so a strategy can never exist half-created and audit stamps
// written at creation time land atomically with the record itself.
func (s *StrategyStore) CreateStrategy(ctx context.Context, overview *domain.StrategyOverview, config *domain.StrategyConfiguration) (string, string, error) {
	overviewRef := s.client.Collection(overviewCollection).NewDoc()
	configRef := s.client.Collection(configCollection).NewDoc()
	overview.ConfigurationID = configRef.ID

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *cloudfirestore.Transaction) error {
		if err := tx.Create(overviewRef, overview); err != nil {
			return err
		}
		return tx.Create(configRef, config)
	})
	if err != nil {
		return "", "", mapErr(err)
	}

	overview.ID = overviewRef.ID
	config.ID = configRef.ID
	return overviewRef.ID, configRef.ID, nil
}

func (s *StrategyStore) UpdateOverview(ctx context.Context, overview *domain.StrategyOverview) error {
	if overview.ID == "" {
		return domain.ErrStrategyNotFound
	}
	_, err := s.client.Collection(overviewCollection).Doc(overview.ID).Set(ctx, overview)
	return mapErr(err)
}

func (s *StrategyStore) UpdateConfiguration(ctx context.Context, config *domain.StrategyConfiguration) error {
	if config.ID == "" {
		return domain.ErrStrategyNotFound
	}
	_, err := s.client.Collection(configCollection).Doc(config.ID).Set(ctx, config)
	return mapErr(err)
}

var _ domain.StrategyStore = (*StrategyStore)(nil)
