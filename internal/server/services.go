package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/store"
)

const decisionCacheSize = 4096

type Services struct {
	Store    *access.Store
	Resolver *access.Resolver
	Notifier *access.ChangeNotifier
	Cache    *access.DecisionCache
}

func NewServices(db *sqlx.DB) (*Services, error) {
	repo, err := store.NewSqliteRepository(db)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	cache, err := access.NewDecisionCache(decisionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create decision cache: %w", err)
	}

	notifier := access.NewChangeNotifier()
	// The cache invalidates inline on the mutation path; only the websocket
	// fan-out rides the best-effort channel delivery.
	permStore := access.NewStore(repo,
		access.WithNotifier(cache),
		access.WithNotifier(notifier),
	)

	resolver := access.NewResolver(permStore, access.WithDecisionCache(cache))

	return &Services{
		Store:    permStore,
		Resolver: resolver,
		Notifier: notifier,
		Cache:    cache,
	}, nil
}

func (s *Services) Start(ctx context.Context) error {
	if err := s.Store.Start(ctx); err != nil {
		return fmt.Errorf("start access store: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	return nil
}
