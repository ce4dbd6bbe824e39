package services

import (
	"context"

	"github.com/fintrack-app/fintrack-go/internal/client/api"
	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/retryx"
)

// CategoryService manages spending categories. Collections list in
// creation-time ascending order.
type CategoryService struct {
	api     *api.Client
	events  Subscriber
	monitor *connectivity.Monitor
	policy  retryx.Policy
	log     logging.Logger
}

func NewCategoryService(c *api.Client, events Subscriber, monitor *connectivity.Monitor, log logging.Logger) *CategoryService {
	return &CategoryService{
		api:     c,
		events:  events,
		monitor: monitor,
		policy:  retryx.DefaultPolicy(),
		log:     log.With("service", "categories"),
	}
}

func (s *CategoryService) List(ctx context.Context, owner string) ([]models.Category, error) {
	return retryx.Do(ctx, s.log, s.policy, "categories.list",
		func(ctx context.Context) ([]models.Category, error) {
			return api.Select[models.Category](ctx, s.api, "categories", owner,
				api.ListParams{OrderBy: "created_at"})
		})
}

func (s *CategoryService) Create(ctx context.Context, c models.Category) (models.Category, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Category{}, err
	}
	return retryx.Do(ctx, s.log, s.policy, "categories.create",
		func(ctx context.Context) (models.Category, error) {
			return api.Insert(ctx, s.api, "categories", c)
		})
}

func (s *CategoryService) Update(ctx context.Context, id string, fields map[string]any) (models.Category, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Category{}, err
	}
	return retryx.Do(ctx, s.log, s.policy, "categories.update",
		func(ctx context.Context) (models.Category, error) {
			return api.Update[models.Category](ctx, s.api, "categories", id, fields)
		})
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := requireOnline(s.monitor); err != nil {
		return err
	}
	return retryx.Run(ctx, s.log, s.policy, "categories.delete",
		func(ctx context.Context) error {
			return api.Delete(ctx, s.api, "categories", id)
		})
}

func (s *CategoryService) Subscribe(owner string) (<-chan models.ChangeEvent, func()) {
	return s.events.Subscribe(owner, models.TypeCategories)
}
