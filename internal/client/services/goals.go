package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fintrack-app/fintrack-go/internal/client/api"
	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/retryx"
)

// GoalService manages savings goals. Collections list in creation-time
// ascending order.
type GoalService struct {
	api     *api.Client
	events  Subscriber
	monitor *connectivity.Monitor
	policy  retryx.Policy
	log     logging.Logger
}

func NewGoalService(c *api.Client, events Subscriber, monitor *connectivity.Monitor, log logging.Logger) *GoalService {
	return &GoalService{
		api:     c,
		events:  events,
		monitor: monitor,
		policy:  retryx.DefaultPolicy(),
		log:     log.With("service", "goals"),
	}
}

func (s *GoalService) List(ctx context.Context, owner string) ([]models.Goal, error) {
	return retryx.Do(ctx, s.log, s.policy, "goals.list",
		func(ctx context.Context) ([]models.Goal, error) {
			return api.Select[models.Goal](ctx, s.api, "goals", owner,
				api.ListParams{OrderBy: "created_at"})
		})
}

func (s *GoalService) Create(ctx context.Context, g models.Goal) (models.Goal, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Goal{}, err
	}
	return retryx.Do(ctx, s.log, s.policy, "goals.create",
		func(ctx context.Context) (models.Goal, error) {
			return api.Insert(ctx, s.api, "goals", g)
		})
}

func (s *GoalService) Update(ctx context.Context, id string, fields map[string]any) (models.Goal, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Goal{}, err
	}
	return retryx.Do(ctx, s.log, s.policy, "goals.update",
		func(ctx context.Context) (models.Goal, error) {
			return api.Update[models.Goal](ctx, s.api, "goals", id, fields)
		})
}

func (s *GoalService) Delete(ctx context.Context, id string) error {
	if err := requireOnline(s.monitor); err != nil {
		return err
	}
	return retryx.Run(ctx, s.log, s.policy, "goals.delete",
		func(ctx context.Context) error {
			return api.Delete(ctx, s.api, "goals", id)
		})
}

// Contribute adds amount to the goal's current total as a read-modify-write.
// It is not atomic against concurrent contributions from other sessions:
// last write wins. An atomic server-side increment would close the race but
// the store only exposes the four verbs.
func (s *GoalService) Contribute(ctx context.Context, id string, amount decimal.Decimal) (models.Goal, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Goal{}, err
	}
	g, err := retryx.Do(ctx, s.log, s.policy, "goals.contribute.read",
		func(ctx context.Context) (models.Goal, error) {
			return api.Get[models.Goal](ctx, s.api, "goals", id)
		})
	if err != nil {
		return models.Goal{}, err
	}

	return retryx.Do(ctx, s.log, s.policy, "goals.contribute.write",
		func(ctx context.Context) (models.Goal, error) {
			return api.Update[models.Goal](ctx, s.api, "goals", id,
				map[string]any{"current_amount": g.CurrentAmount.Add(amount)})
		})
}

func (s *GoalService) Subscribe(owner string) (<-chan models.ChangeEvent, func()) {
	return s.events.Subscribe(owner, models.TypeGoals)
}
