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

// TransactionService manages ledger entries. Collections list newest first
// and paginate.
//
// Create and Delete also adjust the linked category's running spent total as
// a best-effort secondary write: the transaction itself is the source of
// truth for amounts, the category total is a derived, recoverable cache, so
// a failed adjustment is logged and never fails the primary operation.
type TransactionService struct {
	api     *api.Client
	events  Subscriber
	monitor *connectivity.Monitor
	policy  retryx.Policy
	log     logging.Logger
}

func NewTransactionService(c *api.Client, events Subscriber, monitor *connectivity.Monitor, log logging.Logger) *TransactionService {
	return &TransactionService{
		api:     c,
		events:  events,
		monitor: monitor,
		policy:  retryx.DefaultPolicy(),
		log:     log.With("service", "transactions"),
	}
}

func (s *TransactionService) List(ctx context.Context, owner string, page Page) ([]models.Transaction, error) {
	return retryx.Do(ctx, s.log, s.policy, "transactions.list",
		func(ctx context.Context) ([]models.Transaction, error) {
			return api.Select[models.Transaction](ctx, s.api, "transactions", owner,
				api.ListParams{OrderBy: "created_at", Descending: true, Limit: page.Size, Offset: page.Offset})
		})
}

func (s *TransactionService) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.Transaction{}, err
	}
	created, err := retryx.Do(ctx, s.log, s.policy, "transactions.create",
		func(ctx context.Context) (models.Transaction, error) {
			return api.Insert(ctx, s.api, "transactions", t)
		})
	if err != nil {
		return models.Transaction{}, err
	}

	s.adjustCategorySpent(ctx, created.CategoryID, created.Amount)
	return created, nil
}

// Delete takes the full transaction rather than an id: the remote delete
// returns nothing, and the category adjustment needs the amount.
func (s *TransactionService) Delete(ctx context.Context, t models.Transaction) error {
	if err := requireOnline(s.monitor); err != nil {
		return err
	}
	err := retryx.Run(ctx, s.log, s.policy, "transactions.delete",
		func(ctx context.Context) error {
			return api.Delete(ctx, s.api, "transactions", t.ID)
		})
	if err != nil {
		return err
	}

	s.adjustCategorySpent(ctx, t.CategoryID, t.Amount.Neg())
	return nil
}

func (s *TransactionService) Subscribe(owner string) (<-chan models.ChangeEvent, func()) {
	return s.events.Subscribe(owner, models.TypeTransactions)
}

// adjustCategorySpent applies delta to the category's spent total, flooring
// at zero. Failures are swallowed after logging.
func (s *TransactionService) adjustCategorySpent(ctx context.Context, categoryID string, delta decimal.Decimal) {
	if categoryID == "" || delta.IsZero() {
		return
	}

	cat, err := retryx.Do(ctx, s.log, s.policy, "transactions.category-total.read",
		func(ctx context.Context) (models.Category, error) {
			return api.Get[models.Category](ctx, s.api, "categories", categoryID)
		})
	if err != nil {
		s.log.Warn(ctx, "category total adjustment skipped: read failed",
			"category_id", categoryID, "error", err)
		return
	}

	spent := cat.Spent.Add(delta)
	if spent.IsNegative() {
		spent = decimal.Zero
	}

	_, err = retryx.Do(ctx, s.log, s.policy, "transactions.category-total.write",
		func(ctx context.Context) (models.Category, error) {
			return api.Update[models.Category](ctx, s.api, "categories", categoryID,
				map[string]any{"spent": spent})
		})
	if err != nil {
		s.log.Warn(ctx, "category total adjustment failed",
			"category_id", categoryID, "error", err)
	}
}
