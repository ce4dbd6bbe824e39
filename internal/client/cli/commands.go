package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/client/optimistic"
	"github.com/fintrack-app/fintrack-go/internal/client/syncx"
	"github.com/fintrack-app/fintrack-go/internal/common"
)

func stateBanner[T any](snap syncx.Snapshot[T]) string {
	switch {
	case snap.State == syncx.StateLoading:
		return " (loading...)"
	case snap.State == syncx.StateError:
		return " (showing last known data: " + common.UserMessage(snap.Err) + ")"
	case snap.FromCache:
		return " (from local snapshot)"
	default:
		return ""
	}
}

func (a *App) listCategories(ctx context.Context) error {
	snap := a.catStore.Snapshot()
	fmt.Fprintf(a.out, "Categories%s\n", stateBanner(snap))
	for i, c := range snap.Items {
		fmt.Fprintf(a.out, "%3d. %-20s budget %10s spent %10s\n",
			i+1, c.Name, c.Budget.StringFixed(2), c.Spent.StringFixed(2))
	}
	return nil
}

func (a *App) listTransactions(ctx context.Context) error {
	snap := a.txnStore.Snapshot()
	fmt.Fprintf(a.out, "Transactions%s\n", stateBanner(snap))
	for i, t := range snap.Items {
		marker := ""
		if models.IsProvisional(t.ID) {
			marker = " (saving...)"
		}
		fmt.Fprintf(a.out, "%3d. %-30s %10s %s%s\n",
			i+1, t.Description, t.Amount.StringFixed(2), t.Kind, marker)
	}
	return nil
}

func (a *App) listGoals(ctx context.Context) error {
	snap := a.goalStore.Snapshot()
	fmt.Fprintf(a.out, "Goals%s\n", stateBanner(snap))
	for i, g := range snap.Items {
		fmt.Fprintf(a.out, "%3d. %-20s %10s of %10s\n",
			i+1, g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	}
	return nil
}

func (a *App) listChat(ctx context.Context) error {
	snap := a.chatStore.Snapshot()
	fmt.Fprintf(a.out, "Conversation%s\n", stateBanner(snap))
	for _, m := range snap.Items {
		fmt.Fprintf(a.out, "[%s] %s\n", m.Role, m.Content)
	}
	return nil
}

// addCategory creates a category optimistically: it appears in the list
// immediately and is rolled back if the server refuses it.
func (a *App) addCategory(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Category name", a.out)
	if err != nil {
		return err
	}
	budgetRaw, err := getSimpleText(a.reader, "Monthly budget", a.out)
	if err != nil {
		return err
	}
	budget, err := decimal.NewFromString(budgetRaw)
	if err != nil {
		fmt.Fprintln(a.out, "Amounts must be numbers like 120.50")
		return err
	}

	draft := models.Category{
		ID:     models.NewProvisionalID(),
		UserID: a.sess.Owner,
		Name:   name,
		Budget: budget,
	}

	err = a.catCtrl.Invoke(ctx, "categories.create", optimistic.Insert(draft),
		func(ctx context.Context) (func([]models.Category) []models.Category, error) {
			toCreate := draft
			toCreate.ID = ""
			created, err := a.categories.Create(ctx, toCreate)
			if err != nil {
				return nil, err
			}
			return optimistic.Confirm[models.Category](draft.ID, created), nil
		})
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	fmt.Fprintln(a.out, "Category added")
	return nil
}

func (a *App) addTransaction(ctx context.Context) error {
	description, err := getSimpleText(a.reader, "Description", a.out)
	if err != nil {
		return err
	}
	amountRaw, err := getSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		fmt.Fprintln(a.out, "Amounts must be numbers like 45.25")
		return err
	}

	kind := models.KindExpense
	kindRaw, err := getSimpleText(a.reader, "Kind (expense/income, default expense)", a.out)
	if err != nil {
		return err
	}
	if kindRaw == string(models.KindIncome) {
		kind = models.KindIncome
	}

	categoryID := ""
	if cats := a.catStore.Snapshot().Items; len(cats) > 0 {
		name, err := getSimpleText(a.reader, "Category name (empty for none)", a.out)
		if err != nil {
			return err
		}
		for _, c := range cats {
			if c.Name == name {
				categoryID = c.ID
				break
			}
		}
	}

	draft := models.Transaction{
		ID:          models.NewProvisionalID(),
		UserID:      a.sess.Owner,
		CategoryID:  categoryID,
		Description: description,
		Amount:      amount,
		Kind:        kind,
		Date:        time.Now().UTC(),
	}

	err = a.txnCtrl.Invoke(ctx, "transactions.create", optimistic.Insert(draft),
		func(ctx context.Context) (func([]models.Transaction) []models.Transaction, error) {
			toCreate := draft
			toCreate.ID = ""
			created, err := a.transactions.Create(ctx, toCreate)
			if err != nil {
				return nil, err
			}
			return optimistic.Confirm[models.Transaction](draft.ID, created), nil
		})
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	fmt.Fprintln(a.out, "Transaction added")
	return nil
}

// deleteTransaction removes the list-position the user names. The row
// disappears immediately and comes back if the server refuses the delete.
func (a *App) deleteTransaction(ctx context.Context) error {
	raw, err := getSimpleText(a.reader, "Transaction number (see 'transactions')", a.out)
	if err != nil {
		return err
	}
	var idx int
	if _, err := fmt.Sscanf(raw, "%d", &idx); err != nil {
		fmt.Fprintln(a.out, "Enter the number shown in the list")
		return err
	}

	items := a.txnStore.Snapshot().Items
	if idx < 1 || idx > len(items) {
		fmt.Fprintln(a.out, "No such transaction")
		return nil
	}
	target := items[idx-1]
	if models.IsProvisional(target.ID) {
		fmt.Fprintln(a.out, "That transaction is still being saved")
		return nil
	}

	err = a.txnCtrl.Invoke(ctx, "transactions.delete", optimistic.Remove(target),
		func(ctx context.Context) (func([]models.Transaction) []models.Transaction, error) {
			return nil, a.transactions.Delete(ctx, target)
		})
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	fmt.Fprintln(a.out, "Transaction deleted")
	return nil
}

func (a *App) contribute(ctx context.Context) error {
	raw, err := getSimpleText(a.reader, "Goal number (see 'goals')", a.out)
	if err != nil {
		return err
	}
	var idx int
	if _, err := fmt.Sscanf(raw, "%d", &idx); err != nil {
		fmt.Fprintln(a.out, "Enter the number shown in the list")
		return err
	}
	items := a.goalStore.Snapshot().Items
	if idx < 1 || idx > len(items) {
		fmt.Fprintln(a.out, "No such goal")
		return nil
	}

	amountRaw, err := getSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		fmt.Fprintln(a.out, "Amounts must be numbers like 50.00")
		return err
	}

	target := items[idx-1]
	patch := optimistic.Delta[models.Goal](target.ID,
		func(g models.Goal) models.Goal {
			g.CurrentAmount = g.CurrentAmount.Add(amount)
			return g
		},
		func(g models.Goal) models.Goal {
			g.CurrentAmount = g.CurrentAmount.Sub(amount)
			return g
		})

	var goal models.Goal
	err = a.goalCtrl.Invoke(ctx, "goals.contribute", patch,
		func(ctx context.Context) (func([]models.Goal) []models.Goal, error) {
			var err error
			goal, err = a.goals.Contribute(ctx, target.ID, amount)
			if err != nil {
				return nil, err
			}
			return optimistic.Reconcile(goal), nil
		})
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}

	fmt.Fprintf(a.out, "%s: %s of %s\n", goal.Name,
		goal.CurrentAmount.StringFixed(2), goal.TargetAmount.StringFixed(2))
	return nil
}

// say sends a message to the assistant conversation. Replies arrive through
// the realtime channel and show up in 'chat'.
func (a *App) say(ctx context.Context) error {
	content, err := getSimpleText(a.reader, "Message", a.out)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}

	draft := models.ChatMessage{
		ID:      models.NewProvisionalID(),
		UserID:  a.sess.Owner,
		Role:    models.RoleUser,
		Content: content,
	}

	err = a.chatCtrl.Invoke(ctx, "chat.say", optimistic.Insert(draft),
		func(ctx context.Context) (func([]models.ChatMessage) []models.ChatMessage, error) {
			toCreate := draft
			toCreate.ID = ""
			created, err := a.chat.Create(ctx, toCreate)
			if err != nil {
				return nil, err
			}
			return optimistic.Confirm[models.ChatMessage](draft.ID, created), nil
		})
	if err != nil {
		fmt.Fprintln(a.out, common.UserMessage(err))
		return err
	}
	return nil
}
