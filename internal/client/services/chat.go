package services

import (
	"context"

	"github.com/fintrack-app/fintrack-go/internal/client/api"
	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/retryx"
)

// ChatService manages assistant conversation history. Messages are
// append-only: there is no update verb.
type ChatService struct {
	api     *api.Client
	events  Subscriber
	monitor *connectivity.Monitor
	policy  retryx.Policy
	log     logging.Logger
}

func NewChatService(c *api.Client, events Subscriber, monitor *connectivity.Monitor, log logging.Logger) *ChatService {
	return &ChatService{
		api:     c,
		events:  events,
		monitor: monitor,
		policy:  retryx.DefaultPolicy(),
		log:     log.With("service", "chat"),
	}
}

func (s *ChatService) List(ctx context.Context, owner string) ([]models.ChatMessage, error) {
	return retryx.Do(ctx, s.log, s.policy, "chat.list",
		func(ctx context.Context) ([]models.ChatMessage, error) {
			return api.Select[models.ChatMessage](ctx, s.api, "chat_messages", owner,
				api.ListParams{OrderBy: "created_at"})
		})
}

func (s *ChatService) Create(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if err := requireOnline(s.monitor); err != nil {
		return models.ChatMessage{}, err
	}
	return retryx.Do(ctx, s.log, s.policy, "chat.create",
		func(ctx context.Context) (models.ChatMessage, error) {
			return api.Insert(ctx, s.api, "chat_messages", m)
		})
}

func (s *ChatService) Delete(ctx context.Context, id string) error {
	if err := requireOnline(s.monitor); err != nil {
		return err
	}
	return retryx.Run(ctx, s.log, s.policy, "chat.delete",
		func(ctx context.Context) error {
			return api.Delete(ctx, s.api, "chat_messages", id)
		})
}

func (s *ChatService) Subscribe(owner string) (<-chan models.ChangeEvent, func()) {
	return s.events.Subscribe(owner, models.TypeChatMessages)
}
