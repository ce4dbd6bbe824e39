package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fintrack-app/fintrack-go/internal/client/api"
	"github.com/fintrack-app/fintrack-go/internal/client/cache"
	"github.com/fintrack-app/fintrack-go/internal/client/config"
	"github.com/fintrack-app/fintrack-go/internal/client/connectivity"
	"github.com/fintrack-app/fintrack-go/internal/client/models"
	"github.com/fintrack-app/fintrack-go/internal/client/optimistic"
	"github.com/fintrack-app/fintrack-go/internal/client/services"
	"github.com/fintrack-app/fintrack-go/internal/client/session"
	"github.com/fintrack-app/fintrack-go/internal/client/syncx"
	"github.com/fintrack-app/fintrack-go/internal/filex"
	"github.com/fintrack-app/fintrack-go/internal/logging"
	"github.com/fintrack-app/fintrack-go/internal/shared"
)

// App is the interactive FinTrack client. It owns the API client, the local
// snapshot cache, the connectivity monitor, and, once a user has signed in,
// one synchronized store per entity family.
type App struct {
	config  *config.Config
	log     logging.Logger
	api     *api.Client
	monitor *connectivity.Monitor
	cache   *cache.Cache
	db      *sql.DB

	reader *bufio.Reader
	out    io.Writer

	sess         session.Session
	realtime     *api.Realtime
	stopRealtime context.CancelFunc

	categories   *services.CategoryService
	transactions *services.TransactionService
	goals        *services.GoalService
	chat         *services.ChatService

	catStore  *syncx.Store[models.Category]
	txnStore  *syncx.Store[models.Transaction]
	goalStore *syncx.Store[models.Goal]
	chatStore *syncx.Store[models.ChatMessage]

	catCtrl  *optimistic.Controller[models.Category]
	txnCtrl  *optimistic.Controller[models.Transaction]
	goalCtrl *optimistic.Controller[models.Goal]
	chatCtrl *optimistic.Controller[models.ChatMessage]
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	dir, err := filex.EnsureSubDir(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	db, err := cache.Open(ctx, "file:"+filepath.Join(dir, "snapshots.db"))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %w", err)
	}

	var cacheOpts []cache.Option
	if cfg.CachePassphrase != "" {
		key, err := snapshotKey(dir, cfg.CachePassphrase)
		if err != nil {
			db.Close()
			return nil, err
		}
		cacheOpts = append(cacheOpts, cache.WithEncryptionKey(key))
	}

	snapshots, err := cache.New(db, log, cacheOpts...)
	if err != nil {
		db.Close()
		return nil, err
	}

	apiClient := api.NewClient(cfg.APIBaseURL, cfg.AnonKey, log,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))

	return &App{
		config:  cfg,
		log:     log,
		api:     apiClient,
		monitor: connectivity.NewMonitor(false),
		cache:   snapshots,
		db:      db,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// snapshotKey derives the cache encryption key from the passphrase and a
// per-installation salt persisted next to the database.
func snapshotKey(dir, passphrase string) ([]byte, error) {
	fresh, err := shared.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	salt, err := filex.ReadOrCreate(filepath.Join(dir, "salt"), []byte(fresh))
	if err != nil {
		return nil, err
	}

	pass := []byte(passphrase)
	defer shared.WipeByteArray(pass)
	return cache.DeriveKey(pass, salt), nil
}

func (a *App) isLoggedIn() bool { return a.sess.Owner != "" }

// startSync wires the signed-in user's sync pipeline: realtime connection,
// entity services, stores, and optimistic controllers.
func (a *App) startSync(ctx context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	a.stopRealtime = cancel
	a.realtime = api.NewRealtime(a.api, a.sess.AccessToken, a.monitor, a.log)
	go a.realtime.Run(rctx)

	a.categories = services.NewCategoryService(a.api, a.realtime, a.monitor, a.log)
	a.transactions = services.NewTransactionService(a.api, a.realtime, a.monitor, a.log)
	a.goals = services.NewGoalService(a.api, a.realtime, a.monitor, a.log)
	a.chat = services.NewChatService(a.api, a.realtime, a.monitor, a.log)

	a.catStore = syncx.New[models.Category](models.TypeCategories,
		a.categories.List, a.cache, a.realtime, a.log)
	a.txnStore = syncx.New[models.Transaction](models.TypeTransactions,
		func(ctx context.Context, owner string) ([]models.Transaction, error) {
			return a.transactions.List(ctx, owner, services.Page{})
		},
		a.cache, a.realtime, a.log,
		syncx.WithNormalize[models.Transaction](models.DedupeProvisional))
	a.goalStore = syncx.New[models.Goal](models.TypeGoals,
		a.goals.List, a.cache, a.realtime, a.log)
	a.chatStore = syncx.New[models.ChatMessage](models.TypeChatMessages,
		a.chat.List, a.cache, a.realtime, a.log)

	a.catStore.SetOwner(ctx, a.sess.Owner)
	a.txnStore.SetOwner(ctx, a.sess.Owner)
	a.goalStore.SetOwner(ctx, a.sess.Owner)
	a.chatStore.SetOwner(ctx, a.sess.Owner)

	a.catCtrl = optimistic.NewController[models.Category](a.monitor, a.catStore, a.log)
	a.txnCtrl = optimistic.NewController[models.Transaction](a.monitor, a.txnStore, a.log)
	a.goalCtrl = optimistic.NewController[models.Goal](a.monitor, a.goalStore, a.log)
	a.chatCtrl = optimistic.NewController[models.ChatMessage](a.monitor, a.chatStore, a.log)
}

// stopSync tears down what startSync built. Safe to call when not synced.
func (a *App) stopSync() {
	if a.catStore != nil {
		a.catStore.Close()
		a.txnStore.Close()
		a.goalStore.Close()
		a.chatStore.Close()
	}
	if a.stopRealtime != nil {
		a.stopRealtime()
		a.stopRealtime = nil
	}
	a.sess = session.Session{}
}

// Close releases the local database. The App is unusable afterwards.
func (a *App) Close() {
	a.stopSync()
	if a.db != nil {
		a.db.Close()
	}
}
