// Package supervisor wires every collaborator together and runs the
// process: it boots the database, upstream client, repositories, and
// scheduler, serves the health endpoints, and drains in-flight work on
// SIGTERM, the way the teacher's cmd/bot main assembled the bot
// orchestrator and its signal handling.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ecarrasco/dropwatch/internal/config"
	"github.com/ecarrasco/dropwatch/internal/database"
	"github.com/ecarrasco/dropwatch/internal/health"
	"github.com/ecarrasco/dropwatch/internal/logger"
	"github.com/ecarrasco/dropwatch/internal/matcher"
	"github.com/ecarrasco/dropwatch/internal/models"
	"github.com/ecarrasco/dropwatch/internal/normalize"
	"github.com/ecarrasco/dropwatch/internal/notifier"
	"github.com/ecarrasco/dropwatch/internal/repository"
	"github.com/ecarrasco/dropwatch/internal/resultgate"
	"github.com/ecarrasco/dropwatch/internal/runtime"
	"github.com/ecarrasco/dropwatch/internal/scheduler"
	"github.com/ecarrasco/dropwatch/internal/sportrules"
	"github.com/ecarrasco/dropwatch/internal/upstream"
)

// UpstreamBaseURL is the sports-data API's fixed origin. It is not an
// environment-configured value per §6's environment table; only the
// proxy route to it is configurable.
const UpstreamBaseURL = "https://api.sofascore.com"

// App bundles every long-lived component booted at startup.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	DB        *database.DB
	Runtime   *runtime.Runtime
	Scheduler *scheduler.Scheduler
	Health    *health.Server

	Events       repository.EventRepository
	Odds         repository.OddsRepository
	Results      repository.ResultRepository
	Views        repository.AlertViewRepository
	DecisionLogs repository.DecisionLogRepository
}

// Boot loads configuration, connects to the store, and assembles every
// collaborator. It does not start the cron dispatcher — callers decide
// whether to call app.Scheduler.Start() or run one-shot jobs directly.
func Boot(ctx context.Context, dotenvPath string) (*App, error) {
	cfg, err := config.Load(dotenvPath)
	if err != nil {
		return nil, models.NewKindedError(models.KindConfig, "load config", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, models.NewKindedError(models.KindConfig, "validate config", err)
	}

	log := logger.NewLogger(cfg.LogLevel)

	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		return nil, models.NewKindedError(models.KindDatabase, "connect to database", err)
	}

	events := repository.NewPostgresEventRepository(db)
	odds := repository.NewPostgresOddsRepository(db)
	results := repository.NewPostgresResultRepository(db)
	views := repository.NewPostgresAlertViewRepository(db)
	decisionLogs := repository.NewPostgresDecisionLogRepository(db)

	upstreamClient, err := upstream.NewClient(upstream.ClientConfigFromAppConfig(cfg, UpstreamBaseURL), log)
	if err != nil {
		db.Close()
		return nil, models.NewKindedError(models.KindConfig, "build upstream client", err)
	}

	rt := runtime.New(upstreamClient, views)

	rules := sportrules.Load()
	normalizer := normalize.NewNormalizer(log)
	m := matcher.NewMatcher(views, rules, log)
	gate := resultgate.NewGate(results, events, rules, log)
	decisionLog := logger.NewDecisionLogger(log)

	var sender notifier.Sender
	if cfg.NotificationsEnabled && cfg.NotifierConfigured() {
		sender, err = notifier.NewTelegramSender(cfg.TelegramBotToken)
		if err != nil {
			rt.Shutdown()
			db.Close()
			return nil, models.NewKindedError(models.KindConfig, "build telegram sender", err)
		}
	}
	chatID := parseChatID(cfg.TelegramChatID, log)
	n := notifier.NewNotifier(sender, chatID, cfg.NotificationsEnabled && cfg.NotifierConfigured(), log)

	sched := scheduler.New(scheduler.Deps{
		Config: cfg, Runtime: rt, UpstreamClient: upstreamClient,
		Events: events, Odds: odds, Results: results, Views: views, DecisionLogs: decisionLogs,
		Normalizer: normalizer, Matcher: m, Gate: gate, Notifier: n, Rules: rules,
		DecisionLog: decisionLog, Log: log,
	})

	healthServer := health.NewServer(health.Config{
		ServiceName: "dropwatch",
		Logger:      log,
		DB:          db,
		AlertView:   rt,
	})

	return &App{
		Config: cfg, Log: log, DB: db, Runtime: rt, Scheduler: sched, Health: healthServer,
		Events: events, Odds: odds, Results: results, Views: views, DecisionLogs: decisionLogs,
	}, nil
}

// Run starts the health server and the scheduler, then blocks until a
// SIGTERM/SIGINT is received, draining up to the §5 30s budget before
// returning.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Health.Start(ctx); err != nil {
		return fmt.Errorf("start health server: %w", err)
	}

	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.Health.SetReady(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	sig := <-sigCh
	a.Log.WithField("signal", sig).Info("supervisor: shutdown signal received")
	a.Health.SetReady(false)

	cancel()
	a.Scheduler.Stop()
	a.Runtime.Shutdown()
	a.DB.Close()

	a.Log.Info("supervisor: shut down cleanly")
	return nil
}

// Close releases every resource Boot acquired, for callers that never
// call Run (e.g. one-shot CLI commands).
func (a *App) Close() {
	a.Runtime.Shutdown()
	a.DB.Close()
}

func parseChatID(raw string, log *logrus.Logger) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if log != nil {
			log.WithError(err).WithField("telegram_chat_id", raw).Warn("supervisor: could not parse telegram chat id")
		}
		return 0
	}
	return id
}
