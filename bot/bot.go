package bot

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v3"

	"media-dashboard-bot/dashboard"
	"media-dashboard-bot/db"
	"media-dashboard-bot/ingest"
	"media-dashboard-bot/metrics"
	"media-dashboard-bot/mutex"
	"media-dashboard-bot/render"
	"media-dashboard-bot/sources"
	"media-dashboard-bot/status"
	"media-dashboard-bot/templates"
)

const shutdownTimeout = time.Second * 10

func Start(ctx context.Context, config Config, confirm chan<- struct{}) error {
	dbService, err := openStore(config.Database)
	if err != nil {
		return err
	}
	if config.Debug {
		dbService.EnableDebug()
	}
	err = dbService.Migrate(ctx)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	ingestor := ingest.New(dbService).WithRecorder(recorder)
	if config.RedisAddress != "" {
		ingestor = ingestor.WithLocker(mutex.NewBuilder(config.RedisAddress))
	}
	collector := newCollector(config, ingestor, dbService).WithRecorder(recorder)

	s := tele.Settings{
		Token: config.TelegramBotToken,
		Poller: &tele.LongPoller{
			Timeout: time.Second * 10,
		},
		OnError: func(err error, c tele.Context) {
			slog.Error("unhandled bot error", "error", err)
			if c == nil {
				return
			}
			err = c.Send(templates.UnexpectedError)
			if err != nil {
				slog.Error("unable to report error", "error", err)
			}
		},
	}
	bot, err := tele.NewBot(s)
	if err != nil {
		return errors.Wrap(err, "error during creation of a new bot")
	}

	scheduler, err := dashboard.NewCronScheduler()
	if err != nil {
		return err
	}
	controls := newControls()
	manager := dashboard.New(
		dbService,
		NewSurface(bot, controls.markup),
		func(ctx context.Context) render.Document {
			return render.Dashboard(collector.Snapshot(ctx))
		},
		scheduler,
		dashboard.NewRegistry(),
		config.RefreshInterval(),
	).WithRecorder(recorder)

	botService := NewService(ctx, manager, collector, dbService)
	bot.Use(adminOnly(config.AdminChatId))
	botService.register(bot, controls)

	err = manager.Reconcile(ctx)
	if err != nil {
		slog.Error("unable to restore dashboard", "error", err)
	}

	server := &http.Server{
		Addr:    config.StatusAddress,
		Handler: status.NewRouter(dbService, manager, recorder.Handler()),
	}
	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		bot.Stop()
		manager.Close()
		err := scheduler.Shutdown()
		if err != nil {
			slog.Error("unable to stop scheduler", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		if err != nil {
			slog.Error("unable to stop status server", "error", err)
		}
		err = dbService.Close()
		if err != nil {
			slog.Error("unable to close database", "error", err)
		}
		confirm <- struct{}{}
	}()

	slog.Info("bot started", "admin_chat", config.AdminChatId, "status", config.StatusAddress)
	// Blocks until stop
	bot.Start()
	return nil
}

func openStore(config DatabaseConfig) (*db.DB, error) {
	if config.Driver == DriverSQLite {
		return db.NewSQLite(config.Path)
	}
	return db.New(config.Address, config.User, config.Password, config.Name), nil
}

// newCollector wires the configured sources. Unconfigured ones stay nil and
// their sections render as unavailable.
func newCollector(config Config, ingestor *ingest.Ingestor, store *db.DB) *ingest.Collector {
	var activity ingest.ActivitySource
	if config.Activity.Enabled() {
		activity = sources.NewActivity(config.Activity.URL, config.Activity.APIKey)
	}
	var downloads ingest.DownloadSource
	if config.Downloads.Enabled() {
		downloads = sources.NewDownloads(config.Downloads.URL, config.Downloads.APIKey)
	}
	var queues []ingest.QueueConfig
	for _, q := range []struct {
		source db.Source
		config SourceConfig
	}{
		{db.SourceQueueA, config.QueueA},
		{db.SourceQueueB, config.QueueB},
	} {
		if !q.config.Enabled() {
			continue
		}
		queues = append(queues, ingest.QueueConfig{
			Source:    q.source,
			MediaType: q.config.MediaType,
			Queue:     sources.NewQueue(string(q.source), q.config.URL, q.config.APIKey),
		})
	}
	return ingest.NewCollector(ingestor, activity, queues, downloads, store)
}

// adminOnly drops updates from every chat but the admin one.
func adminOnly(adminChatId int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() != nil && c.Chat().ID == adminChatId {
				return next(c)
			}
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: templates.NotAllowed})
			}
			if c.Chat() == nil {
				return nil
			}
			return c.Send(templates.NotAllowed)
		}
	}
}

func (s *Service) register(bot *tele.Bot, controls controlSet) {
	bot.Handle("/start", s.command(s.help))
	bot.Handle("/help", s.command(s.help))
	bot.Handle("/dashboard", s.command(s.create))
	bot.Handle("/stop", s.command(s.stop))
	bot.Handle("/refresh", s.command(s.refresh))
	bot.Handle("/bottom", s.command(s.bottom))
	bot.Handle("/streams", s.command(s.streams))
	bot.Handle("/downloads", s.command(s.downloads))
	bot.Handle("/history", s.command(s.history))
	bot.Handle("/stats", s.command(s.ShowStats))

	bot.Handle(&controls.refresh, s.control(s.refresh))
	bot.Handle(&controls.bottom, s.control(s.bottom))
	bot.Handle(&controls.streams, s.control(s.streams))
	bot.Handle(&controls.downloads, s.control(s.downloads))
	bot.Handle(&controls.history, s.control(s.history))
}

func (s *Service) help(o Origin, _ string) error      { return s.Help(o) }
func (s *Service) create(o Origin, _ string) error    { return s.CreateDashboard(o) }
func (s *Service) stop(o Origin, _ string) error      { return s.StopDashboard(o) }
func (s *Service) refresh(o Origin, _ string) error   { return s.RefreshDashboard(o, false) }
func (s *Service) bottom(o Origin, _ string) error    { return s.RefreshDashboard(o, true) }
func (s *Service) streams(o Origin, _ string) error   { return s.ShowStreams(o) }
func (s *Service) downloads(o Origin, _ string) error { return s.ShowDownloads(o) }
func (s *Service) history(o Origin, _ string) error   { return s.ShowHistory(o) }
