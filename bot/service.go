package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"media-dashboard-bot/dashboard"
	"media-dashboard-bot/db"
	"media-dashboard-bot/render"
	"media-dashboard-bot/sources"
	"media-dashboard-bot/templates"
)

const (
	historyLimit     = 20
	defaultStatsDays = 7
	maxStatsDays     = 365
)

// Lifecycle is the dashboard lifecycle the commands drive.
type Lifecycle interface {
	Create(ctx context.Context, channel, owner int64) error
	Stop(ctx context.Context, channel int64) error
	Refresh(ctx context.Context, channel, owner int64, relocate bool) (dashboard.Outcome, error)
}

// Poller reads live sources, recording what it sees on the way.
type Poller interface {
	Sessions(ctx context.Context) ([]sources.Session, error)
	Queues(ctx context.Context) []render.QueueState
	Downloads(ctx context.Context) ([]sources.DownloadItem, error)
	History(ctx context.Context, limit int) ([]db.WatchEvent, []db.DownloadEvent, error)
}

type StatsStore interface {
	WatchStatsByUser(ctx context.Context, since time.Time) ([]db.UserStat, error)
	WatchStatsByMediaType(ctx context.Context, since time.Time) ([]db.MediaTypeStat, error)
}

type Service struct {
	ctx       context.Context
	lifecycle Lifecycle
	poller    Poller
	stats     StatsStore
	now       func() time.Time
}

func NewService(ctx context.Context, lifecycle Lifecycle, poller Poller, stats StatsStore) *Service {
	return &Service{
		ctx:       ctx,
		lifecycle: lifecycle,
		poller:    poller,
		stats:     stats,
		now:       time.Now,
	}
}

func (s *Service) Help(o Origin) error {
	return o.Respond(templates.Help)
}

func (s *Service) CreateDashboard(o Origin) error {
	err := s.lifecycle.Create(s.ctx, o.Channel(), o.Sender())
	if err != nil {
		return err
	}
	return o.Respond(templates.Created)
}

func (s *Service) StopDashboard(o Origin) error {
	err := s.lifecycle.Stop(s.ctx, o.Channel())
	if err != nil {
		return err
	}
	return o.Respond(templates.Stopped)
}

func (s *Service) RefreshDashboard(o Origin, relocate bool) error {
	outcome, err := s.lifecycle.Refresh(s.ctx, o.Channel(), o.Sender(), relocate)
	if err != nil {
		return err
	}
	switch outcome {
	case dashboard.Created:
		return o.Respond(templates.Created)
	case dashboard.Relocated:
		return o.Respond(templates.Relocated)
	}
	return o.Respond(templates.Refreshed)
}

func (s *Service) ShowStreams(o Origin) error {
	state := render.State{Now: s.now()}
	state.Sessions, state.SessionsErr = s.poller.Sessions(s.ctx)
	if state.SessionsErr != nil {
		slog.Warn("activity unavailable", "error", state.SessionsErr)
	}
	return o.Reply(render.Streams(state))
}

func (s *Service) ShowDownloads(o Origin) error {
	state := render.State{Now: s.now()}
	state.Queues = s.poller.Queues(s.ctx)
	state.Downloads, state.DownloadsErr = s.poller.Downloads(s.ctx)
	if state.DownloadsErr != nil {
		slog.Warn("download client unavailable", "error", state.DownloadsErr)
	}
	return o.Reply(render.Downloads(state))
}

func (s *Service) ShowHistory(o Origin) error {
	watches, downloads, err := s.poller.History(s.ctx, historyLimit)
	if err != nil {
		return errors.Wrap(err, "cannot read history")
	}
	return o.Reply(render.History(watches, downloads, s.now()))
}

// ShowStats reports watch totals over the last args days (7 by default).
func (s *Service) ShowStats(o Origin, args string) error {
	days := defaultStatsDays
	if arg := strings.TrimSpace(args); arg != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(arg, "d"))
		if err != nil || n <= 0 || n > maxStatsDays {
			return o.Respond(templates.StatsUsage)
		}
		days = n
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	byUser, err := s.stats.WatchStatsByUser(s.ctx, since)
	if err != nil {
		return errors.Wrap(err, "cannot read stats by user")
	}
	byType, err := s.stats.WatchStatsByMediaType(s.ctx, since)
	if err != nil {
		return errors.Wrap(err, "cannot read stats by media type")
	}
	return o.Reply(render.Stats(byUser, byType, fmt.Sprintf("%v days", days)))
}

// fail turns a handler error into a reply. Expected lifecycle errors get a
// specific notice; everything else is logged and answered generically.
func (s *Service) fail(o Origin, err error) {
	var (
		text     string
		mismatch *dashboard.ChannelMismatchError
	)
	switch {
	case errors.Is(err, dashboard.ErrAlreadyActive):
		text = templates.AlreadyActive
	case errors.Is(err, dashboard.ErrNotActive):
		text = templates.NotActive
	case errors.As(err, &mismatch):
		text = fmt.Sprintf(templates.ChannelMismatch, mismatch.Configured)
	default:
		slog.Error("command failed", "channel", o.Channel(), "error", err)
		text = templates.UnexpectedError
	}
	respondErr := o.Respond(text)
	if respondErr != nil {
		slog.Error("unable to report failure", "channel", o.Channel(), "error", respondErr)
	}
}

// command adapts a handler to a typed command.
func (s *Service) command(handler func(o Origin, args string) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		o := CommandOrigin{c: c}
		err := handler(o, c.Data())
		if err != nil {
			s.fail(o, err)
		}
		return nil
	}
}

// control adapts a handler to a dashboard button.
func (s *Service) control(handler func(o Origin, args string) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		o := &ControlOrigin{c: c}
		defer o.finish()
		err := handler(o, c.Data())
		if err != nil {
			s.fail(o, err)
		}
		return nil
	}
}
