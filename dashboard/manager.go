// Package dashboard keeps one live, self-refreshing dashboard message per
// channel and reconciles it with the persisted configuration.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"media-dashboard-bot/db"
	"media-dashboard-bot/metrics"
	"media-dashboard-bot/render"
)

const (
	triggerTick    = "tick"
	triggerManual  = "manual"
	triggerStartup = "startup"
)

// Store persists where the dashboard lives.
type Store interface {
	GetDashboardConfig(ctx context.Context) (db.DashboardConfig, error)
	SetDashboardConfig(ctx context.Context, c db.DashboardConfig) error
}

// Surface is the chat the dashboard is rendered into. Fetch returns
// ErrMessageNotFound when the message no longer exists.
type Surface interface {
	Send(ctx context.Context, channel int64, doc render.Document) (int, error)
	Edit(ctx context.Context, channel int64, messageId int, doc render.Document) error
	Delete(ctx context.Context, channel int64, messageId int) error
	Fetch(ctx context.Context, channel int64, messageId int) error
}

// RenderFunc produces the current dashboard document.
type RenderFunc func(ctx context.Context) render.Document

// Outcome tells the caller what Refresh did.
type Outcome int

const (
	Edited Outcome = iota
	Created
	Relocated
)

func (o Outcome) String() string {
	switch o {
	case Edited:
		return "edited"
	case Created:
		return "created"
	case Relocated:
		return "relocated"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Manager struct {
	store     Store
	surface   Surface
	render    RenderFunc
	scheduler Scheduler
	registry  *Registry
	interval  time.Duration
	recorder  metrics.Recorder
	now       func() time.Time

	// ctx outlives single commands; task ticks run under it.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(
	store Store,
	surface Surface,
	render RenderFunc,
	scheduler Scheduler,
	registry *Registry,
	interval time.Duration,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		surface:   surface,
		render:    render,
		scheduler: scheduler,
		registry:  registry,
		interval:  interval,
		recorder:  metrics.NoopRecorder{},
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *Manager) WithRecorder(r metrics.Recorder) *Manager {
	m.recorder = r
	return m
}

// Create sends a new dashboard to channel and starts refreshing it.
func (m *Manager) Create(ctx context.Context, channel, owner int64) error {
	cfg, err := m.store.GetDashboardConfig(ctx)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return errors.Wrap(err, "cannot read dashboard config")
	}
	if err == nil && m.registry.Has(cfg.ChannelId) {
		return ErrAlreadyActive
	}
	gen, ok := m.registry.Reserve(channel)
	if !ok {
		return ErrAlreadyActive
	}
	committed := false
	defer func() {
		if !committed {
			m.registry.Release(channel, gen)
		}
	}()

	messageId, err := m.surface.Send(ctx, channel, m.render(ctx))
	if err != nil {
		return errors.Wrap(err, "unable to send dashboard")
	}
	err = m.store.SetDashboardConfig(ctx, db.DashboardConfig{
		MessageId:       messageId,
		ChannelId:       channel,
		OwnerId:         owner,
		RefreshInterval: m.interval.Milliseconds(),
		LastUpdated:     m.now().UTC(),
	})
	if err != nil {
		m.deleteQuietly(ctx, channel, messageId)
		return errors.Wrap(err, "unable to save dashboard config")
	}
	err = m.activate(channel, gen, messageId, m.interval)
	if err != nil {
		return err
	}
	committed = true
	slog.Info("dashboard created", "channel", channel, "message", messageId, "owner", owner)
	return nil
}

// Stop cancels the refresh task for channel. The persisted config is kept, so
// the next process start brings the dashboard back.
func (m *Manager) Stop(ctx context.Context, channel int64) error {
	h, ok := m.registry.Remove(channel)
	if !ok {
		return ErrNotActive
	}
	m.recorder.ActiveDashboards(m.registry.Len())
	slog.Info("dashboard stopped", "channel", channel, "message", h.MessageId)
	return nil
}

// Refresh re-renders the dashboard for channel, creating it when there is
// nothing to refresh. With relocate the dashboard is re-sent at the bottom of
// the channel and the old message deleted.
func (m *Manager) Refresh(ctx context.Context, channel, owner int64, relocate bool) (Outcome, error) {
	outcome, err := m.refresh(ctx, channel, owner, relocate)
	m.recorder.RefreshFinished(triggerManual, err)
	return outcome, err
}

func (m *Manager) refresh(ctx context.Context, channel, owner int64, relocate bool) (Outcome, error) {
	if h, ok := m.registry.Get(channel); ok {
		err := m.surface.Fetch(ctx, channel, h.MessageId)
		switch {
		case err == nil:
			if relocate {
				return Relocated, m.relocate(ctx, channel, owner, h.MessageId)
			}
			return Edited, m.renderInto(ctx, channel, h.MessageId)
		case errors.Is(err, ErrMessageNotFound):
			slog.Warn("tracked dashboard message is gone", "channel", channel, "message", h.MessageId)
			m.registry.RemoveIf(channel, h.gen)
			m.recorder.ActiveDashboards(m.registry.Len())
		default:
			return Edited, errors.Wrap(err, "unable to fetch dashboard message")
		}
	}

	cfg, err := m.store.GetDashboardConfig(ctx)
	if err != nil && errors.Is(err, db.ErrNotFound) {
		return Created, m.Create(ctx, channel, owner)
	}
	if err != nil {
		return Edited, errors.Wrap(err, "cannot read dashboard config")
	}
	if cfg.ChannelId != channel {
		return Edited, &ChannelMismatchError{Requested: channel, Configured: cfg.ChannelId}
	}
	err = m.surface.Fetch(ctx, channel, cfg.MessageId)
	if err != nil && errors.Is(err, ErrMessageNotFound) {
		slog.Warn("configured dashboard message is gone, creating a new one", "channel", channel, "message", cfg.MessageId)
		return Created, m.Create(ctx, channel, owner)
	}
	if err != nil {
		return Edited, errors.Wrap(err, "unable to fetch dashboard message")
	}

	if relocate {
		err = m.relocate(ctx, channel, owner, cfg.MessageId)
		return Relocated, err
	}
	err = m.renderInto(ctx, channel, cfg.MessageId)
	if err != nil {
		return Edited, err
	}
	m.heal(channel, cfg.MessageId, cfg.Interval())
	return Edited, nil
}

// relocate sends a fresh dashboard and points the config and the handle at it.
// Deleting the old message is best effort.
func (m *Manager) relocate(ctx context.Context, channel, owner int64, oldMessageId int) error {
	newMessageId, err := m.surface.Send(ctx, channel, m.render(ctx))
	if err != nil {
		return errors.Wrap(err, "unable to send relocated dashboard")
	}

	cfg, err := m.store.GetDashboardConfig(ctx)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		m.deleteQuietly(ctx, channel, newMessageId)
		return errors.Wrap(err, "cannot read dashboard config")
	}
	if err != nil {
		cfg = db.DashboardConfig{OwnerId: owner, RefreshInterval: m.interval.Milliseconds()}
	}
	cfg.MessageId = newMessageId
	cfg.ChannelId = channel
	cfg.LastUpdated = m.now().UTC()
	err = m.store.SetDashboardConfig(ctx, cfg)
	if err != nil {
		m.deleteQuietly(ctx, channel, newMessageId)
		return errors.Wrap(err, "unable to save relocated dashboard config")
	}

	if h, ok := m.registry.Get(channel); ok {
		m.registry.SetMessage(channel, h.gen, newMessageId)
	} else {
		m.heal(channel, newMessageId, cfg.Interval())
	}
	m.deleteQuietly(ctx, channel, oldMessageId)
	slog.Info("dashboard relocated", "channel", channel, "from", oldMessageId, "to", newMessageId)
	return nil
}

// Reconcile restores the persisted dashboard after a process start. A
// dashboard that was stopped before the restart comes back too.
func (m *Manager) Reconcile(ctx context.Context) error {
	cfg, err := m.store.GetDashboardConfig(ctx)
	if err != nil && errors.Is(err, db.ErrNotFound) {
		slog.Info("no dashboard to restore")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cannot read dashboard config")
	}
	gen, ok := m.registry.Reserve(cfg.ChannelId)
	if !ok {
		return nil
	}
	committed := false
	defer func() {
		if !committed {
			m.registry.Release(cfg.ChannelId, gen)
		}
	}()

	err = m.surface.Fetch(ctx, cfg.ChannelId, cfg.MessageId)
	if err != nil && errors.Is(err, ErrMessageNotFound) {
		slog.Warn("persisted dashboard message is gone, not restoring", "channel", cfg.ChannelId, "message", cfg.MessageId)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "unable to fetch persisted dashboard message")
	}
	err = m.renderInto(ctx, cfg.ChannelId, cfg.MessageId)
	m.recorder.RefreshFinished(triggerStartup, err)
	if err != nil {
		return err
	}
	interval := cfg.Interval()
	if interval <= 0 {
		interval = m.interval
	}
	err = m.activate(cfg.ChannelId, gen, cfg.MessageId, interval)
	if err != nil {
		return err
	}
	committed = true
	slog.Info("dashboard restored", "channel", cfg.ChannelId, "message", cfg.MessageId)
	return nil
}

// Active lists channels with a running dashboard.
func (m *Manager) Active() []int64 {
	return m.registry.Channels()
}

// Close stops every dashboard task. The persisted config is untouched.
func (m *Manager) Close() {
	m.cancel()
	for _, channel := range m.registry.Channels() {
		m.registry.Remove(channel)
	}
	m.recorder.ActiveDashboards(0)
}

// heal registers a handle for a dashboard found through the config when this
// process was not tracking it.
func (m *Manager) heal(channel int64, messageId int, interval time.Duration) {
	if interval <= 0 {
		interval = m.interval
	}
	gen, ok := m.registry.Reserve(channel)
	if !ok {
		return
	}
	err := m.activate(channel, gen, messageId, interval)
	if err != nil {
		m.registry.Release(channel, gen)
		slog.Error("unable to resume dashboard refreshes", "channel", channel, "error", err)
		return
	}
	slog.Info("dashboard refreshes resumed", "channel", channel, "message", messageId)
}

// activate starts the refresh task and commits the reservation gen.
func (m *Manager) activate(channel int64, gen uint64, messageId int, interval time.Duration) error {
	name := fmt.Sprintf("dashboard-%v", channel)
	task, err := m.scheduler.Every(name, interval, func() { m.tick(channel, gen) })
	if err != nil {
		return errors.Wrap(err, "unable to start dashboard refreshes")
	}
	if !m.registry.Commit(channel, gen, messageId, task) {
		task.Cancel()
		return errors.Errorf("registration for channel %v was superseded", channel)
	}
	m.recorder.ActiveDashboards(m.registry.Len())
	return nil
}

// tick refreshes the dashboard once. Any failure ends the dashboard for this
// process; a manual refresh or a restart brings it back. A failure on a
// message the dashboard has since moved away from is ignored.
func (m *Manager) tick(channel int64, gen uint64) {
	h, ok := m.registry.Get(channel)
	if !ok || h.gen != gen {
		return
	}
	err := m.renderInto(m.ctx, channel, h.MessageId)
	m.recorder.RefreshFinished(triggerTick, err)
	if err == nil {
		return
	}
	if _, removed := m.registry.RemoveIfMessage(channel, gen, h.MessageId); removed {
		slog.Error("dashboard refresh failed, stopping", "channel", channel, "message", h.MessageId, "error", err)
		m.recorder.ActiveDashboards(m.registry.Len())
		return
	}
	slog.Warn("dashboard moved during refresh", "channel", channel, "message", h.MessageId, "error", err)
}

func (m *Manager) renderInto(ctx context.Context, channel int64, messageId int) error {
	err := m.surface.Edit(ctx, channel, messageId, m.render(ctx))
	if err != nil {
		return errors.Wrapf(err, "unable to edit dashboard message %v", messageId)
	}
	return nil
}

func (m *Manager) deleteQuietly(ctx context.Context, channel int64, messageId int) {
	err := m.surface.Delete(ctx, channel, messageId)
	if err != nil {
		slog.Warn("unable to delete dashboard message", "channel", channel, "message", messageId, "error", err)
	}
}
