package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"media-dashboard-bot/db"
	"media-dashboard-bot/metrics"
	"media-dashboard-bot/render"
	"media-dashboard-bot/sources"
)

var ErrNotConfigured = errors.New("source is not configured")

const HistoryLimit = 10

type ActivitySource interface {
	GetActiveSessions(ctx context.Context) ([]sources.Session, error)
}

type QueueSource interface {
	GetQueue(ctx context.Context) ([]sources.QueueItem, error)
}

type DownloadSource interface {
	GetActiveDownloads(ctx context.Context) ([]sources.DownloadItem, error)
}

type History interface {
	RecentWatchEvents(ctx context.Context, limit int) ([]db.WatchEvent, error)
	RecentDownloadEvents(ctx context.Context, limit int) ([]db.DownloadEvent, error)
}

// QueueConfig binds a job queue to the source name and media type its events
// are recorded under.
type QueueConfig struct {
	Source    db.Source
	MediaType string
	Queue     QueueSource
}

// Collector polls the live sources, feeds what it sees to the Ingestor and
// assembles the state a render needs. Any number of callers may use it at the
// same time; deduplication is left to the Ingestor.
type Collector struct {
	ingestor  *Ingestor
	activity  ActivitySource
	queues    []QueueConfig
	downloads DownloadSource
	history   History
	recorder  metrics.Recorder
	now       func() time.Time
}

func NewCollector(
	ingestor *Ingestor,
	activity ActivitySource,
	queues []QueueConfig,
	downloads DownloadSource,
	history History,
) *Collector {
	return &Collector{
		ingestor:  ingestor,
		activity:  activity,
		queues:    queues,
		downloads: downloads,
		history:   history,
		recorder:  metrics.NoopRecorder{},
		now:       time.Now,
	}
}

func (c *Collector) WithRecorder(r metrics.Recorder) *Collector {
	c.recorder = r
	return c
}

// Sessions polls the activity feed and records every session seen.
func (c *Collector) Sessions(ctx context.Context) ([]sources.Session, error) {
	if c.activity == nil {
		return nil, ErrNotConfigured
	}
	sessions, err := c.activity.GetActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	_, err = c.ingestor.IngestSessions(ctx, sessions, c.now())
	if err != nil {
		slog.Error("unable to record sessions", "error", err)
	}
	return sessions, nil
}

// Queues polls both job queues and records every item seen.
func (c *Collector) Queues(ctx context.Context) []render.QueueState {
	states := make([]render.QueueState, len(c.queues))
	var wg sync.WaitGroup
	for i, q := range c.queues {
		wg.Add(1)
		go func(i int, q QueueConfig) {
			defer wg.Done()
			states[i] = c.queue(ctx, q)
		}(i, q)
	}
	wg.Wait()
	return states
}

func (c *Collector) queue(ctx context.Context, q QueueConfig) render.QueueState {
	state := render.QueueState{Source: q.Source}
	items, err := q.Queue.GetQueue(ctx)
	if err != nil {
		state.Err = err
		return state
	}
	state.Items = items
	_, err = c.ingestor.IngestQueue(ctx, q.Source, q.MediaType, items, c.now())
	if err != nil {
		slog.Error("unable to record queue items", "source", q.Source, "error", err)
	}
	return state
}

func (c *Collector) Downloads(ctx context.Context) ([]sources.DownloadItem, error) {
	if c.downloads == nil {
		return nil, ErrNotConfigured
	}
	return c.downloads.GetActiveDownloads(ctx)
}

func (c *Collector) History(ctx context.Context, limit int) ([]db.WatchEvent, []db.DownloadEvent, error) {
	watches, err := c.history.RecentWatchEvents(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	downloads, err := c.history.RecentDownloadEvents(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	return watches, downloads, nil
}

// Snapshot polls every source concurrently. History is read after ingestion so
// the events just observed are part of it.
func (c *Collector) Snapshot(ctx context.Context) render.State {
	state := render.State{Now: c.now()}
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		state.Sessions, state.SessionsErr = c.Sessions(ctx)
	}()
	go func() {
		defer wg.Done()
		state.Queues = c.Queues(ctx)
	}()
	go func() {
		defer wg.Done()
		state.Downloads, state.DownloadsErr = c.Downloads(ctx)
	}()
	wg.Wait()
	state.RecentWatches, state.RecentDownloads, state.HistoryErr = c.History(ctx, HistoryLimit)
	for _, section := range state.FailedSections() {
		c.recorder.SectionFailed(section)
	}
	c.logFailures(state)
	return state
}

func (c *Collector) logFailures(state render.State) {
	if state.SessionsErr != nil {
		slog.Warn("activity section unavailable", "error", state.SessionsErr)
	}
	for _, q := range state.Queues {
		if q.Err != nil {
			slog.Warn("queue section unavailable", "source", q.Source, "error", q.Err)
		}
	}
	if state.DownloadsErr != nil {
		slog.Warn("download client unavailable", "error", state.DownloadsErr)
	}
	if state.HistoryErr != nil {
		slog.Warn("history section unavailable", "error", state.HistoryErr)
	}
}
