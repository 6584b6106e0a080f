// Package ingest records observed external events into the history store
// exactly once per natural key.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"media-dashboard-bot/db"
	"media-dashboard-bot/metrics"
	"media-dashboard-bot/sources"
)

const (
	KindWatch    = "watch"
	KindDownload = "download"

	downloadEventType = "grabbed"
)

// Store is the part of the history store the ingestor writes to. Both inserts
// must be atomic insert-if-absent operations.
type Store interface {
	InsertWatchEvent(ctx context.Context, e *db.WatchEvent) (bool, error)
	InsertDownloadEvent(ctx context.Context, e *db.DownloadEvent) (bool, error)
}

// Locker serializes work on one natural key across processes. The store alone
// already guarantees uniqueness, so a nil Locker is fine and a failed Lock only
// costs a redundant insert attempt.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Event is an observed event. Implemented by *db.WatchEvent and *db.DownloadEvent.
type Event interface {
	NaturalKey() string
}

type Ingestor struct {
	store    Store
	locker   Locker
	recorder metrics.Recorder
}

func New(store Store) *Ingestor {
	return &Ingestor{store: store, recorder: metrics.NoopRecorder{}}
}

func (i *Ingestor) WithLocker(l Locker) *Ingestor {
	i.locker = l
	return i
}

func (i *Ingestor) WithRecorder(r metrics.Recorder) *Ingestor {
	i.recorder = r
	return i
}

// Ingest stores the events that are not recorded yet and returns how many rows
// were written. It keeps going after a failed event and returns the first error.
func (i *Ingestor) Ingest(ctx context.Context, events []Event) (int, error) {
	count := 0
	var firstErr error
	for _, event := range events {
		inserted, err := i.ingestOne(ctx, event)
		if err != nil {
			slog.Error("unable to ingest event", "key", event.NaturalKey(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if inserted {
			count++
		}
	}
	return count, firstErr
}

func (i *Ingestor) ingestOne(ctx context.Context, event Event) (bool, error) {
	key := event.NaturalKey()
	if i.locker != nil {
		unlock, err := i.locker.Lock(ctx, key)
		if err != nil {
			slog.Warn("event lock unavailable, relying on the store", "key", key, "error", err)
		} else {
			defer unlock()
		}
	}
	var (
		inserted bool
		err      error
		kind     string
	)
	switch e := event.(type) {
	case *db.WatchEvent:
		kind = KindWatch
		inserted, err = i.store.InsertWatchEvent(ctx, e)
	case *db.DownloadEvent:
		kind = KindDownload
		inserted, err = i.store.InsertDownloadEvent(ctx, e)
	default:
		return false, errors.Errorf("unsupported event %T", event)
	}
	if err != nil {
		return false, errors.Wrapf(err, "cannot store %v", key)
	}
	i.recorder.EventObserved(kind, inserted)
	if inserted {
		slog.Debug("recorded event", "key", key)
	}
	return inserted, nil
}

// IngestSessions records a watch event per session.
func (i *Ingestor) IngestSessions(ctx context.Context, sessions []sources.Session, now time.Time) (int, error) {
	events := make([]Event, 0, len(sessions))
	for _, s := range sessions {
		if s.SessionId == "" {
			slog.Warn("session without id skipped", "title", s.Title)
			continue
		}
		events = append(events, WatchFromSession(s, now))
	}
	return i.Ingest(ctx, events)
}

// IngestQueue records a download event per queue item.
func (i *Ingestor) IngestQueue(ctx context.Context, source db.Source, mediaType string, items []sources.QueueItem, now time.Time) (int, error) {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		events = append(events, DownloadFromQueueItem(source, mediaType, item, now))
	}
	return i.Ingest(ctx, events)
}

func WatchFromSession(s sources.Session, now time.Time) *db.WatchEvent {
	return &db.WatchEvent{
		Username:  s.Username,
		Title:     s.Title,
		MediaType: s.MediaType,
		Duration:  s.Duration,
		Player:    s.Player,
		Quality:   s.Quality,
		SessionId: s.SessionId,
		Timestamp: now.UTC(),
	}
}

func DownloadFromQueueItem(source db.Source, mediaType string, item sources.QueueItem, now time.Time) *db.DownloadEvent {
	return &db.DownloadEvent{
		EventType:   downloadEventType,
		Source:      source,
		MediaType:   mediaType,
		Title:       item.Title,
		Quality:     item.Quality,
		Size:        item.Size,
		Status:      item.Status,
		ExternalRef: item.DownloadId,
		Timestamp:   now.UTC(),
	}
}
