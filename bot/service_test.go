package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-dashboard-bot/dashboard"
	"media-dashboard-bot/db"
	"media-dashboard-bot/render"
	"media-dashboard-bot/sources"
	"media-dashboard-bot/templates"
)

type fakeOrigin struct {
	channel   int64
	sender    int64
	responses []string
	replies   []render.Document
}

func (o *fakeOrigin) Channel() int64 { return o.channel }
func (o *fakeOrigin) Sender() int64  { return o.sender }

func (o *fakeOrigin) Respond(text string) error {
	o.responses = append(o.responses, text)
	return nil
}

func (o *fakeOrigin) Reply(doc render.Document) error {
	o.replies = append(o.replies, doc)
	return nil
}

type fakeLifecycle struct {
	createErr  error
	stopErr    error
	outcome    dashboard.Outcome
	refreshErr error
	relocated  bool
	created    []int64
}

func (l *fakeLifecycle) Create(_ context.Context, channel, _ int64) error {
	l.created = append(l.created, channel)
	return l.createErr
}

func (l *fakeLifecycle) Stop(context.Context, int64) error {
	return l.stopErr
}

func (l *fakeLifecycle) Refresh(_ context.Context, _, _ int64, relocate bool) (dashboard.Outcome, error) {
	l.relocated = relocate
	return l.outcome, l.refreshErr
}

type fakePoller struct {
	sessions     []sources.Session
	sessionsErr  error
	queues       []render.QueueState
	downloads    []sources.DownloadItem
	downloadsErr error
	historyErr   error
	watches      []db.WatchEvent
	limit        int
}

func (p *fakePoller) Sessions(context.Context) ([]sources.Session, error) {
	return p.sessions, p.sessionsErr
}

func (p *fakePoller) Queues(context.Context) []render.QueueState {
	return p.queues
}

func (p *fakePoller) Downloads(context.Context) ([]sources.DownloadItem, error) {
	return p.downloads, p.downloadsErr
}

func (p *fakePoller) History(_ context.Context, limit int) ([]db.WatchEvent, []db.DownloadEvent, error) {
	p.limit = limit
	return p.watches, nil, p.historyErr
}

type fakeStats struct {
	since time.Time
	err   error
}

func (s *fakeStats) WatchStatsByUser(_ context.Context, since time.Time) ([]db.UserStat, error) {
	s.since = since
	return []db.UserStat{{Username: "alice", Plays: 3, TotalDuration: 5400}}, s.err
}

func (s *fakeStats) WatchStatsByMediaType(context.Context, time.Time) ([]db.MediaTypeStat, error) {
	return []db.MediaTypeStat{{MediaType: "movie", Plays: 3, TotalDuration: 5400}}, nil
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *fakeLifecycle, *fakePoller, *fakeStats) {
	lifecycle := &fakeLifecycle{}
	poller := &fakePoller{}
	stats := &fakeStats{}
	s := NewService(context.Background(), lifecycle, poller, stats)
	s.now = func() time.Time { return testNow }
	return s, lifecycle, poller, stats
}

func TestCreateDashboard(t *testing.T) {
	s, lifecycle, _, _ := newTestService()
	o := &fakeOrigin{channel: 42, sender: 7}

	require.NoError(t, s.CreateDashboard(o))

	assert.Equal(t, []int64{42}, lifecycle.created)
	assert.Equal(t, []string{templates.Created}, o.responses)
}

func TestRefreshDashboardOutcomes(t *testing.T) {
	tests := []struct {
		outcome  dashboard.Outcome
		relocate bool
		expected string
	}{
		{dashboard.Edited, false, templates.Refreshed},
		{dashboard.Created, false, templates.Created},
		{dashboard.Relocated, true, templates.Relocated},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			s, lifecycle, _, _ := newTestService()
			lifecycle.outcome = tt.outcome
			o := &fakeOrigin{channel: 42}

			require.NoError(t, s.RefreshDashboard(o, tt.relocate))

			assert.Equal(t, tt.relocate, lifecycle.relocated)
			assert.Equal(t, []string{tt.expected}, o.responses)
		})
	}
}

func TestFailMapsLifecycleErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"already active", errors.Wrap(dashboard.ErrAlreadyActive, "channel 42"), templates.AlreadyActive},
		{"not active", dashboard.ErrNotActive, templates.NotActive},
		{"mismatch", &dashboard.ChannelMismatchError{Requested: 42, Configured: 99}, fmt.Sprintf(templates.ChannelMismatch, 99)},
		{"unexpected", errors.New("boom"), templates.UnexpectedError},
		{"upstream", sources.ErrUpstreamUnavailable, templates.UnexpectedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _, _ := newTestService()
			o := &fakeOrigin{channel: 42}

			s.fail(o, tt.err)

			assert.Equal(t, []string{tt.expected}, o.responses)
		})
	}
}

func TestStopDashboardNotActive(t *testing.T) {
	s, lifecycle, _, _ := newTestService()
	lifecycle.stopErr = dashboard.ErrNotActive

	err := s.StopDashboard(&fakeOrigin{channel: 42})

	assert.ErrorIs(t, err, dashboard.ErrNotActive)
}

func TestShowStreamsUpstreamDown(t *testing.T) {
	s, _, poller, _ := newTestService()
	poller.sessionsErr = &sources.UpstreamError{Source: "activity", Err: errors.New("timeout")}
	o := &fakeOrigin{channel: 42}

	require.NoError(t, s.ShowStreams(o))

	require.Len(t, o.replies, 1)
	assert.Contains(t, o.replies[0].Text, "Activity unavailable")
}

func TestShowStreams(t *testing.T) {
	s, _, poller, _ := newTestService()
	poller.sessions = []sources.Session{{SessionId: "s1", Username: "alice", Title: "Film", Progress: 10, Duration: 3600}}
	o := &fakeOrigin{channel: 42}

	require.NoError(t, s.ShowStreams(o))

	require.Len(t, o.replies, 1)
	assert.Contains(t, o.replies[0].Text, "alice")
	assert.Contains(t, o.replies[0].Text, "Film")
}

func TestShowDownloads(t *testing.T) {
	s, _, poller, _ := newTestService()
	poller.queues = []render.QueueState{{Source: db.SourceQueueA, Items: []sources.QueueItem{{Title: "Show S01E01", Size: 1024}}}}
	poller.downloadsErr = errors.New("refused")
	o := &fakeOrigin{channel: 42}

	require.NoError(t, s.ShowDownloads(o))

	require.Len(t, o.replies, 1)
	assert.Contains(t, o.replies[0].Text, "Show S01E01")
}

func TestShowHistory(t *testing.T) {
	s, _, poller, _ := newTestService()
	poller.watches = []db.WatchEvent{{Username: "bob", Title: "Film", Timestamp: testNow.Add(-time.Hour)}}
	o := &fakeOrigin{channel: 42}

	require.NoError(t, s.ShowHistory(o))

	assert.Equal(t, historyLimit, poller.limit)
	require.Len(t, o.replies, 1)
	assert.Contains(t, o.replies[0].Text, "bob")
}

func TestShowHistoryStoreDown(t *testing.T) {
	s, _, poller, _ := newTestService()
	poller.historyErr = errors.New("db down")

	err := s.ShowHistory(&fakeOrigin{channel: 42})

	assert.Error(t, err)
}

func TestShowStats(t *testing.T) {
	tests := []struct {
		args  string
		since time.Time
	}{
		{"", testNow.AddDate(0, 0, -defaultStatsDays)},
		{"30", testNow.AddDate(0, 0, -30)},
		{" 3d ", testNow.AddDate(0, 0, -3)},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			s, _, _, stats := newTestService()
			o := &fakeOrigin{channel: 42}

			require.NoError(t, s.ShowStats(o, tt.args))

			assert.Equal(t, tt.since, stats.since)
			require.Len(t, o.replies, 1)
			assert.Contains(t, o.replies[0].Text, "alice")
			assert.Contains(t, o.replies[0].Text, "movie")
		})
	}
}

func TestShowStatsBadArgs(t *testing.T) {
	for _, args := range []string{"abc", "0", "-5", "1000"} {
		s, _, _, stats := newTestService()
		o := &fakeOrigin{channel: 42}

		require.NoError(t, s.ShowStats(o, args))

		assert.True(t, stats.since.IsZero())
		assert.Equal(t, []string{templates.StatsUsage}, o.responses, args)
	}
}
