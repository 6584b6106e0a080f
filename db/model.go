package db

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Source identifies which job queue a download event came from.
type Source string

const (
	SourceQueueA Source = "queue_a"
	SourceQueueB Source = "queue_b"
)

const dashboardConfigId = 1

// DashboardConfig is the singleton record describing where the dashboard lives.
type DashboardConfig struct {
	bun.BaseModel `bun:"table:dashboard_configs"`

	Id              int64 `bun:",pk"`
	MessageId       int   `bun:",notnull"`
	ChannelId       int64 `bun:",notnull"`
	OwnerId         int64
	RefreshInterval int64 `bun:",notnull"`
	LastUpdated     time.Time
}

// Interval returns the refresh interval, stored in milliseconds.
func (c DashboardConfig) Interval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Millisecond
}

type WatchEvent struct {
	bun.BaseModel `bun:"table:watch_events"`

	Id        int64  `bun:",pk,autoincrement"`
	Username  string `bun:",notnull"`
	Title     string `bun:",notnull"`
	MediaType string
	Duration  int64
	Player    string
	Quality   string
	SessionId string    `bun:",notnull,unique"`
	Timestamp time.Time `bun:",notnull"`
}

func (e *WatchEvent) NaturalKey() string {
	return fmt.Sprintf("watch:%v", e.SessionId)
}

type DownloadEvent struct {
	bun.BaseModel `bun:"table:download_events"`

	Id          int64  `bun:",pk,autoincrement"`
	EventType   string `bun:",notnull"`
	Source      Source `bun:",notnull,unique:download_events_source_title"`
	MediaType   string
	Title       string `bun:",notnull,unique:download_events_source_title"`
	Quality     string
	Size        int64
	Status      string
	ExternalRef string
	Timestamp   time.Time `bun:",notnull"`
}

// NaturalKey is (source, title). A second download of the same title from the
// same queue is indistinguishable from a repeated poll and is not recorded.
func (e *DownloadEvent) NaturalKey() string {
	return fmt.Sprintf("download:%v:%v", e.Source, e.Title)
}

// UserStat is one row of WatchStatsByUser.
type UserStat struct {
	Username      string
	Plays         int64
	TotalDuration int64
}

// MediaTypeStat is one row of WatchStatsByMediaType.
type MediaTypeStat struct {
	MediaType     string
	Plays         int64
	TotalDuration int64
}
