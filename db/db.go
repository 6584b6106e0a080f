package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("entity not found")
)

type DB struct {
	db      *bun.DB
	timeout time.Duration
}

const defaultTimeout = time.Minute

// New connects to Postgres.
func New(address, user, password, database string) *DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithInsecure(true),
		pgdriver.WithAddr(address),
		pgdriver.WithUser(user),
		pgdriver.WithPassword(password),
		pgdriver.WithDatabase(database),
	)
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{db: db, timeout: defaultTimeout}
}

// NewSQLite opens a SQLite database file. ":memory:" gives a private in-memory
// database, which only works with a single connection.
func NewSQLite(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open sqlite database %v", path)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	return &DB{db: db, timeout: defaultTimeout}, nil
}

func (d *DB) SetTimeout(duration time.Duration) {
	d.timeout = duration
}

func (d *DB) EnableDebug() {
	d.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Migrate creates the tables if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	models := []interface{}{
		(*DashboardConfig)(nil),
		(*WatchEvent)(nil),
		(*DownloadEvent)(nil),
	}
	for _, model := range models {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		_, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		cancel()
		if err != nil {
			return errors.Wrapf(err, "unable to create table for %T", model)
		}
	}
	return nil
}

func (d *DB) GetDashboardConfig(ctx context.Context) (DashboardConfig, error) {
	c := DashboardConfig{Id: dashboardConfigId}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&c).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return DashboardConfig{}, ErrNotFound
	}
	if err != nil {
		return DashboardConfig{}, errors.Wrap(err, "error during querying dashboard config")
	}
	return c, nil
}

// SetDashboardConfig overwrites the singleton config row.
func (d *DB) SetDashboardConfig(ctx context.Context, c DashboardConfig) error {
	c.Id = dashboardConfigId
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewInsert().
		Model(&c).
		On("CONFLICT (id) DO UPDATE").
		Set("message_id = EXCLUDED.message_id").
		Set("channel_id = EXCLUDED.channel_id").
		Set("owner_id = EXCLUDED.owner_id").
		Set("refresh_interval = EXCLUDED.refresh_interval").
		Set("last_updated = EXCLUDED.last_updated").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during saving dashboard config")
	}
	return nil
}

func (d *DB) WatchEventExists(ctx context.Context, sessionId string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.NewSelect().
		Model((*WatchEvent)(nil)).
		Where("session_id = ?", sessionId).
		Exists(ctx)
}

// InsertWatchEvent stores e unless a row with the same session id exists.
// The probe and the insert are one statement, so concurrent callers cannot
// both insert. Reports whether a row was written.
func (d *DB) InsertWatchEvent(ctx context.Context, e *WatchEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	res, err := d.db.NewInsert().
		Model(e).
		On("CONFLICT (session_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	return inserted(res, err, "watch event")
}

func (d *DB) DownloadEventExists(ctx context.Context, source Source, title string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.NewSelect().
		Model((*DownloadEvent)(nil)).
		Where("source = ?", source).
		Where("title = ?", title).
		Exists(ctx)
}

// InsertDownloadEvent stores e unless a row with the same (source, title) exists.
func (d *DB) InsertDownloadEvent(ctx context.Context, e *DownloadEvent) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	res, err := d.db.NewInsert().
		Model(e).
		On("CONFLICT (source, title) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	return inserted(res, err, "download event")
}

func inserted(res sql.Result, err error, entity string) (bool, error) {
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "error during adding %v", entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "unable to read affected rows for %v", entity)
	}
	return n > 0, nil
}

func (d *DB) RecentWatchEvents(ctx context.Context, limit int) ([]WatchEvent, error) {
	var events []WatchEvent
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&events).
		OrderExpr("timestamp DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying recent watch events")
	}
	return events, nil
}

func (d *DB) RecentDownloadEvents(ctx context.Context, limit int) ([]DownloadEvent, error) {
	var events []DownloadEvent
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&events).
		OrderExpr("timestamp DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying recent download events")
	}
	return events, nil
}

// WatchStatsByUser aggregates watch events recorded at or after since.
func (d *DB) WatchStatsByUser(ctx context.Context, since time.Time) ([]UserStat, error) {
	var stats []UserStat
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model((*WatchEvent)(nil)).
		Column("username").
		ColumnExpr("COUNT(*) AS plays").
		ColumnExpr("COALESCE(SUM(duration), 0) AS total_duration").
		Where("timestamp >= ?", since).
		Group("username").
		OrderExpr("plays DESC, username ASC").
		Scan(ctx, &stats)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying watch stats by user")
	}
	return stats, nil
}

func (d *DB) WatchStatsByMediaType(ctx context.Context, since time.Time) ([]MediaTypeStat, error) {
	var stats []MediaTypeStat
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model((*WatchEvent)(nil)).
		Column("media_type").
		ColumnExpr("COUNT(*) AS plays").
		ColumnExpr("COALESCE(SUM(duration), 0) AS total_duration").
		Where("timestamp >= ?", since).
		Group("media_type").
		OrderExpr("plays DESC, media_type ASC").
		Scan(ctx, &stats)
	if err != nil {
		return nil, errors.Wrap(err, "error during querying watch stats by media type")
	}
	return stats, nil
}
