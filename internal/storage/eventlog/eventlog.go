// Package eventlog persists the connection lifecycle audit trail
// (discovered/connecting/connected/disconnected/error) to Postgres via
// GORM. It is optional: the core's non-goal on device telemetry
// history does not bar a connection-lifecycle audit trail, which is a
// distinct concern, but persisting it is still opt-in.
package eventlog

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	cfgpkg "github.com/tsnbridge/veloctl/internal/config"
	"github.com/tsnbridge/veloctl/internal/registry"
)

// Record is the persisted row shape for one connection lifecycle
// event.
type Record struct {
	ID        uint64    `gorm:"primaryKey"`
	Path      string    `gorm:"index;size:255"`
	Kind      string    `gorm:"size:32"`
	Err       string    `gorm:"size:1024"`
	CreatedAt time.Time `gorm:"index"`
}

func (Record) TableName() string { return "connection_events" }

// Store owns the GORM handle backing the audit trail.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres per cfg and migrates the connection_events
// table.
func Open(cfg cfgpkg.EventLogConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append inserts one event row.
func (s *Store) Append(ctx context.Context, e registry.Event) error {
	return s.db.WithContext(ctx).Create(&Record{
		Path:      e.Path,
		Kind:      string(e.Kind),
		Err:       e.Err,
		CreatedAt: e.At,
	}).Error
}

// Recent returns the most recent events for path, newest first,
// capped at limit.
func (s *Store) Recent(ctx context.Context, path string, limit int) ([]Record, error) {
	var out []Record
	q := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
	if path != "" {
		q = q.Where("path = ?", path)
	}
	if limit <= 0 {
		limit = 100
	}
	err := q.Limit(limit).Find(&out).Error
	return out, err
}

// Ping verifies the connection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Sink adapts Store into a registry.EventSink; Append errors are
// logged by the caller-supplied onErr hook rather than propagated,
// matching the observability-side-channel treatment the event bus
// sink also uses.
type Sink struct {
	store *Store
	onErr func(error)
}

func NewSink(store *Store, onErr func(error)) *Sink {
	return &Sink{store: store, onErr: onErr}
}

func (s *Sink) Publish(e registry.Event) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Append(ctx, e); err != nil && s.onErr != nil {
		s.onErr(err)
	}
}
