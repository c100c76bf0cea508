// Package promptstore persists served requests so operators can review and
// search what the router has produced. Writes are best effort; the router
// never blocks or fails on storage trouble.
package promptstore

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"routerd/pkg/types"
)

// Record is one served request.
type Record struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskType  string    `gorm:"index" json:"task_type"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Backend   string    `gorm:"index" json:"backend"`
	Model     string    `json:"model"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the sqlite database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

// Record saves a served request. Satisfies the router's RecordSink; errors
// are logged, not returned.
func (s *Store) Record(ctx context.Context, req types.RouteRequest, resp types.RouteResponse) {
	rec := Record{
		TaskType:  string(req.Task),
		Prompt:    req.Prompt,
		Response:  resp.Content,
		Backend:   resp.Backend,
		Model:     resp.Model,
		LatencyMs: resp.LatencyMs,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.log.Warn().Err(err).Msg("prompt record write failed")
	}
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	var out []Record
	err := s.db.WithContext(ctx).Order("created_at desc").Limit(n).Find(&out).Error
	return out, err
}

// Search returns up to n records whose prompt or response contains the
// keyword, newest first.
func (s *Store) Search(ctx context.Context, keyword string, n int) ([]Record, error) {
	var out []Record
	pattern := "%" + strings.TrimSpace(keyword) + "%"
	err := s.db.WithContext(ctx).
		Where("prompt LIKE ? OR response LIKE ?", pattern, pattern).
		Order("created_at desc").Limit(n).Find(&out).Error
	return out, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
