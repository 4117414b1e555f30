// Package sqlstore implements checkpoint.Store on top of gorm, backed by
// PostgreSQL in production and SQLite for local runs and tests.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/hupe1980/threadmesh/checkpoint"
)

// Row is the persisted shape of a checkpoint. thread_id is unique; the
// checkpoint_key column mirrors it as {"thread_id": ...} for consumers that
// look rows up by key object.
type Row struct {
	ThreadID      string         `gorm:"column:thread_id;type:varchar(255);primaryKey"`
	CheckpointKey datatypes.JSON `gorm:"column:checkpoint_key;not null"`
	State         datatypes.JSON `gorm:"column:state;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index"`
}

// TableName pins the table name.
func (Row) TableName() string { return "checkpoints" }

// Store is a gorm backed checkpoint.Store.
type Store struct {
	db   *gorm.DB
	opts checkpoint.Options
}

// New wraps an open gorm connection. Call Migrate once before first use.
func New(db *gorm.DB, optFns ...func(o *checkpoint.Options)) *Store {
	opts := checkpoint.DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{db: db, opts: opts}
}

// Config returns the gorm configuration used by the Open helpers.
func Config() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database. SQLite allows a single
// writer, so the pool is limited to one connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the checkpoints table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return checkpoint.Wrap("migrate", "", err)
	}
	return nil
}

// Save upserts the checkpoint of threadID in a single transaction.
func (s *Store) Save(ctx context.Context, threadID string, state json.RawMessage) error {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return err
	}
	key, err := json.Marshal(map[string]string{"thread_id": threadID})
	if err != nil {
		return checkpoint.Wrap("save", threadID, err)
	}
	row := Row{
		ThreadID:      threadID,
		CheckpointKey: datatypes.JSON(key),
		State:         datatypes.JSON(state),
		CreatedAt:     s.opts.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "thread_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"checkpoint_key", "state", "created_at"}),
		}).Create(&row).Error
	})
	return checkpoint.Wrap("save", threadID, err)
}

// Get loads the checkpoint of threadID.
func (s *Store) Get(ctx context.Context, threadID string) (*checkpoint.Checkpoint, bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return nil, false, err
	}
	var row Row
	err := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, checkpoint.Wrap("get", threadID, err)
	}
	return &checkpoint.Checkpoint{
		ThreadID:  row.ThreadID,
		State:     json.RawMessage(row.State),
		CreatedAt: row.CreatedAt,
	}, true, nil
}

// Delete removes the checkpoint of threadID.
func (s *Store) Delete(ctx context.Context, threadID string) (bool, error) {
	if err := checkpoint.CheckThreadID(threadID); err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&Row{})
	if res.Error != nil {
		return false, checkpoint.Wrap("delete", threadID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
