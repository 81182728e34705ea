package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Snapshot — строка таблицы снимков: один ключ хранилища, один полный снимок.
type Snapshot struct {
	Key           string `gorm:"primaryKey;size:128"`
	SchemaVersion int    `gorm:"not null"`
	Payload       []byte `gorm:"not null"`
	Checksum      string `gorm:"size:64;not null"`
	UpdatedAt     time.Time
}

// InitDB opens the database behind dsn and migrates the snapshot table.
// postgres:// and postgresql:// go to the postgres driver, anything else is a sqlite path.
func InitDB(dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dial = postgres.Open(dsn)
	default:
		if dsn == "" {
			dsn = "haventory.db"
		}
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}

// GormSink stores the snapshot as one row keyed by store key.
type GormSink struct {
	db  *gorm.DB
	key string
}

var _ Sink = (*GormSink)(nil)

func NewGormSink(db *gorm.DB, key string) *GormSink {
	return &GormSink{db: db, key: key}
}

func (s *GormSink) Load(ctx context.Context) (Record, bool, error) {
	var row Snapshot
	err := s.db.WithContext(ctx).Where("key = ?", s.key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load snapshot %q: %w", s.key, err)
	}
	return Record{Payload: row.Payload, Checksum: row.Checksum}, true, nil
}

// Save upserts the row in a single statement.
func (s *GormSink) Save(ctx context.Context, rec Record) error {
	row := &Snapshot{
		Key:           s.key,
		SchemaVersion: SchemaVersion,
		Payload:       rec.Payload,
		Checksum:      rec.Checksum,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "payload", "checksum", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", s.key, err)
	}
	return nil
}

func (s *GormSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
