// Package stats persists the usage counter: how many conversions finished,
// per operation, plus a short log of recent ones. It lives outside the
// conversion engines and is only fed success events.
package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Counter is the running total for one operation.
type Counter struct {
	Operation string `gorm:"primaryKey"`
	Count     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// Conversion records one finished job.
type Conversion struct {
	ID        uint   `gorm:"primaryKey"`
	Operation string `gorm:"index;not null"`
	Filename  string
	Pages     int
	Bytes     int64
	CreatedAt time.Time `gorm:"index"`
}

// Entry is the data recorded for a finished job.
type Entry struct {
	Operation string
	Filename  string
	Pages     int
	Bytes     int64
	Time      time.Time
}

// Store is a SQLite-backed counter store.
type Store struct {
	db *gorm.DB
}

// Open opens or creates the store at path, creating parent directories.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating stats directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}
	// one connection: SQLite has a single writer, and every connection to
	// ":memory:" would otherwise see its own empty database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Counter{}, &Conversion{}); err != nil {
		return nil, fmt.Errorf("migrating stats database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record increments the operation's counter and logs the conversion in one
// transaction.
func (s *Store) Record(e Entry) error {
	if e.Operation == "" {
		return errors.New("stats: entry has no operation")
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "operation"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":      gorm.Expr("count + 1"),
				"updated_at": e.Time,
			}),
		}).Create(&Counter{Operation: e.Operation, Count: 1, UpdatedAt: e.Time}).Error
		if err != nil {
			return fmt.Errorf("incrementing counter: %w", err)
		}
		conv := Conversion{
			Operation: e.Operation,
			Filename:  e.Filename,
			Pages:     e.Pages,
			Bytes:     e.Bytes,
			CreatedAt: e.Time,
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("logging conversion: %w", err)
		}
		return nil
	})
}

// Total returns the number of conversions across all operations.
func (s *Store) Total() (int64, error) {
	var total int64
	err := s.db.Model(&Counter{}).Select("COALESCE(SUM(count), 0)").Scan(&total).Error
	return total, err
}

// Counts returns the counter of every operation that has run at least once.
func (s *Store) Counts() (map[string]int64, error) {
	var counters []Counter
	if err := s.db.Order("operation").Find(&counters).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(counters))
	for _, c := range counters {
		counts[c.Operation] = c.Count
	}
	return counts, nil
}

// Recent returns up to n conversions, newest first.
func (s *Store) Recent(n int) ([]Conversion, error) {
	var convs []Conversion
	err := s.db.Order("created_at DESC, id DESC").Limit(n).Find(&convs).Error
	return convs, err
}

// Reset clears all counters and the conversion log.
func (s *Store) Reset() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Counter{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&Conversion{}).Error
	})
}
