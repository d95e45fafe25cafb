// Package store persists datasets and tile layers edited in the CMS.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mohammed-shakir/tms-layers/internal/core/model"
)

var ErrNotFound = errors.New("not found")

type Filter struct {
	DatasetID  string
	DatasetIDs []string
	Limit      int
	Offset     int
}

type Store interface {
	GetLayer(ctx context.Context, id string) (*model.Layer, error)
	ListLayers(ctx context.Context, f Filter) ([]*model.Layer, error)
	LayerIDsForDataset(ctx context.Context, datasetID string) ([]string, error)
	SaveLayer(ctx context.Context, l *model.Layer) error
	GetDataset(ctx context.Context, id string) (*model.Dataset, error)
	ListDatasets(ctx context.Context) ([]*model.Dataset, error)
	SaveDataset(ctx context.Context, d *model.Dataset) error
}

type DB struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the sqlite file at dsn (":memory:" for tests) and
// migrates the schema.
func Open(dsn string, log *slog.Logger) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: dsn is required")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every pooled connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

func New(db *gorm.DB, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&model.Dataset{}, &model.Layer{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: db, logger: log.With("logger", "store")}, nil
}

func (s *DB) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks the database connection for readiness checks.
func (s *DB) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *DB) GetLayer(ctx context.Context, id string) (*model.Layer, error) {
	var l model.Layer
	err := s.db.WithContext(ctx).Preload("Dataset").Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get layer %q: %w", id, err)
	}
	return &l, nil
}

func (s *DB) ListLayers(ctx context.Context, f Filter) ([]*model.Layer, error) {
	q := s.db.WithContext(ctx).Preload("Dataset").Order("title, id")
	if f.DatasetID != "" {
		q = q.Where("dataset_id = ?", f.DatasetID)
	}
	if f.DatasetIDs != nil {
		if len(f.DatasetIDs) == 0 {
			return []*model.Layer{}, nil
		}
		q = q.Where("dataset_id IN ?", f.DatasetIDs)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var res []*model.Layer
	if err := q.Find(&res).Error; err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	return res, nil
}

func (s *DB) LayerIDsForDataset(ctx context.Context, datasetID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Layer{}).
		Where("dataset_id = ?", datasetID).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("layer ids for dataset %q: %w", datasetID, err)
	}
	return ids, nil
}

// SaveLayer inserts or replaces l. An empty id gets a new UUID.
func (s *DB) SaveLayer(ctx context.Context, l *model.Layer) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.DatasetID == "" && l.Dataset != nil {
		l.DatasetID = l.Dataset.ID
	}
	if l.DatasetID == "" {
		return fmt.Errorf("save layer %q: dataset is required", l.ID)
	}
	err := s.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).Create(l).Error
	if err != nil {
		s.logger.Error("error saving layer", slog.String("id", l.ID), slog.Any("error", err))
		return fmt.Errorf("save layer %q: %w", l.ID, err)
	}
	return nil
}

func (s *DB) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	var d model.Dataset
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("dataset %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %q: %w", id, err)
	}
	return &d, nil
}

func (s *DB) ListDatasets(ctx context.Context) ([]*model.Dataset, error) {
	var res []*model.Dataset
	if err := s.db.WithContext(ctx).Order("title, id").Find(&res).Error; err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return res, nil
}

func (s *DB) SaveDataset(ctx context.Context, d *model.Dataset) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(d).Error
	if err != nil {
		s.logger.Error("error saving dataset", slog.String("id", d.ID), slog.Any("error", err))
		return fmt.Errorf("save dataset %q: %w", d.ID, err)
	}
	return nil
}
