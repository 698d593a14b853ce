package mapstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrMapNotFound is returned when no map has the requested ID.
var ErrMapNotFound = errors.New("mapstore: map not found")

// Store persists grids as MapRecords.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New creates a Store.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save stores g under a fresh ID and returns the record.
func (s *Store) Save(ctx context.Context, name string, g *grid.Grid, seed uint64) (*model.MapRecord, error) {
	rec, err := encode(g)
	if err != nil {
		return nil, err
	}
	rec.ID = uuid.NewString()
	rec.Name = name
	rec.Seed = seed
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("mapstore: save %q: %w", name, err)
	}
	s.logger.Info("map saved",
		zap.String("map_id", rec.ID),
		zap.String("name", name),
		zap.Int("size", rec.Size))
	return rec, nil
}

// Replace overwrites the tiles of an existing map and bumps its version.
func (s *Store) Replace(ctx context.Context, id string, g *grid.Grid) (*model.MapRecord, error) {
	enc, err := encode(g)
	if err != nil {
		return nil, err
	}
	var rec model.MapRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		rec.Size = enc.Size
		rec.Rows = enc.Rows
		rec.Costs = enc.Costs
		rec.Version++
		return tx.Save(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mapstore: replace %s: %w", id, err)
	}
	return &rec, nil
}

// Load returns the grid and record for id.
func (s *Store) Load(ctx context.Context, id string) (*grid.Grid, *model.MapRecord, error) {
	var rec model.MapRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrMapNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("mapstore: load %s: %w", id, err)
	}
	g, err := Decode(&rec)
	if err != nil {
		return nil, nil, err
	}
	return g, &rec, nil
}

// List returns every map without its tile rows, newest first.
func (s *Store) List(ctx context.Context) ([]model.MapRecord, error) {
	var recs []model.MapRecord
	err := s.db.WithContext(ctx).
		Select("id", "name", "size", "seed", "version", "created_at", "updated_at").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("mapstore: list: %w", err)
	}
	return recs, nil
}

func encode(g *grid.Grid) (*model.MapRecord, error) {
	rows, err := json.Marshal(g.Rows())
	if err != nil {
		return nil, err
	}
	costs, err := json.Marshal(g.Costs().Named())
	if err != nil {
		return nil, err
	}
	return &model.MapRecord{
		Size:    g.Size(),
		Rows:    datatypes.JSON(rows),
		Costs:   datatypes.JSON(costs),
		Version: 1,
	}, nil
}

// Decode rebuilds the grid held by rec.
func Decode(rec *model.MapRecord) (*grid.Grid, error) {
	var rows []string
	if err := json.Unmarshal(rec.Rows, &rows); err != nil {
		return nil, fmt.Errorf("mapstore: map %s rows: %w", rec.ID, err)
	}
	costs := grid.DefaultCosts()
	if len(rec.Costs) > 0 {
		var named map[string]float64
		if err := json.Unmarshal(rec.Costs, &named); err != nil {
			return nil, fmt.Errorf("mapstore: map %s costs: %w", rec.ID, err)
		}
		parsed, err := grid.ParseCosts(named)
		if err != nil {
			return nil, fmt.Errorf("mapstore: map %s costs: %w", rec.ID, err)
		}
		costs = parsed
	}
	g, err := grid.Parse(rows, costs)
	if err != nil {
		return nil, fmt.Errorf("mapstore: map %s: %w", rec.ID, err)
	}
	return g, nil
}
