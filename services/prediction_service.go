package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ejfeldman7/lakebase-image-serving/config"
	"github.com/ejfeldman7/lakebase-image-serving/db"
	"github.com/ejfeldman7/lakebase-image-serving/models"
)

// Filter narrows the prediction set. Zero values mean "no restriction".
// Score bounds are inclusive on both ends.
type Filter struct {
	Label       string
	LabelDetail string
	Search      string
	MinScore    *float64
	MaxScore    *float64
}

// conditions renders the filter as a conjunctive WHERE fragment with
// positional parameters. Predicates are emitted in a fixed order so the
// generated SQL is stable.
func (f Filter) conditions() (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Search != "" {
		conds = append(conds, config.PathColumn+" ILIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if f.Label != "" {
		conds = append(conds, "label = ?")
		args = append(args, f.Label)
	}
	if f.LabelDetail != "" {
		conds = append(conds, `"labelDetail" = ?`)
		args = append(args, f.LabelDetail)
	}
	if f.MinScore != nil {
		conds = append(conds, "score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		conds = append(conds, "score <= ?")
		args = append(args, *f.MaxScore)
	}
	return strings.Join(conds, " AND "), args
}

// PredictionService is the query layer over the synced predictions table.
// All reads go through the credential-refreshing pool.
type PredictionService struct {
	pool   *db.Pool
	schema string
	table  string
}

func NewPredictionService(pool *db.Pool, cfg *config.Config) *PredictionService {
	return &PredictionService{pool: pool, schema: cfg.Schema, table: cfg.Table}
}

// Schema reports the schema currently in use; EnsureTable may have adopted
// one other than the configured default.
func (s *PredictionService) Schema() string {
	return s.schema
}

// tableRef is the quoted schema-qualified table name. Schema and table come
// from configuration, never from request input.
func (s *PredictionService) tableRef() string {
	return fmt.Sprintf("%q.%q", s.schema, s.table)
}

func (s *PredictionService) conn(ctx context.Context) (*gorm.DB, error) {
	handle, err := s.pool.DB(ctx)
	if err != nil {
		return nil, err
	}
	return handle.WithContext(ctx), nil
}

// EnsureTable verifies the predictions table is reachable. If it is missing
// from the configured schema, the first schema that does contain it is
// adopted instead. Called once at startup, before the service handles
// requests.
func (s *PredictionService) EnsureTable(ctx context.Context) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}

	var exists bool
	err = conn.Raw(`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = ? AND table_name = ?
		)`, s.schema, s.table).Scan(&exists).Error
	if err != nil {
		return errors.Wrap(err, "check predictions table")
	}
	if exists {
		return nil
	}

	var found string
	err = conn.Raw(`SELECT table_schema FROM information_schema.tables
			WHERE table_name = ?
			ORDER BY table_schema
			LIMIT 1`, s.table).Scan(&found).Error
	if err != nil {
		return errors.Wrap(err, "search schemas for predictions table")
	}
	if found == "" {
		return errors.Errorf("table %q not found in any schema", s.table)
	}

	log.WithFields(log.Fields{"configured": s.schema, "found": found}).
		Warn("predictions table not in configured schema, adopting the one that has it")
	s.schema = found
	return nil
}

// Labels returns the distinct labels, alphabetical, for dropdown
// population.
func (s *PredictionService) Labels(ctx context.Context) ([]string, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var labels []string
	err = conn.Raw(fmt.Sprintf(
		`SELECT DISTINCT label FROM %s WHERE label IS NOT NULL ORDER BY label`,
		s.tableRef())).Scan(&labels).Error
	if err != nil {
		return nil, errors.Wrap(err, "list labels")
	}
	return labels, nil
}

// LabelDetails returns the distinct label details, restricted to the given
// label when one is selected. The result is always a subset of the details
// that occur under that label.
func (s *PredictionService) LabelDetails(ctx context.Context, label string) ([]string, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT DISTINCT "labelDetail" FROM %s WHERE "labelDetail" IS NOT NULL`, s.tableRef())
	var args []interface{}
	if label != "" {
		q += " AND label = ?"
		args = append(args, label)
	}
	q += ` ORDER BY "labelDetail"`

	var details []string
	if err := conn.Raw(q, args...).Scan(&details).Error; err != nil {
		return nil, errors.Wrap(err, "list label details")
	}
	return details, nil
}

// ScoreBounds returns the lowest and highest score in the table, or (0, 1)
// when the table holds no scores.
func (s *PredictionService) ScoreBounds(ctx context.Context) (float64, float64, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return 0, 0, err
	}

	var row struct {
		Min sql.NullFloat64
		Max sql.NullFloat64
	}
	err = conn.Raw(fmt.Sprintf(
		`SELECT MIN(score) AS min, MAX(score) AS max FROM %s WHERE score IS NOT NULL`,
		s.tableRef())).Scan(&row).Error
	if err != nil {
		return 0, 0, errors.Wrap(err, "score bounds")
	}
	if !row.Min.Valid || !row.Max.Valid {
		return 0, 1, nil
	}
	return row.Min.Float64, row.Max.Float64, nil
}

// Paths returns every matching image path, ordered by path, for the
// comparison dropdowns.
func (s *PredictionService) Paths(ctx context.Context, f Filter) ([]string, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT %s FROM %s", config.PathColumn, s.tableRef())
	where, args := f.conditions()
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + config.PathColumn

	var paths []string
	if err := conn.Raw(q, args...).Scan(&paths).Error; err != nil {
		return nil, errors.Wrap(err, "list image paths")
	}
	return paths, nil
}

// PathsPage is the paginated variant of Paths.
func (s *PredictionService) PathsPage(ctx context.Context, f Filter, limit, offset int) ([]string, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = config.DefaultItemsPerPage
	}
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf("SELECT %s FROM %s", config.PathColumn, s.tableRef())
	where, args := f.conditions()
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + config.PathColumn + " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var paths []string
	if err := conn.Raw(q, args...).Scan(&paths).Error; err != nil {
		return nil, errors.Wrap(err, "list image paths page")
	}
	return paths, nil
}

// Count returns the number of rows the filter matches.
func (s *PredictionService) Count(ctx context.Context, f Filter) (int64, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableRef())
	where, args := f.conditions()
	if where != "" {
		q += " WHERE " + where
	}

	var count int64
	if err := conn.Raw(q, args...).Scan(&count).Error; err != nil {
		return 0, errors.Wrap(err, "count images")
	}
	return count, nil
}

// Find returns the first record for a path, for the comparison metadata
// panel. Paths are not unique in the table; any matching row will do.
func (s *PredictionService) Find(ctx context.Context, path string) (*models.PredictionRecord, error) {
	conn, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var recs []models.PredictionRecord
	q := fmt.Sprintf(`SELECT %s, label, "labelDetail", score FROM %s WHERE %s = ? LIMIT 1`,
		config.PathColumn, s.tableRef(), config.PathColumn)
	if err := conn.Raw(q, path).Scan(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "find prediction record")
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}
