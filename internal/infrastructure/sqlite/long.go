package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

const longSchema = `
CREATE TABLE IF NOT EXISTS nutrient_values (
	food     TEXT    NOT NULL,
	category TEXT    NOT NULL,
	nutrient TEXT    NOT NULL,
	value_mg REAL    NOT NULL DEFAULT 0,
	inexact  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (food, category, nutrient)
)`

// LongStore keeps every nutrient reading as its own row in a single
// nutrient_values table, so new nutrients never change the schema
type LongStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

var _ domain.CategoryStore = (*LongStore)(nil)

// NewLongStore creates the nutrient_values table if needed
func NewLongStore(ctx context.Context, db *sql.DB, logger zerolog.Logger) (*LongStore, error) {
	if _, err := db.ExecContext(ctx, longSchema); err != nil {
		return nil, fmt.Errorf("%w: create nutrient_values: %v", domain.ErrSchemaWrite, err)
	}
	return &LongStore{
		db:     db,
		logger: logger.With().Str("component", "long_store").Logger(),
	}, nil
}

// Write replaces every reading of the record's food in its category
func (s *LongStore) Write(ctx context.Context, record *domain.CategoryRecord) (*domain.WriteResult, error) {
	category := record.Category.Table

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result := &domain.WriteResult{Table: category, Food: record.Food}

	foods, err := countRows(ctx, tx, "SELECT COUNT(DISTINCT food) FROM nutrient_values WHERE category = ?", category)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", category, err)
	}
	result.Created = foods == 0

	result.CountBefore, err = countRows(ctx, tx,
		"SELECT COUNT(*) FROM nutrient_values WHERE food = ? AND category = ?", record.Food, category)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", category, err)
	}
	result.Replaced = result.CountBefore > 0

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nutrient_values WHERE food = ? AND category = ?", record.Food, category); err != nil {
		return nil, fmt.Errorf("failed to clear %s in %s: %w", record.Food, category, err)
	}

	for _, a := range record.Attributes {
		inexact := 0
		if !a.Value.IsExact() {
			inexact = 1
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO nutrient_values (food, category, nutrient, value_mg, inexact) VALUES (?, ?, ?, ?, ?)",
			record.Food, category, a.Name, a.Value.MG, inexact); err != nil {
			return nil, fmt.Errorf("failed to insert %s/%s: %w", record.Food, a.Name, err)
		}
	}

	result.CountAfter, err = countRows(ctx, tx,
		"SELECT COUNT(*) FROM nutrient_values WHERE food = ? AND category = ?", record.Food, category)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", category, err)
	}
	if result.CountAfter != int64(len(record.Attributes)) {
		return nil, fmt.Errorf("%w: %s/%s: expected %d readings, found %d",
			domain.ErrIntegrityMismatch, category, record.Food, len(record.Attributes), result.CountAfter)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", category, err)
	}
	return result, nil
}

// Read returns the readings of food in category
func (s *LongStore) Read(ctx context.Context, table, food string) (*domain.CategoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT nutrient, value_mg, inexact FROM nutrient_values WHERE food = ? AND category = ? ORDER BY rowid",
		food, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	record := domain.NewCategoryRecord(food, domain.Category{Table: table})
	for rows.Next() {
		var name string
		var mg float64
		var inexact int
		if err := rows.Scan(&name, &mg, &inexact); err != nil {
			return nil, err
		}
		record.Set(name, toValue(mg, inexact))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(record.Attributes) == 0 {
		n, err := s.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, table)
		}
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrFoodNotFound, food, table)
	}
	return record, nil
}

// Table pivots a category into the dense wide shape. Nutrient names are
// folded case-insensitively like wide columns; nutrients a food lacks read
// as zero.
func (s *LongStore) Table(ctx context.Context, table string) (*domain.CategoryTable, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT food, nutrient, value_mg, inexact FROM nutrient_values WHERE category = ? ORDER BY rowid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	result := &domain.CategoryTable{Name: table, Columns: []string{domain.FoodColumn}}
	canonical := map[string]string{strings.ToLower(domain.FoodColumn): ""}
	byFood := make(map[string]map[string]string)
	var order []string

	for rows.Next() {
		var food, name string
		var mg float64
		var inexact int
		if err := rows.Scan(&food, &name, &mg, &inexact); err != nil {
			return nil, err
		}
		column, ok := canonical[strings.ToLower(name)]
		if !ok {
			column = name
			canonical[strings.ToLower(name)] = column
			result.Columns = append(result.Columns, column)
		}
		if column == "" {
			continue
		}
		row, ok := byFood[food]
		if !ok {
			row = map[string]string{domain.FoodColumn: food}
			byFood[food] = row
			order = append(order, food)
		}
		row[column] = toValue(mg, inexact).String()
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, table)
	}

	for _, food := range order {
		row := byFood[food]
		for _, c := range result.Columns[1:] {
			if _, ok := row[c]; !ok {
				row[c] = "0"
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// Count returns the number of foods with readings in category
func (s *LongStore) Count(ctx context.Context, table string) (int64, error) {
	return countRows(ctx, s.db, "SELECT COUNT(DISTINCT food) FROM nutrient_values WHERE category = ?", table)
}

// Tables lists the categories that have readings
func (s *LongStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT category FROM nutrient_values ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Close closes the underlying database
func (s *LongStore) Close() error {
	return s.db.Close()
}

func toValue(mg float64, inexact int) domain.Value {
	if inexact != 0 {
		return domain.Value{MG: mg, Bound: domain.Below}
	}
	return domain.Value{MG: mg}
}
