package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
)

// WideStore keeps one table per category with one REAL column per nutrient.
// New nutrients are added as columns on the fly and existing rows are
// backfilled with zero.
type WideStore struct {
	db          *sql.DB
	textInexact bool
	logger      zerolog.Logger
}

var _ domain.CategoryStore = (*WideStore)(nil)

// NewWideStore creates a wide store. With textInexact, detection-limit
// values are stored as "<x" text instead of the bare number.
func NewWideStore(db *sql.DB, textInexact bool, logger zerolog.Logger) *WideStore {
	return &WideStore{
		db:          db,
		textInexact: textInexact,
		logger:      logger.With().Str("component", "wide_store").Logger(),
	}
}

// Write replaces the record's row in its category table, evolving the
// schema first. The row count must change by exactly one for a new food
// and not at all for a replaced one, otherwise nothing is committed.
func (s *WideStore) Write(ctx context.Context, record *domain.CategoryRecord) (*domain.WriteResult, error) {
	table := record.Category.Table
	logger := s.logger.With().Str("table", table).Str("food", record.Food).Logger()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	columns, err := tableColumns(ctx, tx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	result := &domain.WriteResult{Table: table, Food: record.Food}
	var schemaErrs []error

	if len(columns) == 0 {
		columns, err = s.createTable(ctx, tx, table, record)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", domain.ErrSchemaWrite, table, err)
		}
		result.Created = true
		result.AddedColumns = columns[1:]
	} else {
		have := make(map[string]bool, len(columns))
		for _, c := range columns {
			have[strings.ToLower(c)] = true
		}
		for _, name := range record.Names() {
			if have[strings.ToLower(name)] {
				continue
			}
			if err := s.addColumn(ctx, tx, table, name); err != nil {
				logger.Error().Err(err).Str("column", name).Msg("failed to add column")
				schemaErrs = append(schemaErrs, err)
				result.DroppedAttributes = append(result.DroppedAttributes, name)
				continue
			}
			have[strings.ToLower(name)] = true
			columns = append(columns, name)
			result.AddedColumns = append(result.AddedColumns, name)
		}
	}
	for _, name := range record.Names() {
		if strings.EqualFold(name, domain.FoodColumn) {
			result.DroppedAttributes = append(result.DroppedAttributes, name)
			schemaErrs = append(schemaErrs, fmt.Errorf("attribute %q collides with the key column", name))
		}
	}

	result.CountBefore, err = countRows(ctx, tx, "SELECT COUNT(*) FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}
	existing, err := countRows(ctx, tx,
		"SELECT COUNT(*) FROM "+quoteIdent(table)+" WHERE "+quoteIdent(domain.FoodColumn)+" = ?", record.Food)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s in %s: %w", record.Food, table, err)
	}
	result.Replaced = existing > 0

	if err := s.insert(ctx, tx, table, columns, record); err != nil {
		return nil, fmt.Errorf("failed to insert %s into %s: %w", record.Food, table, err)
	}

	result.CountAfter, err = countRows(ctx, tx, "SELECT COUNT(*) FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}

	expected := result.CountBefore + 1
	if result.Replaced {
		expected = result.CountBefore
	}
	if result.CountAfter != expected {
		return nil, fmt.Errorf("%w: %s: expected %d rows, found %d",
			domain.ErrIntegrityMismatch, table, expected, result.CountAfter)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", table, err)
	}

	if len(schemaErrs) > 0 {
		return result, fmt.Errorf("%w: %s: %w", domain.ErrSchemaWrite, table, errors.Join(schemaErrs...))
	}
	return result, nil
}

// createTable creates table with the record's attributes and returns its columns
func (s *WideStore) createTable(ctx context.Context, tx *sql.Tx, table string, record *domain.CategoryRecord) ([]string, error) {
	columns := []string{domain.FoodColumn}
	defs := []string{quoteIdent(domain.FoodColumn) + " TEXT PRIMARY KEY"}
	seen := map[string]bool{strings.ToLower(domain.FoodColumn): true}
	for _, name := range record.Names() {
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		columns = append(columns, name)
		defs = append(defs, quoteIdent(name)+" REAL NOT NULL DEFAULT 0")
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return nil, err
	}
	s.logger.Info().Str("table", table).Int("columns", len(columns)).Msg("created category table")
	return columns, nil
}

// addColumn adds a nutrient column and zero-fills it for existing rows
func (s *WideStore) addColumn(ctx context.Context, tx *sql.Tx, table, column string) error {
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s REAL NOT NULL DEFAULT 0", quoteIdent(table), quoteIdent(column))
	if _, err := tx.ExecContext(ctx, alter); err != nil {
		return fmt.Errorf("add column %q: %w", column, err)
	}
	backfill := fmt.Sprintf("UPDATE %s SET %s = 0 WHERE %s IS NULL", quoteIdent(table), quoteIdent(column), quoteIdent(column))
	if _, err := tx.ExecContext(ctx, backfill); err != nil {
		return fmt.Errorf("backfill column %q: %w", column, err)
	}
	s.logger.Debug().Str("table", table).Str("column", column).Msg("added column")
	return nil
}

// insert writes the full row. Columns the record lacks are written as zero.
func (s *WideStore) insert(ctx context.Context, tx *sql.Tx, table string, columns []string, record *domain.CategoryRecord) error {
	values := make(map[string]domain.Value, len(record.Attributes))
	for _, a := range record.Attributes {
		values[strings.ToLower(a.Name)] = a.Value
	}

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
		if i == 0 {
			args[i] = record.Food
			continue
		}
		v, ok := values[strings.ToLower(c)]
		if !ok {
			args[i] = 0.0
			continue
		}
		args[i] = s.encode(v)
	}

	// an existing food keeps its rowid, so Table order stays insertion order
	conflict := "DO NOTHING"
	if len(columns) > 1 {
		sets := make([]string, 0, len(columns)-1)
		for _, q := range quoted[1:] {
			sets = append(sets, q+" = excluded."+q)
		}
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) %s",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "), quoted[0], conflict)
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}

func (s *WideStore) encode(v domain.Value) any {
	if s.textInexact && !v.IsExact() {
		return v.String()
	}
	return v.MG
}

// Read returns the stored record of food in table
func (s *WideStore) Read(ctx context.Context, table, food string) (*domain.CategoryRecord, error) {
	exists, err := tableExists(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, table)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT * FROM "+quoteIdent(table)+" WHERE "+quoteIdent(domain.FoodColumn)+" = ?", food)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s in %s", domain.ErrFoodNotFound, food, table)
	}

	cells, err := scanCells(rows, len(columns))
	if err != nil {
		return nil, err
	}

	record := domain.NewCategoryRecord(food, domain.Category{Table: table})
	for i, c := range columns {
		if strings.EqualFold(c, domain.FoodColumn) {
			continue
		}
		v, err := parseCell(cells[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s = %v", domain.ErrMalformedValue, table, c, cells[i])
		}
		record.Set(c, v)
	}
	return record, nil
}

// Table returns every row of table, in insertion order
func (s *WideStore) Table(ctx context.Context, table string) (*domain.CategoryTable, error) {
	exists, err := tableExists(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCategory, table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &domain.CategoryTable{Name: table, Columns: columns}
	for rows.Next() {
		cells, err := scanCells(rows, len(columns))
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(columns))
		for i, c := range columns {
			row[c] = formatCell(cells[i])
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// Count returns the number of foods in table. A table that was never
// written has zero rows.
func (s *WideStore) Count(ctx context.Context, table string) (int64, error) {
	exists, err := tableExists(ctx, s.db, table)
	if err != nil || !exists {
		return 0, err
	}
	return countRows(ctx, s.db, "SELECT COUNT(*) FROM "+quoteIdent(table))
}

// Tables lists the category tables present in the store
func (s *WideStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
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
func (s *WideStore) Close() error {
	return s.db.Close()
}

func scanCells(rows *sql.Rows, n int) ([]any, error) {
	cells := make([]any, n)
	ptrs := make([]any, n)
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return cells, nil
}
