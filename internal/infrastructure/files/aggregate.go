package files

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fdcscrape/scraper/internal/domain"
)

// CategoriesDir holds one aggregate CSV per category
const CategoriesDir = "categories"

// AggregateWriter maintains categories/<table>.csv: the dense matrix of
// every food written to a category. Columns are Food plus every nutrient
// ever seen, in first-seen order and matched case-insensitively like the
// store's columns; missing cells are 0.
type AggregateWriter struct {
	dir         string
	textInexact bool
	mu          sync.Mutex
}

var _ domain.AggregateWriter = (*AggregateWriter)(nil)

// NewAggregateWriter creates <dir>/categories. textInexact renders
// below-detection values as "<x" instead of their bound, and must match
// how the store reads them back.
func NewAggregateWriter(dir string, textInexact bool) (*AggregateWriter, error) {
	dir = filepath.Join(dir, CategoriesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create categories directory: %w", err)
	}
	return &AggregateWriter{dir: dir, textInexact: textInexact}, nil
}

// Path returns the aggregate file of a table
func (a *AggregateWriter) Path(table string) string {
	return filepath.Join(a.dir, table+".csv")
}

// Merge adds or replaces the record's food row
func (a *AggregateWriter) Merge(record *domain.CategoryRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.Path(record.Category.Table)
	table, err := readTable(path)
	if err != nil {
		return err
	}

	canonical := make(map[string]string, len(table.Columns))
	for _, c := range table.Columns {
		canonical[strings.ToLower(c)] = c
	}

	row := map[string]string{domain.FoodColumn: record.Food}
	for _, attr := range record.Attributes {
		key := strings.ToLower(attr.Name)
		if key == strings.ToLower(domain.FoodColumn) {
			continue
		}
		name, ok := canonical[key]
		if !ok {
			name = attr.Name
			canonical[key] = name
			table.Columns = append(table.Columns, name)
		}
		row[name] = a.cell(attr.Value)
	}

	replaced := false
	for i, existing := range table.Rows {
		if existing[domain.FoodColumn] == record.Food {
			table.Rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		table.Rows = append(table.Rows, row)
	}

	return writeTable(path, table)
}

func (a *AggregateWriter) cell(v domain.Value) string {
	if a.textInexact {
		return v.String()
	}
	return strconv.FormatFloat(v.MG, 'f', -1, 64)
}

// Rewrite replaces the aggregate file of a table with its stored contents
func (a *AggregateWriter) Rewrite(table *domain.CategoryTable) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return writeTable(a.Path(table.Name), table)
}

// readTable loads an aggregate file. A missing file is an empty table.
func readTable(path string) (*domain.CategoryTable, error) {
	table := &domain.CategoryTable{
		Name:    filepath.Base(path),
		Columns: []string{domain.FoodColumn},
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return table, nil
	}

	table.Columns = records[0]
	for _, rec := range records[1:] {
		row := make(map[string]string, len(table.Columns))
		for i, c := range table.Columns {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func writeTable(path string, table *domain.CategoryTable) error {
	columns := table.Columns
	if len(columns) == 0 || columns[0] != domain.FoodColumn {
		columns = append([]string{domain.FoodColumn}, without(columns, domain.FoodColumn)...)
	}

	records := make([][]string, 0, len(table.Rows)+1)
	records = append(records, columns)
	for _, row := range table.Rows {
		rec := make([]string, len(columns))
		for i, c := range columns {
			v, ok := row[c]
			if !ok || v == "" {
				v = "0"
			}
			rec[i] = v
		}
		rec[0] = row[domain.FoodColumn]
		records = append(records, rec)
	}
	return writeCSVAtomic(path, records)
}

func without(items []string, drop string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
