package files

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fdcscrape/scraper/internal/domain"
)

// FoodsDir holds one CSV per extracted food
const FoodsDir = "foods"

const maxFileStem = 150

var (
	defaultFoodHeaders = []string{"Name", "Amount", "Unit"}
	unsafeFileChars    = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// FoodWriter dumps the rendered nutrient table of each food, as shown on
// its detail page, before any normalization
type FoodWriter struct {
	dir string
}

var _ domain.FoodTableWriter = (*FoodWriter)(nil)

// NewFoodWriter creates <dir>/foods
func NewFoodWriter(dir string) (*FoodWriter, error) {
	dir = filepath.Join(dir, FoodsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create foods directory: %w", err)
	}
	return &FoodWriter{dir: dir}, nil
}

// SanitizeFileName turns a food description into a safe file stem
func SanitizeFileName(name string) string {
	stem := strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), "_.")
	if len(stem) > maxFileStem {
		stem = stem[:maxFileStem]
	}
	if stem == "" {
		return "food"
	}
	return stem
}

// WriteFood writes <dir>/foods/<food>.csv and returns its path
func (w *FoodWriter) WriteFood(extraction *domain.Extraction) (string, error) {
	path := filepath.Join(w.dir, SanitizeFileName(extraction.Food)+".csv")

	headers := append([]string(nil), defaultFoodHeaders...)
	for i := 0; i < domain.CellsPerRow && i < len(extraction.Page.Headers); i++ {
		if h := strings.TrimSpace(extraction.Page.Headers[i]); h != "" {
			headers[i] = h
		}
	}

	records := make([][]string, 0, len(extraction.Rendered)+1)
	records = append(records, append([]string{"Category"}, headers...))
	for _, row := range extraction.Rendered {
		records = append(records, append([]string{row.Category}, domain.PadCells(row.Cells)...))
	}

	if err := writeCSVAtomic(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// writeCSVAtomic writes records to a temp file next to path and renames it
// into place
func writeCSVAtomic(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
