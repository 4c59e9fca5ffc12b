package files

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fdcscrape/scraper/internal/domain"
)

// Output list names under the output directory
const (
	MissingFile   = "missing_foods.txt"
	CorrectedFile = "corrected_foods.txt"
	URLsFile      = "urls.txt"
	MatchesFile   = "matches.csv"
)

var matchesHeader = []string{"query", "description", "url", "score"}

// Lists appends resolver output to newline-delimited files. Every call
// opens, appends and closes, so an interrupted run keeps what it wrote.
type Lists struct {
	dir string
	mu  sync.Mutex
}

var _ domain.ResolutionSink = (*Lists)(nil)

// NewLists creates the output directory if needed
func NewLists(dir string) (*Lists, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Lists{dir: dir}, nil
}

// Missing records a query with no search results
func (l *Lists) Missing(query string) error {
	return l.appendLine(MissingFile, query)
}

// Corrected records a canonical description returned for a query
func (l *Lists) Corrected(description string) error {
	return l.appendLine(CorrectedFile, description)
}

// URL records a detail page link
func (l *Lists) URL(url string) error {
	return l.appendLine(URLsFile, url)
}

// Match appends one row to the match report
func (l *Lists) Match(match domain.FoodMatch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, MatchesFile)
	info, statErr := os.Stat(path)
	needHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", MatchesFile, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(matchesHeader); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		match.Query,
		match.Description,
		match.URL,
		strconv.FormatFloat(match.Score, 'f', 1, 64),
	}); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (l *Lists) appendLine(name, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}
