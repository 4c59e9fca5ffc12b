package domain

import (
	"strconv"
	"strings"
)

// CellsPerRow is the number of leading cells kept from each rendered table row
const CellsPerRow = 3

// Category is one nutrient grouping: the header row that opens it on the
// detail page and the table its records are persisted to.
type Category struct {
	Header string `json:"header" mapstructure:"header"` // e.g. "Minerals:"
	Table  string `json:"table" mapstructure:"table"`   // e.g. "minerals"
}

// Label returns the header without its trailing colon
func (c Category) Label() string {
	return strings.TrimSuffix(strings.TrimSpace(c.Header), ":")
}

// NutrientRow is one rendered data row: nutrient name, amount as text, unit
type NutrientRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// RowFromCells builds a NutrientRow from a padded cell slice
func RowFromCells(cells []string) NutrientRow {
	padded := PadCells(cells)
	return NutrientRow{Label: padded[0], Value: padded[1], Unit: padded[2]}
}

// PadCells truncates or pads cells with empty markers to exactly CellsPerRow
func PadCells(cells []string) []string {
	out := make([]string, CellsPerRow)
	for i := 0; i < CellsPerRow && i < len(cells); i++ {
		out[i] = cells[i]
	}
	return out
}

// Bound tells whether a value is an exact reading or a detection limit
type Bound int

const (
	// Exact is a plain measured amount
	Exact Bound = iota
	// Below is a "<x" reading: below the detection limit x
	Below
)

// BelowMarker prefixes inexact values in their text form
const BelowMarker = "<"

// Value is an amount normalized to milligrams
type Value struct {
	MG    float64 `json:"mg"`
	Bound Bound   `json:"bound"`
}

// IsExact reports whether the value is a plain reading
func (v Value) IsExact() bool {
	return v.Bound == Exact
}

// String renders the value the way the detail page would: "20000", "<0.005"
func (v Value) String() string {
	s := strconv.FormatFloat(v.MG, 'f', -1, 64)
	if v.Bound == Below {
		return BelowMarker + s
	}
	return s
}

// ParseStoredValue is the inverse of Value.String
func ParseStoredValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	bound := Exact
	if strings.HasPrefix(s, BelowMarker) {
		bound = Below
		s = strings.TrimSpace(strings.TrimPrefix(s, BelowMarker))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}, err
	}
	return Value{MG: f, Bound: bound}, nil
}

// Attribute is one nutrient of a CategoryRecord
type Attribute struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// CategoryRecord is the normalized per-food aggregation of one category
type CategoryRecord struct {
	Food       string      `json:"food"`
	Category   Category    `json:"category"`
	Attributes []Attribute `json:"attributes"`
}

// NewCategoryRecord creates an empty record for food in category
func NewCategoryRecord(food string, category Category) *CategoryRecord {
	return &CategoryRecord{Food: food, Category: category}
}

// Set adds or overwrites an attribute. A repeated name keeps its first
// position and takes the last value.
func (r *CategoryRecord) Set(name string, value Value) {
	for i := range r.Attributes {
		if r.Attributes[i].Name == name {
			r.Attributes[i].Value = value
			return
		}
	}
	r.Attributes = append(r.Attributes, Attribute{Name: name, Value: value})
}

// Get returns the value of the named attribute
func (r *CategoryRecord) Get(name string) (Value, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Names returns attribute names in record order
func (r *CategoryRecord) Names() []string {
	names := make([]string, len(r.Attributes))
	for i, a := range r.Attributes {
		names[i] = a.Name
	}
	return names
}

// Map returns the record as Food plus text-rendered attributes
func (r *CategoryRecord) Map() map[string]string {
	m := make(map[string]string, len(r.Attributes)+1)
	m[FoodColumn] = r.Food
	for _, a := range r.Attributes {
		m[a.Name] = a.Value.String()
	}
	return m
}

// FoodColumn is the key column of every category table
const FoodColumn = "Food"

// Bucket holds the rows classified under one category, in document order
type Bucket struct {
	Category Category      `json:"category"`
	Rows     []NutrientRow `json:"rows"`
}

// Buckets is the classifier output, in configured category order
type Buckets []Bucket

// Get returns the bucket for a table name
func (b Buckets) Get(table string) (Bucket, bool) {
	for _, bucket := range b {
		if bucket.Category.Table == table {
			return bucket, true
		}
	}
	return Bucket{}, false
}

// CategoryTable is a full persisted category: columns and dense rows
type CategoryTable struct {
	Name    string              `json:"name"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// WriteResult describes the effect of one store write
type WriteResult struct {
	Table             string   `json:"table"`
	Food              string   `json:"food"`
	Created           bool     `json:"created"`
	Replaced          bool     `json:"replaced"`
	AddedColumns      []string `json:"addedColumns,omitempty"`
	DroppedAttributes []string `json:"droppedAttributes,omitempty"`
	CountBefore       int64    `json:"countBefore"`
	CountAfter        int64    `json:"countAfter"`
}
