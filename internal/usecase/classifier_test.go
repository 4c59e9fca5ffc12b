package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierClassify(t *testing.T) {
	c := NewClassifier(testCategories)

	tests := []struct {
		name       string
		rows       [][]string
		wantTables []string
		wantRows   map[string]int
	}{
		{
			name: "rows follow the most recent header",
			rows: [][]string{
				{"Proximates:"},
				{"Water", "80", "g"},
				{"Protein", "20", "g"},
				{"Minerals:"},
				{"Calcium", "5", "mg"},
			},
			wantTables: []string{"proximates", "minerals"},
			wantRows:   map[string]int{"proximates": 2, "minerals": 1},
		},
		{
			name: "rows before the first header are dropped",
			rows: [][]string{
				{"Orphan", "1", "g"},
				{"Minerals:"},
				{"Iron", "2", "mg"},
			},
			wantTables: []string{"minerals"},
			wantRows:   map[string]int{"minerals": 1},
		},
		{
			name: "categories come back in configured order",
			rows: [][]string{
				{"Minerals:"},
				{"Iron", "2", "mg"},
				{"Proximates:"},
				{"Protein", "20", "g"},
			},
			wantTables: []string{"proximates", "minerals"},
			wantRows:   map[string]int{"proximates": 1, "minerals": 1},
		},
		{
			name: "header without data rows yields no bucket",
			rows: [][]string{
				{"Carbohydrates:"},
				{"Minerals:"},
				{"Iron", "2", "mg"},
			},
			wantTables: []string{"minerals"},
			wantRows:   map[string]int{"minerals": 1},
		},
		{
			name: "blank rows are skipped",
			rows: [][]string{
				{"Proximates:"},
				{"", "", ""},
				{},
				{"Protein", "20", "g"},
			},
			wantTables: []string{"proximates"},
			wantRows:   map[string]int{"proximates": 1},
		},
		{
			name:       "empty table",
			rows:       nil,
			wantTables: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := c.Classify(tt.rows)

			var tables []string
			for _, b := range buckets {
				tables = append(tables, b.Category.Table)
				assert.Len(t, b.Rows, tt.wantRows[b.Category.Table], b.Category.Table)
			}
			assert.Equal(t, tt.wantTables, tables)
		})
	}
}

func TestClassifierPadsRows(t *testing.T) {
	c := NewClassifier(testCategories)

	buckets := c.Classify([][]string{
		{"Proximates:"},
		{"Energy", "100"},
		{"Protein", "20", "g", "extra", "cells"},
	})

	bucket, ok := buckets.Get("proximates")
	require.True(t, ok)
	require.Len(t, bucket.Rows, 2)
	assert.Equal(t, "Energy", bucket.Rows[0].Label)
	assert.Equal(t, "100", bucket.Rows[0].Value)
	assert.Equal(t, "", bucket.Rows[0].Unit)
	assert.Equal(t, "g", bucket.Rows[1].Unit)
}

func TestClassifierRendered(t *testing.T) {
	c := NewClassifier(testCategories)

	_, rendered := c.classify([][]string{
		{"Orphan", "1", "g"},
		{" Minerals: "},
		{"Iron", "2", "mg"},
	})

	require.Len(t, rendered, 3)
	assert.Equal(t, "", rendered[0].Category)
	assert.Equal(t, "Minerals", rendered[1].Category)
	assert.Equal(t, []string{"Iron", "2", "mg"}, rendered[2].Cells)
	assert.Equal(t, "Minerals", rendered[2].Category)
}

func TestClassifierLookup(t *testing.T) {
	c := NewClassifier(testCategories)

	cat, ok := c.Lookup("  Vitamins and Other Components: ")
	require.True(t, ok)
	assert.Equal(t, "vitamins", cat.Table)

	_, ok = c.Lookup("Vitamins")
	assert.False(t, ok)

	assert.Len(t, c.Categories(), len(testCategories))
}
