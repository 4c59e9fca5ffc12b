package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"exact integer", Value{MG: 20000}, "20000"},
		{"exact fraction", Value{MG: 0.005}, "0.005"},
		{"below limit", Value{MG: 0.005, Bound: Below}, "<0.005"},
		{"zero", Value{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestParseStoredValue(t *testing.T) {
	v, err := ParseStoredValue("<0.005")
	require.NoError(t, err)
	assert.Equal(t, Value{MG: 0.005, Bound: Below}, v)

	v, err = ParseStoredValue(" 12.5 ")
	require.NoError(t, err)
	assert.True(t, v.IsExact())
	assert.Equal(t, 12.5, v.MG)

	_, err = ParseStoredValue("trace")
	assert.Error(t, err)
}

func TestCategoryRecordSet(t *testing.T) {
	rec := NewCategoryRecord("Apple", Category{Header: "Proximates:", Table: "proximates"})
	rec.Set("Energy", Value{MG: 52})
	rec.Set("Protein", Value{MG: 260})
	rec.Set("Energy", Value{MG: 218})

	assert.Equal(t, []string{"Energy", "Protein"}, rec.Names())
	got, ok := rec.Get("Energy")
	require.True(t, ok)
	assert.Equal(t, 218.0, got.MG)

	_, ok = rec.Get("Water")
	assert.False(t, ok)

	assert.Equal(t, map[string]string{"Food": "Apple", "Energy": "218", "Protein": "260"}, rec.Map())
}

func TestPadCells(t *testing.T) {
	assert.Equal(t, []string{"Minerals:", "", ""}, PadCells([]string{"Minerals:"}))
	assert.Equal(t, []string{"a", "b", "c"}, PadCells([]string{"a", "b", "c", "d"}))
	assert.Equal(t, []string{"", "", ""}, PadCells(nil))
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "Vitamins and Other Components", Category{Header: "Vitamins and Other Components:"}.Label())
}
