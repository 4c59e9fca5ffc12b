package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fdcscrape/scraper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var minerals = domain.Category{Header: "Minerals:", Table: "minerals"}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "store", "food_components.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newRecord(food string, category domain.Category, attrs map[string]domain.Value, order ...string) *domain.CategoryRecord {
	rec := domain.NewCategoryRecord(food, category)
	for _, name := range order {
		rec.Set(name, attrs[name])
	}
	return rec
}

func mg(v float64) domain.Value { return domain.Value{MG: v} }

func TestWideStore_CreateAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	rec := newRecord("Apples, raw", minerals, map[string]domain.Value{
		"Calcium, Ca": mg(6),
		"Iron, Fe":    mg(0.12),
	}, "Calcium, Ca", "Iron, Fe")

	result, err := store.Write(ctx, rec)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.False(t, result.Replaced)
	assert.Equal(t, []string{"Calcium, Ca", "Iron, Fe"}, result.AddedColumns)
	assert.Equal(t, int64(0), result.CountBefore)
	assert.Equal(t, int64(1), result.CountAfter)

	got, err := store.Read(ctx, "minerals", "Apples, raw")
	require.NoError(t, err)
	assert.Equal(t, rec.Names(), got.Names())
	assert.Equal(t, rec.Map(), got.Map())
}

func TestWideStore_NewColumnBackfillsZero(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	_, err := store.Write(ctx, newRecord("Apples, raw", minerals,
		map[string]domain.Value{"Calcium": mg(6)}, "Calcium"))
	require.NoError(t, err)

	result, err := store.Write(ctx, newRecord("Bananas, raw", minerals,
		map[string]domain.Value{"Calcium": mg(5), "Potassium": mg(358)}, "Calcium", "Potassium"))
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, []string{"Potassium"}, result.AddedColumns)

	table, err := store.Table(ctx, "minerals")
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Calcium", "Potassium"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0", table.Rows[0]["Potassium"])
	assert.Equal(t, "358", table.Rows[1]["Potassium"])

	var nulls int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM minerals WHERE Potassium IS NULL`).Scan(&nulls))
	assert.Equal(t, 0, nulls)
}

func TestWideStore_UpsertReplacesWholeRow(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	_, err := store.Write(ctx, newRecord("Apples, raw", minerals,
		map[string]domain.Value{"Calcium": mg(6), "Iron": mg(0.12)}, "Calcium", "Iron"))
	require.NoError(t, err)

	result, err := store.Write(ctx, newRecord("Apples, raw", minerals,
		map[string]domain.Value{"Calcium": mg(7)}, "Calcium"))
	require.NoError(t, err)
	assert.True(t, result.Replaced)
	assert.Equal(t, int64(1), result.CountBefore)
	assert.Equal(t, int64(1), result.CountAfter)

	got, err := store.Read(ctx, "minerals", "Apples, raw")
	require.NoError(t, err)
	calcium, _ := got.Get("Calcium")
	iron, _ := got.Get("Iron")
	assert.Equal(t, 7.0, calcium.MG)
	assert.Equal(t, 0.0, iron.MG)

	count, err := store.Count(ctx, "minerals")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWideStore_ReplaceKeepsPosition(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	for _, food := range []string{"A", "B", "C"} {
		_, err := store.Write(ctx, newRecord(food, minerals, map[string]domain.Value{"Calcium": mg(1)}, "Calcium"))
		require.NoError(t, err)
	}
	_, err := store.Write(ctx, newRecord("A", minerals, map[string]domain.Value{"Iron": mg(2)}, "Iron"))
	require.NoError(t, err)

	table, err := store.Table(ctx, "minerals")
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, map[string]string{"Food": "A", "Calcium": "0", "Iron": "2"}, table.Rows[0])
	assert.Equal(t, "B", table.Rows[1]["Food"])
	assert.Equal(t, "C", table.Rows[2]["Food"])
}

func TestWideStore_CaseInsensitiveColumns(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	_, err := store.Write(ctx, newRecord("A", minerals, map[string]domain.Value{"Calcium": mg(1)}, "Calcium"))
	require.NoError(t, err)

	result, err := store.Write(ctx, newRecord("B", minerals, map[string]domain.Value{"CALCIUM": mg(2)}, "CALCIUM"))
	require.NoError(t, err)
	assert.Empty(t, result.AddedColumns)

	got, err := store.Read(ctx, "minerals", "B")
	require.NoError(t, err)
	v, ok := got.Get("Calcium")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.MG)
}

func TestWideStore_InexactPolicy(t *testing.T) {
	ctx := context.Background()
	below := domain.Value{MG: 0.005, Bound: domain.Below}

	t.Run("bound stores the number", func(t *testing.T) {
		store := NewWideStore(openTestDB(t), false, zerolog.Nop())
		_, err := store.Write(ctx, newRecord("A", minerals, map[string]domain.Value{"Calcium": below}, "Calcium"))
		require.NoError(t, err)

		got, err := store.Read(ctx, "minerals", "A")
		require.NoError(t, err)
		v, _ := got.Get("Calcium")
		assert.Equal(t, domain.Value{MG: 0.005}, v)
	})

	t.Run("text keeps the marker", func(t *testing.T) {
		store := NewWideStore(openTestDB(t), true, zerolog.Nop())
		_, err := store.Write(ctx, newRecord("A", minerals, map[string]domain.Value{"Calcium": below}, "Calcium"))
		require.NoError(t, err)

		got, err := store.Read(ctx, "minerals", "A")
		require.NoError(t, err)
		v, _ := got.Get("Calcium")
		assert.Equal(t, below, v)

		table, err := store.Table(ctx, "minerals")
		require.NoError(t, err)
		assert.Equal(t, "<0.005", table.Rows[0]["Calcium"])
	})
}

func TestWideStore_IntegrityMismatchRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	_, err := store.Write(ctx, newRecord("Seed", minerals, map[string]domain.Value{"Calcium": mg(1)}, "Calcium"))
	require.NoError(t, err)

	// a trigger that sneaks in an extra row breaks the expected +1
	_, err = store.db.Exec(`CREATE TRIGGER shadow AFTER INSERT ON minerals WHEN NEW.Food = 'Apple'
		BEGIN INSERT OR IGNORE INTO minerals (Food) VALUES ('Shadow'); END`)
	require.NoError(t, err)

	_, err = store.Write(ctx, newRecord("Apple", minerals, map[string]domain.Value{"Iron": mg(2)}, "Iron"))
	assert.ErrorIs(t, err, domain.ErrIntegrityMismatch)

	count, err := store.Count(ctx, "minerals")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	columns, err := tableColumns(ctx, store.db, "minerals")
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Calcium"}, columns)
}

func TestWideStore_KeyCollision(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	result, err := store.Write(ctx, newRecord("A", minerals,
		map[string]domain.Value{"Calcium": mg(1), "food": mg(2)}, "Calcium", "food"))
	assert.ErrorIs(t, err, domain.ErrSchemaWrite)
	require.NotNil(t, result)
	assert.Equal(t, []string{"food"}, result.DroppedAttributes)

	got, err := store.Read(ctx, "minerals", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Calcium"}, got.Names())
}

func TestWideStore_ReadErrors(t *testing.T) {
	ctx := context.Background()
	store := NewWideStore(openTestDB(t), false, zerolog.Nop())

	_, err := store.Read(ctx, "minerals", "A")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	_, err = store.Table(ctx, "minerals")
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)

	count, err := store.Count(ctx, "minerals")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = store.Write(ctx, newRecord("A", minerals, map[string]domain.Value{"Calcium": mg(1)}, "Calcium"))
	require.NoError(t, err)

	_, err = store.Read(ctx, "minerals", "B")
	assert.ErrorIs(t, err, domain.ErrFoodNotFound)

	tables, err := store.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"minerals"}, tables)
}
