package dataset

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRegistersNewColumns(t *testing.T) {
	tbl := New("a")
	tbl.Append(map[string]any{"a": "1", "b": "2"})
	tbl.Append(map[string]any{"a": "3"})

	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, "2", tbl.Value(0, "b"))
	assert.Nil(t, tbl.Value(1, "b"))
}

func TestSetRegistersColumn(t *testing.T) {
	tbl := New("a")
	tbl.Append(map[string]any{"a": "1"})
	tbl.Set(0, "derived", 42.0)

	assert.True(t, tbl.HasColumn("derived"))
	assert.Equal(t, 42.0, tbl.Value(0, "derived"))
}

func TestRename(t *testing.T) {
	tbl := New("amount awarded", "other")
	tbl.Append(map[string]any{"amount awarded": "10", "other": "x"})

	tbl.Rename(map[string]string{"amount awarded": "Amount Awarded"})

	assert.Equal(t, []string{"Amount Awarded", "other"}, tbl.Columns())
	assert.Equal(t, "10", tbl.Value(0, "Amount Awarded"))
	assert.Nil(t, tbl.Value(0, "amount awarded"))
}

func TestDistinct(t *testing.T) {
	tbl := New("id")
	for _, v := range []any{"a", "b", "a", nil, "", "c"} {
		tbl.Append(map[string]any{"id": v})
	}

	assert.Equal(t, []string{"a", "b", "c"}, tbl.Distinct("id"))
}

func TestLeftJoin(t *testing.T) {
	tbl := New("id")
	tbl.Append(map[string]any{"id": "x"})
	tbl.Append(map[string]any{"id": "missing"})

	other := New("key", "name")
	other.Append(map[string]any{"key": "x", "name": "Xavier"})

	tbl.LeftJoin(other, "id", "key", "pre_")

	assert.Equal(t, "Xavier", tbl.Value(0, "pre_name"))
	assert.True(t, tbl.HasColumn("pre_name"))
	assert.Nil(t, tbl.Value(1, "pre_name"))

	// re-joining with the same prefix overwrites rather than duplicating
	other2 := New("key", "name")
	other2.Append(map[string]any{"key": "x", "name": "Xena"})
	tbl.LeftJoin(other2, "id", "key", "pre_")

	assert.Equal(t, "Xena", tbl.Value(0, "pre_name"))
	assert.Equal(t, []string{"id", "pre_name"}, tbl.Columns())
}

func TestWriteCSV(t *testing.T) {
	tbl := New("name", "amount", "date", "age", "blank")
	tbl.Append(map[string]any{
		"name":   "Org",
		"amount": 1500.5,
		"date":   time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
		"age":    48 * time.Hour,
		"blank":  nil,
	})

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "name,amount,date,age,blank", lines[0])
	assert.Equal(t, "Org,1500.5,2019-06-01,2,", lines[1])
}

func TestFloat(t *testing.T) {
	f, ok := Float(12.5)
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	f, ok = Float("750")
	assert.True(t, ok)
	assert.Equal(t, 750.0, f)

	f, ok = Float(3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = Float("not a number")
	assert.False(t, ok)

	_, ok = Float(nil)
	assert.False(t, ok)
}
