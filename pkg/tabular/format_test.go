package tabular

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatField(t *testing.T) {
	spec := mustParse(t, "item,label,?when:date,?count:int,?area:number,?note,?odd:weird")

	tests := []struct {
		name  string
		field string
		raw   string
		want  any
	}{
		{"Item strips entity prefix", "item", "http://www.wikidata.org/entity/Q42", "Q42"},
		{"Item shorter than prefix", "item", "Q42", "Q42"},
		{"Item short non-entity value", "item", "foo", "foo"},
		{"Item empty", "item", "", ""},
		{"Item one byte short of prefix", "item", "http://www.wikidata.org/entity", "http://www.wikidata.org/entity"},
		{"Date", "when", "2003-05-01T00:00:00Z", "2003-05-01"},
		{"Date not matching", "when", "2003-05-01", "2003-05-01"},
		{"Date with offset", "when", "2003-05-01T00:00:00+02:00", "2003-05-01T00:00:00+02:00"},
		{"Int", "count", "42", int64(42)},
		{"Int negative", "count", "-7", int64(-7)},
		{"Int leading numeric", "count", "12abc", int64(12)},
		{"Int from decimal", "count", "3.9", int64(3)},
		{"Int from exponent", "count", "1e3", int64(1000)},
		{"Int non-numeric is zero", "count", "abc", int64(0)},
		{"Int empty is zero", "count", "", int64(0)},
		{"Number", "area", "12.5", 12.5},
		{"Number leading space", "area", "  0.25m", 0.25},
		{"Number non-numeric is zero", "area", "n/a", float64(0)},
		{"Number overflow clamped", "area", "1e999", math.MaxFloat64},
		{"Number negative overflow clamped", "area", "-1e999", -math.MaxFloat64},
		{"Number underflow is zero", "area", "1e-999", float64(0)},
		{"String passes through", "note", "text", "text"},
		{"Label passes through", "label", "Douglas Adams", "Douglas Adams"},
		{"Unknown type passes through", "odd", "x", "x"},
		{"Unknown field passes through", "other", "http://www.wikidata.org/entity/Q1", "http://www.wikidata.org/entity/Q1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatField(spec, tt.field, tt.raw))
		})
	}
}

func TestEntityPrefixLength(t *testing.T) {
	assert.Len(t, EntityPrefix, 31)
}

func TestArrangeRow(t *testing.T) {
	spec := mustParse(t, "item,label,?when:date")

	tests := []struct {
		name string
		rec  Record
		want FormattedRow
	}{
		{
			name: "All present, keys out of order",
			rec:  Record{"when": "2001-01-01", "label": "L", "item": "Q1"},
			want: FormattedRow{"Q1", "L", "2001-01-01"},
		},
		{
			name: "Missing values become nil",
			rec:  Record{"item": "Q1"},
			want: FormattedRow{"Q1", nil, nil},
		},
		{
			name: "Extra keys dropped",
			rec:  Record{"item": "Q1", "label": "L", "when": "x", "extra": "y"},
			want: FormattedRow{"Q1", "L", "x"},
		},
		{
			name: "Empty record",
			rec:  Record{},
			want: FormattedRow{nil, nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArrangeRow(spec, tt.rec)
			assert.Len(t, got, spec.Len())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRecord(t *testing.T) {
	spec := mustParse(t, "qid,?n:int")
	rec := FormatRecord(spec, map[string]string{
		"item":  "http://www.wikidata.org/entity/Q5",
		"n":     "3",
		"other": "kept",
	})

	assert.Equal(t, Record{"item": "Q5", "n": int64(3), "other": "kept"}, rec)
}
