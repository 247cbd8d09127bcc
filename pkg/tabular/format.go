package tabular

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// EntityPrefix is the URI prefix of Wikidata entities in query results.
const EntityPrefix = "http://www.wikidata.org/entity/"

// Record is one query result row, keyed by column name, after formatting.
type Record map[string]any

// FormattedRow is a row of the data page, aligned to a ColumnSpec.
type FormattedRow []any

type formatFunc func(raw string) any

// formatters holds the conversions per field type. Types not listed pass through.
var formatters = map[string]formatFunc{
	TypeItem:   formatItem,
	TypeDate:   formatDate,
	TypeInt:    formatInt,
	TypeNumber: formatNumber,
}

var (
	dateRe         = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T\d{2}:\d{2}:\d{2}Z$`)
	numberPrefixRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
)

// FormatField converts a raw query value according to the type declared for name.
// Names not in the spec are returned unchanged.
func FormatField(spec *ColumnSpec, name, raw string) any {
	typ, ok := spec.Type(name)
	if !ok {
		return raw
	}
	f, ok := formatters[typ]
	if !ok {
		return raw
	}
	return f(raw)
}

// FormatRecord formats every value of a query row.
func FormatRecord(spec *ColumnSpec, row map[string]string) Record {
	rec := make(Record, len(row))
	for name, raw := range row {
		rec[name] = FormatField(spec, name, raw)
	}
	return rec
}

// ArrangeRow lays out rec in spec order. Missing columns become nil.
func ArrangeRow(spec *ColumnSpec, rec Record) FormattedRow {
	out := make(FormattedRow, len(spec.names))
	for i, name := range spec.names {
		if v, ok := rec[name]; ok {
			out[i] = v
		}
	}
	return out
}

// formatItem strips the fixed-length entity prefix.
func formatItem(raw string) any {
	if len(raw) < len(EntityPrefix) {
		return raw
	}
	return raw[len(EntityPrefix):]
}

func formatDate(raw string) any {
	m := dateRe.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[1]
}

// formatInt is a loose cast: the leading numeric part is used and anything
// non-numeric becomes 0.
func formatInt(raw string) any {
	m := numberPrefixRe.FindString(strings.TrimLeft(raw, " \t\n\r\v\f"))
	if m == "" {
		return int64(0)
	}
	if !strings.ContainsAny(m, ".eE") {
		if n, err := strconv.ParseInt(m, 10, 64); err == nil {
			return n
		}
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && f == 0 {
		return int64(0)
	}
	switch {
	case f >= math.MaxInt64:
		return int64(math.MaxInt64)
	case f <= math.MinInt64:
		return int64(math.MinInt64)
	}
	return int64(f)
}

// formatNumber is the floating point variant of formatInt. Values outside the
// float64 range are clamped to the largest finite value, since JSON has no
// infinity.
func formatNumber(raw string) any {
	m := numberPrefixRe.FindString(strings.TrimLeft(raw, " \t\n\r\v\f"))
	if m == "" {
		return float64(0)
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && f == 0 {
		return float64(0)
	}
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}
