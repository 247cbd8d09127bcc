// Package terms fills label, description and alias columns from the term store.
package terms

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/smalyshev/TabulistBot/pkg/tabular"
)

const (
	// MaxChunkSize is the largest number of ids sent to the term store at once.
	MaxChunkSize = 50
	// MultilingualCode is the language code of terms valid in every language.
	MultilingualCode = "mul"
)

// entityIDRe matches the ids the term store accepts. Other values in the item
// column are left alone, since one malformed id fails a whole lookup.
var entityIDRe = regexp.MustCompile(`^[QPLM][1-9][0-9]*(?:-[FS][1-9][0-9]*)?$`)

// Source looks up one term type for a single batch of item ids.
// The result maps id -> language -> text.
type Source interface {
	FetchTerms(ctx context.Context, ids []string, termType string) (map[string]map[string]string, error)
}

// Enricher merges term text into formatted records.
type Enricher struct {
	source    Source
	languages []string
	chunkSize int
	logger    *slog.Logger
}

// New creates an Enricher. Languages is the preference order used to pick a
// single text per item; chunkSize is capped at MaxChunkSize.
func New(source Source, languages []string, chunkSize int, logger *slog.Logger) *Enricher {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		chunkSize = MaxChunkSize
	}
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{source: source, languages: languages, chunkSize: chunkSize, logger: logger}
}

// Fetch looks up termType for all ids, chunked, and merges the results.
// A failing chunk fails the whole fetch.
func (e *Enricher) Fetch(ctx context.Context, ids []string, termType string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for start := 0; start < len(ids); start += e.chunkSize {
		end := start + e.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		res, err := e.source.FetchTerms(ctx, chunk, termType)
		if err != nil {
			return nil, fmt.Errorf("fetching %s terms for %d items: %w", termType, len(chunk), err)
		}
		for id, byLang := range res {
			out[id] = byLang
		}
	}
	return out, nil
}

// Enrich fills every term column the spec declares. Records whose item id is
// empty, not an entity id or unknown to the term store keep their original value.
func (e *Enricher) Enrich(ctx context.Context, records []tabular.Record, spec *tabular.ColumnSpec) error {
	itemField := spec.ItemField()
	if itemField == "" {
		return nil
	}

	var termTypes []string
	for _, tt := range tabular.TermTypes {
		if spec.HasField(tt) {
			termTypes = append(termTypes, tt)
		}
	}
	if len(termTypes) == 0 {
		return nil
	}

	ids := itemIDs(records, itemField)
	if len(ids) == 0 {
		return nil
	}

	for _, termType := range termTypes {
		found, err := e.Fetch(ctx, ids, termType)
		if err != nil {
			return err
		}
		for _, rec := range records {
			id, _ := rec[itemField].(string)
			if id == "" {
				continue
			}
			if text, ok := e.pick(found[id]); ok {
				rec[termType] = text
			}
		}
		e.logger.Debug("Enriched column", "type", termType, "items", len(ids), "found", len(found))
	}
	return nil
}

// pick chooses one text: preferred languages in order, then mul, then the
// smallest language code.
func (e *Enricher) pick(byLang map[string]string) (string, bool) {
	if len(byLang) == 0 {
		return "", false
	}
	for _, lang := range e.languages {
		if text, ok := byLang[lang]; ok {
			return text, true
		}
	}
	if text, ok := byLang[MultilingualCode]; ok {
		return text, true
	}
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return byLang[langs[0]], true
}

// itemIDs returns the distinct entity ids in first-seen order.
func itemIDs(records []tabular.Record, field string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, rec := range records {
		id, _ := rec[field].(string)
		if !entityIDRe.MatchString(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
