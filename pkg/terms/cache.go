package terms

import (
	"context"
	"encoding/json"

	"github.com/smalyshev/TabulistBot/pkg/cache"
)

// CachedSource answers repeated lookups from a cache and sends only the
// misses to the wrapped Source. Items the source does not know are cached too.
type CachedSource struct {
	source Source
	cache  cache.Cacher
}

func NewCachedSource(source Source, c cache.Cacher) *CachedSource {
	return &CachedSource{source: source, cache: c}
}

func (s *CachedSource) FetchTerms(ctx context.Context, ids []string, termType string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	var missing []string
	for _, id := range ids {
		raw, ok := s.cache.GetCache(ctx, cacheKey(termType, id))
		if !ok {
			missing = append(missing, id)
			continue
		}
		var byLang map[string]string
		if err := json.Unmarshal(raw, &byLang); err != nil {
			missing = append(missing, id)
			continue
		}
		if len(byLang) > 0 {
			out[id] = byLang
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	res, err := s.source.FetchTerms(ctx, missing, termType)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		byLang := res[id]
		if len(byLang) > 0 {
			out[id] = byLang
		}
		raw, err := json.Marshal(byLang)
		if err != nil {
			continue
		}
		_ = s.cache.SetCache(ctx, cacheKey(termType, id), raw)
	}
	return out, nil
}

func cacheKey(termType, id string) string {
	return termType + "|" + id
}
