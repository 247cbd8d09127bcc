package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Term types accepted by FetchTerms.
const (
	TermLabel       = "label"
	TermDescription = "description"
	TermAlias       = "alias"
)

var termProps = map[string]string{
	TermLabel:       "labels",
	TermDescription: "descriptions",
	TermAlias:       "aliases",
}

type termValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type entitiesResponse struct {
	Entities map[string]struct {
		ID           string                 `json:"id"`
		Missing      *string                `json:"missing"`
		Labels       map[string]termValue   `json:"labels"`
		Descriptions map[string]termValue   `json:"descriptions"`
		Aliases      map[string][]termValue `json:"aliases"`
	} `json:"entities"`
	Error *APIError `json:"error"`
}

// FetchTerms looks up one term type for at most MaxBatchSize ids in a single request.
// The result maps id -> language -> text. For aliases the first alias of each
// language is used. Missing entities are left out.
func (c *Client) FetchTerms(ctx context.Context, ids []string, termType string) (map[string]map[string]string, error) {
	prop, ok := termProps[termType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTermType, termType)
	}
	out := make(map[string]map[string]string)
	if len(ids) == 0 {
		return out, nil
	}
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(ids), MaxBatchSize)
	}

	form := url.Values{}
	form.Set("action", "wbgetentities")
	form.Set("format", "json")
	form.Set("ids", strings.Join(ids, "|"))
	form.Set("props", prop)

	body, err := c.request.PostForm(ctx, c.APIEndpoint, form, nil)
	if err != nil {
		return nil, err
	}

	var result entitiesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if result.Error != nil {
		return nil, result.Error
	}

	for id, ent := range result.Entities {
		if ent.Missing != nil {
			continue
		}
		// Redirected ids come back under the requested key
		terms := make(map[string]string)
		switch termType {
		case TermLabel:
			for lang, v := range ent.Labels {
				terms[lang] = v.Value
			}
		case TermDescription:
			for lang, v := range ent.Descriptions {
				terms[lang] = v.Value
			}
		case TermAlias:
			for lang, vs := range ent.Aliases {
				if len(vs) > 0 {
					terms[lang] = vs[0].Value
				}
			}
		}
		if len(terms) > 0 {
			out[id] = terms
		}
	}

	c.Logger.Debug("Fetched terms", "type", termType, "requested", len(ids), "found", len(out))
	return out, nil
}
