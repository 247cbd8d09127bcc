package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

const sparqlResultsMime = "application/sparql-results+json"

type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RunQuery executes a SELECT query and returns each solution as variable -> value.
// Unbound variables are absent from their row. A response without a result
// set is an error; zero solutions is not.
func (c *Client) RunQuery(ctx context.Context, query string) ([]map[string]string, error) {
	resp, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return nil, ErrNoResults
	}

	rows := make([]map[string]string, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		row := make(map[string]string, len(b))
		for name, v := range b {
			row[name] = v.Value
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		c.request.Tracker().TrackAPIZero("wdqs")
	}
	c.Logger.Debug("SPARQL query done", "rows", len(rows), "vars", resp.Head.Vars)
	return rows, nil
}

// Ask executes an ASK query.
func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	resp, err := c.query(ctx, query)
	if err != nil {
		return false, err
	}
	if resp.Boolean == nil {
		return false, ErrNoResults
	}
	return *resp.Boolean, nil
}

// query posts the query as a form so long queries do not hit URL limits.
func (c *Client) query(ctx context.Context, query string) (*sparqlResponse, error) {
	form := url.Values{}
	form.Set("query", query)
	form.Set("format", "json")

	body, err := c.request.PostForm(ctx, c.SPARQLEndpoint, form, map[string]string{
		"Accept": sparqlResultsMime,
	})
	if err != nil {
		return nil, err
	}

	var result sparqlResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &result, nil
}
