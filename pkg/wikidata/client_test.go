package wikidata

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalyshev/TabulistBot/pkg/request"
	"github.com/smalyshev/TabulistBot/pkg/tracker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rc, err := request.New(tracker.New(), request.Options{MaxAttempts: 1, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	return NewClient(rc, server.URL+"/sparql", server.URL+"/w/api.php", slog.Default())
}

func TestNewClient_Defaults(t *testing.T) {
	rc, err := request.New(nil, request.Options{})
	require.NoError(t, err)

	c := NewClient(rc, "", "", nil)
	assert.Equal(t, "https://query.wikidata.org/sparql", c.SPARQLEndpoint)
	assert.Equal(t, "https://www.wikidata.org/w/api.php", c.APIEndpoint)
	assert.NotNil(t, c.Logger)
}

func TestRunQuery(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantRows []map[string]string
		wantErr  error
		anyErr   bool
	}{
		{
			name:   "Rows with unbound variable",
			status: http.StatusOK,
			body: `{"head":{"vars":["item","born"]},"results":{"bindings":[
				{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q1"},"born":{"type":"literal","value":"2001-01-01T00:00:00Z"}},
				{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q2"}}
			]}}`,
			wantRows: []map[string]string{
				{"item": "http://www.wikidata.org/entity/Q1", "born": "2001-01-01T00:00:00Z"},
				{"item": "http://www.wikidata.org/entity/Q2"},
			},
		},
		{
			name:     "Zero rows is not an error",
			status:   http.StatusOK,
			body:     `{"head":{"vars":["item"]},"results":{"bindings":[]}}`,
			wantRows: []map[string]string{},
		},
		{
			name:    "Missing result set",
			status:  http.StatusOK,
			body:    `{"head":{"vars":[]}}`,
			wantErr: ErrNoResults,
		},
		{
			name:    "Malformed JSON",
			status:  http.StatusOK,
			body:    `SPARQL-QUERY: queryStr=... java.util.concurrent.TimeoutException`,
			wantErr: ErrParse,
		},
		{
			name:   "Bad query",
			status: http.StatusBadRequest,
			body:   `MalformedQueryException`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/sparql", r.URL.Path)
				assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "SELECT ?item WHERE {}", r.Form.Get("query"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			rows, err := c.RunQuery(context.Background(), "SELECT ?item WHERE {}")
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantRows, rows)
			}
		})
	}
}

func TestAsk(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"head":{},"boolean":true}`))
	})

	ok, err := c.Ask(context.Background(), "ASK {}")
	require.NoError(t, err)
	assert.True(t, ok)
}
