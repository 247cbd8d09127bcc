package wikidata

import (
	"log/slog"

	"github.com/smalyshev/TabulistBot/pkg/request"
)

const (
	sparqlEndpoint = "https://query.wikidata.org/sparql"
	apiEndpoint    = "https://www.wikidata.org/w/api.php"

	// MaxBatchSize is the wbgetentities limit on ids per request.
	MaxBatchSize = 50
)

// Client talks to the Wikidata query service and the Wikibase API.
type Client struct {
	request        *request.Client
	APIEndpoint    string
	SPARQLEndpoint string
	Logger         *slog.Logger
}

// NewClient creates a new Wikidata client. Empty endpoints fall back to the public services.
func NewClient(r *request.Client, sparqlURL, apiURL string, logger *slog.Logger) *Client {
	if sparqlURL == "" {
		sparqlURL = sparqlEndpoint
	}
	if apiURL == "" {
		apiURL = apiEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		request:        r,
		APIEndpoint:    apiURL,
		SPARQLEndpoint: sparqlURL,
		Logger:         logger,
	}
}
