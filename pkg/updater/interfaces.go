package updater

import (
	"context"

	"github.com/smalyshev/TabulistBot/pkg/mediawiki"
	"github.com/smalyshev/TabulistBot/pkg/tabular"
)

// WikiClient reads and writes wiki pages.
type WikiClient interface {
	GetSource(ctx context.Context, title string) (string, error)
	Save(ctx context.Context, title, content, summary string, flags mediawiki.EditFlags) error
}

// PageLister lists the pages transcluding a template.
type PageLister interface {
	EmbeddedIn(ctx context.Context, template string, namespace int) ([]mediawiki.Page, error)
}

// QueryRunner executes SPARQL and returns one map per result row.
type QueryRunner interface {
	RunQuery(ctx context.Context, query string) ([]map[string]string, error)
}

// TermEnricher fills term columns of formatted records.
type TermEnricher interface {
	Enrich(ctx context.Context, records []tabular.Record, spec *tabular.ColumnSpec) error
}
