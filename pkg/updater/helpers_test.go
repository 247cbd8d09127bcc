package updater

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/smalyshev/TabulistBot/pkg/config"
	"github.com/smalyshev/TabulistBot/pkg/db"
	"github.com/smalyshev/TabulistBot/pkg/mediawiki"
	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/store"
	"github.com/smalyshev/TabulistBot/pkg/terms"
)

const (
	testWiki  = "commonswiki"
	talkTitle = "Data_talk:Foo.tab"
	dataTitle = "Data:Foo.tab"
	emptyData = `{"license":"CC0-1.0","description":{"en":"Foo"},"schema":{"fields":[]},"data":[],"sources":""}`
)

type savedEdit struct {
	Title   string
	Content string
	Summary string
	Flags   mediawiki.EditFlags
}

type fakeWiki struct {
	mu      sync.Mutex
	pages   map[string]string
	saves   []savedEdit
	saveErr error
}

func newFakeWiki(pages map[string]string) *fakeWiki {
	return &fakeWiki{pages: pages}
}

func (f *fakeWiki) GetSource(ctx context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.pages[title]
	if !ok {
		return "", mediawiki.ErrNotFound
	}
	return text, nil
}

func (f *fakeWiki) Save(ctx context.Context, title, content, summary string, flags mediawiki.EditFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, savedEdit{Title: title, Content: content, Summary: summary, Flags: flags})
	f.pages[title] = content
	return nil
}

func (f *fakeWiki) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeWiki) lastSave() savedEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

type fakeRunner struct {
	rows    []map[string]string
	err     error
	panics  bool
	queries []string
	mu      sync.Mutex
}

func (f *fakeRunner) RunQuery(ctx context.Context, query string) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.queries = append(f.queries, query)
	return f.rows, f.err
}

type fakeTerms struct {
	terms map[string]map[string]map[string]string // type -> id -> lang -> text
	err   error
}

func (f *fakeTerms) FetchTerms(ctx context.Context, ids []string, termType string) (map[string]map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]map[string]string{}
	for _, id := range ids {
		if byLang, ok := f.terms[termType][id]; ok {
			out[id] = byLang
		}
	}
	return out, nil
}

type fakeLister struct {
	pages []mediawiki.Page
	err   error
	calls []string
}

func (f *fakeLister) EmbeddedIn(ctx context.Context, template string, namespace int) ([]mediawiki.Page, error) {
	f.calls = append(f.calls, template)
	return f.pages, f.err
}

var errBoom = errors.New("boom")

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Wiki.Name = testWiki
	return cfg
}

func setupStore(t *testing.T) *store.SQLStore {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s := store.NewSQLStore(d)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPage(t *testing.T, s *store.SQLStore, page string) *model.PageStatus {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertWaiting(ctx, testWiki, page, time.Now()))
	rec, err := s.GetByPage(ctx, testWiki, page)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

type fixture struct {
	cfg     *config.Config
	store   *store.SQLStore
	wiki    *fakeWiki
	runner  *fakeRunner
	terms   *fakeTerms
	updater *Updater
}

func newFixture(t *testing.T, talk string) *fixture {
	t.Helper()
	f := &fixture{
		cfg:    testConfig(),
		store:  setupStore(t),
		wiki:   newFakeWiki(map[string]string{talkTitle: talk, dataTitle: emptyData}),
		runner: &fakeRunner{},
		terms:  &fakeTerms{},
	}
	enricher := terms.New(f.terms, f.cfg.Wikidata.Languages, f.cfg.Wikidata.BatchSize, nil)
	f.updater = New(f.cfg, f.store, f.wiki, f.runner, enricher, nil, nil)
	return f
}

func (f *fixture) record(t *testing.T, id int64) *model.PageStatus {
	t.Helper()
	rec, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}
