package updater

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/tabular"
	"github.com/smalyshev/TabulistBot/pkg/wikitext"
)

const qidTalk = "Some intro.\n{{Wikidata tabular\n|sparql=SELECT ?item WHERE { ?item wdt:P31 wd:Q5 }\n|columns=qid\n}}\n"

func decodeSaved(t *testing.T, content string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &doc))
	return doc
}

func TestUpdatePage_QIDColumn(t *testing.T) {
	f := newFixture(t, qidTalk)
	f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
	rec := seedPage(t, f.store, talkTitle)

	res, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusOK, res.Status)
	assert.Equal(t, "changed, now 1 items", res.Message)
	assert.True(t, res.Changed)
	assert.Equal(t, dataTitle, res.DataPage)
	assert.Equal(t, []string{"SELECT ?item WHERE { ?item wdt:P31 wd:Q5 }"}, f.runner.queries)

	require.Equal(t, 1, f.wiki.saveCount())
	edit := f.wiki.lastSave()
	assert.Equal(t, dataTitle, edit.Title)
	assert.Equal(t, "Wikidata list updated", edit.Summary)
	assert.False(t, edit.Flags.Minor)
	assert.True(t, edit.Flags.Bot)

	doc := decodeSaved(t, edit.Content)
	assert.Equal(t, []any{[]any{"Q1"}}, doc["data"])
	assert.Equal(t, "This data set is generated by a bot, please see the [[Data talk:Foo.tab|Talk Page]].", doc["sources"])
	assert.Equal(t, "CC0-1.0", doc["license"])
	assert.Equal(t, map[string]any{"en": "Foo"}, doc["description"])

	stored := f.record(t, rec.ID)
	assert.Equal(t, model.StatusOK, stored.Status)
	assert.Equal(t, "changed, now 1 items", stored.Message)
}

func TestUpdatePage_Idempotent(t *testing.T) {
	f := newFixture(t, qidTalk)
	f.runner.rows = []map[string]string{
		{"item": tabular.EntityPrefix + "Q2"},
		{"item": tabular.EntityPrefix + "Q1"},
	}
	rec := seedPage(t, f.store, talkTitle)

	_, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)
	res, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.wiki.saveCount())
	assert.False(t, res.Changed)
	assert.Equal(t, MessageNoChange, res.Message)
	assert.Equal(t, MessageNoChange, f.record(t, rec.ID).Message)

	// order matters
	f.runner.rows = []map[string]string{
		{"item": tabular.EntityPrefix + "Q1"},
		{"item": tabular.EntityPrefix + "Q2"},
	}
	res, err = f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, f.wiki.saveCount())
}

func TestUpdatePage_Force(t *testing.T) {
	f := newFixture(t, qidTalk)
	f.wiki.pages[dataTitle] = `{"data":[["Q1"]],"sources":"old"}`
	f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
	rec := seedPage(t, f.store, talkTitle)

	res, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, f.wiki.saveCount())

	f.cfg.Update.Force = true
	res, err = f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, f.wiki.saveCount())
}

func TestUpdatePage_ColumnsAndTerms(t *testing.T) {
	talk := "{{Wikidata_tabular|sparql=SELECT ?item ?pop ?when WHERE {}|columns=?pop:int,item,label,?when:date,description}}"
	f := newFixture(t, talk)
	f.runner.rows = []map[string]string{
		{"item": tabular.EntityPrefix + "Q42", "pop": "42", "when": "2001-05-11T00:00:00Z", "extra": "ignored"},
		{"item": tabular.EntityPrefix + "Q1", "pop": "7x"},
	}
	f.terms.terms = map[string]map[string]map[string]string{
		tabular.TypeLabel: {
			"Q42": {"en": "Douglas Adams", "de": "Douglas Adams (de)"},
			"Q1":  {"mul": "universe"},
		},
		tabular.TypeDescription: {
			"Q42": {"fr": "écrivain"},
		},
	}
	rec := seedPage(t, f.store, talkTitle)

	res, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusOK, res.Status)

	doc := decodeSaved(t, f.wiki.lastSave().Content)
	assert.Equal(t, []any{
		[]any{float64(42), "Q42", "Douglas Adams", "2001-05-11", "écrivain"},
		[]any{float64(7), "Q1", "universe", nil, nil},
	}, doc["data"])
}

func TestUpdatePage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		talk    string
		setup   func(f *fixture)
		wantErr error
		message string
	}{
		{
			name:    "NoTemplate",
			talk:    "nothing here",
			message: "did not find template; could not find template data",
		},
		{
			name:    "NoSparql",
			talk:    "{{Wikidata tabular|columns=item}}",
			message: "template does not have SPARQL; could not find template data",
		},
		{
			name:    "UnknownColumn",
			talk:    "{{Wikidata tabular|sparql=ASK {}|columns=item,population}}",
			message: "population",
		},
		{
			name:    "MissingDataPage",
			talk:    qidTalk,
			setup:   func(f *fixture) { delete(f.wiki.pages, dataTitle) },
			wantErr: ErrInvalidDataPage,
			message: "invalid data page: Data:Foo.tab",
		},
		{
			name:    "BrokenDataPage",
			talk:    qidTalk,
			setup:   func(f *fixture) { f.wiki.pages[dataTitle] = "not json" },
			wantErr: ErrInvalidDataPage,
			message: "invalid data page",
		},
		{
			name:    "QueryFailed",
			talk:    qidTalk,
			setup:   func(f *fixture) { f.runner.err = errBoom },
			wantErr: ErrQueryFailed,
			message: "query failed: boom",
		},
		{
			name: "TermsFailed",
			talk: "{{Wikidata tabular|sparql=ASK {}\n}}\n",
			setup: func(f *fixture) {
				f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
				f.terms.err = errBoom
			},
			wantErr: errBoom,
			message: "term lookup failed",
		},
		{
			name: "SaveFailed",
			talk: qidTalk,
			setup: func(f *fixture) {
				f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
				f.wiki.saveErr = errBoom
			},
			wantErr: ErrSaveFailed,
			message: "save failed: boom",
		},
		{
			name:    "TalkPageGone",
			talk:    qidTalk,
			setup:   func(f *fixture) { delete(f.wiki.pages, talkTitle) },
			wantErr: ErrPageNotFound,
			message: "page not found: Data_talk:Foo.tab",
		},
		{
			name:    "Panic",
			talk:    qidTalk,
			setup:   func(f *fixture) { f.runner.panics = true },
			message: "panic during update: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.talk)
			if tt.setup != nil {
				tt.setup(f)
			}
			rec := seedPage(t, f.store, talkTitle)

			res, err := f.updater.UpdatePage(context.Background(), rec.ID)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			require.NotNil(t, res)
			assert.Equal(t, model.StatusFailed, res.Status)
			assert.Contains(t, res.Message, tt.message)
			assert.Equal(t, 0, f.wiki.saveCount())

			stored := f.record(t, rec.ID)
			assert.Equal(t, model.StatusFailed, stored.Status)
			assert.Equal(t, res.Message, stored.Message)
		})
	}
}

func TestUpdatePage_NotFound(t *testing.T) {
	f := newFixture(t, qidTalk)

	_, err := f.updater.UpdatePage(context.Background(), 999)
	assert.ErrorIs(t, err, ErrPageNotFound)

	_, err = f.updater.UpdatePageByTitle(context.Background(), "Data talk:Missing.tab")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestUpdatePage_Lease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, qidTalk)
	f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
	rec := seedPage(t, f.store, talkTitle)

	require.NoError(t, f.store.SetStatus(ctx, rec.ID, model.StatusRunning, "", time.Now()))
	_, err := f.updater.UpdatePage(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrPageBusy)
	assert.Equal(t, model.StatusRunning, f.record(t, rec.ID).Status)
	assert.Equal(t, 0, f.wiki.saveCount())

	// a lease older than the timeout is taken over
	require.NoError(t, f.store.SetStatus(ctx, rec.ID, model.StatusRunning, "", time.Now().Add(-2*time.Hour)))
	res, err := f.updater.UpdatePage(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, res.Status)
}

func TestUpdatePageByTitle(t *testing.T) {
	f := newFixture(t, qidTalk)
	f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
	rec := seedPage(t, f.store, talkTitle)

	res, err := f.updater.UpdatePageByTitle(context.Background(), "Data talk:Foo.tab")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.ID)
	assert.Equal(t, model.StatusOK, res.Status)
}

func TestUpdatePage_DryRun(t *testing.T) {
	f := newFixture(t, qidTalk)
	f.cfg.Update.DryRun = true
	f.runner.rows = []map[string]string{{"item": tabular.EntityPrefix + "Q1"}}
	var out bytes.Buffer
	f.updater.SetDryRunOutput(&out)
	rec := seedPage(t, f.store, talkTitle)

	res, err := f.updater.UpdatePage(context.Background(), rec.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.wiki.saveCount())
	assert.Equal(t, "dry run, 1 items", res.Message)
	assert.Contains(t, out.String(), "Data:Foo.tab(Wikidata list updated): {")
	assert.Contains(t, out.String(), `"data":[["Q1"]]`)
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "boom", statusMessage(errBoom))
	assert.Equal(t, "did not find template; could not find template data",
		statusMessage(errors.Join(wikitext.ErrTemplateNotFound, ErrNoTemplateData)))
}
