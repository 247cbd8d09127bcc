// Package updater runs the per-page pipeline that regenerates a tabular data
// page from the SPARQL query declared on its talk page, and the discovery job
// that keeps the status table in sync with the pages using the template.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/config"
	"github.com/smalyshev/TabulistBot/pkg/mediawiki"
	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/store"
	"github.com/smalyshev/TabulistBot/pkg/tabular"
	"github.com/smalyshev/TabulistBot/pkg/wikitext"
)

// Status messages recorded for successful runs.
const (
	MessageNoChange = "no change"
	messageChanged  = "changed, now %d items"
	messageDryRun   = "dry run, %d items"
	sourcesFormat   = "This data set is generated by a bot, please see the [[%s|Talk Page]]."
)

// Result describes one finished page run.
type Result struct {
	ID       int64        `json:"id"`
	Page     string       `json:"page"`
	DataPage string       `json:"data_page,omitempty"`
	Status   model.Status `json:"status"`
	Message  string       `json:"message"`
	Changed  bool         `json:"changed"`
	Rows     int          `json:"rows"`
}

// Updater regenerates data pages.
type Updater struct {
	cfg      *config.Config
	store    store.PageStatusStore
	wiki     WikiClient
	runner   QueryRunner
	enricher TermEnricher
	metrics  *Metrics
	logger   *slog.Logger

	dryRunOut io.Writer
	now       func() time.Time
}

// New creates an Updater. Force, dry-run, worker count and lease come from cfg.Update.
func New(cfg *config.Config, st store.PageStatusStore, wiki WikiClient, runner QueryRunner, enricher TermEnricher, metrics *Metrics, logger *slog.Logger) *Updater {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		cfg:       cfg,
		store:     st,
		wiki:      wiki,
		runner:    runner,
		enricher:  enricher,
		metrics:   metrics,
		logger:    logger,
		dryRunOut: os.Stdout,
		now:       time.Now,
	}
}

// SetDryRunOutput redirects what dry runs print instead of saving.
func (u *Updater) SetDryRunOutput(w io.Writer) {
	u.dryRunOut = w
}

// UpdatePage runs the pipeline for the record with the given id.
// A missing record is ErrPageNotFound and a held lease is ErrPageBusy; neither
// touches the record. Any other outcome is recorded as OK or FAILED and the
// returned error is the pipeline failure, if any.
func (u *Updater) UpdatePage(ctx context.Context, id int64) (*Result, error) {
	rec, err := u.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load page %d: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPageNotFound, id)
	}
	return u.update(ctx, rec)
}

// UpdatePageByTitle resolves a talk page title, in either display or stored
// form, and runs the pipeline for it.
func (u *Updater) UpdatePageByTitle(ctx context.Context, title string) (*Result, error) {
	rec, err := u.GetPageByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	return u.update(ctx, rec)
}

// GetPageByTitle looks up the status record of a talk page.
func (u *Updater) GetPageByTitle(ctx context.Context, title string) (*model.PageStatus, error) {
	page := mediawiki.NormalizeTitle(title)
	rec, err := u.store.GetByPage(ctx, u.cfg.Wiki.Name, page)
	if err != nil {
		return nil, fmt.Errorf("failed to load page %s: %w", page, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, page)
	}
	return rec, nil
}

func (u *Updater) update(ctx context.Context, rec *model.PageStatus) (res *Result, err error) {
	now := u.now()
	lease := time.Duration(u.cfg.Update.LeaseTimeout)
	ok, err := u.store.AcquireRun(ctx, rec.ID, now, now.Add(-lease))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire page %s: %w", rec.Page, err)
	}
	if !ok {
		u.metrics.Updates.WithLabelValues(OutcomeBusy).Inc()
		return nil, fmt.Errorf("%w: %s", ErrPageBusy, rec.Page)
	}

	start := time.Now()
	res = &Result{ID: rec.ID, Page: rec.Page}
	log := u.logger.With("page", rec.Page, "id", rec.ID)
	log.Debug("Updating page")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during update: %v", r)
			res.Changed = false
		}
		u.finish(rec, res, err, log)
		u.metrics.UpdateDuration.Observe(time.Since(start).Seconds())
	}()

	return res, u.process(ctx, rec, res)
}

// finish records the terminal status. It uses a fresh context so that a
// cancelled run is still recorded.
func (u *Updater) finish(rec *model.PageStatus, res *Result, err error, log *slog.Logger) {
	outcome := OutcomeUnchanged
	if err != nil {
		res.Status = model.StatusFailed
		res.Message = statusMessage(err)
		outcome = OutcomeFailed
		log.Warn("Page update failed", "error", res.Message)
	} else {
		res.Status = model.StatusOK
		switch {
		case res.Changed && u.cfg.Update.DryRun:
			outcome = OutcomeDryRun
		case res.Changed:
			outcome = OutcomeChanged
		}
		log.Info("Page updated", "status", res.Status, "message", res.Message)
	}
	u.metrics.Updates.WithLabelValues(outcome).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := u.store.SetStatus(ctx, rec.ID, res.Status, res.Message, u.now()); serr != nil {
		log.Error("Failed to record page status", "error", serr)
	}
}

func (u *Updater) process(ctx context.Context, rec *model.PageStatus, res *Result) error {
	talk, err := u.wiki.GetSource(ctx, rec.Page)
	if err != nil {
		if errors.Is(err, mediawiki.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPageNotFound, rec.Page)
		}
		return fmt.Errorf("could not load %s: %w", rec.Page, err)
	}

	decl, err := wikitext.Extract(talk, u.cfg.Wiki.Template)
	if err != nil {
		return errors.Join(err, ErrNoTemplateData)
	}
	spec := decl.Columns

	dataTitle, ok := mediawiki.ReplacePrefix(rec.Page, u.cfg.Wiki.TalkPrefix, u.cfg.Wiki.DataPrefix)
	if !ok {
		return fmt.Errorf("%w: %s is not a %s page", ErrInvalidDataPage, rec.Page, u.cfg.Wiki.TalkPrefix)
	}
	res.DataPage = dataTitle

	doc, err := u.loadDocument(ctx, dataTitle)
	if err != nil {
		return err
	}

	rows, err := u.runner.RunQuery(ctx, decl.Sparql)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	records := make([]tabular.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, tabular.FormatRecord(spec, row))
	}
	if err := u.enricher.Enrich(ctx, records, spec); err != nil {
		return fmt.Errorf("term lookup failed: %w", err)
	}

	data := make([]tabular.FormattedRow, 0, len(records))
	for _, r := range records {
		data = append(data, tabular.ArrangeRow(spec, r))
	}
	res.Rows = len(data)

	if !u.cfg.Update.Force {
		same, err := doc.DataEqual(data)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidDataPage, dataTitle, err)
		}
		if same {
			res.Message = MessageNoChange
			return nil
		}
	}

	if err := doc.SetData(data); err != nil {
		return err
	}
	if err := doc.SetSources(fmt.Sprintf(sourcesFormat, mediawiki.DisplayTitle(rec.Page))); err != nil {
		return err
	}
	content, err := doc.Marshal()
	if err != nil {
		return err
	}

	res.Changed = true
	if u.cfg.Update.DryRun {
		fmt.Fprintf(u.dryRunOut, "%s(%s): %s\n", dataTitle, u.cfg.Wiki.EditSummary, content)
		res.Message = fmt.Sprintf(messageDryRun, len(data))
		return nil
	}

	if err := u.wiki.Save(ctx, dataTitle, string(content), u.cfg.Wiki.EditSummary, mediawiki.EditFlags{Minor: false, Bot: true}); err != nil {
		res.Changed = false
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	res.Message = fmt.Sprintf(messageChanged, len(data))
	return nil
}

func (u *Updater) loadDocument(ctx context.Context, title string) (*tabular.Document, error) {
	content, err := u.wiki.GetSource(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataPage, title, err)
	}
	doc, err := tabular.ParseDocument([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataPage, title, err)
	}
	return doc, nil
}

// statusMessage flattens joined errors into one "; "-separated line.
func statusMessage(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			parts = append(parts, statusMessage(e))
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
