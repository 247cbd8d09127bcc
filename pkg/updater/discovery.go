package updater

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/config"
	"github.com/smalyshev/TabulistBot/pkg/mediawiki"
	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/store"
)

const templateNamespace = "Template:"

// DiscoveryResult reports what a discovery run changed.
type DiscoveryResult struct {
	Found   int `json:"found"`
	Removed int `json:"removed"`
}

// Discoverer syncs the status table with the talk pages using the template.
type Discoverer struct {
	cfg     *config.Config
	store   store.PageStatusStore
	lister  PageLister
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(cfg *config.Config, st store.PageStatusStore, lister PageLister, metrics *Metrics, logger *slog.Logger) *Discoverer {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{cfg: cfg, store: st, lister: lister, metrics: metrics, logger: logger, now: time.Now}
}

// RefreshPageList marks the known talk pages as CHECKING, upserts every page
// currently transcluding the template as WAITING and deletes what is still
// CHECKING afterwards. RUNNING records are never touched. If listing or
// upserting fails, CHECKING records go back to WAITING.
func (d *Discoverer) RefreshPageList(ctx context.Context) (*DiscoveryResult, error) {
	wiki := d.cfg.Wiki.Name
	marked, err := d.store.MarkChecking(ctx, wiki, d.cfg.Wiki.TalkPrefix, model.StatusWaiting, model.StatusOK, model.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to mark pages: %w", err)
	}
	d.logger.Debug("Marked pages for checking", "count", marked)

	pages, err := d.lister.EmbeddedIn(ctx, templateTitle(d.cfg.Wiki.Template), d.cfg.Wiki.TalkNamespace)
	if err != nil {
		d.restore(wiki)
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}

	res := &DiscoveryResult{}
	ts := d.now()
	for _, p := range pages {
		if p.Namespace != d.cfg.Wiki.TalkNamespace {
			continue
		}
		page := mediawiki.NormalizeTitle(p.Title)
		if err := d.store.UpsertWaiting(ctx, wiki, page, ts); err != nil {
			d.restore(wiki)
			return nil, fmt.Errorf("failed to store page %s: %w", page, err)
		}
		res.Found++
	}

	removed, err := d.store.DeleteByStatus(ctx, wiki, model.StatusChecking)
	if err != nil {
		return nil, fmt.Errorf("failed to remove stale pages: %w", err)
	}
	res.Removed = int(removed)

	d.metrics.DiscoveredPages.Set(float64(res.Found))
	d.metrics.RemovedPages.Add(float64(res.Removed))
	d.logger.Info("Page list refreshed", "found", res.Found, "removed", res.Removed)
	return res, nil
}

func (d *Discoverer) restore(wiki string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := d.store.ResetStatus(ctx, wiki, model.StatusChecking, model.StatusWaiting, d.now()); err != nil {
		d.logger.Error("Failed to restore checked pages", "error", err)
	}
}

func templateTitle(name string) string {
	if strings.HasPrefix(strings.ToLower(name), strings.ToLower(templateNamespace)) {
		return name
	}
	return templateNamespace + name
}
