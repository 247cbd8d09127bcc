package store

import (
	"context"
	"time"

	"github.com/smalyshev/TabulistBot/pkg/model"
)

// PageStatusStore persists the per-page processing state.
// Lookups return (nil, nil) when no record matches.
type PageStatusStore interface {
	GetByID(ctx context.Context, id int64) (*model.PageStatus, error)
	GetByPage(ctx context.Context, wiki, page string) (*model.PageStatus, error)
	// ListByWiki returns all records of wiki ordered by id.
	ListByWiki(ctx context.Context, wiki string) ([]*model.PageStatus, error)
	ListByStatus(ctx context.Context, wiki string, statuses ...model.Status) ([]*model.PageStatus, error)
	CountByStatus(ctx context.Context, wiki string) (map[model.Status]int, error)

	// UpsertWaiting inserts or resets (wiki, page) to WAITING with an empty
	// message. A RUNNING record is left untouched.
	UpsertWaiting(ctx context.Context, wiki, page string, ts time.Time) error
	// MarkChecking flags records of wiki whose page starts with prefix and
	// whose status is one of from as CHECKING.
	MarkChecking(ctx context.Context, wiki, prefix string, from ...model.Status) (int64, error)
	// AcquireRun moves a record to RUNNING unless another run holds it with a
	// timestamp not older than staleBefore. It reports whether the lease was taken.
	AcquireRun(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error)
	SetStatus(ctx context.Context, id int64, status model.Status, message string, ts time.Time) error
	DeleteByStatus(ctx context.Context, wiki string, status model.Status) (int64, error)
	// ResetStatus moves every record of wiki in status from to status to.
	ResetStatus(ctx context.Context, wiki string, from, to model.Status, ts time.Time) (int64, error)

	Ping(ctx context.Context) error
}
