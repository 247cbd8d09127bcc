package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smalyshev/TabulistBot/pkg/model"
	"github.com/smalyshev/TabulistBot/pkg/updater"
)

// PageLister reads status records.
type PageLister interface {
	GetByID(ctx context.Context, id int64) (*model.PageStatus, error)
	ListByWiki(ctx context.Context, wiki string) ([]*model.PageStatus, error)
}

// PageUpdater runs the update pipeline.
type PageUpdater interface {
	UpdatePage(ctx context.Context, id int64) (*updater.Result, error)
	UpdatePageByTitle(ctx context.Context, title string) (*updater.Result, error)
}

// PagesHandler serves the status records and single-page updates.
type PagesHandler struct {
	wiki    string
	store   PageLister
	updater PageUpdater
}

func NewPagesHandler(wiki string, st PageLister, u PageUpdater) *PagesHandler {
	return &PagesHandler{wiki: wiki, store: st, updater: u}
}

// UpdateResponse is returned by the update endpoints.
type UpdateResponse struct {
	Result *updater.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (h *PagesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.ListByWiki(r.Context(), h.wiki)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []*model.PageStatus{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *PagesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil || rec.Wiki != h.wiki {
		writeError(w, http.StatusNotFound, updater.ErrPageNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *PagesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	res, err := h.updater.UpdatePage(r.Context(), id)
	writeUpdate(w, res, err)
}

// HandleIndex lists the records as text, or runs ?update=<title>.
func (h *PagesHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if title := r.URL.Query().Get("update"); title != "" {
		res, err := h.updater.UpdatePageByTitle(r.Context(), title)
		switch {
		case res != nil:
			fmt.Fprintf(w, "%s: %s %s\n", res.Page, res.Status, res.Message)
		case err != nil:
			w.WriteHeader(statusFor(err))
			fmt.Fprintf(w, "%s: %v\n", title, err)
		}
		return
	}

	recs, err := h.store.ListByWiki(r.Context(), h.wiki)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, err)
		return
	}
	for _, rec := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.ID, rec.Status, rec.Page, rec.Message)
	}
}

func writeUpdate(w http.ResponseWriter, res *updater.Result, err error) {
	if res == nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := UpdateResponse{Result: res}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps errors that stop an update before it starts.
func statusFor(err error) int {
	switch {
	case errors.Is(err, updater.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, updater.ErrPageBusy):
		return http.StatusConflict
	default:
		slog.Error("Update request failed", "error", err)
		return http.StatusInternalServerError
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid page id"))
		return 0, false
	}
	return id, true
}
