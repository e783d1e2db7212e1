package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/your-org/lev-meanrev-bot/internal/datastore"
)

// RunFetcher reads stored backtest summaries.
type RunFetcher interface {
	FetchRunSummary(ctx context.Context, id uuid.UUID) (datastore.RunSummary, error)
}

// RunHandler はバックテスト結果のHTTPリクエストを処理します。
type RunHandler struct {
	repo RunFetcher
}

// NewRunHandler は新しいRunHandlerを作成します。
func NewRunHandler(repo RunFetcher) *RunHandler {
	return &RunHandler{repo: repo}
}

// RegisterRoutes はchiルーターにバックテスト関連のルートを登録します。
func (h *RunHandler) RegisterRoutes(r chi.Router) {
	r.Get("/runs/{id}", h.GetRun)
}

// GetRun は保存済みバックテストの要約を取得します。
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid run id"})
		return
	}
	summary, err := h.repo.FetchRunSummary(r.Context(), id)
	if errors.Is(err, datastore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch run summary"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
