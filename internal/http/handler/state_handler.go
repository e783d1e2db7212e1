package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/your-org/lev-meanrev-bot/internal/engine"
	"github.com/your-org/lev-meanrev-bot/internal/runlock"
	"github.com/your-org/lev-meanrev-bot/internal/state"
)

// CycleRunner runs one live cycle.
type CycleRunner interface {
	Run(ctx context.Context) (engine.Outcome, error)
}

// StateHandler はポジション状態と手動サイクル実行のHTTPリクエストを処理します。
type StateHandler struct {
	store  state.Store
	runner CycleRunner
}

// NewStateHandler は新しいStateHandlerを作成します。
func NewStateHandler(store state.Store, runner CycleRunner) *StateHandler {
	return &StateHandler{store: store, runner: runner}
}

// RegisterRoutes はchiルーターに状態関連のルートを登録します。
func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.GetState)
	r.Post("/cycle", h.PostCycle)
}

// GetState は永続化されたポジション状態を返します。
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Load(r.Context())
	switch {
	case errors.Is(err, state.ErrNoState):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no position state yet"})
	case errors.Is(err, state.ErrStateCorruption):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to load position state"})
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

// PostCycle はスケジュールと同じランロックを通して1サイクルを実行します。
func (h *StateHandler) PostCycle(w http.ResponseWriter, r *http.Request) {
	out, err := h.runner.Run(r.Context())
	switch {
	case errors.Is(err, runlock.ErrLocked):
		writeJSON(w, http.StatusConflict, out)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, out)
	default:
		writeJSON(w, http.StatusOK, out)
	}
}
