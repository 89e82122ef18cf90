package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Trigger starts a pass in the background and returns its run id.
type Trigger func(ctx context.Context, dataSourceIDs []int64) (string, error)

type BatchHandler struct {
	trigger Trigger
	logger  zerolog.Logger
}

func NewBatchHandler(trigger Trigger, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{trigger: trigger, logger: logger}
}

// RunDataSource queues a pass over one data source.
func (h *BatchHandler) RunDataSource(w http.ResponseWriter, r *http.Request) {
	id, ok := idVar(r, "datasrcID")
	if !ok {
		http.Error(w, "Invalid data source id", http.StatusBadRequest)
		return
	}
	h.start(w, r, []int64{id})
}

// RunBatch queues a pass over every data source.
func (h *BatchHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, nil)
}

func (h *BatchHandler) start(w http.ResponseWriter, r *http.Request, ids []int64) {
	runID, err := h.trigger(r.Context(), ids)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to start batch")
		http.Error(w, "Failed to start batch", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}
