package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// Execution history
// =============================================================================

// HistoryQuerier lists persisted executions.
type HistoryQuerier interface {
	ListExecutions(ctx context.Context, agent string, limit int) ([]types.Execution, error)
}

// HistoryHandler serves the execution history endpoint.
type HistoryHandler struct {
	history HistoryQuerier
	logger  *zap.Logger
}

// NewHistoryHandler creates the history handler.
func NewHistoryHandler(history HistoryQuerier, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger.With(zap.String("handler", "history")),
	}
}

// HandleList serves GET /api/v1/history?agent=&limit=.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable,
			"execution history is disabled"), h.logger)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, types.NewError(types.ErrInvalidRequest,
				"limit must be a positive integer"), h.logger)
			return
		}
		limit = parsed
	}

	executions, err := h.history.ListExecutions(r.Context(), r.URL.Query().Get("agent"), limit)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, executions)
}
