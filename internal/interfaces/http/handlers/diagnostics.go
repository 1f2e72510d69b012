// internal/interfaces/http/handlers/diagnostics.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/artecho/storefront-backend/internal/pkg/events"
)

// DiagnosticsHandler exposes recent persistence failures
type DiagnosticsHandler struct {
	recorder *events.Recorder
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(recorder *events.Recorder) *DiagnosticsHandler {
	return &DiagnosticsHandler{recorder: recorder}
}

type persistenceErrorView struct {
	Path        string           `json:"path"`
	Operation   events.Operation `json:"operation"`
	RequestData any              `json:"request_data,omitempty"`
	Error       string           `json:"error"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// GetPersistenceErrors handles GET /diagnostics/persistence-errors
func (h *DiagnosticsHandler) GetPersistenceErrors(c *gin.Context) {
	recorded := h.recorder.Events()
	views := make([]persistenceErrorView, 0, len(recorded))
	for _, ev := range recorded {
		view := persistenceErrorView{
			Path:        ev.Path,
			Operation:   ev.Operation,
			RequestData: ev.RequestData,
			OccurredAt:  ev.OccurredAt,
		}
		if ev.Err != nil {
			view.Error = ev.Err.Error()
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Persistence errors retrieved successfully",
		"data": gin.H{
			"errors": views,
			"count":  len(views),
		},
	})
}
