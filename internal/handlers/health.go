package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BradenHooton/lantern/internal/migrations"
	pkghttp "github.com/BradenHooton/lantern/pkg/http"
)

// DatabasePinger reports database reachability
type DatabasePinger interface {
	HealthCheck(ctx context.Context) error
}

// SchemaChecker reports the migration state without changing it
type SchemaChecker interface {
	CheckStatus(ctx context.Context) (*migrations.Status, error)
}

// HealthHandler serves the liveness and readiness check
type HealthHandler struct {
	db     DatabasePinger
	schema SchemaChecker
}

func NewHealthHandler(db DatabasePinger, schema SchemaChecker) *HealthHandler {
	return &HealthHandler{db: db, schema: schema}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int64  `json:"schema_version"`
	SchemaState   string `json:"schema_state"`
}

// Health reports ok only when the database answers and the schema is current
// @Summary Health check
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		pkghttp.WriteServiceUnavailable(w, "database unreachable")
		return
	}

	status, err := h.schema.CheckStatus(ctx)
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "schema version unreadable")
		return
	}
	if status.State != migrations.StateCurrent {
		pkghttp.WriteServiceUnavailable(w, "schema is "+string(status.State))
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		SchemaVersion: status.Stored,
		SchemaState:   string(status.State),
	})
}
