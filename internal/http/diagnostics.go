package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/diagnostics"
)

type diagnosticRequest struct {
	Command string `json:"command"`
}

func (h *Handler) ListDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": h.diag.List()})
}

func (h *Handler) RunDiagnostic(w http.ResponseWriter, r *http.Request) {
	var req diagnosticRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Command)

	out, err := h.diag.Run(r.Context(), name)
	if err != nil {
		if errors.Is(err, diagnostics.ErrUnknownCommand) {
			writeError(w, http.StatusBadRequest, "unknown command")
			return
		}
		h.logger.ErrorContext(r.Context(), "diagnostic failed", "command", name, "err", err)
		writeError(w, http.StatusInternalServerError, "diagnostic failed")
		return
	}

	id, _ := identityFrom(r.Context())
	h.logger.InfoContext(r.Context(), "diagnostic executed", "command", name, "user_id", id.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"command": name, "result": out})
}
