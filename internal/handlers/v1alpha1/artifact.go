package v1alpha1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
)

// GetArtifact handles (GET /api/v1/reports/{id}/artifact). The artifact
// is served inline by default; ?mode=download adds the attachment hint.
// A job that is not Complete yields 409, an unknown id 404, and repeated
// fetches of a finished report return identical bytes.
func (h *ServiceHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid job id")
		return
	}

	content, snap, err := h.srv.GetArtifact(r.Context(), id)
	if err != nil {
		var notFound *service.ErrJobNotFound
		var notReady *service.ErrJobNotReady
		switch {
		case errors.As(err, &notFound):
			renderError(w, r, http.StatusNotFound, err.Error())
		case errors.As(err, &notReady):
			renderError(w, r, http.StatusConflict, err.Error())
		default:
			zap.S().Named("artifact_handler").Errorf("failed to fetch artifact for %s: %v", id, err)
			renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to fetch artifact: %v", err))
		}
		return
	}

	contentType := snap.ArtifactType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))

	if r.URL.Query().Get("mode") == "download" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+snap.ID.String()+".html"))
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
