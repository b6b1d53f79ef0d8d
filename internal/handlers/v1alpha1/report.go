package v1alpha1

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spaghetti-software-inc/ninjapivot/internal/handlers/v1alpha1/mappers"
	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
)

const defaultListLimit = 50

// CreateReport handles (POST /api/v1/reports). The request carries a
// single multipart "file" part; on success the job id returns immediately
// while analysis proceeds in the background.
func (h *ServiceHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("report_handler")

	// the multipart framing adds overhead on top of the payload ceiling
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64*1024)

	reader, err := r.MultipartReader()
	if err != nil {
		renderError(w, r, http.StatusBadRequest, fmt.Sprintf("expected multipart form: %v", err))
		return
	}

	var fileData []byte
	var filename string
	fileParts := 0

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				renderError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
				return
			}
			logger.Errorf("failed to read multipart form: %v", err)
			renderError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read multipart form: %v", err))
			return
		}

		if part.FormName() != "file" {
			continue
		}

		fileParts++
		if fileParts > 1 {
			renderError(w, r, http.StatusBadRequest, "exactly one file part is required")
			return
		}

		filename = part.FileName()
		fileData, err = io.ReadAll(part)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				renderError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
				return
			}
			logger.Errorf("failed to read file part: %v", err)
			renderError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
			return
		}
	}

	if fileParts == 0 {
		renderError(w, r, http.StatusBadRequest, "file is required")
		return
	}

	snap, err := h.srv.CreateReportJob(r.Context(), filename, fileData)
	if err != nil {
		var invalid *service.ErrInvalidUpload
		if errors.As(err, &invalid) {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		logger.Errorf("failed to create job: %v", err)
		renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to create job: %v", err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, mappers.SnapshotToSubmitResult(snap))
}

// GetReportStatus handles (GET /api/v1/reports/{id}), the pull strategy.
// Each request is independent and idempotent; a terminal job returns the
// identical snapshot on every call.
func (h *ServiceHandler) GetReportStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid job id")
		return
	}

	snap, err := h.srv.GetJobStatus(r.Context(), id)
	if err != nil {
		var notFound *service.ErrJobNotFound
		if errors.As(err, &notFound) {
			renderError(w, r, http.StatusNotFound, err.Error())
			return
		}
		zap.S().Named("report_handler").Errorf("failed to get job %s: %v", id, err)
		renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to get job: %v", err))
		return
	}

	render.JSON(w, r, mappers.SnapshotToApi(snap))
}

// ListReports handles (GET /api/v1/reports).
func (h *ServiceHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			renderError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	snaps, err := h.srv.ListJobs(r.Context(), limit)
	if err != nil {
		zap.S().Named("report_handler").Errorf("failed to list jobs: %v", err)
		renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to list jobs: %v", err))
		return
	}

	render.JSON(w, r, mappers.SnapshotsToApi(snaps))
}
