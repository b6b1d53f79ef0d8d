// Package v1alpha1 contains the HTTP handlers of the report API.
package v1alpha1

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	api "github.com/spaghetti-software-inc/ninjapivot/internal/api/v1alpha1"
	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
	"github.com/spaghetti-software-inc/ninjapivot/pkg/requestid"
)

type ServiceHandler struct {
	srv               *service.ReportService
	maxUploadBytes    int64
	heartbeatInterval time.Duration
}

func NewServiceHandler(srv *service.ReportService, maxUploadBytes int64, heartbeatInterval time.Duration) *ServiceHandler {
	return &ServiceHandler{
		srv:               srv,
		maxUploadBytes:    maxUploadBytes,
		heartbeatInterval: heartbeatInterval,
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, api.Error{Message: message, RequestId: requestid.FromContextPtr(r.Context())})
}
