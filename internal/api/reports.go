package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/cleverhoods/sagecompass-sub001/pkg/handlers"
	"github.com/cleverhoods/sagecompass-sub001/pkg/routes"
	"github.com/cleverhoods/sagecompass-sub001/pkg/storage"
)

const reportPrefix = "runs/"

// reportsHandler serves exported run reports straight from blob storage.
type reportsHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newReportsHandler(
	store storage.System,
	logger *slog.Logger,
	maxListSize int32,
) *reportsHandler {
	return &reportsHandler{
		store:       store,
		logger:      logger.With("handler", "reports"),
		maxListSize: maxListSize,
	}
}

func (h *reportsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/reports",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{id}", Handler: h.find},
			{Method: "GET", Pattern: "/{id}/download", Handler: h.download},
		},
	}
}

func reportKey(r *http.Request) (string, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", storage.ErrInvalidKey
	}
	return fmt.Sprintf("%s%s/report.json", reportPrefix, id), nil
}

func (h *reportsHandler) list(w http.ResponseWriter, r *http.Request) {
	maxResults, err := storage.ParseMaxResults(
		r.URL.Query().Get("max_results"),
		h.maxListSize,
	)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.store.List(
		r.Context(),
		reportPrefix,
		r.URL.Query().Get("marker"),
		maxResults,
	)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *reportsHandler) find(w http.ResponseWriter, r *http.Request) {
	key, err := reportKey(r)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	meta, err := h.store.Find(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *reportsHandler) download(w http.ResponseWriter, r *http.Request) {
	key, err := reportKey(r)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", r.PathValue("id")+".json"),
	)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Body); err != nil {
		h.logger.Warn("report download interrupted", "key", key, "error", err)
	}
}
