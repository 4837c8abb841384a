package handlers

import (
	"net/http"

	"github.com/dom/streamgate/internal/api/middleware"
	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/service"
)

type VideoHandler struct {
	catalogService  *service.CatalogService
	progressService *service.ProgressService
}

func NewVideoHandler(catalogService *service.CatalogService, progressService *service.ProgressService) *VideoHandler {
	return &VideoHandler{
		catalogService:  catalogService,
		progressService: progressService,
	}
}

type WatchRequest struct {
	Position        float64 `json:"position"`
	SessionDuration float64 `json:"session_duration"`
	TotalDuration   float64 `json:"total_duration"`
	Completed       bool    `json:"completed"`
}

type WatchResponse struct {
	Message  string                `json:"message"`
	Progress *domain.WatchProgress `json:"progress"`
	Stats    *domain.VideoStats    `json:"stats"`
}

func (h *VideoHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Error(w, r, domain.ErrUnauthorized)
		return
	}

	result, err := h.catalogService.Dashboard(r.Context(), userID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, result)
}

func (h *VideoHandler) Info(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	videoID, ok := videoIDParam(r)
	if !ok {
		respond.Error(w, r, domain.ErrVideoNotFound)
		return
	}

	video, err := h.catalogService.Info(r.Context(), userID, videoID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{"video": video})
}

func (h *VideoHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	videoID, ok := videoIDParam(r)
	if !ok {
		respond.Error(w, r, domain.ErrVideoNotFound)
		return
	}

	progress, err := h.progressService.Get(r.Context(), userID, videoID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// A first watch answers {"progress": null}.
	respond.JSON(w, http.StatusOK, map[string]*domain.WatchProgress{"progress": progress})
}

func (h *VideoHandler) Watch(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	videoID, ok := videoIDParam(r)
	if !ok {
		respond.Error(w, r, domain.ErrVideoNotFound)
		return
	}

	var req WatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	progress, err := h.progressService.Report(r.Context(), service.ReportInput{
		UserID:          userID,
		VideoID:         videoID,
		Position:        req.Position,
		SessionDuration: req.SessionDuration,
		TotalDuration:   req.TotalDuration,
		Completed:       req.Completed,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	stats, err := h.progressService.Stats(r.Context(), videoID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, WatchResponse{
		Message:  "watch tracked",
		Progress: progress,
		Stats:    stats,
	})
}

func (h *VideoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(r)
	if !ok {
		respond.Error(w, r, domain.ErrVideoNotFound)
		return
	}

	stats, err := h.progressService.Stats(r.Context(), videoID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]*domain.VideoStats{"stats": stats})
}

func (h *VideoHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	history, err := h.progressService.History(r.Context(), userID, queryInt(r, "limit"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string][]*domain.WatchProgress{"history": history})
}
