package handlers

import (
	"net/http"

	"github.com/dom/streamgate/internal/api/middleware"
	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/service"
	"github.com/sirupsen/logrus"
)

type InternalHandler struct {
	catalogService *service.CatalogService
}

func NewInternalHandler(catalogService *service.CatalogService) *InternalHandler {
	return &InternalHandler{catalogService: catalogService}
}

type ReseedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Reseed replaces the catalog with the seed list.
func (h *InternalHandler) Reseed(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.GetCaller(r.Context())

	count, err := h.catalogService.Reseed(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"caller": caller,
		"count":  count,
	}).Info("[InternalHandler.Reseed] catalog reseeded")

	respond.JSON(w, http.StatusOK, ReseedResponse{
		Message: "catalog reseeded",
		Count:   count,
	})
}
