package http

import (
	"net/http"

	"github.com/fabworks/lasercut/internal/interfaces"
)

type CatalogHandler struct {
	service interfaces.CatalogService
}

func NewCatalogHandler(service interfaces.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.service.ListMaterials(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	views := make([]MaterialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, materialToView(m))
	}
	respondJSON(w, http.StatusOK, views)
}
