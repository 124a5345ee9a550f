package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

// WarehouseUseCases is the part of services.WarehouseService the warehouse
// routes use.
type WarehouseUseCases interface {
	Create(ctx context.Context, in services.WarehouseInput) (types.Warehouse, error)
	List(ctx context.Context, filter types.WarehouseFilter) (types.Paginated[types.Warehouse], error)
	Get(ctx context.Context, ref string) (types.Warehouse, error)
	Update(ctx context.Context, ref string, in services.WarehouseUpdateInput) (types.Warehouse, error)
	ChangeStatus(ctx context.Context, ref, status string) (types.Warehouse, error)
	Delete(ctx context.Context, ref string) error
}

type WarehouseHandler struct {
	warehouses WarehouseUseCases
}

func NewWarehouseHandler(warehouses WarehouseUseCases) *WarehouseHandler {
	return &WarehouseHandler{warehouses: warehouses}
}

// WarehouseRouter registers warehouse routes on the given router.
func WarehouseRouter(r chi.Router, warehouses WarehouseUseCases, guard *Guard) {
	handler := NewWarehouseHandler(warehouses)
	view := guard.RequirePermission(types.PermViewWarehouse)
	update := guard.RequirePermission(types.PermUpdateWarehouse)

	r.With(view).Get("/", handler.List)
	r.With(guard.RequirePermission(types.PermCreateWarehouse)).Post("/", handler.Create)
	r.Route("/{warehouseId}", func(r chi.Router) {
		r.With(view).Get("/", handler.Get)
		r.With(update).Put("/", handler.Update)
		r.With(update).Patch("/status", handler.ChangeStatus)
		r.With(guard.RequirePermission(types.PermDeleteWarehouse)).Delete("/", handler.Delete)
	})
}

func (h *WarehouseHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.warehouses.List(r.Context(), types.WarehouseFilter{
		Status: types.WarehouseStatus(queryValue(r, "status")),
		Search: queryValue(r, "search"),
		Page:   page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all warehouses successfully", result)
}

func (h *WarehouseHandler) Get(w http.ResponseWriter, r *http.Request) {
	warehouse, err := h.warehouses.Get(r.Context(), chi.URLParam(r, "warehouseId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get warehouse detail successfully", warehouse)
}

func (h *WarehouseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.WarehouseInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	warehouse, err := h.warehouses.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Create warehouse successfully", warehouse)
}

func (h *WarehouseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.WarehouseUpdateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	warehouse, err := h.warehouses.Update(r.Context(), chi.URLParam(r, "warehouseId"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update warehouse successfully", warehouse)
}

type warehouseStatusRequest struct {
	Status string `json:"status"`
}

func (h *WarehouseHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req warehouseStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	warehouse, err := h.warehouses.ChangeStatus(r.Context(), chi.URLParam(r, "warehouseId"), req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update warehouse status successfully", warehouse)
}

func (h *WarehouseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.warehouses.Delete(r.Context(), chi.URLParam(r, "warehouseId")); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Delete warehouse successfully", nil)
}
