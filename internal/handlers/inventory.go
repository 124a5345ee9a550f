package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

// InventoryUseCases is the part of services.InventoryService the inventory
// routes use.
type InventoryUseCases interface {
	Receive(ctx context.Context, actorID string, in services.ReceiveInput) (services.MovementResult, error)
	Dispatch(ctx context.Context, actorID string, in services.DispatchInput) (services.MovementResult, error)
	List(ctx context.Context, in services.InventoryListInput) (types.Paginated[types.InventoryItem], error)
	Get(ctx context.Context, ref string) (types.InventoryDetail, error)
	Ledger(ctx context.Context, in services.LedgerListInput) (types.Paginated[types.LedgerEntry], error)
}

// InventoryHandler serves stock movements and stock queries.
type InventoryHandler struct {
	inventory InventoryUseCases
}

func NewInventoryHandler(inventory InventoryUseCases) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// InventoryRouter registers inventory routes on the given router. The
// routes expect an authenticated user.
func InventoryRouter(r chi.Router, inventory InventoryUseCases, guard *Guard) {
	handler := NewInventoryHandler(inventory)

	r.With(guard.RequirePermission(types.PermReceiveInventory)).Post("/receive", handler.Receive)
	r.With(guard.RequirePermission(types.PermDispatchInventory)).Post("/dispatch", handler.Dispatch)
	r.Group(func(r chi.Router) {
		r.Use(guard.RequirePermission(types.PermViewInventory))
		r.Get("/", handler.List)
		r.Get("/ledger/history", handler.Ledger)
		r.Get("/{inventoryId}", handler.Get)
	})
}

func (h *InventoryHandler) Receive(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req services.ReceiveInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.inventory.Receive(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Inventory received successfully", result)
}

func (h *InventoryHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req services.DispatchInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.inventory.Dispatch(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Inventory dispatched successfully", result)
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	query := r.URL.Query()
	quantityMin, err := optionalIntPtr(query.Get("quantity_min"), "quantity_min")
	if err != nil {
		respondError(w, r, err)
		return
	}
	quantityMax, err := optionalIntPtr(query.Get("quantity_max"), "quantity_max")
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.inventory.List(r.Context(), services.InventoryListInput{
		WarehouseRef: queryValue(r, "warehouse_id"),
		ItemType:     queryValue(r, "item_type"),
		SKU:          queryValue(r, "sku"),
		QuantityMin:  quantityMin,
		QuantityMax:  quantityMax,
		StockStatus:  types.StockStatus(strings.ToUpper(queryValue(r, "stock_status"))),
		Page:         page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all inventory successfully", result)
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.inventory.Get(r.Context(), chi.URLParam(r, "inventoryId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get inventory detail successfully", detail)
}

func (h *InventoryHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.inventory.Ledger(r.Context(), services.LedgerListInput{
		InventoryRef: queryValue(r, "inventory_id"),
		MovementType: types.MovementType(strings.ToUpper(queryValue(r, "movement_type"))),
		From:         queryValue(r, "date_from"),
		To:           queryValue(r, "date_to"),
		Page:         page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get inventory ledger successfully", result)
}
