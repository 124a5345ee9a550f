package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/types"
)

// EquipmentUseCases is the part of services.EquipmentService the equipment
// routes use.
type EquipmentUseCases interface {
	Create(ctx context.Context, in services.EquipmentInput) (types.Equipment, error)
	List(ctx context.Context, filter types.EquipmentFilter) (types.Paginated[types.Equipment], error)
	Get(ctx context.Context, ref string) (types.Equipment, error)
	Update(ctx context.Context, ref string, in services.EquipmentUpdateInput) (types.Equipment, error)
	Delete(ctx context.Context, ref string) error
	Statuses() []types.EquipmentStatus
	AddMaintenance(ctx context.Context, ref string, in services.MaintenanceInput) (types.MaintenanceRecord, error)
	MaintenanceHistory(ctx context.Context, ref string, in services.MaintenanceListInput) (types.Paginated[types.MaintenanceRecord], error)
	AllMaintenanceHistory(ctx context.Context, in services.MaintenanceListInput) (types.Paginated[types.MaintenanceRecord], error)
	UploadImage(ctx context.Context, ref string, upload services.ImageUpload) (types.Equipment, error)
	OpenImage(ctx context.Context, ref string) (storage.Object, error)
}

// EquipmentHandler serves the equipment catalogue.
type EquipmentHandler struct {
	equipment EquipmentUseCases
}

func NewEquipmentHandler(equipment EquipmentUseCases) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipment}
}

// EquipmentRouter registers equipment routes on the given router.
func EquipmentRouter(r chi.Router, equipment EquipmentUseCases, guard *Guard) {
	handler := NewEquipmentHandler(equipment)
	view := guard.RequirePermission(types.PermViewEquipment)
	update := guard.RequirePermission(types.PermUpdateEquipment)

	r.With(guard.RequirePermission(types.PermCreateEquipment)).Post("/", handler.Create)
	r.With(view).Get("/", handler.List)
	r.With(view).Get("/statuses", handler.Statuses)
	r.With(view).Get("/maintenance-history", handler.AllMaintenanceHistory)
	r.Route("/{id}", func(r chi.Router) {
		r.With(view).Get("/", handler.Get)
		r.With(update).Put("/", handler.Update)
		r.With(guard.RequirePermission(types.PermDeleteEquipment)).Delete("/", handler.Delete)
		r.With(view).Get("/maintenance-history", handler.MaintenanceHistory)
		r.With(guard.RequirePermission(types.PermScheduleMaintenance, types.PermUpdateEquipment)).Post("/maintenance-history", handler.AddMaintenance)
		r.With(view).Get("/image", handler.Image)
		r.With(update).Put("/image", handler.UploadImage)
	})
}

func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.EquipmentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	equipment, err := h.equipment.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Equipment created successfully", equipment)
}

func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.equipment.List(r.Context(), types.EquipmentFilter{
		Type:     queryValue(r, "type"),
		Status:   types.EquipmentStatus(queryValue(r, "status")),
		Location: queryValue(r, "location"),
		Search:   queryValue(r, "search"),
		Page:     page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all equipment successfully", result)
}

func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	equipment, err := h.equipment.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get equipment successfully", equipment)
}

func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.EquipmentUpdateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	equipment, err := h.equipment.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Equipment updated successfully", equipment)
}

func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.equipment.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Equipment deleted successfully", nil)
}

func (h *EquipmentHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Get equipment statuses successfully", h.equipment.Statuses())
}

func (h *EquipmentHandler) AddMaintenance(w http.ResponseWriter, r *http.Request) {
	var req services.MaintenanceInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	record, err := h.equipment.AddMaintenance(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Maintenance record added successfully", record)
}

func maintenanceListInput(r *http.Request) (services.MaintenanceListInput, error) {
	page, err := parsePage(r)
	if err != nil {
		return services.MaintenanceListInput{}, err
	}
	return services.MaintenanceListInput{
		From: queryValue(r, "startDate"),
		To:   queryValue(r, "endDate"),
		Page: page,
	}, nil
}

func (h *EquipmentHandler) MaintenanceHistory(w http.ResponseWriter, r *http.Request) {
	in, err := maintenanceListInput(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.equipment.MaintenanceHistory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get maintenance history successfully", result)
}

func (h *EquipmentHandler) AllMaintenanceHistory(w http.ResponseWriter, r *http.Request) {
	in, err := maintenanceListInput(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.equipment.AllMaintenanceHistory(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all maintenance history successfully", result)
}

func (h *EquipmentHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	upload, file, err := readImageUpload(w, r, formFieldImage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	equipment, err := h.equipment.UploadImage(r.Context(), chi.URLParam(r, "id"), upload)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Equipment image uploaded successfully", equipment)
}

func (h *EquipmentHandler) Image(w http.ResponseWriter, r *http.Request) {
	obj, err := h.equipment.OpenImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeObject(w, r, obj)
}
