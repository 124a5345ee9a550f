package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

// EquipmentRepository defines persistence operations for equipment and its
// maintenance history.
type EquipmentRepository interface {
	List(ctx context.Context, filter types.EquipmentFilter) ([]types.Equipment, int, error)
	GetByID(ctx context.Context, id string) (types.Equipment, error)
	GetByCode(ctx context.Context, code string) (types.Equipment, error)
	GetByName(ctx context.Context, name string) (types.Equipment, error)
	GetBySerialNumber(ctx context.Context, serial string) (types.Equipment, error)
	Create(ctx context.Context, equipment types.Equipment) (types.Equipment, error)
	Update(ctx context.Context, equipment types.Equipment) (types.Equipment, error)
	AddMaintenance(ctx context.Context, record types.MaintenanceRecord) (types.MaintenanceRecord, error)
	ListMaintenance(ctx context.Context, filter types.MaintenanceFilter) ([]types.MaintenanceRecord, int, error)
}

// EquipmentInput creates equipment. Dates are RFC 3339 or YYYY-MM-DD.
type EquipmentInput struct {
	Name                string         `json:"name"`
	SerialNumber        string         `json:"serial_number"`
	Type                string         `json:"type"`
	Model               string         `json:"model"`
	Manufacturer        string         `json:"manufacturer"`
	Status              string         `json:"status"`
	Location            string         `json:"location"`
	Description         string         `json:"description"`
	InstallDate         string         `json:"install_date"`
	LastMaintenanceDate string         `json:"last_maintenance_date"`
	NextMaintenanceDate string         `json:"next_maintenance_date"`
	Specifications      map[string]any `json:"specifications"`
}

// EquipmentUpdateInput changes equipment. Nil fields are left unchanged.
type EquipmentUpdateInput struct {
	Name                *string        `json:"name"`
	SerialNumber        *string        `json:"serial_number"`
	Type                *string        `json:"type"`
	Model               *string        `json:"model"`
	Manufacturer        *string        `json:"manufacturer"`
	Status              *string        `json:"status"`
	Location            *string        `json:"location"`
	Description         *string        `json:"description"`
	InstallDate         *string        `json:"install_date"`
	LastMaintenanceDate *string        `json:"last_maintenance_date"`
	NextMaintenanceDate *string        `json:"next_maintenance_date"`
	Specifications      map[string]any `json:"specifications"`
}

// MaintenanceInput appends a maintenance record.
type MaintenanceInput struct {
	Date            string  `json:"date"`
	MaintenanceType string  `json:"maintenance_type"`
	Description     string  `json:"description"`
	PerformedBy     string  `json:"performed_by"`
	Cost            float64 `json:"cost"`
}

// MaintenanceListInput filters maintenance history. Dates are optional.
type MaintenanceListInput struct {
	From string
	To   string
	Page types.Page
}

// EquipmentService encapsulates equipment use-cases.
type EquipmentService struct {
	repo   EquipmentRepository
	codes  CodeGenerator
	images ImageStore
	logger *zap.Logger
}

func NewEquipmentService(repo EquipmentRepository, codes CodeGenerator, images ImageStore, logger *zap.Logger) *EquipmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EquipmentService{repo: repo, codes: codes, images: images, logger: logger}
}

func optionalDate(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseEquipmentStatus(value string) (types.EquipmentStatus, error) {
	status := types.EquipmentStatus(strings.TrimSpace(value))
	if !status.Valid() {
		return "", apperr.BadRequest("Invalid status. Must be one of: Active, Inactive, Maintenance")
	}
	return status, nil
}

func (s *EquipmentService) ensureUnique(ctx context.Context, name, serial, exceptID string) error {
	if name != "" {
		existing, err := s.repo.GetByName(ctx, name)
		if err == nil && existing.ID != exceptID && !existing.IsDeleted {
			return apperr.BadRequest("Equipment with name %q already exists", name)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return apperr.Internal(err, "check equipment name")
		}
	}
	if serial != "" {
		existing, err := s.repo.GetBySerialNumber(ctx, serial)
		if err == nil && existing.ID != exceptID && !existing.IsDeleted {
			return apperr.BadRequest("Equipment with serial number %q already exists", serial)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return apperr.Internal(err, "check serial number")
		}
	}
	return nil
}

func (s *EquipmentService) Create(ctx context.Context, in EquipmentInput) (types.Equipment, error) {
	name := strings.TrimSpace(in.Name)
	serial := strings.TrimSpace(in.SerialNumber)
	kind := strings.TrimSpace(in.Type)
	if name == "" || serial == "" || kind == "" {
		return types.Equipment{}, apperr.BadRequest("name, serial_number, and type are required")
	}

	status := types.EquipmentActive
	if in.Status != "" {
		parsed, err := parseEquipmentStatus(in.Status)
		if err != nil {
			return types.Equipment{}, err
		}
		status = parsed
	}
	install, err := optionalDate("install_date", in.InstallDate)
	if err != nil {
		return types.Equipment{}, err
	}
	lastMaintenance, err := optionalDate("last_maintenance_date", in.LastMaintenanceDate)
	if err != nil {
		return types.Equipment{}, err
	}
	nextMaintenance, err := optionalDate("next_maintenance_date", in.NextMaintenanceDate)
	if err != nil {
		return types.Equipment{}, err
	}
	if err := s.ensureUnique(ctx, name, serial, ""); err != nil {
		return types.Equipment{}, err
	}

	code, err := s.codes.NextID(ctx, types.SequenceEquipment)
	if err != nil {
		return types.Equipment{}, apperr.Internal(err, "failed to generate equipment id")
	}
	specs := in.Specifications
	if specs == nil {
		specs = map[string]any{}
	}

	created, err := s.repo.Create(ctx, types.Equipment{
		Code:                code,
		Name:                name,
		SerialNumber:        serial,
		Type:                kind,
		Model:               strings.TrimSpace(in.Model),
		Manufacturer:        strings.TrimSpace(in.Manufacturer),
		Status:              status,
		Location:            strings.TrimSpace(in.Location),
		Description:         strings.TrimSpace(in.Description),
		InstallDate:         install,
		LastMaintenanceDate: lastMaintenance,
		NextMaintenanceDate: nextMaintenance,
		Specifications:      specs,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Equipment{}, apperr.BadRequest("Equipment with name %q already exists", name)
		}
		return types.Equipment{}, apperr.Internal(err, "create equipment")
	}
	s.logger.Info("equipment created", zap.String("equipment_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

func (s *EquipmentService) List(ctx context.Context, filter types.EquipmentFilter) (types.Paginated[types.Equipment], error) {
	filter.Page = types.NewPage(filter.Page.Number, filter.Page.Size)
	if filter.Status != "" && !filter.Status.Valid() {
		return types.Paginated[types.Equipment]{}, apperr.BadRequest("Invalid status. Must be one of: Active, Inactive, Maintenance")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.Equipment]{}, apperr.Internal(err, "list equipment")
	}
	return types.NewPaginated(filter.Page, items, total), nil
}

// Get resolves equipment by row id or EQ code. Soft-deleted equipment is
// reported as missing.
func (s *EquipmentService) Get(ctx context.Context, ref string) (types.Equipment, error) {
	equipment, found, err := resolveRef(ctx, ref, s.repo.GetByID, s.repo.GetByCode)
	if err != nil {
		return types.Equipment{}, apperr.Internal(err, "load equipment")
	}
	if !found || equipment.IsDeleted {
		return types.Equipment{}, apperr.NotFound("Equipment not found")
	}
	return equipment, nil
}

func (s *EquipmentService) Update(ctx context.Context, ref string, in EquipmentUpdateInput) (types.Equipment, error) {
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return types.Equipment{}, err
	}

	var newName, newSerial string
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return types.Equipment{}, apperr.BadRequest("name cannot be empty")
		}
		if name != equipment.Name {
			newName = name
		}
		equipment.Name = name
	}
	if in.SerialNumber != nil {
		serial := strings.TrimSpace(*in.SerialNumber)
		if serial == "" {
			return types.Equipment{}, apperr.BadRequest("serial_number cannot be empty")
		}
		if serial != equipment.SerialNumber {
			newSerial = serial
		}
		equipment.SerialNumber = serial
	}
	if err := s.ensureUnique(ctx, newName, newSerial, equipment.ID); err != nil {
		return types.Equipment{}, err
	}

	if in.Type != nil {
		kind := strings.TrimSpace(*in.Type)
		if kind == "" {
			return types.Equipment{}, apperr.BadRequest("type cannot be empty")
		}
		equipment.Type = kind
	}
	if in.Status != nil {
		status, err := parseEquipmentStatus(*in.Status)
		if err != nil {
			return types.Equipment{}, err
		}
		equipment.Status = status
	}
	setString(&equipment.Model, in.Model)
	setString(&equipment.Manufacturer, in.Manufacturer)
	setString(&equipment.Location, in.Location)
	setString(&equipment.Description, in.Description)

	dates := []struct {
		field  string
		value  *string
		target **time.Time
	}{
		{"install_date", in.InstallDate, &equipment.InstallDate},
		{"last_maintenance_date", in.LastMaintenanceDate, &equipment.LastMaintenanceDate},
		{"next_maintenance_date", in.NextMaintenanceDate, &equipment.NextMaintenanceDate},
	}
	for _, d := range dates {
		if d.value == nil {
			continue
		}
		parsed, err := optionalDate(d.field, *d.value)
		if err != nil {
			return types.Equipment{}, err
		}
		*d.target = parsed
	}
	if in.Specifications != nil {
		equipment.Specifications = in.Specifications
	}

	return s.save(ctx, equipment)
}

func setString(target *string, value *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}

func (s *EquipmentService) save(ctx context.Context, equipment types.Equipment) (types.Equipment, error) {
	updated, err := s.repo.Update(ctx, equipment)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Equipment{}, apperr.BadRequest("Equipment with this name or serial number already exists")
		}
		return types.Equipment{}, mapNotFound(err, "Equipment not found")
	}
	return updated, nil
}

// Delete soft-deletes equipment that is no longer in active service.
func (s *EquipmentService) Delete(ctx context.Context, ref string) error {
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if equipment.Status == types.EquipmentActive {
		return apperr.BadRequest("Cannot delete active equipment. Please change status to Inactive or Maintenance before deleting.")
	}
	equipment.IsDeleted = true
	if _, err := s.save(ctx, equipment); err != nil {
		return err
	}
	s.logger.Info("equipment deleted", zap.String("equipment_id", equipment.ID))
	return nil
}

// Statuses lists the valid equipment statuses.
func (s *EquipmentService) Statuses() []types.EquipmentStatus {
	return types.EquipmentStatuses()
}

// AddMaintenance records a maintenance event for the equipment.
func (s *EquipmentService) AddMaintenance(ctx context.Context, ref string, in MaintenanceInput) (types.MaintenanceRecord, error) {
	kind := strings.TrimSpace(in.MaintenanceType)
	if in.Date == "" || kind == "" {
		return types.MaintenanceRecord{}, apperr.BadRequest("date and maintenance_type are required")
	}
	if in.Cost < 0 {
		return types.MaintenanceRecord{}, apperr.BadRequest("cost cannot be negative")
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return types.MaintenanceRecord{}, err
	}
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return types.MaintenanceRecord{}, err
	}

	record, err := s.repo.AddMaintenance(ctx, types.MaintenanceRecord{
		EquipmentID:     equipment.ID,
		Date:            date,
		MaintenanceType: kind,
		Description:     strings.TrimSpace(in.Description),
		PerformedBy:     strings.TrimSpace(in.PerformedBy),
		Cost:            in.Cost,
	})
	if err != nil {
		return types.MaintenanceRecord{}, mapNotFound(err, "Equipment not found")
	}
	return record, nil
}

func (s *EquipmentService) maintenanceFilter(in MaintenanceListInput) (types.MaintenanceFilter, error) {
	filter := types.MaintenanceFilter{Page: types.NewPage(in.Page.Number, in.Page.Size)}
	var err error
	if filter.From, err = optionalDate("startDate", in.From); err != nil {
		return filter, err
	}
	if filter.To, err = optionalDate("endDate", in.To); err != nil {
		return filter, err
	}
	return filter, nil
}

// MaintenanceHistory lists the maintenance records of one equipment.
func (s *EquipmentService) MaintenanceHistory(ctx context.Context, ref string, in MaintenanceListInput) (types.Paginated[types.MaintenanceRecord], error) {
	filter, err := s.maintenanceFilter(in)
	if err != nil {
		return types.Paginated[types.MaintenanceRecord]{}, err
	}
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return types.Paginated[types.MaintenanceRecord]{}, err
	}
	filter.EquipmentID = equipment.ID
	return s.listMaintenance(ctx, filter)
}

// AllMaintenanceHistory lists maintenance records across all equipment.
func (s *EquipmentService) AllMaintenanceHistory(ctx context.Context, in MaintenanceListInput) (types.Paginated[types.MaintenanceRecord], error) {
	filter, err := s.maintenanceFilter(in)
	if err != nil {
		return types.Paginated[types.MaintenanceRecord]{}, err
	}
	return s.listMaintenance(ctx, filter)
}

func (s *EquipmentService) listMaintenance(ctx context.Context, filter types.MaintenanceFilter) (types.Paginated[types.MaintenanceRecord], error) {
	records, total, err := s.repo.ListMaintenance(ctx, filter)
	if err != nil {
		return types.Paginated[types.MaintenanceRecord]{}, apperr.Internal(err, "list maintenance history")
	}
	return types.NewPaginated(filter.Page, records, total), nil
}

// UploadImage stores the equipment photo and drops the previous one.
func (s *EquipmentService) UploadImage(ctx context.Context, ref string, upload ImageUpload) (types.Equipment, error) {
	if s.images == nil {
		return types.Equipment{}, apperr.BadRequest("Image storage is not configured")
	}
	if !storage.IsSupportedImage(upload.ContentType) {
		return types.Equipment{}, apperr.BadRequest("Only JPEG, PNG, WEBP and GIF images are allowed")
	}
	if upload.Size > storage.MaxImageSize {
		return types.Equipment{}, apperr.BadRequest("Image must be at most 5MB")
	}
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return types.Equipment{}, err
	}

	key, err := s.images.PutImage(ctx, storage.ImageEquipment, equipment.ID, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return types.Equipment{}, apperr.Internal(err, "store equipment image")
	}
	previous := equipment.ImageKey
	equipment.ImageKey = key
	updated, err := s.save(ctx, equipment)
	if err != nil {
		_ = s.images.Remove(ctx, key)
		return types.Equipment{}, err
	}
	if previous != "" {
		if err := s.images.Remove(ctx, previous); err != nil {
			s.logger.Warn("remove previous equipment image", zap.String("key", previous), zap.Error(err))
		}
	}
	return updated, nil
}

// OpenImage returns the equipment photo. Callers close the body.
func (s *EquipmentService) OpenImage(ctx context.Context, ref string) (storage.Object, error) {
	if s.images == nil {
		return storage.Object{}, apperr.NotFound("Image not found")
	}
	equipment, err := s.Get(ctx, ref)
	if err != nil {
		return storage.Object{}, err
	}
	if equipment.ImageKey == "" {
		return storage.Object{}, apperr.NotFound("Image not found")
	}
	obj, err := s.images.Open(ctx, equipment.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, apperr.NotFound("Image not found")
		}
		return storage.Object{}, apperr.Internal(err, "open equipment image")
	}
	return obj, nil
}
