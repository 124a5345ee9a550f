package services

import (
	"context"
	"strings"
	"testing"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
)

func newEquipmentFixture(t *testing.T) (*EquipmentService, *fakeEquipmentRepo, *fakeImageStore) {
	t.Helper()
	repo := newFakeEquipmentRepo()
	images := newFakeImageStore()
	return NewEquipmentService(repo, NewSequenceService(newFakeSequenceRepo()), images, nil), repo, images
}

func pumpInput() EquipmentInput {
	return EquipmentInput{
		Name:           "Mud Pump",
		SerialNumber:   "MP-1000",
		Type:           "Pump",
		InstallDate:    "2023-01-15",
		Specifications: map[string]any{"pressure": "7500 psi"},
	}
}

func TestEquipmentCreate(t *testing.T) {
	svc, _, _ := newEquipmentFixture(t)
	ctx := context.Background()

	pump, err := svc.Create(ctx, pumpInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pump.Code != "EQ-001" || pump.Status != types.EquipmentActive {
		t.Fatalf("unexpected equipment %+v", pump)
	}
	if pump.InstallDate == nil || pump.InstallDate.Format("2006-01-02") != "2023-01-15" {
		t.Fatalf("install date not parsed: %v", pump.InstallDate)
	}

	dupName := pumpInput()
	dupName.SerialNumber = "OTHER"
	_, err = svc.Create(ctx, dupName)
	assertAppErr(t, err, apperr.KindBadRequest, `Equipment with name "Mud Pump" already exists`)

	dupSerial := pumpInput()
	dupSerial.Name = "Spare Pump"
	_, err = svc.Create(ctx, dupSerial)
	assertAppErr(t, err, apperr.KindBadRequest, `Equipment with serial number "MP-1000" already exists`)

	_, err = svc.Create(ctx, EquipmentInput{Name: "X", Type: "Pump"})
	assertAppErr(t, err, apperr.KindBadRequest, "name, serial_number, and type are required")

	bad := pumpInput()
	bad.Name, bad.SerialNumber, bad.Status = "Y", "Y", "Broken"
	_, err = svc.Create(ctx, bad)
	assertAppErr(t, err, apperr.KindBadRequest, "Invalid status. Must be one of: Active, Inactive, Maintenance")

	second, err := svc.Create(ctx, EquipmentInput{Name: "Choke", SerialNumber: "CH-1", Type: "Valve", Status: "Maintenance"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Code != "EQ-002" {
		t.Fatalf("expected EQ-002, got %s", second.Code)
	}
}

func TestEquipmentGetByCodeOrID(t *testing.T) {
	svc, _, _ := newEquipmentFixture(t)
	ctx := context.Background()
	pump, _ := svc.Create(ctx, pumpInput())

	for _, ref := range []string{pump.ID, pump.Code} {
		got, err := svc.Get(ctx, ref)
		if err != nil || got.ID != pump.ID {
			t.Fatalf("Get(%q) = %+v, %v", ref, got, err)
		}
	}
	_, err := svc.Get(ctx, "EQ-999")
	assertAppErr(t, err, apperr.KindNotFound, "Equipment not found")
}

func TestEquipmentDeleteRequiresInactive(t *testing.T) {
	svc, repo, _ := newEquipmentFixture(t)
	ctx := context.Background()
	pump, _ := svc.Create(ctx, pumpInput())

	err := svc.Delete(ctx, pump.Code)
	assertAppErr(t, err, apperr.KindBadRequest, "Cannot delete active equipment. Please change status to Inactive or Maintenance before deleting.")

	inactive := "Inactive"
	if _, err := svc.Update(ctx, pump.Code, EquipmentUpdateInput{Status: &inactive}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, pump.Code); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stored, err := repo.GetByID(ctx, pump.ID)
	if err != nil || !stored.IsDeleted {
		t.Fatalf("equipment should be soft deleted: %+v, %v", stored, err)
	}
	_, err = svc.Get(ctx, pump.ID)
	assertAppErr(t, err, apperr.KindNotFound, "Equipment not found")

	list, err := svc.List(ctx, types.EquipmentFilter{})
	if err != nil || list.TotalItem != 0 {
		t.Fatalf("deleted equipment listed: %+v, %v", list, err)
	}

	// The name of a deleted item can be reused.
	if _, err := svc.Create(ctx, pumpInput()); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
}

func TestEquipmentUpdateRechecksUniqueness(t *testing.T) {
	svc, _, _ := newEquipmentFixture(t)
	ctx := context.Background()
	pump, _ := svc.Create(ctx, pumpInput())
	if _, err := svc.Create(ctx, EquipmentInput{Name: "Choke", SerialNumber: "CH-1", Type: "Valve"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken := "Choke"
	_, err := svc.Update(ctx, pump.ID, EquipmentUpdateInput{Name: &taken})
	assertAppErr(t, err, apperr.KindBadRequest, `Equipment with name "Choke" already exists`)

	location := "Rig 7"
	next := "2025-01-01"
	updated, err := svc.Update(ctx, pump.ID, EquipmentUpdateInput{Location: &location, NextMaintenanceDate: &next})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Location != "Rig 7" || updated.NextMaintenanceDate == nil {
		t.Fatalf("unexpected equipment %+v", updated)
	}

	bad := "soon"
	_, err = svc.Update(ctx, pump.ID, EquipmentUpdateInput{NextMaintenanceDate: &bad})
	assertAppErr(t, err, apperr.KindBadRequest, "Invalid next_maintenance_date")
}

func TestEquipmentMaintenanceHistory(t *testing.T) {
	svc, _, _ := newEquipmentFixture(t)
	ctx := context.Background()
	pump, _ := svc.Create(ctx, pumpInput())

	record, err := svc.AddMaintenance(ctx, pump.Code, MaintenanceInput{
		Date:            "2024-03-01",
		MaintenanceType: "Inspection",
		Cost:            1200,
	})
	if err != nil {
		t.Fatalf("AddMaintenance: %v", err)
	}
	if record.EquipmentID != pump.ID {
		t.Fatalf("record not attached to equipment: %+v", record)
	}

	got, _ := svc.Get(ctx, pump.ID)
	if got.LastMaintenanceDate == nil || got.LastMaintenanceDate.Format("2006-01-02") != "2024-03-01" {
		t.Fatalf("last maintenance date not advanced: %v", got.LastMaintenanceDate)
	}

	history, err := svc.MaintenanceHistory(ctx, pump.Code, MaintenanceListInput{})
	if err != nil || history.TotalItem != 1 {
		t.Fatalf("MaintenanceHistory: %+v, %v", history, err)
	}

	_, err = svc.AddMaintenance(ctx, pump.Code, MaintenanceInput{Date: "2024-03-01"})
	assertAppErr(t, err, apperr.KindBadRequest, "date and maintenance_type are required")

	_, err = svc.AllMaintenanceHistory(ctx, MaintenanceListInput{From: "not-a-date"})
	assertAppErr(t, err, apperr.KindBadRequest, "Invalid startDate")
}

func TestEquipmentImage(t *testing.T) {
	svc, _, images := newEquipmentFixture(t)
	ctx := context.Background()
	pump, _ := svc.Create(ctx, pumpInput())

	_, err := svc.OpenImage(ctx, pump.ID)
	assertAppErr(t, err, apperr.KindNotFound, "Image not found")

	updated, err := svc.UploadImage(ctx, pump.Code, ImageUpload{Body: strings.NewReader("jpeg"), Size: 4, ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasSuffix(updated.ImageKey, ".jpg") || images.len() != 1 {
		t.Fatalf("unexpected image key %q", updated.ImageKey)
	}

	obj, err := svc.OpenImage(ctx, pump.ID)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	obj.Body.Close()
	if obj.ContentType != "image/jpeg" || obj.Size != 4 {
		t.Fatalf("unexpected object %+v", obj)
	}
}
