package services

import (
	"bytes"
	"context"
	"io"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/realtime"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
)

type fakeSequenceRepo struct {
	mu     sync.Mutex
	values map[string]int
}

func newFakeSequenceRepo() *fakeSequenceRepo {
	return &fakeSequenceRepo{values: map[string]int{}}
}

func (f *fakeSequenceRepo) Next(_ context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name]++
	return f.values[name], nil
}

type fakeWarehouseRepo struct {
	mu    sync.Mutex
	items map[string]types.Warehouse
	stock map[string]int
}

func newFakeWarehouseRepo(warehouses ...types.Warehouse) *fakeWarehouseRepo {
	f := &fakeWarehouseRepo{items: map[string]types.Warehouse{}, stock: map[string]int{}}
	for _, w := range warehouses {
		f.items[w.ID] = w
	}
	return f
}

func (f *fakeWarehouseRepo) GetByID(_ context.Context, id string) (types.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.items[id]
	if !ok {
		return types.Warehouse{}, store.ErrNotFound
	}
	return w, nil
}

func (f *fakeWarehouseRepo) GetByCode(_ context.Context, code string) (types.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.items {
		if w.Code == code {
			return w, nil
		}
	}
	return types.Warehouse{}, store.ErrNotFound
}

func (f *fakeWarehouseRepo) GetByNameAndLocation(_ context.Context, name, location string) (types.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.items {
		if w.Name == name && w.Location == location {
			return w, nil
		}
	}
	return types.Warehouse{}, store.ErrNotFound
}

func (f *fakeWarehouseRepo) List(_ context.Context, filter types.WarehouseFilter) ([]types.Warehouse, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Warehouse
	for _, w := range f.items {
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (f *fakeWarehouseRepo) Create(_ context.Context, w types.Warehouse) (types.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.ID = uuid.NewString()
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	f.items[w.ID] = w
	return w, nil
}

func (f *fakeWarehouseRepo) Update(_ context.Context, w types.Warehouse) (types.Warehouse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[w.ID]; !ok {
		return types.Warehouse{}, store.ErrNotFound
	}
	w.UpdatedAt = time.Now()
	f.items[w.ID] = w
	return w, nil
}

func (f *fakeWarehouseRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeWarehouseRepo) CountInventory(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id], nil
}

type fakeEquipmentRepo struct {
	mu          sync.Mutex
	items       map[string]types.Equipment
	maintenance []types.MaintenanceRecord
}

func newFakeEquipmentRepo(items ...types.Equipment) *fakeEquipmentRepo {
	f := &fakeEquipmentRepo{items: map[string]types.Equipment{}}
	for _, e := range items {
		f.items[e.ID] = e
	}
	return f
}

func (f *fakeEquipmentRepo) find(match func(types.Equipment) bool) (types.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.items {
		if match(e) {
			return e, nil
		}
	}
	return types.Equipment{}, store.ErrNotFound
}

func (f *fakeEquipmentRepo) GetByID(_ context.Context, id string) (types.Equipment, error) {
	return f.find(func(e types.Equipment) bool { return e.ID == id })
}

func (f *fakeEquipmentRepo) GetByCode(_ context.Context, code string) (types.Equipment, error) {
	return f.find(func(e types.Equipment) bool { return e.Code == code })
}

func (f *fakeEquipmentRepo) GetByName(_ context.Context, name string) (types.Equipment, error) {
	return f.find(func(e types.Equipment) bool { return e.Name == name })
}

func (f *fakeEquipmentRepo) GetBySerialNumber(_ context.Context, serial string) (types.Equipment, error) {
	return f.find(func(e types.Equipment) bool { return e.SerialNumber == serial })
}

func (f *fakeEquipmentRepo) List(_ context.Context, filter types.EquipmentFilter) ([]types.Equipment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Equipment
	for _, e := range f.items {
		if e.IsDeleted {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, len(out), nil
}

func (f *fakeEquipmentRepo) Create(_ context.Context, e types.Equipment) (types.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	f.items[e.ID] = e
	return e, nil
}

func (f *fakeEquipmentRepo) Update(_ context.Context, e types.Equipment) (types.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[e.ID]; !ok {
		return types.Equipment{}, store.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	f.items[e.ID] = e
	return e, nil
}

func (f *fakeEquipmentRepo) AddMaintenance(_ context.Context, record types.MaintenanceRecord) (types.MaintenanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[record.EquipmentID]
	if !ok {
		return types.MaintenanceRecord{}, store.ErrNotFound
	}
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now()
	f.maintenance = append(f.maintenance, record)
	if e.LastMaintenanceDate == nil || record.Date.After(*e.LastMaintenanceDate) {
		date := record.Date
		e.LastMaintenanceDate = &date
		f.items[e.ID] = e
	}
	return record, nil
}

func (f *fakeEquipmentRepo) ListMaintenance(_ context.Context, filter types.MaintenanceFilter) ([]types.MaintenanceRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.MaintenanceRecord
	for _, r := range f.maintenance {
		if filter.EquipmentID != "" && r.EquipmentID != filter.EquipmentID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

type pairKey struct{ warehouse, equipment string }

// fakeInventoryRepo mirrors the conditional update semantics of the
// postgres repository under a single mutex.
type fakeInventoryRepo struct {
	mu     sync.Mutex
	rows   map[pairKey]*types.Inventory
	ledger []types.LedgerEntry
}

func newFakeInventoryRepo() *fakeInventoryRepo {
	return &fakeInventoryRepo{rows: map[pairKey]*types.Inventory{}}
}

func (f *fakeInventoryRepo) find(match func(*types.Inventory) bool) (types.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if match(row) {
			return *row, nil
		}
	}
	return types.Inventory{}, store.ErrNotFound
}

func (f *fakeInventoryRepo) GetByID(_ context.Context, id string) (types.Inventory, error) {
	return f.find(func(i *types.Inventory) bool { return i.ID == id })
}

func (f *fakeInventoryRepo) GetByCode(_ context.Context, code string) (types.Inventory, error) {
	return f.find(func(i *types.Inventory) bool { return i.Code == code })
}

func (f *fakeInventoryRepo) GetByPair(_ context.Context, warehouseID, equipmentID string) (types.Inventory, error) {
	return f.find(func(i *types.Inventory) bool { return i.WarehouseID == warehouseID && i.EquipmentID == equipmentID })
}

func (f *fakeInventoryRepo) append(row *types.Inventory, change types.StockChange) types.LedgerEntry {
	entry := types.LedgerEntry{
		ID:          uuid.NewString(),
		InventoryID: row.ID,
		Movement:    change.Movement,
		Quantity:    change.Quantity,
		ActorID:     change.ActorID,
		Notes:       change.Notes,
		CreatedAt:   time.Now(),
	}
	f.ledger = append(f.ledger, entry)
	return entry
}

func (f *fakeInventoryRepo) Receive(_ context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey{change.WarehouseID, change.EquipmentID}
	row, ok := f.rows[key]
	if ok && int64(row.Quantity)+int64(change.Quantity) > math.MaxInt32 {
		return types.Inventory{}, types.LedgerEntry{}, store.ErrQuantityOutOfRange
	}
	if !ok {
		if change.InventoryCode == "" {
			return types.Inventory{}, types.LedgerEntry{}, store.ErrNotFound
		}
		row = &types.Inventory{
			ID:          uuid.NewString(),
			Code:        change.InventoryCode,
			WarehouseID: change.WarehouseID,
			EquipmentID: change.EquipmentID,
		}
		f.rows[key] = row
	}
	row.Quantity += change.Quantity
	row.StockStatus = types.ClassifyStock(row.Quantity)
	row.LastUpdated = time.Now()
	return *row, f.append(row, change), nil
}

func (f *fakeInventoryRepo) Dispatch(_ context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[pairKey{change.WarehouseID, change.EquipmentID}]
	if !ok {
		return types.Inventory{}, types.LedgerEntry{}, store.ErrNotFound
	}
	if row.Quantity < change.Quantity {
		return types.Inventory{}, types.LedgerEntry{}, &store.InsufficientStockError{Available: row.Quantity, Requested: change.Quantity}
	}
	row.Quantity -= change.Quantity
	row.StockStatus = types.ClassifyStock(row.Quantity)
	row.LastUpdated = time.Now()
	return *row, f.append(row, change), nil
}

func (f *fakeInventoryRepo) List(_ context.Context, filter types.InventoryFilter) ([]types.InventoryItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.InventoryItem
	for _, row := range f.rows {
		if filter.WarehouseID != "" && row.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.StockStatus != "" && row.StockStatus != filter.StockStatus {
			continue
		}
		out = append(out, types.InventoryItem{
			ID:                row.ID,
			InventoryCode:     row.Code,
			EquipmentID:       row.EquipmentID,
			WarehouseID:       row.WarehouseID,
			QuantityAvailable: row.Quantity,
			StockStatus:       row.StockStatus,
		})
	}
	return out, len(out), nil
}

func (f *fakeInventoryRepo) RecentLedger(_ context.Context, inventoryID string, n int) ([]types.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.LedgerEntry
	for i := len(f.ledger) - 1; i >= 0 && len(out) < n; i-- {
		if f.ledger[i].InventoryID == inventoryID {
			out = append(out, f.ledger[i])
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) ListLedger(_ context.Context, filter types.LedgerFilter) ([]types.LedgerEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.LedgerEntry
	for i := len(f.ledger) - 1; i >= 0; i-- {
		entry := f.ledger[i]
		if filter.InventoryID != "" && entry.InventoryID != filter.InventoryID {
			continue
		}
		if filter.MovementType != "" && entry.Movement.Type() != filter.MovementType {
			continue
		}
		out = append(out, entry)
	}
	return out, len(out), nil
}

type recordingAlerts struct {
	mu     sync.Mutex
	alerts []types.StockAlert
	err    error
}

func (r *recordingAlerts) PublishStockAlert(_ context.Context, alert types.StockAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	items map[string]types.User
	roles *fakeRoleRepo
}

func newFakeUserRepo(roles *fakeRoleRepo, users ...types.User) *fakeUserRepo {
	f := &fakeUserRepo{items: map[string]types.User{}, roles: roles}
	for _, u := range users {
		f.items[u.ID] = u
	}
	return f
}

// withRole attaches the role record the way the store's join does.
func (f *fakeUserRepo) withRole(u types.User) types.User {
	if f.roles == nil || u.RoleID == "" {
		return u
	}
	if role, err := f.roles.GetByID(context.Background(), u.RoleID); err == nil {
		u.Role = &role
	}
	return u
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	f.mu.Lock()
	u, ok := f.items[id]
	f.mu.Unlock()
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return f.withRole(u), nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context, filter types.UserFilter) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.User
	for _, u := range f.items {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.RoleID != "" && u.RoleID != filter.RoleID {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, len(out), nil
}

func (f *fakeUserRepo) Create(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.Email == u.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) Update(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[u.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	u.Role = nil
	f.items[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) CountByRole(_ context.Context, roleID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, u := range f.items {
		if u.RoleID == roleID {
			count++
		}
	}
	return count, nil
}

func (f *fakeUserRepo) ListIDsWithPermission(ctx context.Context, perms []types.Permission) ([]string, error) {
	f.mu.Lock()
	users := make([]types.User, 0, len(f.items))
	for _, u := range f.items {
		users = append(users, u)
	}
	f.mu.Unlock()

	var ids []string
	for _, u := range users {
		u = f.withRole(u)
		if !u.IsActive || u.Role == nil {
			continue
		}
		for _, p := range perms {
			if u.Role.Permissions.Has(p) {
				ids = append(ids, u.ID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeRoleRepo struct {
	mu    sync.Mutex
	items map[string]types.Role
}

func newFakeRoleRepo(roles ...types.Role) *fakeRoleRepo {
	f := &fakeRoleRepo{items: map[string]types.Role{}}
	for _, r := range roles {
		f.items[r.ID] = r
	}
	return f
}

func (f *fakeRoleRepo) List(_ context.Context, search string, _ types.Page) ([]types.Role, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Role
	for _, r := range f.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f *fakeRoleRepo) GetByID(_ context.Context, id string) (types.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return types.Role{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoleRepo) GetByName(_ context.Context, name string) (types.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.Name == name {
			return r, nil
		}
	}
	return types.Role{}, store.ErrNotFound
}

func (f *fakeRoleRepo) Create(_ context.Context, r types.Role) (types.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.items[r.ID] = r
	return r, nil
}

func (f *fakeRoleRepo) Update(_ context.Context, r types.Role) (types.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[r.ID]; !ok {
		return types.Role{}, store.ErrNotFound
	}
	r.UpdatedAt = time.Now()
	f.items[r.ID] = r
	return r, nil
}

func (f *fakeRoleRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeLoginHistory struct {
	mu      sync.Mutex
	entries []types.LoginHistory
}

func (f *fakeLoginHistory) Create(_ context.Context, entry types.LoginHistory) (types.LoginHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeLoginHistory) ListByUser(_ context.Context, userID string, limit int) ([]types.LoginHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.LoginHistory
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].UserID == userID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: map[string]time.Time{}}
}

func (f *fakeBlacklist) Revoke(_ context.Context, token, _ string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = expiresAt
	return nil
}

func (f *fakeBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[token]
	return ok, nil
}

type fakeEvictor struct {
	mu      sync.Mutex
	evicted map[string]string
	live    map[string]bool
}

func newFakeEvictor(live ...string) *fakeEvictor {
	f := &fakeEvictor{evicted: map[string]string{}, live: map[string]bool{}}
	for _, id := range live {
		f.live[id] = true
	}
	return f
}

func (f *fakeEvictor) Evict(userID, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[userID] {
		return false
	}
	delete(f.live, userID)
	f.evicted[userID] = reason
	return true
}

func (f *fakeEvictor) reason(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicted[userID]
}

type fakeImageStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeImageStore) PutImage(_ context.Context, kind storage.ImageKind, ownerID string, r io.Reader, _ int64, contentType string) (string, error) {
	key, err := storage.ImageKey(kind, ownerID, contentType)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.contentTypes[key] = contentType
	return key, nil
}

func (f *fakeImageStore) Open(_ context.Context, key string) (storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: f.contentTypes[key],
		Size:        int64(len(data)),
	}, nil
}

func (f *fakeImageStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	delete(f.contentTypes, key)
	return nil
}

func (f *fakeImageStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []types.RequestLog
}

func (f *fakeLogRepo) Create(_ context.Context, entry types.RequestLog) (types.RequestLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeLogRepo) List(_ context.Context, filter types.LogFilter) ([]types.RequestLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.RequestLog
	for _, e := range f.entries {
		if filter.Method != "" && e.Method != filter.Method {
			continue
		}
		if filter.StatusCode != 0 && e.StatusCode != filter.StatusCode {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeLogRepo) GetByID(_ context.Context, id string) (types.RequestLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return types.RequestLog{}, store.ErrNotFound
}

func (f *fakeLogRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeLogRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var deleted int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return deleted, nil
}

func (f *fakeLogRepo) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []types.Notification
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	created, err := f.CreateMany(ctx, []types.Notification{n})
	if err != nil {
		return types.Notification{}, err
	}
	return created[0], nil
}

func (f *fakeNotificationRepo) CreateMany(_ context.Context, items []types.Notification) ([]types.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Notification, len(items))
	for i, n := range items {
		n.ID = uuid.NewString()
		n.CreatedAt = time.Now()
		if n.Type == "" {
			n.Type = types.NotificationInfo
		}
		f.items = append(f.items, n)
		out[i] = n
	}
	return out, nil
}

func (f *fakeNotificationRepo) List(_ context.Context, filter types.NotificationFilter) ([]types.Notification, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Notification
	for _, n := range f.items {
		if n.RecipientID != filter.RecipientID {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		out = append(out, n)
	}
	return out, len(out), nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.items {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID string) (types.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id && n.RecipientID == recipientID {
			now := time.Now()
			f.items[i].IsRead = true
			f.items[i].ReadAt = &now
			return f.items[i], nil
		}
	}
	return types.Notification{}, store.ErrNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for i, n := range f.items {
		if n.RecipientID == recipientID && !n.IsRead {
			f.items[i].IsRead = true
			changed++
		}
	}
	return changed, nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id, recipientID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id && n.RecipientID == recipientID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type recordingSender struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func newRecordingSender() *recordingSender {
	return &recordingSender{events: map[string][]realtime.Event{}}
}

func (r *recordingSender) Send(userID string, event realtime.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[userID] = append(r.events[userID], event)
	return true
}

func (r *recordingSender) sent(userID string) []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events[userID]...)
}

func assertAppErr(t *testing.T, err error, kind apperr.Kind, message string) {
	t.Helper()
	if !apperr.Is(err, kind) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
	if message != "" && err.Error() != message {
		t.Fatalf("expected %q, got %q", message, err.Error())
	}
}
