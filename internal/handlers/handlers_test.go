package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

type fakeAuthenticator struct {
	users map[string]types.User
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, apperr.Unauthorized("No token")
	}
	user, ok := f.users[token]
	if !ok {
		return types.User{}, apperr.Unauthorized("Invalid token")
	}
	return user, nil
}

func userWith(id string, perms ...types.Permission) types.User {
	return types.User{
		ID:       id,
		IsActive: true,
		Status:   types.UserStatusActive,
		Role: &types.Role{
			ID:          "role-" + id,
			Name:        "role-" + id,
			Permissions: types.NewPermissionSet(perms...),
		},
	}
}

func testGuard() *Guard {
	return NewGuard(fakeAuthenticator{users: map[string]types.User{
		"admin-token":    userWith("admin", types.PermissionAll),
		"clerk-token":    userWith("clerk", types.PermViewInventory),
		"operator-token": userWith("operator", types.PermReceiveInventory, types.PermDispatchInventory, types.PermViewInventory),
	}}, nil)
}

type fakeInventory struct {
	mu           sync.Mutex
	receiveActor string
	received     services.ReceiveInput
	dispatchErr  error
	listInput    services.InventoryListInput
}

func (f *fakeInventory) Receive(_ context.Context, actorID string, in services.ReceiveInput) (services.MovementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiveActor = actorID
	f.received = in
	return services.MovementResult{
		Inventory: types.Inventory{ID: "inv-1", Quantity: in.Quantity},
		Ledger:    types.LedgerEntry{ID: "led-1", Quantity: in.Quantity, Movement: types.Receipt{Supplier: in.SupplierName}},
	}, nil
}

func (f *fakeInventory) Dispatch(context.Context, string, services.DispatchInput) (services.MovementResult, error) {
	if f.dispatchErr != nil {
		return services.MovementResult{}, f.dispatchErr
	}
	return services.MovementResult{}, nil
}

func (f *fakeInventory) List(_ context.Context, in services.InventoryListInput) (types.Paginated[types.InventoryItem], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listInput = in
	return types.EmptyPage[types.InventoryItem](in.Page), nil
}

func (f *fakeInventory) Get(_ context.Context, ref string) (types.InventoryDetail, error) {
	return types.InventoryDetail{}, apperr.NotFound("Inventory not found")
}

func (f *fakeInventory) Ledger(_ context.Context, in services.LedgerListInput) (types.Paginated[types.LedgerEntry], error) {
	return types.EmptyPage[types.LedgerEntry](in.Page), nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []types.RequestLog
}

func (a *recordingAudit) Enqueue(entry types.RequestLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func inventoryRouter(inventory InventoryUseCases, audit AuditRecorder) http.Handler {
	guard := testGuard()
	router := chi.NewRouter()
	if audit != nil {
		router.Use(AuditLog(audit))
	}
	router.Route("/inventory", func(r chi.Router) {
		r.Use(guard.Authenticate)
		InventoryRouter(r, inventory, guard)
	})
	return router
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"bad request", apperr.BadRequest("Quantity must be greater than 0"), http.StatusBadRequest, "Quantity must be greater than 0"},
		{"unauthorized", apperr.Unauthorized("Token expired"), http.StatusUnauthorized, "Token expired"},
		{"forbidden", apperr.Forbidden("Account is inactive"), http.StatusForbidden, "Account is inactive"},
		{"not found", apperr.NotFound("Warehouse not found"), http.StatusNotFound, "Warehouse not found"},
		{"internal hides cause", apperr.Internal(errors.New("connection refused"), "load user"), http.StatusInternalServerError, internalErrorMessage},
		{"plain error is internal", errors.New("boom"), http.StatusInternalServerError, internalErrorMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Status != statusError || resp.StatusCode != tt.status || resp.Message != tt.message {
				t.Fatalf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    types.Page
		wantErr bool
	}{
		{"", types.Page{Number: 1, Size: types.DefaultPageSize}, false},
		{"page=3&pageSize=25", types.Page{Number: 3, Size: 25}, false},
		{"page=2&limit=500", types.Page{Number: 2, Size: types.MaxPageSize}, false},
		{"page=abc", types.Page{}, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, err := parsePage(req)
		if tt.wantErr {
			if !apperr.Is(err, apperr.KindBadRequest) {
				t.Fatalf("%q: expected bad request, got %v", tt.query, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %+v, %v", tt.query, got, err)
		}
	}
}

func TestGuardRejectsMissingAndInvalidTokens(t *testing.T) {
	router := inventoryRouter(&fakeInventory{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/inventory", "", nil)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Message != "No token" {
		t.Fatalf("missing token: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/inventory", "forged", nil)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Message != "Invalid token" {
		t.Fatalf("invalid token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequirePermission(t *testing.T) {
	router := inventoryRouter(&fakeInventory{}, nil)
	receive := services.ReceiveInput{WarehouseID: "WH-001", EquipmentID: "EQ-001", Quantity: 5}

	rec := doRequest(t, router, http.MethodPost, "/inventory/receive", "clerk-token", receive)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clerk, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Access denied. Required permissions: RECEIVE_INVENTORY" {
		t.Fatalf("unexpected message %q", msg)
	}

	rec = doRequest(t, router, http.MethodPost, "/inventory/receive", "admin-token", receive)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected ALL to pass, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/inventory", "clerk-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected clerk to list, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	guard := testGuard()
	router := chi.NewRouter()
	router.With(guard.Authenticate, guard.RequireRole("role-admin", "role-operator")).Get("/restricted", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "ok", nil)
	})

	rec := doRequest(t, router, http.MethodGet, "/restricted", "clerk-token", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for clerk, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Access denied. Required roles: role-admin, role-operator" {
		t.Fatalf("unexpected message %q", msg)
	}

	for _, token := range []string{"admin-token", "operator-token"} {
		rec = doRequest(t, router, http.MethodGet, "/restricted", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected %s to pass, got %d %s", token, rec.Code, rec.Body.String())
		}
	}
}

func TestReceivePassesActorAndBody(t *testing.T) {
	inventory := &fakeInventory{}
	router := inventoryRouter(inventory, nil)

	rec := doRequest(t, router, http.MethodPost, "/inventory/receive", "operator-token", services.ReceiveInput{
		WarehouseID:  "WH-001",
		EquipmentID:  "EQ-002",
		Quantity:     50,
		SupplierName: "Acme",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status     string `json:"status"`
		StatusCode int    `json:"statusCode"`
		Message    string `json:"message"`
		Data       struct {
			Inventory types.Inventory `json:"inventory"`
			Ledger    struct {
				MovementType types.MovementType `json:"movementType"`
				SupplierName string             `json:"supplierName"`
			} `json:"ledger"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != statusSuccess || resp.StatusCode != http.StatusCreated || resp.Message != "Inventory received successfully" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if resp.Data.Inventory.Quantity != 50 || resp.Data.Ledger.MovementType != types.MovementReceive || resp.Data.Ledger.SupplierName != "Acme" {
		t.Fatalf("unexpected data %+v", resp.Data)
	}
	if inventory.receiveActor != "operator" || inventory.received.SupplierName != "Acme" {
		t.Fatalf("service saw actor %q input %+v", inventory.receiveActor, inventory.received)
	}
}

func TestDispatchInsufficientStock(t *testing.T) {
	inventory := &fakeInventory{dispatchErr: apperr.BadRequest("Insufficient stock. Available: 5, Requested: 100")}
	router := inventoryRouter(inventory, nil)

	rec := doRequest(t, router, http.MethodPost, "/inventory/dispatch", "operator-token", services.DispatchInput{
		WarehouseID: "WH-001",
		EquipmentID: "EQ-001",
		Quantity:    100,
		Destination: "Rig 7",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; msg != "Insufficient stock. Available: 5, Requested: 100" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestInventoryListQuery(t *testing.T) {
	inventory := &fakeInventory{}
	router := inventoryRouter(inventory, nil)

	rec := doRequest(t, router, http.MethodGet, "/inventory?warehouse_id=WH-001&stock_status=low&quantity_min=5&page=2&pageSize=5", "clerk-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	in := inventory.listInput
	if in.WarehouseRef != "WH-001" || in.StockStatus != types.StockLow {
		t.Fatalf("unexpected filters %+v", in)
	}
	if in.QuantityMin == nil || *in.QuantityMin != 5 || in.QuantityMax != nil {
		t.Fatalf("unexpected quantity bounds %+v", in)
	}
	if in.Page != (types.Page{Number: 2, Size: 5}) {
		t.Fatalf("unexpected page %+v", in.Page)
	}

	rec = doRequest(t, router, http.MethodGet, "/inventory?quantity_min=many", "clerk-token", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad quantity_min, got %d", rec.Code)
	}
}

func TestAuditLogRecordsSanitizedRequest(t *testing.T) {
	audit := &recordingAudit{}
	router := inventoryRouter(&fakeInventory{}, audit)

	body := map[string]any{"warehouse_id": "WH-001", "equipment_id": "EQ-001", "quantity": 1, "password": "hunter2"}
	doRequest(t, router, http.MethodPost, "/inventory/receive", "operator-token", body)
	doRequest(t, router, http.MethodGet, "/inventory/missing", "operator-token", nil)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(audit.entries))
	}

	created := audit.entries[0]
	if created.UserID != "operator" || created.StatusCode != http.StatusCreated || created.Method != http.MethodPost {
		t.Fatalf("unexpected entry %+v", created)
	}
	if strings.Contains(string(created.RequestBody), "hunter2") || !strings.Contains(string(created.RequestBody), "WH-001") {
		t.Fatalf("body not sanitized: %s", created.RequestBody)
	}

	missing := audit.entries[1]
	if missing.StatusCode != http.StatusNotFound || missing.ErrorMessage != "Inventory not found" {
		t.Fatalf("unexpected entry %+v", missing)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(nil)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Healthz(failingPinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error {
	return errors.New("down")
}
