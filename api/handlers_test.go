/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Advance lifecycle over HTTP (create, edit, resolve)
- Error taxonomy mapping (400 validation, 404 missing, 409 conflict)
- Bulk resolution with partial success
- Normalization endpoint
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/advance-engine/anticipo"
	"github.com/warp/advance-engine/store/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *anticipo.Engine) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertCatalogEntry(ctx, anticipo.CatalogEntry{
		ID: "amt-100", Amount: decimal.NewFromInt(100), Active: true}))
	require.NoError(t, store.UpsertCatalogEntry(ctx, anticipo.CatalogEntry{
		ID: "amt-250", Amount: decimal.NewFromInt(250), Active: true}))
	require.NoError(t, store.SaveEmployee(ctx, anticipo.Employee{
		ID: "emp-1", Name: "Maria Lopez", Email: "maria@example.com"}))

	engine := anticipo.NewEngine(store, store)
	engine.Audit = store
	engine.Clock = func() time.Time {
		return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	}

	handler := NewHandler(store, engine, zerolog.Nop())
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	return server, engine
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAdvance_OK(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-1/advances",
		CreateAdvanceRequest{EmployeeID: "emp-1", Amount: 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	dto := decodeBody[AdvanceDTO](t, resp)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "emp-1", dto.EmployeeID)
	assert.Equal(t, float64(100), dto.Amount)
	assert.Equal(t, "pending", dto.Status)
}

func TestCreateAdvance_InvalidAmountIs400WithReason(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-1/advances",
		CreateAdvanceRequest{EmployeeID: "emp-1", Amount: 999})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "INVALID_AMOUNT", body.Code)
}

func TestCreateAdvance_SecondInMonthIs400Quota(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-1/advances",
		CreateAdvanceRequest{EmployeeID: "emp-1", Amount: 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, server.URL+"/api/employees/emp-1/advances",
		CreateAdvanceRequest{EmployeeID: "emp-1", Amount: 250})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "QUOTA_EXCEEDED", body.Code)
}

func TestGetAdvance_Missing404(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/advances/req-missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApproveAdvance_Flow(t *testing.T) {
	server, engine := newTestServer(t)

	created, err := engine.Create(context.Background(), "emp-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost,
		server.URL+"/api/advances/"+string(created.ID)+"/approve",
		ResolveAdvanceRequest{Actor: "mgr-7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dto := decodeBody[AdvanceDTO](t, resp)
	assert.Equal(t, "approved", dto.Status)
	assert.Equal(t, "mgr-7", dto.ResolvedBy)
	assert.NotEmpty(t, dto.ResolvedAt)

	// Approving again is denied: the transition already happened.
	resp = doJSON(t, http.MethodPost,
		server.URL+"/api/advances/"+string(created.ID)+"/approve",
		ResolveAdvanceRequest{Actor: "mgr-8"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "NOT_PENDING", body.Code)
}

func TestResolve_MissingActorIs400(t *testing.T) {
	server, engine := newTestServer(t)

	created, err := engine.Create(context.Background(), "emp-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost,
		server.URL+"/api/advances/"+string(created.ID)+"/approve",
		ResolveAdvanceRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEditAdvance_ResolvedIs400(t *testing.T) {
	server, engine := newTestServer(t)
	ctx := context.Background()

	created, err := engine.Create(ctx, "emp-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = engine.ResolveOne(ctx, created.ID, anticipo.StatusApproved, "mgr-1")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPut,
		server.URL+"/api/advances/"+string(created.ID),
		EditAdvanceRequest{Amount: 250})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "NOT_PENDING", body.Code)
}

func TestBulkApprove_PartialSuccess(t *testing.T) {
	server, engine := newTestServer(t)
	ctx := context.Background()

	a, err := engine.Create(ctx, "emp-a", decimal.NewFromInt(100))
	require.NoError(t, err)
	b, err := engine.Create(ctx, "emp-b", decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = engine.ResolveOne(ctx, b.ID, anticipo.StatusRejected, "mgr-0")
	require.NoError(t, err)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/advances/bulk/approve",
		BulkResolveRequest{IDs: []string{string(a.ID), string(b.ID)}, Actor: "mgr-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[BulkResultDTO](t, resp)
	assert.Equal(t, 2, result.TotalRequested)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, []string{string(b.ID)}, result.SkippedIDs)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, string(a.ID), result.Updated[0].ID)
}

func TestBulkApprove_NothingEligibleIs400(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/advances/bulk/approve",
		BulkResolveRequest{IDs: []string{"req-ghost"}, Actor: "mgr-1"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "NOTHING_ELIGIBLE", body.Code)
}

func TestListAdvances_PendingEnrichedWithNames(t *testing.T) {
	server, engine := newTestServer(t)

	_, err := engine.Create(context.Background(), "emp-1", decimal.NewFromInt(100))
	require.NoError(t, err)

	resp, err := http.Get(server.URL + "/api/advances")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Advances []AdvanceDTO `json:"advances"`
	}](t, resp)
	require.Len(t, body.Advances, 1)
	assert.Equal(t, "Maria Lopez", body.Advances[0].EmployeeName)
}

func TestNormalizeEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/normalize", NormalizeRequest{
		Records: []anticipo.RawRequest{
			{Empleado: "emp-9", Monto: 250, Estado: "aprobado"},
			{EmployeeID: "emp-8", MontoRefID: "amt-100"},
			{EmployeeID: "emp-7", Amount: 100, Status: "in-limbo"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Records []NormalizedDTO `json:"records"`
	}](t, resp)
	require.Len(t, body.Records, 3)

	assert.Equal(t, "approved", body.Records[0].Request.Status)
	assert.Equal(t, float64(250), body.Records[0].Request.Amount)

	// Reference resolved against the current catalog
	assert.Equal(t, float64(100), body.Records[1].Request.Amount)

	// Unrecognized status preserved and flagged, defaulted to pending
	assert.Equal(t, "pending", body.Records[2].Request.Status)
	assert.Equal(t, "in-limbo", body.Records[2].RawStatus)
	assert.Contains(t, body.Records[2].Flags, "UNRECOGNIZED_STATUS")
}

func TestCatalogEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/catalog")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[struct {
		Catalog []CatalogEntryDTO `json:"catalog"`
	}](t, resp)
	assert.Len(t, body.Catalog, 2)

	// Deactivate one; it disappears from the active listing.
	req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/catalog/amt-100", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	resp, err = http.Get(server.URL + "/api/catalog")
	require.NoError(t, err)
	body = decodeBody[struct {
		Catalog []CatalogEntryDTO `json:"catalog"`
	}](t, resp)
	require.Len(t, body.Catalog, 1)
	assert.Equal(t, "amt-250", body.Catalog[0].ID)
}
