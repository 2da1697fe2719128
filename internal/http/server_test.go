package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"fleetops/server/internal/auth"
	"fleetops/server/internal/config"
	"fleetops/server/internal/crypto"
	"fleetops/server/internal/db"
	"fleetops/server/internal/model"
	"fleetops/server/internal/repository"
)

type testEnv struct {
	store *repository.Store
	app   *httptest.Server
	cfg   config.Config

	admin       model.User
	driver      model.User
	otherDriver model.User
	mechanic    model.User
	truck       model.Truck
}

func newTestEnv(t *testing.T) *testEnv {
	pool := openTestDB(t)
	if pool == nil {
		return nil
	}
	t.Cleanup(pool.Close)

	cfg := config.Config{
		HTTPAddr:        ":0",
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil, zerolog.Nop())
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)

	env := &testEnv{store: store, app: app, cfg: cfg}
	env.admin = env.seedUser(t, model.RoleAdmin)
	env.driver = env.seedUser(t, model.RoleDriver)
	env.otherDriver = env.seedUser(t, model.RoleDriver)
	env.mechanic = env.seedUser(t, model.RoleMaintenance)
	env.truck = env.seedTruck(t)
	return env
}

func (e *testEnv) seedUser(t *testing.T, role model.Role) model.User {
	hash, err := crypto.HashPassword("dev-password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Name:         "Test " + string(role),
		Email:        string(role) + "." + uuid.NewString() + "@example.local",
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *testEnv) seedTruck(t *testing.T) model.Truck {
	now := time.Now().UTC()
	truckMake := "Kenworth"
	truckModel := "T680"
	truck := model.Truck{
		ID:         uuid.NewString(),
		UnitNumber: "T-" + uuid.NewString()[:8],
		Make:       &truckMake,
		Model:      &truckModel,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateTruck(context.Background(), truck); err != nil {
		t.Fatalf("seed truck: %v", err)
	}
	return truck
}

func (e *testEnv) token(t *testing.T, user model.User) string {
	token, err := auth.NewAccessToken(e.cfg.JWTSecret, e.cfg.JWTIssuer, 10*time.Minute, auth.Claims{
		UserID: user.ID,
		Role:   string(user.Role),
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func TestTimesheetLifecycle(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	driverToken := env.token(t, env.driver)
	adminToken := env.token(t, env.admin)

	shiftStart := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC).Unix()

	// Driver logs a shift; the truck's odometer follows the end reading.
	resp := doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", driverToken, map[string]any{
		"truckId":       env.truck.ID,
		"shiftStart":    shiftStart,
		"startOdometer": 1000,
		"endOdometer":   1500,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created timesheetResponse
	decodeBody(t, resp, &created)
	if created.Status != "pending" {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	truck, err := env.store.GetTruckByID(context.Background(), env.truck.ID)
	if err != nil {
		t.Fatalf("get truck: %v", err)
	}
	if truck.LastOdometerReading == nil || *truck.LastOdometerReading != 1500 {
		t.Fatalf("expected truck odometer 1500, got %v", truck.LastOdometerReading)
	}

	// Another driver cannot touch the record.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, env.token(t, env.otherDriver), map[string]any{
		"notes": "not mine",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for other driver, got %d", resp.StatusCode)
	}

	// Admin rejects without a reason: the placeholder is recorded.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"status": "rejected",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rejected timesheetResponse
	decodeBody(t, resp, &rejected)
	if rejected.Status != "rejected" {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "No reason provided" {
		t.Fatalf("expected placeholder reason, got %v", rejected.RejectionReason)
	}
	if rejected.Approver != nil || rejected.ApprovedAt != nil {
		t.Fatalf("expected no approver on rejection")
	}

	// Editing a rejected entry resubmits it as pending.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, driverToken, map[string]any{
		"endOdometer": 1600,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var resubmitted timesheetResponse
	decodeBody(t, resp, &resubmitted)
	if resubmitted.Status != "pending" {
		t.Fatalf("expected pending after edit, got %s", resubmitted.Status)
	}
	if resubmitted.RejectionReason != nil {
		t.Fatalf("expected rejection reason cleared, got %v", resubmitted.RejectionReason)
	}

	// Admin approves: approver identity and timestamp are stamped.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"status": "approved",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var approved timesheetResponse
	decodeBody(t, resp, &approved)
	if approved.Status != "approved" {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.Approver == nil || approved.Approver.ID != env.admin.ID {
		t.Fatalf("expected approver %s, got %+v", env.admin.ID, approved.Approver)
	}
	if approved.ApprovedAt == nil {
		t.Fatalf("expected approvedAt set")
	}

	// An approved entry is locked for the driver.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, driverToken, map[string]any{
		"notes": "late edit",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for locked entry, got %d", resp.StatusCode)
	}
}

func TestTimesheetValidation(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	driverToken := env.token(t, env.driver)
	shiftStart := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC).Unix()

	// End odometer must exceed the start reading.
	resp := doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", driverToken, map[string]any{
		"truckId":       env.truck.ID,
		"shiftStart":    shiftStart,
		"startOdometer": 1500,
		"endOdometer":   1400,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "invalid_odometer_range" {
		t.Fatalf("expected invalid_odometer_range, got %s", code)
	}

	// Unknown truck is rejected and nothing is written.
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", driverToken, map[string]any{
		"truckId":     uuid.NewString(),
		"shiftStart":  shiftStart,
		"endOdometer": 1500,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "unknown_truck" {
		t.Fatalf("expected unknown_truck, got %s", code)
	}

	// Maintenance role cannot log shifts.
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", env.token(t, env.mechanic), map[string]any{
		"truckId":     env.truck.ID,
		"shiftStart":  shiftStart,
		"endOdometer": 1500,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTruckDeleteConflict(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	adminToken := env.token(t, env.admin)

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", env.token(t, env.driver), map[string]any{
		"truckId":     env.truck.ID,
		"shiftStart":  time.Now().UTC().Add(-8 * time.Hour).Unix(),
		"endOdometer": 2000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// A truck with history cannot be removed.
	resp = doReq(t, http.MethodDelete, env.app.URL+"/api/trucks/"+env.truck.ID, adminToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "truck_in_use" {
		t.Fatalf("expected truck_in_use, got %s", code)
	}

	// A fresh truck deletes cleanly.
	spare := env.seedTruck(t)
	resp = doReq(t, http.MethodDelete, env.app.URL+"/api/trucks/"+spare.ID, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/auth/login", "", map[string]any{
		"email":    env.driver.Email,
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var authed authResponse
	decodeBody(t, resp, &authed)
	if authed.AccessToken == "" || authed.RefreshToken == "" {
		t.Fatalf("expected tokens in login response")
	}

	resp = doReq(t, http.MethodGet, env.app.URL+"/api/auth/me", authed.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me userResponse
	decodeBody(t, resp, &me)
	if me.ID != env.driver.ID {
		t.Fatalf("expected own profile, got %s", me.ID)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/login", "", map[string]any{
		"email":    env.driver.Email,
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMaintenanceLogAdvancesTruck(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/maintenance", env.token(t, env.mechanic), map[string]any{
		"truckId":         env.truck.ID,
		"serviceDate":     time.Now().UTC().Unix(),
		"odometerReading": 12000,
		"description":     "oil change",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	truck, err := env.store.GetTruckByID(context.Background(), env.truck.ID)
	if err != nil {
		t.Fatalf("get truck: %v", err)
	}
	if truck.LastMaintenanceOdometerReading == nil || *truck.LastMaintenanceOdometerReading != 12000 {
		t.Fatalf("expected maintenance odometer 12000, got %v", truck.LastMaintenanceOdometerReading)
	}

	// Drivers cannot record service.
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/maintenance", env.token(t, env.driver), map[string]any{
		"truckId":         env.truck.ID,
		"serviceDate":     time.Now().UTC().Unix(),
		"odometerReading": 12500,
		"description":     "tires",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("FLEETOPS_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("FLEETOPS_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func doReq(t *testing.T, method, url, token string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorResponse
	decodeBody(t, resp, &body)
	return body.Error
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/auth/login", "", map[string]any{
		"email":    env.driver.Email,
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var first authResponse
	decodeBody(t, resp, &first)

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/refresh", "", map[string]any{
		"refreshToken": first.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var second authResponse
	decodeBody(t, resp, &second)
	if second.RefreshToken == "" || second.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a fresh refresh token")
	}

	// The rotated-out token is dead.
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/refresh", "", map[string]any{
		"refreshToken": first.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for replayed refresh token, got %d", resp.StatusCode)
	}

	// The fresh one still works.
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/refresh", "", map[string]any{
		"refreshToken": second.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for current refresh token, got %d", resp.StatusCode)
	}
}

func TestBannedUserCannotLogin(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	adminToken := env.token(t, env.admin)

	resp := doReq(t, http.MethodPatch, env.app.URL+"/api/users/"+env.driver.ID, adminToken, map[string]any{
		"banned": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/login", "", map[string]any{
		"email":    env.driver.Email,
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for banned login, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "account_banned" {
		t.Fatalf("expected account_banned, got %s", code)
	}

	// Unbanning restores access.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/users/"+env.driver.ID, adminToken, map[string]any{
		"banned": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/auth/login", "", map[string]any{
		"email":    env.driver.Email,
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after unban, got %d", resp.StatusCode)
	}
}

func TestUserRoleMatrix(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	driverToken := env.token(t, env.driver)
	mechanicToken := env.token(t, env.mechanic)

	// User administration is admin territory.
	resp := doReq(t, http.MethodGet, env.app.URL+"/api/users", driverToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for driver list, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPost, env.app.URL+"/api/users", mechanicToken, map[string]any{
		"name": "X", "email": "x@example.local", "password": "pw", "role": "driver",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for mechanic create, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, env.app.URL+"/api/users/"+env.mechanic.ID, driverToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for driver delete, got %d", resp.StatusCode)
	}

	// Users may read and rename themselves, nobody else.
	resp = doReq(t, http.MethodGet, env.app.URL+"/api/users/"+env.driver.ID, driverToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for own profile, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, env.app.URL+"/api/users/"+env.mechanic.ID, driverToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for other profile, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/users/"+env.driver.ID, driverToken, map[string]any{
		"name": "Renamed Driver",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for self rename, got %d", resp.StatusCode)
	}

	// Self-service stops at role and ban state.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/users/"+env.driver.ID, driverToken, map[string]any{
		"role": "admin",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for self role change, got %d", resp.StatusCode)
	}
}

func TestBillingRateRoleMatrix(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	adminToken := env.token(t, env.admin)
	driverToken := env.token(t, env.driver)

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/rates", driverToken, map[string]any{
		"name": "Day rate", "ratePerHourCents": 9500, "currency": "CAD",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for driver create, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/rates", adminToken, map[string]any{
		"name": "Day rate", "ratePerHourCents": 9500, "currency": "CAD",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var active billingRateResponse
	decodeBody(t, resp, &active)

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/rates", adminToken, map[string]any{
		"name": "Retired rate", "ratePerHourCents": 8000, "currency": "CAD", "active": false,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var retired billingRateResponse
	decodeBody(t, resp, &retired)

	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/rates/"+active.ID, driverToken, map[string]any{
		"ratePerHourCents": 1,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for driver update, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, env.app.URL+"/api/rates/"+active.ID, driverToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for driver delete, got %d", resp.StatusCode)
	}

	// Drivers only see active rates; admins see everything.
	resp = doReq(t, http.MethodGet, env.app.URL+"/api/rates", driverToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var driverView []billingRateResponse
	decodeBody(t, resp, &driverView)
	for _, rate := range driverView {
		if rate.ID == retired.ID {
			t.Fatalf("expected inactive rate hidden from driver")
		}
	}

	resp = doReq(t, http.MethodGet, env.app.URL+"/api/rates", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var adminView []billingRateResponse
	decodeBody(t, resp, &adminView)
	found := false
	for _, rate := range adminView {
		if rate.ID == retired.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected inactive rate visible to admin")
	}
}

func TestTimesheetBillingFields(t *testing.T) {
	env := newTestEnv(t)
	if env == nil {
		return
	}
	adminToken := env.token(t, env.admin)

	resp := doReq(t, http.MethodPost, env.app.URL+"/api/timesheets", env.token(t, env.driver), map[string]any{
		"truckId":     env.truck.ID,
		"shiftStart":  time.Now().UTC().Add(-8 * time.Hour).Unix(),
		"endOdometer": 3000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created timesheetResponse
	decodeBody(t, resp, &created)

	// Unknown billing rate ids are rejected, not surfaced as FK errors.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"billingRateId": uuid.NewString(),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "unknown_billing_rate" {
		t.Fatalf("expected unknown_billing_rate, got %s", code)
	}

	resp = doReq(t, http.MethodPost, env.app.URL+"/api/rates", adminToken, map[string]any{
		"name": "Haul rate", "ratePerHourCents": 10000, "currency": "CAD",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var rate billingRateResponse
	decodeBody(t, resp, &rate)

	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"billingRateId":    rate.ID,
		"totalBilledCents": 85000,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var billed timesheetResponse
	decodeBody(t, resp, &billed)
	if billed.BillingRateID == nil || *billed.BillingRateID != rate.ID {
		t.Fatalf("expected billing rate attached, got %v", billed.BillingRateID)
	}

	// A standalone rejection reason needs a rejected record.
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"status": "approved",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"rejectionReason": "odometer mismatch",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for reason on approved record, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "rejection_reason_not_applicable" {
		t.Fatalf("expected rejection_reason_not_applicable, got %s", code)
	}

	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"status": "rejected",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPatch, env.app.URL+"/api/timesheets/"+created.ID, adminToken, map[string]any{
		"rejectionReason": "odometer mismatch",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated timesheetResponse
	decodeBody(t, resp, &updated)
	if updated.RejectionReason == nil || *updated.RejectionReason != "odometer mismatch" {
		t.Fatalf("expected updated reason, got %v", updated.RejectionReason)
	}
}
