package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"gigbridge/internal/navigation"
	"gigbridge/internal/users"
)

func TestSelectRoleThenCompleteOnboarding(t *testing.T) {
	sess := confirmedSession("")
	ts := newTestServer(t)
	id := ts.openClient(t)

	if got := navigateOf(ts.signIn(t, id, sess)); got != navigation.PathSelectRole {
		t.Fatalf("expected role selection after sign-in, got %q", got)
	}

	rec := ts.do(t, http.MethodPost, "/api/onboarding/role", id, map[string]string{
		"role":     "business",
		"location": "/select-role",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var selected onboardingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &selected); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if selected.Record.Role != users.RoleBusiness || selected.Record.ProfileCompleted {
		t.Fatalf("unexpected record %+v", selected.Record)
	}
	if got := navigateOf(selected.navigationResponse); got != "/onboarding/business" {
		t.Fatalf("expected navigation to business onboarding, got %q", got)
	}

	rec = ts.do(t, http.MethodPost, "/api/onboarding/complete", id, map[string]any{
		"business": map[string]string{
			"companyName": "Acme Studio",
			"industry":    "Design",
			"website":     "https://acme.example.com",
		},
		"location": "/onboarding/business",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var completed onboardingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &completed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !completed.Record.ProfileCompleted {
		t.Fatal("expected profile to be completed")
	}
	if completed.State != navigation.StateAuthorized {
		t.Fatalf("expected authorized, got %q", completed.State)
	}
	if got := navigateOf(completed.navigationResponse); got != navigation.PathHome {
		t.Fatalf("expected navigation home, got %q", got)
	}

	profile, ok := ts.records.Profile(sess.UserID)
	if !ok || profile.Business == nil || profile.Business.CompanyName != "Acme Studio" {
		t.Fatalf("expected business profile to be stored, got %+v", profile)
	}
}

func TestSelectRoleRequiresSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openClient(t)

	rec := ts.do(t, http.MethodPost, "/api/onboarding/role", id, map[string]string{"role": "student"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Recovery != recoverySignIn {
		t.Fatalf("expected sign_in recovery, got %+v", body)
	}
}

func TestSelectRoleRejectsUnknownRole(t *testing.T) {
	ts := newTestServer(t)
	id := ts.openClient(t)

	rec := ts.do(t, http.MethodPost, "/api/onboarding/role", id, map[string]string{"role": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSelectRoleCannotChangeCompletedRole(t *testing.T) {
	sess := confirmedSession("")
	ts := newTestServer(t, users.Record{ID: sess.UserID, Role: users.RoleStudent, ProfileCompleted: true})
	id := ts.openClient(t)
	ts.signIn(t, id, sess)

	rec := ts.do(t, http.MethodPost, "/api/onboarding/role", id, map[string]string{"role": "business"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestCompleteOnboardingValidatesProfile(t *testing.T) {
	sess := confirmedSession("")
	ts := newTestServer(t, users.Record{ID: sess.UserID, Role: users.RoleStudent})
	id := ts.openClient(t)
	ts.signIn(t, id, sess)

	rec := ts.do(t, http.MethodPost, "/api/onboarding/complete", id, map[string]any{
		"student": map[string]any{"fullName": "A", "graduationYear": 1800},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	record, err := ts.records.Get(t.Context(), sess.UserID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.ProfileCompleted {
		t.Fatal("expected invalid profile to leave the record incomplete")
	}
}

func TestCompleteOnboardingBeforeRoleSelection(t *testing.T) {
	sess := confirmedSession("")
	ts := newTestServer(t)
	id := ts.openClient(t)
	ts.signIn(t, id, sess)

	rec := ts.do(t, http.MethodPost, "/api/onboarding/complete", id, map[string]any{
		"student": map[string]any{"fullName": "Ada Lovelace", "university": "UCL", "graduationYear": 2026},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}
