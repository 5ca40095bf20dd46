package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c3toronto/groups-sync/app/groups"
	"github.com/c3toronto/groups-sync/app/ingest"
	"github.com/c3toronto/groups-sync/app/planningcenter"
	"github.com/c3toronto/groups-sync/app/snapshot"
)

type fakeCoordinator struct {
	result  *ingest.Result
	err     error
	state   ingest.State
	trigger ingest.Trigger
	runs    int
}

func (f *fakeCoordinator) Run(ctx context.Context, trigger ingest.Trigger) (*ingest.Result, error) {
	f.runs++
	f.trigger = trigger
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCoordinator) Bootstrap(ctx context.Context) (*ingest.Result, error) {
	return f.Run(ctx, ingest.TriggerBootstrap)
}

func (f *fakeCoordinator) State() ingest.State {
	if f.state == "" {
		return ingest.StateIdle
	}
	return f.state
}

func (f *fakeCoordinator) LastOutcome() (*ingest.Result, error) {
	return f.result, f.err
}

type fakeStore struct {
	snap *snapshot.Snapshot
}

func (f *fakeStore) Path() string { return "/public/groups.json" }

func (f *fakeStore) Exists() bool { return f.snap != nil }

func (f *fakeStore) Load() (*snapshot.Snapshot, error) {
	if f.snap == nil {
		return nil, &snapshot.PersistenceError{Path: f.Path(), Err: context.Canceled}
	}
	return f.snap, nil
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Metadata: snapshot.Metadata{
			LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			TotalGroups: 1,
			Version:     snapshot.Version,
			Source:      snapshot.SourcePlanningCenter,
		},
		Groups: []groups.Group{{
			ID:             "g-1",
			Name:           "Summer 2025 CG - Tuesday Night",
			GroupType:      groups.GroupTypeMixed,
			CampusLocation: groups.CampusDowntown,
			IsOpen:         true,
		}},
	}
}

func serve(handler *Handler, apiKey, method, path, headerKey string) *httptest.ResponseRecorder {
	router := NewServer(handler, apiKey)
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if headerKey != "" {
		req.Header.Set("X-API-Key", headerKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetGroupsServesSnapshot(t *testing.T) {
	handler := NewHandler(&fakeCoordinator{}, &fakeStore{snap: testSnapshot()}, nil)
	rec := serve(handler, "", http.MethodGet, "/groups.json", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := rec.Header().Get("X-Total-Groups"); got != "1" {
		t.Errorf("X-Total-Groups = %q, want 1", got)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not a snapshot: %v", err)
	}
	if len(snap.Groups) != 1 || snap.Groups[0].ID != "g-1" {
		t.Errorf("unexpected groups payload: %+v", snap.Groups)
	}
}

func TestGetGroupsWithoutSnapshot(t *testing.T) {
	handler := NewHandler(&fakeCoordinator{}, &fakeStore{}, nil)
	rec := serve(handler, "", http.MethodGet, "/groups.json", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetHealth(t *testing.T) {
	handler := NewHandler(&fakeCoordinator{}, &fakeStore{snap: testSnapshot()}, nil)
	rec := serve(handler, "", http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid health payload: %v", err)
	}
	if health["state"] != string(ingest.StateIdle) {
		t.Errorf("state = %v, want idle", health["state"])
	}
	if health["snapshot"] != true {
		t.Errorf("snapshot = %v, want true", health["snapshot"])
	}
}

func TestWebhookTriggersRun(t *testing.T) {
	coordinator := &fakeCoordinator{result: &ingest.Result{RunID: "r-1", PublicGroups: 3}}
	handler := NewHandler(coordinator, &fakeStore{}, nil)

	rec := serve(handler, "", http.MethodPost, "/webhooks/planning-center", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if coordinator.runs != 1 {
		t.Errorf("runs = %d, want 1", coordinator.runs)
	}
	if coordinator.trigger != ingest.TriggerWebhook {
		t.Errorf("trigger = %s, want webhook", coordinator.trigger)
	}
}

func TestWebhookUpstreamFailure(t *testing.T) {
	coordinator := &fakeCoordinator{err: &planningcenter.UpstreamError{StatusCode: 500, Body: "boom"}}
	handler := NewHandler(coordinator, &fakeStore{}, nil)

	rec := serve(handler, "", http.MethodPost, "/webhooks/planning-center", "")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error payload: %v", err)
	}
	if body["category"] != ingest.CategoryUpstream {
		t.Errorf("category = %v, want upstream", body["category"])
	}
}

func TestAPIGenerateRequiresKey(t *testing.T) {
	coordinator := &fakeCoordinator{result: &ingest.Result{RunID: "r-1"}}
	handler := NewHandler(coordinator, &fakeStore{}, nil)

	rec := serve(handler, "secret", http.MethodPost, "/api/generate", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", rec.Code)
	}

	rec = serve(handler, "secret", http.MethodPost, "/api/generate", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d, want 401", rec.Code)
	}
	if coordinator.runs != 0 {
		t.Errorf("runs = %d, want 0", coordinator.runs)
	}

	rec = serve(handler, "secret", http.MethodPost, "/api/generate", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status with valid key = %d, want 200", rec.Code)
	}
	if coordinator.trigger != ingest.TriggerManual {
		t.Errorf("trigger = %s, want manual", coordinator.trigger)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	handler := NewHandler(&fakeCoordinator{}, &fakeStore{}, nil)

	rec := serve(handler, "", http.MethodPost, "/api/generate", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when API is disabled", rec.Code)
	}
}

func TestAPIInitialize(t *testing.T) {
	coordinator := &fakeCoordinator{result: &ingest.Result{RunID: "r-1", Trigger: ingest.TriggerBootstrap}}
	handler := NewHandler(coordinator, &fakeStore{}, nil)

	rec := serve(handler, "secret", http.MethodPost, "/api/initialize", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if coordinator.trigger != ingest.TriggerBootstrap {
		t.Errorf("trigger = %s, want bootstrap", coordinator.trigger)
	}
}

func TestRootListsEndpoints(t *testing.T) {
	handler := NewHandler(&fakeCoordinator{}, &fakeStore{}, nil)
	rec := serve(handler, "", http.MethodGet, "/", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/groups.json") {
		t.Error("root response should list /groups.json")
	}
}
