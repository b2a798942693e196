package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tripboard/api/internal/gate"
	"tripboard/api/internal/reconcile"
	"tripboard/api/internal/search"
	"tripboard/api/internal/trip"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	searchService := search.NewService(nil, search.NewMemory())
	core := reconcile.New(&memStore{data: map[string][]byte{}}, reconcile.Options{
		Key:      "test-trip",
		Debounce: 10 * time.Millisecond,
		OnChange: func(doc trip.Document) {
			searchService.Update(search.Records(doc))
		},
	})
	if _, err := core.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	searchService.Update(search.Records(core.Document()))

	service := NewService(Deps{
		Core:          core,
		Gate:          gate.New("Disney2026", ""),
		Search:        searchService,
		Archive:       nil,
		Email:         nil,
		Store:         &memStore{data: map[string][]byte{}},
		SessionSecret: []byte("test-secret"),
		SessionTTL:    time.Hour,
	})
	return NewHTTPServer(service, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func unlock(t *testing.T, handler http.Handler, name string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/unlock", "", map[string]string{
		"passphrase": "Disney2026",
		"name":       name,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock failed: %d %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeResponse(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("unlock returned no token")
	}
	return token
}

func tripFromResponse(t *testing.T, rec *httptest.ResponseRecorder) trip.Document {
	t.Helper()
	var payload struct {
		Trip trip.Document `json:"trip"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode trip: %v", err)
	}
	return payload.Trip
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnlockWrongPassphrase(t *testing.T) {
	handler := newTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/unlock", "", map[string]string{
		"passphrase": "wrong",
		"name":       "Maya",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if decodeResponse(t, rec)["code"] != "WRONG_PASSPHRASE" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUnlockRequiresName(t *testing.T) {
	handler := newTestServer(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/unlock", "", map[string]string{
		"passphrase": "Disney2026",
		"name":       "   ",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestSessionInspection(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/session", "", nil)
	if decodeResponse(t, rec)["authenticated"] != false {
		t.Fatalf("anonymous session should not be authenticated: %s", rec.Body.String())
	}

	token := unlock(t, handler, "Maya")
	rec = doJSON(t, handler, http.MethodGet, "/api/session", token, nil)
	payload := decodeResponse(t, rec)
	if payload["authenticated"] != true || payload["name"] != "Maya" {
		t.Fatalf("unexpected session: %s", rec.Body.String())
	}
}

func TestTripRequiresSession(t *testing.T) {
	handler := newTestServer(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/trip", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetTrip(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodGet, "/api/trip", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	doc := tripFromResponse(t, rec)
	if doc.TripInfo.Title != "Disney Family Trip 2026" || len(doc.Days) != 7 {
		t.Fatalf("unexpected document: %+v", doc.TripInfo)
	}
}

func TestEditActivityEndpoint(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodPut, "/api/days/1/activities/0", token, map[string]string{
		"text": "Check-in, then groceries",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	doc := tripFromResponse(t, rec)
	act := doc.Days[0].Activities[0]
	if act.Text != "Check-in, then groceries" || act.EditedBy != "Maya" {
		t.Fatalf("unexpected activity: %+v", act)
	}
	if doc.EditHistory[0].User != "Maya" {
		t.Fatalf("history should attribute the session name: %+v", doc.EditHistory[0])
	}
}

func TestVoteRecommendationIdempotentOverHTTP(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Ben")

	path := "/api/recommendations/ak-rope-drop-strategy/vote"
	doJSON(t, handler, http.MethodPost, path, token, nil)
	rec := doJSON(t, handler, http.MethodPost, path, token, nil)

	doc := tripFromResponse(t, rec)
	if doc.Recommendations[0].Votes != 1 {
		t.Fatalf("votes = %d, want 1", doc.Recommendations[0].Votes)
	}
}

func TestSeedBudgetTipCannotBeRemoved(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodDelete, "/api/budget-tips/1", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestBudgetTipLifecycleOverHTTP(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodPost, "/api/budget-tips", token, map[string]string{
		"text":     "Split a Memory Maker",
		"category": "Photos",
	})
	doc := tripFromResponse(t, rec)
	var tipID trip.ID
	for _, tip := range doc.BudgetTips {
		if tip.Text == "Split a Memory Maker" {
			tipID = tip.ID
		}
	}
	if tipID == "" {
		t.Fatalf("tip not added: %+v", doc.BudgetTips)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/budget-tips/"+string(tipID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, tip := range tripFromResponse(t, rec).BudgetTips {
		if tip.ID == tipID {
			t.Fatal("tip should be removed")
		}
	}
}

func TestPollEndpoints(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodPost, "/api/polls", token, map[string]any{
		"question": "Dinner where?",
		"options":  []string{"Disney Springs", "VRBO"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create poll: %d %s", rec.Code, rec.Body.String())
	}
	doc := tripFromResponse(t, rec)
	pollID := doc.Polls[0].ID

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/polls/%s/vote", pollID), token, map[string]int{
		"optionIndex": 1,
	})
	doc = tripFromResponse(t, rec)
	if doc.Polls[0].Options[1].Votes != 1 {
		t.Fatalf("unexpected poll votes: %+v", doc.Polls[0].Options)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/polls", token, map[string]any{
		"question": "One option only?",
		"options":  []string{"just this"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("single-option poll should be rejected, got %d", rec.Code)
	}
}

func TestUpdateFieldEndpoint(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodPut, "/api/trip/fields", token, map[string]string{
		"field": "lodging.name",
		"value": "Windsor Hills",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if tripFromResponse(t, rec).Lodging.Name != "Windsor Hills" {
		t.Fatal("lodging name not updated")
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/trip/fields", token, map[string]string{
		"field": "tripInfo.mood",
		"value": "great",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown field should be rejected, got %d", rec.Code)
	}
}

func TestFlightEndpoints(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodPut, "/api/trip/flights/arrival", token, map[string]string{
		"field": "gate",
		"value": "B14",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update leg: %d %s", rec.Code, rec.Body.String())
	}
	if tripFromResponse(t, rec).Flights.Arrival.Gate != "B14" {
		t.Fatal("gate not updated")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/trip/flights/arrival/track", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("track: %d %s", rec.Code, rec.Body.String())
	}
	leg := tripFromResponse(t, rec).Flights.Arrival
	if leg.Status != "Tracked" || leg.TrackingURL == "" {
		t.Fatalf("unexpected leg after tracking: %+v", leg)
	}
}

func TestSearchEndpoint(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodGet, "/api/search?q=kilimanjaro", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var payload search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Total == 0 {
		t.Fatal("seed itinerary should match kilimanjaro")
	}
}

func TestSearchEndpointRejectsBadLimit(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	for _, limit := range []string{"abc", "-1", "0"} {
		rec := doJSON(t, handler, http.MethodGet, "/api/search?q=pool&limit="+limit, token, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("limit=%s: status = %d, want 422: %s", limit, rec.Code, rec.Body.String())
		}
		if decodeResponse(t, rec)["code"] != "VALIDATION_ERROR" {
			t.Fatalf("limit=%s: unexpected body: %s", limit, rec.Body.String())
		}
	}
}

func TestPreflightHasNoBody(t *testing.T) {
	handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodOptions, "/api/trip", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("preflight response must have no body, got %q", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("preflight should carry CORS headers")
	}
}

func TestHistoryEndpoint(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	doJSON(t, handler, http.MethodPost, "/api/announcements", token, map[string]string{"text": "Pool party at 4"})

	rec := doJSON(t, handler, http.MethodGet, "/api/history", token, nil)
	var payload struct {
		History []trip.HistoryEntry `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.History) == 0 || payload.History[0].Action != "posted announcement" {
		t.Fatalf("unexpected history: %+v", payload.History)
	}
}

func TestSaveStatusAndSaveNow(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	doJSON(t, handler, http.MethodPost, "/api/budget-tips", token, map[string]string{"text": "pack snacks"})

	rec := doJSON(t, handler, http.MethodPost, "/api/trip/save", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/trip/status", token, nil)
	var status reconcile.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Dirty {
		t.Fatal("explicit save should leave the core clean")
	}
}

func TestUnknownRoute(t *testing.T) {
	handler := newTestServer(t)
	token := unlock(t, handler, "Maya")

	rec := doJSON(t, handler, http.MethodGet, "/api/nope", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
