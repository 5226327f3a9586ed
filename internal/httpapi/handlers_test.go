package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/servicecheck/internal/domain"
	apimw "github.com/hamed0406/servicecheck/internal/httpapi/middleware"
	"github.com/hamed0406/servicecheck/internal/repo/memory"
)

// ---- test helpers ----

type fakeChecker struct {
	out   domain.CheckResult
	err   error
	calls atomic.Int32
}

func (f *fakeChecker) DeepCheck(_ context.Context, t domain.Target) (domain.CheckResult, error) {
	f.calls.Add(1)
	out := f.out
	out.Target = t
	return out, f.err
}

type fakeMonitor struct {
	enabled  atomic.Bool
	triggers atomic.Int32
}

func (m *fakeMonitor) Enabled() bool      { return m.enabled.Load() }
func (m *fakeMonitor) SetEnabled(on bool) { m.enabled.Store(on) }
func (m *fakeMonitor) Running() bool      { return false }
func (m *fakeMonitor) TriggerNow() bool {
	m.triggers.Add(1)
	return true
}

var testTargets = []domain.Target{
	{Name: "A", Address: "10.0.0.1", Port: 54994, Area: "Chocobo"},
	{Name: "B", Address: "10.0.0.2", Port: 54994, Area: "Chocobo"},
}

func setupRouter(t *testing.T, chk DeepChecker, mon Monitor) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	if err := store.Load(context.Background(), testTargets, true); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(zap.NewNop(), store, chk, mon, nil)
	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}
	// very high rate limits to avoid flakiness in tests
	return srv.Router(keys, nil, 10_000, 10_000), store
}

func do(t *testing.T, h http.Handler, method, path, key string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func commitOne(t *testing.T, store *memory.Store) {
	t.Helper()
	now := time.Now().UTC()
	c := &domain.Cycle{
		ID:         "cycle-1",
		StartedAt:  now.Add(-50 * time.Millisecond),
		FinishedAt: now,
		Results: []domain.CheckResult{
			{
				Target: testTargets[0],
				Probe:  domain.ProbeResult{Reachable: true, Latency: 25 * time.Millisecond, Diagnostic: "connected"},
				Feed:   &domain.FeedRecord{Name: "A", Running: true, CanCreateCharacter: true, CanLogin: true},
				Status: domain.StatusFullyOnline, Detail: "Reachable and online", CheckedAt: now,
			},
			{
				Target: testTargets[1],
				Probe:  domain.Unreachable(domain.ProbeRefused, "connection refused"),
				Status: domain.StatusFullyOffline, Detail: "Unreachable and offline", CheckedAt: now,
			},
		},
		Transitions: []domain.TransitionEvent{
			{CycleID: "cycle-1", Area: "Chocobo", Target: "A", Status: domain.StatusFullyOnline, At: now},
		},
	}
	if err := store.Commit(context.Background(), c); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// ---- tests ----

func TestHealthz_NoAuth(t *testing.T) {
	h, _ := setupRouter(t, nil, nil)
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestListTargets_BeforeAndAfterCycle(t *testing.T) {
	h, store := setupRouter(t, nil, nil)

	if rec := do(t, h, http.MethodGet, "/api/targets", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/targets", "pub_test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 list, got %d", rec.Code)
	}
	var list []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected two rows, got %d", len(list))
	}
	if list[0]["latency_ms"] != nil || list[0]["checked_at"] != nil {
		t.Fatalf("unchecked target should have null latency and checked_at: %+v", list[0])
	}

	commitOne(t, store)

	rec = do(t, h, http.MethodGet, "/api/targets", "pub_test", nil)
	list = nil
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list[0]["status"] != string(domain.StatusFullyOnline) || list[0]["latency_ms"].(float64) != 25 {
		t.Fatalf("unexpected row A: %+v", list[0])
	}
	if list[1]["status"] != string(domain.StatusFullyOffline) || list[1]["latency_ms"] != nil {
		t.Fatalf("unreachable target must report null latency: %+v", list[1])
	}
}

func TestGetTarget_Unknown404(t *testing.T) {
	h, _ := setupRouter(t, nil, nil)
	if rec := do(t, h, http.MethodGet, "/api/targets/Nope", "pub_test", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/targets/A", "pub_test", nil); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestSetSelected_AdminOnly(t *testing.T) {
	h, store := setupRouter(t, nil, nil)
	body := []byte(`{"selected":false}`)

	if rec := do(t, h, http.MethodPut, "/api/targets/B/selected", "pub_test", body); rec.Code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/targets/B/selected", "adm_test", []byte(`{}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field should be 400; got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/targets/Nope/selected", "adm_test", body); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown target should be 404; got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPut, "/api/targets/B/selected", "adm_test", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	sel, _ := store.Selected(context.Background())
	if len(sel) != 1 || sel[0].Name != "A" {
		t.Fatalf("expected only A selected, got %+v", sel)
	}
}

func TestSetAreaSelected_TogglesEveryTarget(t *testing.T) {
	h, store := setupRouter(t, nil, nil)
	body := []byte(`{"selected":false}`)

	if rec := do(t, h, http.MethodPut, "/api/areas/Chocobo/selected", "pub_test", body); rec.Code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/areas/Nowhere/selected", "adm_test", body); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown area should be 404; got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPut, "/api/areas/Chocobo/selected", "adm_test", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var out areaSelectionView
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Area != "Chocobo" || out.Selected || out.Targets != 2 {
		t.Fatalf("unexpected view %+v", out)
	}
	if sel, _ := store.Selected(context.Background()); len(sel) != 0 {
		t.Fatalf("want every Chocobo target deselected, got %+v", sel)
	}
}

func TestDeepCheck_DoesNotCommit(t *testing.T) {
	chk := &fakeChecker{out: domain.CheckResult{
		Probe:  domain.ProbeResult{Reachable: true, Latency: 40 * time.Millisecond, Diagnostic: "normal response"},
		Status: domain.StatusReachableFeedOffline,
		Detail: "Reachable but offline",
	}}
	h, store := setupRouter(t, chk, nil)

	rec := do(t, h, http.MethodPost, "/api/targets/A/check", "adm_test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != string(domain.StatusReachableFeedOffline) {
		t.Fatalf("unexpected status %v", out["status"])
	}
	probe := out["probe"].(map[string]any)
	if probe["latency_ms"].(float64) != 40 {
		t.Fatalf("unexpected latency %v", probe["latency_ms"])
	}

	row, _ := store.Get(context.Background(), "A")
	if row.Last != nil {
		t.Fatalf("deep check must not touch the status table")
	}
	if chk.calls.Load() != 1 {
		t.Fatalf("expected one check, got %d", chk.calls.Load())
	}
}

func TestDeepCheck_ErrorIs503(t *testing.T) {
	h, _ := setupRouter(t, &fakeChecker{err: errors.New("context canceled")}, nil)
	if rec := do(t, h, http.MethodPost, "/api/targets/A/check", "adm_test", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", rec.Code)
	}
}

func TestLatestCycle(t *testing.T) {
	h, store := setupRouter(t, nil, nil)
	if rec := do(t, h, http.MethodGet, "/api/cycles/latest", "pub_test", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404 before first cycle, got %d", rec.Code)
	}
	commitOne(t, store)

	rec := do(t, h, http.MethodGet, "/api/cycles/latest", "pub_test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var out cycleView
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != "cycle-1" || out.Online != 1 || out.Total != 2 {
		t.Fatalf("unexpected cycle view %+v", out)
	}
	if len(out.Transitions) != 1 || out.Transitions[0].Message != "Chocobo - A is online! (online)" {
		t.Fatalf("unexpected transitions %+v", out.Transitions)
	}
}

func TestMonitoring_ToggleAndTrigger(t *testing.T) {
	mon := &fakeMonitor{}
	mon.SetEnabled(true)
	h, _ := setupRouter(t, nil, mon)

	rec := do(t, h, http.MethodPut, "/api/monitoring", "adm_test", []byte(`{"enabled":false}`))
	if rec.Code != http.StatusOK || mon.Enabled() {
		t.Fatalf("pause failed: %d enabled=%v", rec.Code, mon.Enabled())
	}

	rec = do(t, h, http.MethodGet, "/api/monitoring", "pub_test", nil)
	var view monitoringView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Enabled {
		t.Fatalf("expected paused view")
	}

	rec = do(t, h, http.MethodPost, "/api/monitoring/trigger", "adm_test", nil)
	if rec.Code != http.StatusAccepted || mon.triggers.Load() != 1 {
		t.Fatalf("trigger failed: %d calls=%d", rec.Code, mon.triggers.Load())
	}
}

func TestMetrics_Exposition(t *testing.T) {
	mon := &fakeMonitor{}
	mon.SetEnabled(true)
	h, store := setupRouter(t, nil, mon)
	commitOne(t, store)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`servicecheck_target_up{area="Chocobo",target="A",status="fully_online"} 1`,
		`servicecheck_target_up{area="Chocobo",target="B",status="fully_offline"} 0`,
		`servicecheck_target_latency_seconds{area="Chocobo",target="A"} 0.025`,
		`servicecheck_cycle_online 1`,
		`servicecheck_feed_ok 1`,
		`servicecheck_monitoring_enabled 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if strings.Contains(body, `servicecheck_target_latency_seconds{area="Chocobo",target="B"}`) {
		t.Errorf("unmeasured latency must not be exported")
	}
}

func TestSanitizePrometheusLabel(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`a"b`, `a\"b`},
		{`a\b`, `a\\b`},
		{"a\nb", `a\nb`},
	}
	for _, c := range cases {
		if got := sanitizePrometheusLabel(c.in); got != c.want {
			t.Fatalf("sanitizePrometheusLabel(%q)=%q want %q", c.in, got, c.want)
		}
	}
}
