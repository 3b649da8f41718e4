package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store/memory"
)

func newTestServer(t *testing.T) (http.Handler, *memory.Store, *models.Check) {
	t.Helper()
	cfg := &config.Config{
		CORSOrigins:   []string{"http://localhost"},
		PingBodyLimit: 1000,
	}
	st := memory.New()
	ing := ingest.New(st, nil, nil, ingest.Config{InlineBodyLimit: 100, PingLogLimit: 100}, zap.NewNop())

	check := &models.Check{
		Code:    "11111111-1111-4111-8111-111111111111",
		Kind:    models.KindSimple,
		Timeout: 60 * time.Second,
		Grace:   30 * time.Second,
		Status:  models.StatusNew,
	}
	if err := st.CreateCheck(context.Background(), check); err != nil {
		t.Fatal(err)
	}

	return NewRouter(cfg, st, ing, zap.NewNop()), st, check
}

func doPing(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPingSuccess(t *testing.T) {
	h, st, check := newTestServer(t)

	w := doPing(h, http.MethodGet, "/ping/"+check.Code, "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}

	stored, err := st.CheckByCode(context.Background(), check.Code)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusUp || stored.NPings != 1 {
		t.Fatalf("check after ping = status %q, n_pings %d", stored.Status, stored.NPings)
	}
}

func TestPingUnknownCode(t *testing.T) {
	h, _, _ := newTestServer(t)

	// Valid UUID, no such check.
	w := doPing(h, http.MethodGet, "/ping/22222222-2222-4222-8222-222222222222", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestPingMalformedCode(t *testing.T) {
	h, _, _ := newTestServer(t)

	w := doPing(h, http.MethodGet, "/ping/not-a-uuid", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestPingStartThenSuccess(t *testing.T) {
	h, st, check := newTestServer(t)
	ctx := context.Background()

	if w := doPing(h, http.MethodPost, "/ping/"+check.Code+"/start", ""); w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	stored, _ := st.CheckByCode(ctx, check.Code)
	if stored.LastStart == nil || stored.Status != models.StatusNew {
		t.Fatalf("check after start = %+v", stored)
	}

	if w := doPing(h, http.MethodPost, "/ping/"+check.Code, ""); w.Code != http.StatusOK {
		t.Fatalf("success status = %d", w.Code)
	}
	stored, _ = st.CheckByCode(ctx, check.Code)
	if stored.LastStart != nil || stored.LastDuration == nil {
		t.Fatalf("check after completion = %+v", stored)
	}

	pings := st.Pings(stored.ID)
	if len(pings) != 2 || pings[0].Kind != models.PingStart || pings[1].Kind != "" {
		t.Fatalf("pings = %+v", pings)
	}
}

func TestPingFail(t *testing.T) {
	h, st, check := newTestServer(t)

	if w := doPing(h, http.MethodPost, "/ping/"+check.Code+"/fail", ""); w.Code != http.StatusOK {
		t.Fatalf("fail status = %d", w.Code)
	}
	stored, _ := st.CheckByCode(context.Background(), check.Code)
	if stored.Status != models.StatusDown {
		t.Fatalf("status = %q, want down", stored.Status)
	}
}

func TestPingExitStatus(t *testing.T) {
	h, st, check := newTestServer(t)
	ctx := context.Background()

	// Exit 0 reports success.
	if w := doPing(h, http.MethodPost, "/ping/"+check.Code+"/0", ""); w.Code != http.StatusOK {
		t.Fatalf("exit 0 status = %d", w.Code)
	}
	stored, _ := st.CheckByCode(ctx, check.Code)
	if stored.Status != models.StatusUp {
		t.Fatalf("status after exit 0 = %q", stored.Status)
	}

	// A non-zero exit reports failure and is recorded on the ping.
	if w := doPing(h, http.MethodPost, "/ping/"+check.Code+"/5", ""); w.Code != http.StatusOK {
		t.Fatalf("exit 5 status = %d", w.Code)
	}
	stored, _ = st.CheckByCode(ctx, check.Code)
	if stored.Status != models.StatusDown {
		t.Fatalf("status after exit 5 = %q", stored.Status)
	}
	pings := st.Pings(stored.ID)
	last := pings[len(pings)-1]
	if last.Kind != models.PingFail || last.ExitStatus == nil || *last.ExitStatus != 5 {
		t.Fatalf("exit ping = %+v", last)
	}

	// Out of the 0..255 range.
	if w := doPing(h, http.MethodPost, "/ping/"+check.Code+"/512", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("exit 512 status = %d, want 400", w.Code)
	}
}

func TestPingBodyStored(t *testing.T) {
	h, st, check := newTestServer(t)

	if w := doPing(h, http.MethodPost, "/ping/"+check.Code, "backup finished in 2m10s"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	pings := st.Pings(check.ID)
	if len(pings) != 1 || string(pings[0].Body) != "backup finished in 2m10s" {
		t.Fatalf("pings = %+v", pings)
	}
}

func TestPingBodyTooLarge(t *testing.T) {
	h, _, check := newTestServer(t)

	w := doPing(h, http.MethodPost, "/ping/"+check.Code, strings.Repeat("x", 2000))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestServer(t)

	w := doPing(h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
}
