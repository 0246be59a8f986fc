package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/colonycast/hub/internal/app"
	"github.com/colonycast/hub/internal/core"
	"github.com/colonycast/hub/internal/domain"
)

func newTestAPI() (*app.Hub, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	hub := app.NewHub(core.NewStore(), core.NewStreamRegistry(0), app.NewRooms(), nil)
	r := gin.New()
	NewAPI(hub).Register(r.Group("/api"))
	return hub, r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestSessionsListOnlyPublic(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("pub", "k1", true, "")
	_, _ = hub.Store.CreateSession("priv", "k2", false, "")

	w := doJSON(t, r, http.MethodGet, "/api/sessions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "pub") {
		t.Fatalf("public session missing: %s", body)
	}
	if strings.Contains(body, "priv") {
		t.Fatalf("private session listed: %s", body)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")

	if w := doJSON(t, r, http.MethodGet, "/api/settings/missing", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/settings/abc", "wrong", gin.H{"coinRate": 5}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad key status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/api/settings/abc", "k1", gin.H{
		"coinRate":            12.5,
		"voteDurationSeconds": 90,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/settings/abc", "", nil)
	out := decode(t, w)
	economy := out["economy"].(map[string]any)
	if economy["coinRate"].(float64) != 12.5 {
		t.Fatalf("coinRate = %v", economy["coinRate"])
	}
	qs := out["queueSettings"].(map[string]any)
	if qs["voteDurationSeconds"].(float64) != 90 {
		t.Fatalf("voteDurationSeconds = %v", qs["voteDurationSeconds"])
	}
	// Untouched fields keep their values through a partial update.
	settings := out["settings"].(map[string]any)
	if settings["isPublic"] != true {
		t.Fatalf("isPublic flipped by partial update")
	}
}

func TestValidateKey(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")

	w := doJSON(t, r, http.MethodPost, "/api/settings/abc/validate", "k1", nil)
	if out := decode(t, w); out["valid"] != true {
		t.Fatalf("correct key rejected: %v", out)
	}
	w = doJSON(t, r, http.MethodPost, "/api/settings/abc/validate", "nope", nil)
	if out := decode(t, w); out["valid"] != false {
		t.Fatalf("wrong key accepted: %v", out)
	}
}

func TestSubmitChargesAndMapsErrors(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "secret")
	_ = hub.Store.UpdateSettings("abc", core.SettingsUpdate{
		ActionCosts: map[string]float64{"drop_pod": 50},
	})
	_, _ = hub.Store.CreditViewer("abc", "alice", 60)

	submit := gin.H{"kind": "action", "action": "drop_pod", "username": "alice", "password": "secret"}

	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", gin.H{"kind": "action", "action": "drop_pod", "username": "alice"}); w.Code != http.StatusForbidden {
		t.Fatalf("wrong password status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", submit); w.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", w.Code, w.Body.String())
	}
	if got := hub.Store.Balance("abc", "alice"); got != 10 {
		t.Fatalf("balance after charge = %v, want 10", got)
	}
	// 10 coins left against a 50 coin action.
	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", submit); w.Code != http.StatusPaymentRequired {
		t.Fatalf("insufficient funds status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/queue/missing/submit", "", submit); w.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", w.Code)
	}
}

func TestRejectRefundsThroughAPI(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")
	_ = hub.Store.UpdateSettings("abc", core.SettingsUpdate{
		ActionCosts: map[string]float64{"drop_pod": 50},
	})
	_, _ = hub.Store.CreditViewer("abc", "alice", 50)

	w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", gin.H{"kind": "action", "action": "drop_pod", "username": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d", w.Code)
	}
	var submitted struct {
		Request domain.Request `json:"request"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	path := "/api/queue/abc/reject/" + submitted.Request.ID
	if w := doJSON(t, r, http.MethodPost, path, "wrong", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("reject without key status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, path, "k1", nil); w.Code != http.StatusOK {
		t.Fatalf("reject status = %d: %s", w.Code, w.Body.String())
	}
	if got := hub.Store.Balance("abc", "alice"); got != 50 {
		t.Fatalf("balance after refund = %v, want 50", got)
	}
}

func TestApproveThenDrainActions(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")

	w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", gin.H{"kind": "suggestion", "data": "more rice", "username": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d", w.Code)
	}
	var submitted struct {
		Request domain.Request `json:"request"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/vote/"+submitted.Request.ID, "", gin.H{"username": "bob", "vote": "upvote"}); w.Code != http.StatusOK {
		t.Fatalf("vote status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/approve/"+submitted.Request.ID, "k1", nil); w.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/actions/abc", "k1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("drain status = %d", w.Code)
	}
	var drained struct {
		Actions []domain.Action `json:"actions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &drained); err != nil {
		t.Fatalf("decode drain: %v", err)
	}
	if len(drained.Actions) != 1 || drained.Actions[0].Action != "send_letter" {
		t.Fatalf("drained = %+v", drained.Actions)
	}
	if drained.Actions[0].Votes != 1 {
		t.Fatalf("votes = %d, want 1", drained.Actions[0].Votes)
	}

	// A drain is a take, not a read.
	w = doJSON(t, r, http.MethodGet, "/api/actions/abc", "k1", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &drained); err != nil {
		t.Fatalf("decode second drain: %v", err)
	}
	if len(drained.Actions) != 0 {
		t.Fatalf("second drain returned %d actions", len(drained.Actions))
	}
}

func TestForceTriggerBypassesWindow(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")
	off := false
	_ = hub.Store.UpdateSettings("abc", core.SettingsUpdate{AutoExecute: &off})

	if w := doJSON(t, r, http.MethodPost, "/api/queue/abc/submit", "", gin.H{"kind": "suggestion", "data": "more rice", "username": "alice"}); w.Code != http.StatusOK {
		t.Fatalf("submit status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/api/queue/abc/force-trigger", "k1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("force-trigger status = %d", w.Code)
	}
	if out := decode(t, w); out["processed"] != true {
		t.Fatalf("force trigger did not process: %v", out)
	}
}

func TestBalanceAndPrices(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")
	_ = hub.Store.UpdateSettings("abc", core.SettingsUpdate{
		ActionCosts: map[string]float64{"drop_pod": 50},
	})
	_, _ = hub.Store.CreditViewer("abc", "alice", 7)

	w := doJSON(t, r, http.MethodGet, "/api/economy/abc/balance/alice", "", nil)
	if out := decode(t, w); out["coins"].(float64) != 7 {
		t.Fatalf("balance = %v", out)
	}
	// Unknown viewers read as zero rather than erroring.
	w = doJSON(t, r, http.MethodGet, "/api/economy/abc/balance/nobody", "", nil)
	if out := decode(t, w); out["coins"].(float64) != 0 {
		t.Fatalf("unknown viewer balance = %v", out)
	}

	w = doJSON(t, r, http.MethodGet, "/api/economy/abc/prices", "", nil)
	out := decode(t, w)
	costs := out["actionCosts"].(map[string]any)
	if costs["drop_pod"].(float64) != 50 {
		t.Fatalf("prices = %v", out)
	}
}

func TestScreenshotEndpoint(t *testing.T) {
	hub, r := newTestAPI()
	_, _ = hub.Store.CreateSession("abc", "k1", true, "")

	if w := doJSON(t, r, http.MethodGet, "/api/screenshot/abc", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("empty screenshot status = %d", w.Code)
	}

	img := []byte{0x89, 0x50, 0x4e, 0x47}
	_ = hub.Store.SetScreenshot("abc", img)
	w := doJSON(t, r, http.MethodGet, "/api/screenshot/abc", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("screenshot status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), img) {
		t.Fatalf("screenshot body mismatch")
	}
}
