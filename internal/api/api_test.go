package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/mail"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/store"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "changed-secret"
)

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

type testServer struct {
	*httptest.Server
	svc   *service.Service
	token string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)

	provider, err := identity.NewLocal(ctx, database, identity.LocalConfig{
		LoginRate: rate.Inf,
		Mailer:    &mail.LogMailer{},
	})
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	hub := remote.NewHub(store.NewDocuments(database))
	photos := media.NewSQLite(database, "")
	svc := service.New(service.Config{
		Store:    hub,
		Identity: provider,
		Media:    photos,
		Now:      func() time.Time { return testNow },
	})

	router := NewRouter(Config{
		Service:  svc,
		Identity: provider,
		Hub:      hub,
		Media:    photos,
		Now:      func() time.Time { return testNow },
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	temp, err := svc.EnsureAdmin(ctx, testAdminEmail, "Ana Admin")
	if err != nil || temp == "" {
		t.Fatalf("ensure admin: %q, %v", temp, err)
	}

	ts := &testServer{Server: server, svc: svc}
	ts.token = ts.login(t, testAdminEmail, temp)
	ts.changePassword(t, ts.token, temp, testAdminPassword)
	return ts
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed: %d", email, resp.StatusCode)
	}

	var login struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	if login.Token == "" {
		t.Fatal("empty token from login")
	}
	return login.Token
}

func (ts *testServer) changePassword(t *testing.T, token, current, next string) {
	t.Helper()
	resp := ts.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"currentPassword": current,
		"newPassword":     next,
		"confirmPassword": next,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("password change failed: %d", resp.StatusCode)
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		t.Fatalf("expected %d, got %d (%v)", want, resp.StatusCode, body)
	}
}

func lostReport() map[string]string {
	return map[string]string{
		"item":     "Backpack",
		"date":     "2026-03-10",
		"time":     "14:00",
		"location": "Library",
		"first":    "Ana",
		"last":     "Cruz",
		"phone":    "+639171234567",
		"email":    "ana@example.com",
	}
}

func foundItem(name string) map[string]string {
	return map[string]string{
		"name":              name,
		"description":       "Folding umbrella with a wooden handle",
		"location":          "Main Lobby",
		"dateFound":         "2026-03-09",
		"timeFound":         "09:15",
		"brand":             "Totes",
		"primaryColor":      "Black",
		"reporterFirstName": "Ben",
		"reporterLastName":  "Reyes",
		"reporterPhone":     "+639171234567",
		"reporterEmail":     "ben@example.com",
	}
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": testAdminEmail, "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "whatever"})
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown email, got %d", resp.StatusCode)
	}
	if body["error"] != "No account found with this email" {
		t.Errorf("unexpected message %q", body["error"])
	}

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": testAdminEmail})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Emails match case-insensitively.
	ts.login(t, strings.ToUpper(testAdminEmail), testAdminPassword)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := setupTestServer(t)

	for _, path := range []string{"/api/dashboard", "/api/found", "/api/lost", "/api/users", "/api/auth/me"} {
		resp := ts.do(t, "GET", path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()

		resp = ts.do(t, "GET", path, "not-a-token", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s with bad token: expected 401, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestNewUserMustChangePassword(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/users", ts.token, map[string]string{
		"name":     "Carla Diaz",
		"email":    "carla@example.com",
		"birthday": "1990-05-01",
		"role":     model.RoleUser,
	})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[service.NewAccount](t, resp)
	if created.Account.ID != "User002" {
		t.Errorf("expected User002, got %s", created.Account.ID)
	}

	token := ts.login(t, "carla@example.com", created.TemporaryPassword)

	resp = ts.do(t, "GET", "/api/found", token, nil)
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 before password change, got %d", resp.StatusCode)
	}
	if body["error"] != msgChangePassword {
		t.Errorf("unexpected message %q", body["error"])
	}

	resp = ts.do(t, "GET", "/api/auth/me", token, nil)
	expectStatus(t, resp, http.StatusOK)
	me := decode[model.Account](t, resp)
	if me.PasswordChanged {
		t.Error("expected passwordChanged false")
	}

	ts.changePassword(t, token, created.TemporaryPassword, "carla-secret")

	resp = ts.do(t, "GET", "/api/found", token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// Users are not admins.
	resp = ts.do(t, "GET", "/api/users", token, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestSuspendedUserSignedOut(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/users", ts.token, map[string]string{
		"name":     "Carla Diaz",
		"email":    "carla@example.com",
		"birthday": "1990-05-01",
		"role":     model.RoleUser,
	})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[service.NewAccount](t, resp)
	token := ts.login(t, "carla@example.com", created.TemporaryPassword)

	edited := *created.Account
	edited.Status = model.AccountSuspended
	resp = ts.do(t, "PUT", "/api/users/"+created.Account.ID, ts.token, edited)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = ts.do(t, "GET", "/api/auth/me", token, nil)
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for suspended account, got %d", resp.StatusCode)
	}
	if !strings.Contains(body["error"], "suspended") {
		t.Errorf("unexpected message %q", body["error"])
	}

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "carla@example.com", "password": created.TemporaryPassword})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 on login while suspended, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLastAdminCannotBeDemoted(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/auth/me", ts.token, nil)
	me := decode[model.Account](t, resp)

	me.Role = model.RoleUser
	me.Birthday = "1980-01-01"
	resp = ts.do(t, "PUT", "/api/users/"+me.ID, ts.token, me)
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(body["error"], "Cannot remove or suspend the last administrator") {
		t.Errorf("unexpected message %q", body["error"])
	}
}

func TestLostReportFlow(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/lost", "", lostReport())
	expectStatus(t, resp, http.StatusCreated)
	submitted := decode[map[string]string](t, resp)
	if submitted["id"] != "Lost001" {
		t.Fatalf("expected Lost001, got %q", submitted["id"])
	}

	invalid := lostReport()
	invalid["email"] = "nope"
	resp = ts.do(t, "POST", "/api/lost", "", invalid)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	errs := decode[map[string][]string](t, resp)
	if len(errs["errors"]) != 1 {
		t.Errorf("expected 1 message, got %v", errs["errors"])
	}

	resp = ts.do(t, "GET", "/api/lost?status=notFound", ts.token, nil)
	expectStatus(t, resp, http.StatusOK)
	reports := decode[[]model.LostReport](t, resp)
	if len(reports) != 1 || reports[0].Status != model.LostPending {
		t.Fatalf("unexpected reports %+v", reports)
	}

	resp = ts.do(t, "GET", "/api/lost?status=bogus", ts.token, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = ts.do(t, "POST", "/api/lost/Lost001/found", ts.token, nil)
	expectStatus(t, resp, http.StatusCreated)
	item := decode[model.FoundItem](t, resp)
	if item.LostItemID != "Lost001" || item.Status != model.FoundUnclaimed {
		t.Errorf("unexpected found item %+v", item)
	}

	resp = ts.do(t, "GET", "/api/lost?status=found", ts.token, nil)
	reports = decode[[]model.LostReport](t, resp)
	if len(reports) != 1 || reports[0].Status != model.LostFound {
		t.Errorf("expected the report marked found, got %+v", reports)
	}

	// The new found item is listed publicly.
	resp = ts.do(t, "GET", "/api/public/found?q=backpack", "", nil)
	expectStatus(t, resp, http.StatusOK)
	public := decode[[]model.FoundItem](t, resp)
	if len(public) != 1 || public[0].ID != item.ID {
		t.Errorf("unexpected public listing %+v", public)
	}

	resp = ts.do(t, "DELETE", "/api/lost/Lost001", ts.token, nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = ts.do(t, "GET", "/api/lost/Lost001", ts.token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestLostSubmitRateLimited(t *testing.T) {
	ts := setupTestServer(t)

	var limited bool
	for range 5 {
		resp := ts.do(t, "POST", "/api/lost", "", lostReport())
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected submissions to be rate limited")
	}
}

func TestClaimFlow(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	item := decode[model.FoundItem](t, resp)
	if item.ID != "Found001" {
		t.Fatalf("expected Found001, got %s", item.ID)
	}

	resp = ts.do(t, "POST", "/api/found/Found001/validate", ts.token, map[string]string{"method": "Mind Reading"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = ts.do(t, "POST", "/api/found/Found001/validate", ts.token, map[string]string{
		"method": "Proof of Ownership",
		"notes":  "Receipt",
	})
	expectStatus(t, resp, http.StatusOK)
	validated := decode[model.FoundItem](t, resp)
	if validated.Status != model.FoundValidated {
		t.Errorf("expected Validated, got %s", validated.Status)
	}

	claim := map[string]string{"ownerName": "Dan Cruz", "ownerContact": "09171234567"}
	resp = ts.do(t, "POST", "/api/found/Found001/claim", ts.token, claim)
	expectStatus(t, resp, http.StatusOK)
	claimed := decode[model.FoundItem](t, resp)
	if claimed.Status != model.FoundClaimed || claimed.OwnerName != "Dan Cruz" {
		t.Errorf("unexpected claimed item %+v", claimed)
	}

	resp = ts.do(t, "POST", "/api/found/Found001/claim", ts.token, claim)
	body := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusConflict || body["error"] != "This item has already been claimed." {
		t.Errorf("expected 409 already claimed, got %d %q", resp.StatusCode, body["error"])
	}

	// Claimed items leave the public listing and show up in the history.
	resp = ts.do(t, "GET", "/api/public/found", "", nil)
	if public := decode[[]model.FoundItem](t, resp); len(public) != 0 {
		t.Errorf("expected empty public listing, got %d", len(public))
	}
	resp = ts.do(t, "GET", "/api/claims?q=dan", ts.token, nil)
	if history := decode[[]model.FoundItem](t, resp); len(history) != 1 {
		t.Errorf("expected 1 claim in history, got %d", len(history))
	}

	resp = ts.do(t, "POST", "/api/found/Found001/revert", ts.token, nil)
	expectStatus(t, resp, http.StatusOK)
	reverted := decode[model.FoundItem](t, resp)
	if reverted.Status != model.FoundUnclaimed || reverted.OwnerName != "" {
		t.Errorf("unexpected reverted item %+v", reverted)
	}

	resp = ts.do(t, "POST", "/api/found/Found999/revert", ts.token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestPhotoUpload(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := range 40 {
		img.Set(x, 10, color.RGBA{R: 255, A: 255})
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, _ := form.CreateFormFile("image", "umbrella.png")
	png.Encode(part, img)
	form.Close()

	req, _ := http.NewRequest("PUT", ts.URL+"/api/found/Found001/photo", &body)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)
	uploaded := decode[map[string]string](t, resp)
	if !strings.HasPrefix(uploaded["image"], media.RoutePrefix) {
		t.Fatalf("unexpected image url %q", uploaded["image"])
	}

	resp, err = http.Get(ts.URL + uploaded["image"])
	if err != nil {
		t.Fatalf("fetching photo: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for photo, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	resp, _ = http.Get(ts.URL + media.RoutePrefix + "missing.jpg")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing photo, got %d", resp.StatusCode)
	}
}

func TestDashboardAndExport(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/lost", "", lostReport())
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = ts.do(t, "GET", "/api/dashboard", ts.token, nil)
	expectStatus(t, resp, http.StatusOK)
	dash := decode[service.Dashboard](t, resp)
	if dash.TotalLost != 1 || dash.TotalFound != 1 {
		t.Errorf("unexpected dashboard %+v", dash)
	}

	resp = ts.do(t, "GET", "/api/logs/export?q=umbrella", ts.token, nil)
	expectStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()
	if want := `attachment; filename="action_logs_2026-03-10.csv"`; resp.Header.Get("Content-Disposition") != want {
		t.Errorf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and 1 row, got %d rows", len(rows))
	}
	if !strings.Contains(strings.Join(rows[1], ","), "Black Umbrella") {
		t.Errorf("unexpected row %v", rows[1])
	}

	resp = ts.do(t, "GET", "/api/logs/export?format=pdf", ts.token, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestLiveFoundItems(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live/foundItems?access_token=" + ts.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type message struct {
		Collection string            `json:"collection"`
		Records    []model.FoundItem `json:"records"`
	}
	read := func() message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading snapshot: %v", err)
		}
		return msg
	}

	first := read()
	if first.Collection != remote.FoundItems || len(first.Records) != 1 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	resp = ts.do(t, "POST", "/api/found", ts.token, foundItem("Red Scarf"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	// Deliveries are coalesced; wait for the snapshot with both items.
	for {
		msg := read()
		if len(msg.Records) == 2 {
			break
		}
	}
}

func TestLiveRejectsUnknownCollection(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/live/credentials", ts.token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

// signedInAccount creates an account as the admin and returns it with a
// session whose temporary password has been changed.
func (ts *testServer) signedInAccount(t *testing.T, name, email, role string) (*model.Account, string) {
	t.Helper()
	resp := ts.do(t, "POST", "/api/users", ts.token, map[string]string{
		"name":     name,
		"email":    email,
		"birthday": "1990-05-01",
		"role":     role,
	})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[service.NewAccount](t, resp)

	token := ts.login(t, email, created.TemporaryPassword)
	ts.changePassword(t, token, created.TemporaryPassword, "fresh-secret")
	return created.Account, token
}

func dialLive(t *testing.T, ts *testServer, collection, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live/" + collection + "?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// expectLiveClosed reads until the server closes conn and checks the close
// code. Any snapshot delivered first fails the test.
func expectLiveClosed(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]any
	err := conn.ReadJSON(&msg)
	if err == nil {
		t.Fatalf("snapshot delivered after access ended: %v", msg["collection"])
	}
	if !websocket.IsCloseError(err, code) {
		t.Fatalf("expected close %d, got %v", code, err)
	}
}

func TestLiveStreamClosesForSuspendedAccount(t *testing.T) {
	ts := setupTestServer(t)
	carla, token := ts.signedInAccount(t, "Carla Diaz", "carla@example.com", model.RoleAdmin)

	conn := dialLive(t, ts, remote.Users, token)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var first struct {
		Records []model.Account `json:"records"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if len(first.Records) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(first.Records))
	}

	edited := *carla
	edited.Status = model.AccountSuspended
	resp := ts.do(t, "PUT", "/api/users/"+carla.ID, ts.token, edited)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	expectLiveClosed(t, conn, websocket.ClosePolicyViolation)

	resp = ts.do(t, "GET", "/api/auth/me", token, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestLiveStreamClosesForDemotedAdmin(t *testing.T) {
	ts := setupTestServer(t)
	carla, token := ts.signedInAccount(t, "Carla Diaz", "carla@example.com", model.RoleAdmin)

	conn := dialLive(t, ts, remote.Users, token)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	edited := *carla
	edited.Role = model.RoleUser
	resp := ts.do(t, "PUT", "/api/users/"+carla.ID, ts.token, edited)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	expectLiveClosed(t, conn, websocket.ClosePolicyViolation)
}

func TestLiveStreamClosesAfterSignOut(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.login(t, testAdminEmail, testAdminPassword)

	conn := dialLive(t, ts, remote.FoundItems, token)
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}

	resp := ts.do(t, "POST", "/api/auth/logout", token, nil)
	resp.Body.Close()

	resp = ts.do(t, "POST", "/api/found", ts.token, foundItem("Red Scarf"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	expectLiveClosed(t, conn, websocket.ClosePolicyViolation)
}

func TestEditWithoutStatusKeepsValidation(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = ts.do(t, "POST", "/api/found/Found001/validate", ts.token, map[string]string{"method": "Proof of Ownership"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	edit := foundItem("Black Umbrella")
	edit["location"] = "Cafeteria"
	resp = ts.do(t, "PUT", "/api/found/Found001", ts.token, edit)
	expectStatus(t, resp, http.StatusOK)
	updated := decode[model.FoundItem](t, resp)
	if updated.Status != model.FoundValidated || updated.Validation == nil {
		t.Fatalf("validation lost on edit: status=%s validation=%v", updated.Status, updated.Validation)
	}
	if updated.Location != "Cafeteria" {
		t.Errorf("unexpected location %q", updated.Location)
	}

	resp = ts.do(t, "GET", "/api/found/Found001", ts.token, nil)
	stored := decode[model.FoundItem](t, resp)
	if stored.Status != model.FoundValidated || stored.Validation == nil {
		t.Errorf("stored item lost its validation: %+v", stored)
	}
}

func TestEditCannotBlankClaimer(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/found", ts.token, foundItem("Black Umbrella"))
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
	resp = ts.do(t, "POST", "/api/found/Found001/claim", ts.token, map[string]string{"ownerName": "Dan Cruz", "ownerContact": "09171234567"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	edit := foundItem("Black Umbrella")
	edit["status"] = model.FoundClaimed
	resp = ts.do(t, "PUT", "/api/found/Found001", ts.token, edit)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = ts.do(t, "GET", "/api/claims", ts.token, nil)
	if history := decode[[]model.FoundItem](t, resp); len(history) != 1 {
		t.Errorf("expected the claim to stay in history, got %d", len(history))
	}
}
