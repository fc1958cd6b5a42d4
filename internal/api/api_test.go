package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/erazemk/verifmatos/internal/auth"
	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/db"
	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/realtime"
	"github.com/erazemk/verifmatos/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	token  string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	hub := realtime.NewHub()
	notifier := realtime.NewNotifier(&realtime.LocalBroker{Hub: hub}, 0)
	t.Cleanup(notifier.Wait)

	opts.DB = database
	opts.JWTSecret = testJWTSecret
	opts.Checklists = checklist.NewService(database, notifier)
	opts.Hub = hub

	server := httptest.NewServer(NewRouter(opts))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, db: database}
	createTestUser(t, database, "admin", model.RoleAdmin)
	env.token = env.login(t, "admin", "password")
	return env
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, Options{})
}

func createTestUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := store.CreateUser(context.Background(), database, username, string(hash), role)
	require.NoError(t, err)
	return user
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/auth/login", "", map[string]string{"username": username, "password": password})
	expectStatus(t, resp, http.StatusOK)

	loginResp := decodeBody[loginResponse](t, resp)
	require.NotEmpty(t, loginResp.Token, "empty token from login")
	return loginResp.Token
}

// tokenFor issues a token for a user created in the test database.
func (e *testEnv) tokenFor(t *testing.T, username, role string) (string, *model.User) {
	t.Helper()
	user := createTestUser(t, e.db, username, role)
	token, err := auth.GenerateToken(testJWTSecret, user.ID, user.Username, user.Role)
	require.NoError(t, err)
	return token, user
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s", method, path)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v), "decoding response")
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, want, resp.StatusCode, "body: %s", body)
	}
}

// expectStatusClose checks the status and discards the body.
func expectStatusClose(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	assert.Equal(t, want, resp.StatusCode)
}

var postTemplate = map[string]any{
	"name":         "Poste standard",
	"version_date": "2026-03-01",
	"sections": []map[string]any{
		{"name": "Sac d'intervention", "items": []map[string]any{
			{"label": "Compresses", "expected_quantity": 20, "unit": "pcs"},
			{"label": "Gants", "expected_quantity": 10, "unit": "paires"},
		}},
		{"name": "Oxygénothérapie", "items": []map[string]any{
			{"label": "Bouteille O2", "expected_quantity": 1, "requires_functional_check": true},
		}},
	},
}

// createEvent creates the standard template and an event from it, returning
// the event.
func (e *testEnv) createEvent(t *testing.T, title string) model.Event {
	t.Helper()
	resp := e.do(t, "POST", "/api/templates", e.token, postTemplate)
	expectStatus(t, resp, http.StatusCreated)
	tmpl := decodeBody[model.Template](t, resp)

	resp = e.do(t, "POST", "/api/events", e.token, map[string]string{
		"title":       title,
		"template_id": tmpl.ID,
		"status":      model.EventStatusActive,
	})
	expectStatus(t, resp, http.StatusCreated)
	return decodeBody[model.Event](t, resp)
}

func (e *testEnv) publicChecklist(t *testing.T, slug string) model.PublicChecklist {
	t.Helper()
	resp := e.do(t, "GET", "/api/public/"+slug, "", nil)
	expectStatus(t, resp, http.StatusOK)
	return decodeBody[model.PublicChecklist](t, resp)
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	expectStatusClose(t, resp, http.StatusUnauthorized)

	resp = env.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "nobody", "password": "password"})
	expectStatusClose(t, resp, http.StatusUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/auth/logout", env.token, nil)
	expectStatusClose(t, resp, http.StatusOK)

	resp = env.do(t, "GET", "/api/events", env.token, nil)
	expectStatusClose(t, resp, http.StatusUnauthorized)
}

func TestChangePasswordValidation(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "PUT", "/api/auth/password", env.token, map[string]string{
		"current_password": "password",
		"new_password":     "short",
	})
	expectStatus(t, resp, http.StatusBadRequest)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "new_password", body["field"])

	resp = env.do(t, "PUT", "/api/auth/password", env.token, map[string]string{
		"current_password": "password",
		"new_password":     "a-longer-password",
	})
	expectStatusClose(t, resp, http.StatusOK)

	env.login(t, "admin", "a-longer-password")
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	for _, path := range []string{"/api/events", "/api/templates", "/api/anomalies"} {
		resp := env.do(t, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "GET %s", path)
		resp.Body.Close()
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	chefToken, _ := env.tokenFor(t, "chef1", model.RoleChef)
	materielToken, _ := env.tokenFor(t, "stock1", model.RoleMateriel)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"materiel creates event", "POST", "/api/events", materielToken, map[string]string{"title": "Concert"}},
		{"materiel lists events", "GET", "/api/events", materielToken, nil},
		{"chef creates template", "POST", "/api/templates", chefToken, postTemplate},
		{"chef lists anomalies", "GET", "/api/anomalies", chefToken, nil},
	}
	for _, tc := range cases {
		resp := env.do(t, tc.method, tc.path, tc.token, tc.body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, tc.name)
		resp.Body.Close()
	}
}

func TestCreateTemplateDuplicateName(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/templates", env.token, postTemplate)
	expectStatusClose(t, resp, http.StatusCreated)

	resp = env.do(t, "POST", "/api/templates", env.token, postTemplate)
	expectStatus(t, resp, http.StatusConflict)
	assert.Equal(t, "template name already exists", decodeBody[map[string]string](t, resp)["error"])
}

func TestCreateTemplateStorageFailure(t *testing.T) {
	env := setupTestServer(t)
	_, err := env.db.Exec(`CREATE TRIGGER reject_templates BEFORE INSERT ON templates
		BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END`)
	require.NoError(t, err)

	resp := env.do(t, "POST", "/api/templates", env.token, postTemplate)
	expectStatusClose(t, resp, http.StatusInternalServerError)
}

func TestEventCreationCopiesTemplate(t *testing.T) {
	env := setupTestServer(t)
	event := env.createEvent(t, "Semi-marathon")

	assert.Regexp(t, `^semi-marathon-[a-z2-7]{26}$`, event.PublicSlug)
	assert.Equal(t, "Poste standard", event.TemplateName)

	resp := env.do(t, "GET", "/api/events/"+event.ID+"/checklist", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	c := decodeBody[model.Checklist](t, resp)

	require.Len(t, c.Sections, 2)
	assert.Equal(t, model.Progress{Done: 0, Total: 3}, c.Progress)
	for _, s := range c.Sections {
		for _, it := range s.Items {
			if assert.NotNil(t, it.Line, it.Label) {
				assert.Equal(t, model.LineStatusPending, it.Line.Status, it.Label)
			}
		}
	}
}

func TestEventCreationUnknownTemplate(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/events", env.token, map[string]string{
		"title":       "Concert",
		"template_id": "8a0e5a7e-0000-4000-8000-000000000000",
	})
	expectStatusClose(t, resp, http.StatusNotFound)

	resp = env.do(t, "GET", "/api/events", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	assert.Empty(t, decodeBody[[]model.Event](t, resp), "no event after failed creation")
}

func TestManualChecklistConstruction(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "POST", "/api/events", env.token, map[string]string{"title": "Kermesse"})
	expectStatus(t, resp, http.StatusCreated)
	event := decodeBody[model.Event](t, resp)

	resp = env.do(t, "POST", "/api/events/"+event.ID+"/sections", env.token, map[string]any{"name": "Trousse"})
	expectStatus(t, resp, http.StatusCreated)
	section := decodeBody[model.Section](t, resp)

	itemsPath := "/api/events/" + event.ID + "/sections/" + section.ID + "/items"
	resp = env.do(t, "POST", itemsPath, env.token, map[string]any{
		"label": "Pansements", "expected_quantity": 0,
	})
	expectStatusClose(t, resp, http.StatusBadRequest)

	resp = env.do(t, "POST", itemsPath, env.token, map[string]any{
		"label": "Pansements", "expected_quantity": 30, "unit": "pcs",
	})
	expectStatusClose(t, resp, http.StatusCreated)

	pc := env.publicChecklist(t, event.PublicSlug)
	assert.Equal(t, 1, pc.Progress.Total)
	require.Len(t, pc.Sections, 1)
	require.Len(t, pc.Sections[0].Items, 1)
	assert.Equal(t, model.LineStatusPending, pc.Sections[0].Items[0].Status)
}

func TestChefSeesOnlyOwnEvents(t *testing.T) {
	env := setupTestServer(t)
	chefA, _ := env.tokenFor(t, "chef-a", model.RoleChef)
	chefB, _ := env.tokenFor(t, "chef-b", model.RoleChef)

	resp := env.do(t, "POST", "/api/events", chefA, map[string]string{"title": "Brocante"})
	expectStatus(t, resp, http.StatusCreated)
	event := decodeBody[model.Event](t, resp)

	resp = env.do(t, "GET", "/api/events/"+event.ID, chefB, nil)
	expectStatusClose(t, resp, http.StatusForbidden)

	resp = env.do(t, "GET", "/api/events", chefB, nil)
	expectStatus(t, resp, http.StatusOK)
	assert.Empty(t, decodeBody[[]model.Event](t, resp))

	resp = env.do(t, "PUT", "/api/events/"+event.ID+"/status", chefA, map[string]string{"status": model.EventStatusDone})
	expectStatus(t, resp, http.StatusOK)
	assert.Equal(t, model.EventStatusDone, decodeBody[model.Event](t, resp).Status)

	resp = env.do(t, "GET", "/api/events", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	assert.Len(t, decodeBody[[]model.Event](t, resp), 1)
}

func TestPublicChecklistNotFound(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, "GET", "/api/public/no-such-slug", "", nil)
	expectStatusClose(t, resp, http.StatusNotFound)

	resp = env.do(t, "GET", "/api/public/no-such-slug/ws", "", nil)
	expectStatusClose(t, resp, http.StatusNotFound)
}

func TestPublicSubmitCheck(t *testing.T) {
	env := setupTestServer(t)
	event := env.createEvent(t, "Fête de la musique")
	pc := env.publicChecklist(t, event.PublicSlug)
	lineID := pc.Sections[0].Items[0].ID
	path := "/api/public/" + event.PublicSlug + "/lines/" + lineID

	resp := env.do(t, "POST", path, "", map[string]string{"status": "MISSING", "comment": "   "})
	expectStatus(t, resp, http.StatusBadRequest)
	assert.Equal(t, "comment", decodeBody[map[string]string](t, resp)["field"])

	resp = env.do(t, "POST", path, "", map[string]string{"status": "PENDING"})
	expectStatusClose(t, resp, http.StatusBadRequest)

	resp = env.do(t, "POST", path, "", map[string]string{
		"status":           "MISSING",
		"comment":          "Il en manque 5",
		"checked_by_label": "Equipe B",
	})
	expectStatus(t, resp, http.StatusOK)
	line := decodeBody[model.Line](t, resp)
	assert.Equal(t, model.LineStatusMissing, line.Status)
	if assert.NotNil(t, line.Comment) {
		assert.Equal(t, "Il en manque 5", *line.Comment)
	}
	assert.NotNil(t, line.CheckedAt)

	resp = env.do(t, "GET", "/api/anomalies?event_id="+event.ID, env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	anomalies := decodeBody[[]model.Anomaly](t, resp)
	require.Len(t, anomalies, 1)
	assert.Equal(t, lineID, anomalies[0].LineID)
	assert.Equal(t, "Equipe B", anomalies[0].CheckedByLabel)

	resp = env.do(t, "POST", path, "", map[string]string{"status": "OK", "comment": "ignored"})
	expectStatus(t, resp, http.StatusOK)
	assert.Nil(t, decodeBody[model.Line](t, resp).Comment, "comment cleared on OK")

	pc = env.publicChecklist(t, event.PublicSlug)
	assert.Equal(t, model.Progress{Done: 1, Total: 3}, pc.Progress)
}

func TestPublicSubmitCheckCrossEvent(t *testing.T) {
	env := setupTestServer(t)
	first := env.createEvent(t, "Trail")

	resp := env.do(t, "GET", "/api/templates", env.token, nil)
	expectStatus(t, resp, http.StatusOK)
	templates := decodeBody[[]model.Template](t, resp)
	require.NotEmpty(t, templates)

	resp = env.do(t, "POST", "/api/events", env.token, map[string]string{"title": "Gala", "template_id": templates[0].ID})
	expectStatus(t, resp, http.StatusCreated)
	second := decodeBody[model.Event](t, resp)

	otherLine := env.publicChecklist(t, second.PublicSlug).Sections[0].Items[0].ID

	resp = env.do(t, "POST", "/api/public/"+first.PublicSlug+"/lines/"+otherLine, "", map[string]string{"status": "OK"})
	expectStatusClose(t, resp, http.StatusNotFound)

	resp = env.do(t, "POST", "/api/public/"+first.PublicSlug+"/lines/not-a-uuid", "", map[string]string{"status": "OK"})
	expectStatusClose(t, resp, http.StatusNotFound)

	assert.Zero(t, env.publicChecklist(t, second.PublicSlug).Progress.Done, "other event untouched")
}

func TestPublicSubscribeReceivesLineUpdates(t *testing.T) {
	env := setupTestServer(t)
	event := env.createEvent(t, "Course des Héros")
	lineID := env.publicChecklist(t, event.PublicSlug).Sections[1].Items[0].ID

	wsURL := "ws" + env.server.URL[len("http"):] + "/api/public/" + event.PublicSlug + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	readSignal := func() string {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg signalMessage
		require.NoError(t, conn.ReadJSON(&msg), "reading signal")
		return msg.Type
	}

	require.Equal(t, SignalSubscribed, readSignal())

	post := env.do(t, "POST", "/api/public/"+event.PublicSlug+"/lines/"+lineID, "", map[string]string{
		"status":  "MISSING",
		"comment": "Manomètre HS",
	})
	expectStatusClose(t, post, http.StatusOK)

	require.Equal(t, SignalLineUpdated, readSignal())

	item := env.publicChecklist(t, event.PublicSlug).Sections[1].Items[0]
	assert.Equal(t, model.LineStatusMissing, item.Status)
	if assert.NotNil(t, item.Comment) {
		assert.Equal(t, "Manomètre HS", *item.Comment)
	}
}

func TestPublicSubmitRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{PublicLimiter: NewRateLimiter(rate.Every(time.Hour), 1)})
	event := env.createEvent(t, "Marché de Noël")
	lineID := env.publicChecklist(t, event.PublicSlug).Sections[0].Items[0].ID
	path := "/api/public/" + event.PublicSlug + "/lines/" + lineID

	resp := env.do(t, "POST", path, "", map[string]string{"status": "OK"})
	expectStatusClose(t, resp, http.StatusOK)

	resp = env.do(t, "POST", path, "", map[string]string{"status": "OK"})
	expectStatusClose(t, resp, http.StatusTooManyRequests)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Reads are not limited.
	env.publicChecklist(t, event.PublicSlug)
}

func TestRedactPath(t *testing.T) {
	cases := map[string]string{
		"/api/public/secret-slug":           "/api/public/:slug",
		"/api/public/secret-slug/ws":        "/api/public/:slug/ws",
		"/api/public/secret-slug/lines/abc": "/api/public/:slug/lines/abc",
		"/p/secret-slug":                    "/p/:slug",
		"/api/events/123":                   "/api/events/123",
		"/api/public/":                      "/api/public/",
	}
	for in, want := range cases {
		assert.Equal(t, want, RedactPath(in), in)
	}
}

func TestMetricsPathUsesRoutePattern(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/public/{slug}", func(w http.ResponseWriter, r *http.Request) {})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		got = MetricsPath(r)
	})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/public/secret-slug", nil))
	assert.Equal(t, "/api/public/{slug}", got)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nowhere", nil))
	assert.Equal(t, "unmatched", got)
}
