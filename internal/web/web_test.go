package web

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/apitest"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/service"
	"github.com/mmynk/paytrack/internal/session"
	"github.com/mmynk/paytrack/internal/storage/sqlite"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

var csrfFieldRe = regexp.MustCompile(`name="gorilla\.csrf\.Token" value="([^"]+)"`)

type testEnv struct {
	api    *apitest.Server
	server *httptest.Server
	client *http.Client
	store  *sqlite.SQLiteStore

	group  string
	aziz   string
	bekzod string
}

func setupWeb(t *testing.T) *testEnv {
	t.Helper()
	clock := func() time.Time { return testNow }

	api, err := apitest.New("admin", "secret123", apitest.WithClock(clock))
	require.NoError(t, err)
	apiServer := httptest.NewServer(api.Handler())
	t.Cleanup(apiServer.Close)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var sess *session.Manager
	client := apiclient.New(apiServer.URL+"/api", apiclient.WithToken(func(ctx context.Context) string {
		return sess.Token(ctx)
	}))
	sess = session.NewManager(client, store)
	console := service.New(client, service.WithDeliveryLog(store), service.WithClock(clock))

	srv, err := New(console, sess, WithClock(clock))
	require.NoError(t, err)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	env := &testEnv{
		api:    api,
		server: server,
		client: &http.Client{Jar: jar},
		store:  store,
	}
	env.group = api.AddGroup("beginners")
	api.AddGroup("Advanced")
	env.aziz = api.AddUser(models.User{Name: "Aziz", Surname: "Karimov", Phone: "901234567", GroupID: env.group})
	env.bekzod = api.AddUser(models.User{Name: "Bekzod", Surname: "Aliyev", GroupID: env.group})
	api.AddUser(models.User{Name: "Dilnoza", Surname: "Rahimova", GroupID: env.group})
	api.AddPayment(env.aziz, "February-2024", models.StatusPaid, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))
	return env
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// csrfToken loads a page carrying a form and returns its CSRF token.
func (e *testEnv) csrfToken(t *testing.T) string {
	t.Helper()
	_, body := e.get(t, "/login")
	m := csrfFieldRe.FindStringSubmatch(body)
	require.NotNil(t, m, "no csrf field in page")
	return m[1]
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	form.Set("gorilla.csrf.Token", e.csrfToken(t))
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp, _ := e.post(t, "/login", url.Values{"username": {"admin"}, "password": {"secret123"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/groups", resp.Request.URL.Path)
}

func (e *testEnv) openGroup(t *testing.T) string {
	t.Helper()
	resp, body := e.get(t, "/groups/"+e.group)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body
}

func TestHealthNeedsNoSession(t *testing.T) {
	env := setupWeb(t)
	resp, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestRedirectsToLogin(t *testing.T) {
	env := setupWeb(t)
	resp, body := env.get(t, "/groups")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Admin login")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestLoginValidation(t *testing.T) {
	env := setupWeb(t)
	resp, body := env.post(t, "/login", url.Values{"username": {"  "}, "password": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, session.MsgMissingCredentials)
	assert.Equal(t, 0, env.api.Requests(apitest.RouteLogin))
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupWeb(t)
	resp, body := env.post(t, "/login", url.Values{"username": {"admin"}, "password": {"nope-nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid credentials")
	assert.Contains(t, body, `value="admin"`)
}

func TestLoginShowsSortedGroups(t *testing.T) {
	env := setupWeb(t)
	env.login(t)

	_, body := env.get(t, "/groups")
	advanced := strings.Index(body, ">Advanced<")
	beginners := strings.Index(body, ">beginners<")
	require.NotEqual(t, -1, advanced)
	require.NotEqual(t, -1, beginners)
	assert.Less(t, advanced, beginners)
	assert.Contains(t, body, "Select a group")

	token, err := env.store.LoadToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestRosterPage(t *testing.T) {
	env := setupWeb(t)
	env.login(t)

	body := html.UnescapeString(env.openGroup(t))
	assert.Contains(t, body, "Group name: beginners")
	assert.Contains(t, body, `<a href="tel:+998901234567">+998901234567</a>`)
	assert.Contains(t, body, "03/02/2024")
	assert.Contains(t, body, "N/A")
	assert.Less(t, strings.Index(body, "Bekzod"), strings.Index(body, "Aziz"), "unpaid rows first")
}

func TestRosterPeriodOverride(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	_, body := env.get(t, "/groups/"+env.group+"?month=March")
	assert.Contains(t, body, "—", "only month chosen")
	assert.NotContains(t, body, "03/02/2024")
}

func TestUnknownGroup(t *testing.T) {
	env := setupWeb(t)
	env.login(t)

	resp, _ := env.get(t, "/groups/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMarkPaid(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	resp, body := env.post(t, "/groups/"+env.group+"/payments", url.Values{
		"user_id": {env.bekzod},
		"month":   {"March"},
		"year":    {"2024"},
		"status":  {"paid"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "15/03/2024")
	require.Len(t, env.api.History(env.bekzod), 1)
}

func TestMarkPaidRequiresPeriod(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	_, body := env.post(t, "/groups/"+env.group+"/payments", url.Values{
		"user_id": {env.bekzod},
		"status":  {"paid"},
	})
	assert.Contains(t, body, service.MsgSelectPeriod)
	assert.Equal(t, 0, env.api.Requests(apitest.RouteMarkPaid))
}

func TestSendMessageToSelection(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	env.post(t, "/groups/"+env.group+"/selection", url.Values{"user_id": {env.aziz}})
	_, body := env.post(t, "/groups/"+env.group+"/messages", url.Values{
		"text":   {"Dars ertaga"},
		"target": {"selected"},
	})

	assert.Contains(t, body, service.MsgMessageSent)
	msgs := env.api.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, env.aziz, msgs[0].UserID)
	assert.Equal(t, "admin", msgs[0].SentBy)
}

func TestSendMessageWithoutSelection(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	_, body := env.post(t, "/groups/"+env.group+"/messages", url.Values{
		"text":   {"hello"},
		"target": {"selected"},
	})
	assert.Contains(t, body, service.MsgNoSelection)
}

func TestSendToAllPartialFailure(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)
	env.api.FailAttendance(env.bekzod, http.StatusInternalServerError, "")

	_, body := env.post(t, "/groups/"+env.group+"/messages", url.Values{
		"text":   {"hello"},
		"target": {"all"},
	})
	assert.Contains(t, body, "Sent to 2 of 3. Failed: Bekzod Aliyev")
}

func TestHistoryPage(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)

	resp, body := env.get(t, "/groups/"+env.group+"/users/"+env.aziz+"/history")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "February-2024")
	assert.Contains(t, body, "03/02/2024")
}

func TestHistoryFailure(t *testing.T) {
	env := setupWeb(t)
	env.login(t)
	env.openGroup(t)
	env.api.Fail(apitest.RoutePayments, http.StatusInternalServerError, "")

	_, body := env.get(t, "/groups/"+env.group+"/users/"+env.aziz+"/history")
	assert.Contains(t, body, service.MsgLoadHistory)
}

func TestLogout(t *testing.T) {
	env := setupWeb(t)
	env.login(t)

	resp, body := env.post(t, "/logout", url.Values{})
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Admin login")

	token, err := env.store.LoadToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	env := setupWeb(t)
	env.login(t)

	resp, err := env.client.PostForm(env.server.URL+"/logout", url.Values{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
