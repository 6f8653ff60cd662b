package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/atmadmin/internal/client/authevents"
	"github.com/dmitrijs2005/atmadmin/internal/client/config"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/storage"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
)

func strp(s string) *string { return &s }

type fakeServer struct {
	mu      sync.Mutex
	user    models.User
	revoked bool
	atms    []models.ATM
	users   []models.User
	logs    []models.LogEntry
	nextID  int64
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			revoked := f.revoked
			f.mu.Unlock()
			if revoked || r.Header.Get("Authorization") != "Bearer tok-1" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("POST /auth/login/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != f.user.Username || r.FormValue("password") != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: "tok-1", TokenType: "bearer"})
	})
	mux.HandleFunc("POST /auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var in models.SignupRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		writeJSON(w, http.StatusCreated, models.User{ID: 50, Username: in.Username, Email: in.Email, Role: models.RoleOperator})
	})
	mux.HandleFunc("POST /auth/validate-token", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.user)
	}))
	mux.HandleFunc("GET /atms/", authed(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		uid := r.URL.Query().Get("atm_uid")
		f.mu.Lock()
		defer f.mu.Unlock()
		var match []models.ATM
		for _, a := range f.atms {
			if uid == "" || a.UID == uid {
				match = append(match, a)
			}
		}
		end := min(skip+limit, len(match))
		page := []models.ATM{}
		if skip < end {
			page = match[skip:end]
		}
		w.Header().Set(transport.HeaderTotalCount, strconv.Itoa(len(match)))
		writeJSON(w, http.StatusOK, page)
	}))
	mux.HandleFunc("GET /atms/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, a := range f.atms {
			if a.ID == id {
				writeJSON(w, http.StatusOK, a)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "ATM not found"})
	}))
	mux.HandleFunc("POST /atms/", authed(func(w http.ResponseWriter, r *http.Request) {
		var in models.ATMInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.UID == nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
				{"loc": []string{"body", "atm_uid"}, "msg": "field required", "type": "missing"},
			}})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		f.nextID++
		atm := models.ATM{ID: f.nextID, UID: *in.UID, LocationDescription: in.LocationDescription, IPAddress: in.IPAddress}
		if in.StatusID != nil {
			atm.StatusID = *in.StatusID
		}
		f.atms = append(f.atms, atm)
		writeJSON(w, http.StatusCreated, atm)
	}))
	mux.HandleFunc("PUT /atms/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		var in models.ATMInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.atms {
			if f.atms[i].ID != id {
				continue
			}
			if in.UID != nil {
				f.atms[i].UID = *in.UID
			}
			if in.LocationDescription != nil {
				f.atms[i].LocationDescription = in.LocationDescription
			}
			writeJSON(w, http.StatusOK, f.atms[i])
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "ATM not found"})
	}))
	mux.HandleFunc("DELETE /atms/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.atms {
			if f.atms[i].ID == id {
				f.atms = append(f.atms[:i], f.atms[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "ATM not found"})
	}))
	mux.HandleFunc("GET /logs/levels/", authed(func(w http.ResponseWriter, r *http.Request) {
		sev := 40
		writeJSON(w, http.StatusOK, []models.LogLevel{{ID: 2, Name: "INFO"}, {ID: 4, Name: "ERROR", SeverityOrder: &sev}})
	}))
	mux.HandleFunc("GET /logs/event_types/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.EventType{{ID: 11, Name: "CARD_JAMMED", Category: strp("hardware")}})
	}))
	mux.HandleFunc("GET /logs/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, l := range f.logs {
			if l.ID == id {
				writeJSON(w, http.StatusOK, l)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Log not found"})
	}))
	mux.HandleFunc("GET /logs/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Logs not found"})
	}))
	mux.HandleFunc("GET /users/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.users)
	}))
	mux.HandleFunc("PUT /users/{id}/role", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not enough permissions"})
	}))
	return mux
}

type testApp struct {
	*App
	out   *bytes.Buffer
	lines *[]string
	store storage.TokenStore
	srv   *fakeServer
}

func newTestApp(t *testing.T, srv *fakeServer, stored, input string) *testApp {
	t.Helper()
	lines := capturePrint(t)

	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("pw"), nil }
	t.Cleanup(func() { readPassword = orig })

	hs := httptest.NewServer(srv.handler(t))
	t.Cleanup(hs.Close)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = hs.URL
	cfg.PageSize = 2

	store := storage.NewMemoryStore(stored)
	bus := authevents.NewBus()
	tr := transport.New(hs.URL, store, bus)
	out := &bytes.Buffer{}
	a := newApp(cfg, logging.Nop(), store, tr, bus, strings.NewReader(input), out)
	require.NoError(t, a.session.Start(context.Background()))
	t.Cleanup(a.Close)
	return &testApp{App: a, out: out, lines: lines, store: store, srv: srv}
}

func fleet() []models.ATM {
	return []models.ATM{
		{ID: 1, UID: "ATM-C", LocationDescription: strp("Mall"), Status: models.ATMStatus{Name: "online"}},
		{ID: 2, UID: "atm-a", Status: models.ATMStatus{Name: "offline"}},
		{ID: 3, UID: "ATM-B", Status: models.ATMStatus{Name: "online"}},
	}
}

func TestApp_LoginAndBrowseATMs(t *testing.T) {
	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Role: models.RoleOperator}, atms: fleet()}
	a := newTestApp(t, srv, "", "alice\n")
	ctx := context.Background()

	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, *a.lines, "Welcome, alice (operator)")

	require.NoError(t, a.ATMs(ctx))
	out := a.out.String()
	assert.Contains(t, out, "atms: page 1 of 2, 3 total, sorted by id asc")
	assert.Contains(t, out, "ATM-C")
	assert.NotContains(t, out, "ATM-B")
	assert.Equal(t, "(alice operator atms p1/2)", a.getStatus())

	a.out.Reset()
	require.NoError(t, a.Sort(ctx, []string{"atm_uid"}))
	out = a.out.String()
	assert.Less(t, strings.Index(out, "atm-a"), strings.Index(out, "ATM-C"))

	a.out.Reset()
	require.NoError(t, a.Next(ctx))
	assert.Contains(t, a.out.String(), "ATM-B")
	assert.Error(t, a.Next(ctx))

	a.out.Reset()
	require.NoError(t, a.Filter(ctx, []string{"atm_uid=ATM-B"}))
	out = a.out.String()
	assert.Contains(t, out, "page 1 of 1, 1 total")
	assert.Contains(t, out, "filters: atm_uid=ATM-B")

	require.NoError(t, a.Clear(ctx))
	assert.Error(t, a.Filter(ctx, []string{"nope=1"}))
}

func TestApp_LoginRejected(t *testing.T) {
	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Role: models.RoleOperator}}
	a := newTestApp(t, srv, "", "mallory\n")

	err := a.Login(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", err.Error())
	assert.False(t, a.isLoggedIn())
	assert.Empty(t, *a.lines)
}

func TestApp_SessionExpiryDropsScreen(t *testing.T) {
	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Role: models.RoleAdmin}, atms: fleet()}
	a := newTestApp(t, srv, "tok-1", "")
	ctx := context.Background()
	require.True(t, a.isLoggedIn())

	require.NoError(t, a.ATMs(ctx))

	srv.mu.Lock()
	srv.revoked = true
	srv.mu.Unlock()

	err := a.Next(ctx)
	require.Error(t, err)
	assert.False(t, a.isLoggedIn())
	assert.Nil(t, a.current())
	assert.Equal(t, []string{"Session ended (session expired). Please log in again."}, *a.lines)

	tok, err := a.store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestApp_LogsOfMissingATM(t *testing.T) {
	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Role: models.RoleAdmin}, atms: fleet()}
	a := newTestApp(t, srv, "tok-1", "")
	ctx := context.Background()

	require.NoError(t, a.Logs(ctx, []string{"2"}))
	assert.Contains(t, a.out.String(), "(no items)")

	err := a.Logs(ctx, []string{"9"})
	require.Error(t, err)
	assert.Equal(t, "ATM not found", describe(err))
	assert.Nil(t, a.current())

	assert.ErrorIs(t, a.Logs(ctx, nil), errBadArgs)
}

func TestApp_UsersGatingAndRollback(t *testing.T) {
	users := []models.User{
		{ID: 1, Username: "root", Role: models.RoleSuperadmin},
		{ID: 2, Username: "bob", Role: models.RoleOperator},
	}

	op := newTestApp(t, &fakeServer{user: users[1], users: users}, "tok-1", "")
	assert.ErrorIs(t, op.Users(context.Background()), errNotAllowed)

	a := newTestApp(t, &fakeServer{user: users[0], users: users}, "tok-1", "")
	ctx := context.Background()
	assert.ErrorIs(t, a.Role(ctx, []string{"2", "admin"}), errNotUsers)

	require.NoError(t, a.Users(ctx))
	err := a.Role(ctx, []string{"2", "admin"})
	require.ErrorIs(t, err, transport.ErrForbidden)
	assert.Equal(t, models.RoleOperator, a.users.ctl.Items()[1].Role)

	assert.ErrorContains(t, a.DelUser(ctx, []string{"1"}), "cannot delete themselves")
	assert.ErrorIs(t, a.Role(ctx, []string{"7", "admin"}), errNotOnPage)
}

func TestApp_RegisterShowAndWhoAmI(t *testing.T) {
	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Email: "a@x.io", Role: models.RoleAdmin}, atms: fleet()}
	a := newTestApp(t, srv, "tok-1", "carol\ncarol@example.com\n")
	ctx := context.Background()

	require.NoError(t, a.Register(ctx))
	assert.Contains(t, *a.lines, "Account carol created, you can log in now.")

	require.NoError(t, a.WhoAmI(ctx))
	assert.Contains(t, *a.lines, "alice <a@x.io> id=1 role=admin")

	a.out.Reset()
	require.NoError(t, a.Show(ctx, []string{"1"}))
	assert.Contains(t, a.out.String(), "location: Mall")
	assert.ErrorContains(t, a.Show(ctx, []string{"42"}), "ATM 42 not found")

	assert.ErrorIs(t, a.Page(ctx, []string{"1"}), errNoScreen)
}

func TestApp_ManageATMs(t *testing.T) {
	op := newTestApp(t, &fakeServer{user: models.User{ID: 2, Username: "bob", Role: models.RoleOperator}, atms: fleet()}, "tok-1", "")
	assert.ErrorIs(t, op.ATM(context.Background(), []string{"rm", "1"}), errNotAllowed)

	srv := &fakeServer{user: models.User{ID: 1, Username: "alice", Role: models.RoleAdmin}, atms: fleet(), nextID: 3}
	a := newTestApp(t, srv, "tok-1", "")
	ctx := context.Background()

	require.NoError(t, a.ATMs(ctx))
	assert.Contains(t, a.out.String(), "3 total")

	a.out.Reset()
	require.NoError(t, a.ATM(ctx, []string{"add", "uid=ATM-D", "location=Airport", "status=1"}))
	assert.Contains(t, *a.lines, "ATM 4 (ATM-D) created.")
	assert.Contains(t, a.out.String(), "4 total", "open device list is reloaded")

	require.NoError(t, a.ATM(ctx, []string{"edit", "4", "location=Terminal 2"}))
	assert.Contains(t, *a.lines, "ATM 4 updated.")
	a.out.Reset()
	require.NoError(t, a.Show(ctx, []string{"4"}))
	assert.Contains(t, a.out.String(), "location: Terminal 2")

	a.out.Reset()
	require.NoError(t, a.ATM(ctx, []string{"rm", "4"}))
	assert.Contains(t, *a.lines, "ATM 4 deleted.")
	assert.Contains(t, a.out.String(), "3 total")

	assert.ErrorContains(t, a.ATM(ctx, []string{"rm", "4"}), "ATM 4 not found")
	assert.ErrorContains(t, a.ATM(ctx, []string{"edit", "9", "ip=10.0.0.1"}), "ATM 9 not found")
	assert.ErrorIs(t, a.ATM(ctx, []string{"add", "location=Nowhere"}), errBadArgs)
	assert.ErrorIs(t, a.ATM(ctx, []string{"edit", "1"}), errBadArgs)
	assert.ErrorIs(t, a.ATM(ctx, []string{"add", "uid=X", "colour=red"}), errBadArgs)
	assert.ErrorIs(t, a.ATM(ctx, []string{"add", "uid=X", "status=zero"}), errBadArgs)
	assert.ErrorIs(t, a.ATM(ctx, []string{"paint", "1"}), errBadArgs)
	assert.ErrorIs(t, a.ATM(ctx, nil), errBadArgs)
}

func TestApp_LookupsAndLogDetail(t *testing.T) {
	acked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	by := int64(1)
	srv := &fakeServer{
		user: models.User{ID: 1, Username: "alice", Role: models.RoleOperator},
		logs: []models.LogEntry{{
			ID: 12, ATMID: 3, Message: "Card jammed in reader", IsAlert: true,
			LogLevel:             models.LogLevel{ID: 4, Name: "ERROR"},
			EventType:            &models.EventType{ID: 11, Name: "CARD_JAMMED"},
			AcknowledgedAt:       &acked,
			AcknowledgedByUserID: &by,
			Payload:              json.RawMessage(`{"error_code":"CJ-001"}`),
		}},
	}
	a := newTestApp(t, srv, "tok-1", "")
	ctx := context.Background()

	require.NoError(t, a.Levels(ctx))
	require.NoError(t, a.Types(ctx))
	out := a.out.String()
	assert.Contains(t, out, "2\tINFO\t-")
	assert.Contains(t, out, "4\tERROR\t40")
	assert.Contains(t, out, "11\tCARD_JAMMED\thardware\t-")

	a.out.Reset()
	require.NoError(t, a.Log(ctx, []string{"12"}))
	out = a.out.String()
	assert.Contains(t, out, "Log 12 (atm 3)")
	assert.Contains(t, out, "event:    CARD_JAMMED")
	assert.Contains(t, out, "by user 1")
	assert.Contains(t, out, `"error_code": "CJ-001"`)

	assert.ErrorContains(t, a.Log(ctx, []string{"99"}), "log 99 not found")
	assert.ErrorIs(t, a.Log(ctx, nil), errBadArgs)
}
