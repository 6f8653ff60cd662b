package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/atmadmin/internal/client/actions"
	"github.com/dmitrijs2005/atmadmin/internal/client/listing"
	"github.com/dmitrijs2005/atmadmin/internal/client/models"
	"github.com/dmitrijs2005/atmadmin/internal/client/storage"
	"github.com/dmitrijs2005/atmadmin/internal/client/transport"
)

func strp(s string) *string { return &s }

// fakeAPI is a small in-memory rendition of the fleet API.
type fakeAPI struct {
	mu         sync.Mutex
	atms       []models.ATM
	logs       []models.LogEntry
	users      []models.User
	rejectRole bool
	ackAt      time.Time
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("GET /atms/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set(transport.HeaderTotalCount, strconv.Itoa(len(f.atms)))
		writeJSON(w, http.StatusOK, f.atms)
	})
	mux.HandleFunc("GET /atms/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for _, a := range f.atms {
			if a.ID == id {
				writeJSON(w, http.StatusOK, a)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "ATM not found"})
	})
	mux.HandleFunc("POST /atms/", func(w http.ResponseWriter, r *http.Request) {
		var in models.ATMInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.UID == nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]any{{"loc": []string{"body", "atm_uid"}, "msg": "field required", "type": "missing"}},
			})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		a := models.ATM{ID: int64(len(f.atms) + 1), UID: *in.UID, LocationDescription: in.LocationDescription}
		f.atms = append(f.atms, a)
		writeJSON(w, http.StatusCreated, a)
	})
	mux.HandleFunc("DELETE /atms/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /atms/statuses/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.ATMStatus{{ID: 1, Name: "online"}, {ID: 2, Name: "offline"}})
	})
	mux.HandleFunc("GET /logs/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		atmID, _ := strconv.ParseInt(r.URL.Query().Get("atm_id"), 10, 64)
		var out []models.LogEntry
		for _, l := range f.logs {
			if l.ATMID == atmID {
				out = append(out, l)
			}
		}
		if len(out) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Logs not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": out, "total": len(out)})
	})
	mux.HandleFunc("PATCH /logs/{id}/acknowledge", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		for i, l := range f.logs {
			if l.ID != id {
				continue
			}
			if l.Acknowledged() {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Alert already acknowledged"})
				return
			}
			at, by := f.ackAt, int64(1)
			l.AcknowledgedAt, l.AcknowledgedByUserID = &at, &by
			f.logs[i] = l
			writeJSON(w, http.StatusOK, l)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Log entry not found"})
	})
	mux.HandleFunc("GET /users/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.users)
	})
	mux.HandleFunc("PUT /users/{id}/role", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		reject := f.rejectRole
		f.mu.Unlock()
		if reject {
			writeJSON(w, http.StatusForbidden, map[string]string{"detail": "Not enough permissions"})
			return
		}
		var body struct {
			Role models.Role `json:"role"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		writeJSON(w, http.StatusOK, models.User{ID: id, Username: "echo", Role: body.Role})
	})
	mux.HandleFunc("DELETE /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "database is locked"})
	})
	return mux
}

func newClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(transport.New(srv.URL, storage.NewMemoryStore("tok"), nil))
}

func TestATMs_ListSortAndCRUD(t *testing.T) {
	f := &fakeAPI{atms: []models.ATM{
		{ID: 1, UID: "B-2", LocationDescription: strp("mall"), Status: models.ATMStatus{Name: "online"}},
		{ID: 2, UID: "a-1", Status: models.ATMStatus{Name: "offline"}},
	}}
	c := newClient(t, f)
	ctx := context.Background()

	list := c.ATMs(listing.WithPageSize(10))
	require.NoError(t, list.Fetch(ctx))
	v := list.View()
	assert.Equal(t, 2, v.Total)

	require.NoError(t, list.SetSort("atm_uid", listing.Asc))
	assert.Equal(t, "a-1", list.Items()[0].UID)
	require.NoError(t, list.SetSort("location_description", listing.Desc))
	assert.Equal(t, int64(1), list.Items()[0].ID, "missing location sorts last")

	atm, err := c.GetATM(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B-2", atm.UID)

	_, err = c.GetATM(ctx, 99)
	assert.ErrorIs(t, err, transport.ErrNotFound)

	created, err := c.CreateATM(ctx, models.ATMInput{UID: strp("C-3")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)

	_, err = c.CreateATM(ctx, models.ATMInput{})
	require.ErrorIs(t, err, transport.ErrValidation)
	assert.Contains(t, err.Error(), "field required")

	require.NoError(t, c.DeleteATM(ctx, 3))

	statuses, err := c.ATMStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)
}

func TestLogs_ParentDisambiguation(t *testing.T) {
	f := &fakeAPI{
		atms: []models.ATM{{ID: 1, UID: "A"}, {ID: 2, UID: "B"}},
		logs: []models.LogEntry{{ID: 10, ATMID: 1, Message: "boot", IsAlert: true}},
	}
	c := newClient(t, f)
	ctx := context.Background()

	withLogs := c.Logs(1)
	require.NoError(t, withLogs.Fetch(ctx))
	assert.Equal(t, 1, withLogs.View().Total)

	empty := c.Logs(2)
	require.NoError(t, empty.Fetch(ctx))
	assert.Empty(t, empty.Items())

	missing := c.Logs(3)
	err := missing.Fetch(ctx)
	assert.ErrorIs(t, err, listing.ErrParentNotFound)
}

func TestAcknowledge_AdoptsEcho(t *testing.T) {
	ackAt := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	f := &fakeAPI{
		atms:  []models.ATM{{ID: 1}},
		logs:  []models.LogEntry{{ID: 10, ATMID: 1, IsAlert: true}, {ID: 11, ATMID: 1}},
		ackAt: ackAt,
	}
	c := newClient(t, f)
	ctx := context.Background()

	logs := c.Logs(1)
	require.NoError(t, logs.Fetch(ctx))
	ex := actions.New(logs, LogID, nil)

	entry := logs.Items()[0]
	require.Equal(t, int64(10), entry.ID)
	require.NoError(t, c.Acknowledge(ctx, ex, root, entry))

	got := logs.Items()[0]
	require.NotNil(t, got.AcknowledgedAt)
	assert.True(t, ackAt.Equal(*got.AcknowledgedAt))

	assert.Error(t, c.Acknowledge(ctx, ex, root, got), "already acknowledged")
	assert.Error(t, c.Acknowledge(ctx, ex, root, logs.Items()[1]), "not an alert")
}

func TestSetRole_RollsBackOnRefusal(t *testing.T) {
	f := &fakeAPI{users: []models.User{root, boss, op}, rejectRole: true}
	c := newClient(t, f)
	ctx := context.Background()

	users := c.Users()
	require.NoError(t, users.Fetch(ctx))
	before := users.Items()
	ex := actions.New(users, UserID, nil)

	err := c.SetRole(ctx, ex, root, op, models.RoleAdmin)
	require.ErrorIs(t, err, transport.ErrForbidden)
	assert.Equal(t, before, users.Items())

	f.mu.Lock()
	f.rejectRole = false
	f.mu.Unlock()
	require.NoError(t, c.SetRole(ctx, ex, root, op, models.RoleAdmin))
	assert.Equal(t, models.RoleAdmin, users.Items()[2].Role)

	err = c.SetRole(ctx, ex, boss, op, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrForbiddenAction)
}

func TestRemoveUser_RestoresOnFailure(t *testing.T) {
	f := &fakeAPI{users: []models.User{root, boss, op}}
	c := newClient(t, f)
	ctx := context.Background()

	users := c.Users()
	require.NoError(t, users.Fetch(ctx))
	before := users.Items()
	ex := actions.New(users, UserID, nil)

	err := c.RemoveUser(ctx, ex, root, boss, before)
	require.ErrorIs(t, err, transport.ErrServer)
	assert.Equal(t, before, users.Items())

	err = c.RemoveUser(ctx, ex, root, root, before)
	assert.ErrorIs(t, err, ErrForbiddenAction)
}

func TestUsers_UnknownFilterRejected(t *testing.T) {
	c := newClient(t, &fakeAPI{})
	users := c.Users()
	err := users.ApplyFilters(context.Background(), map[string]string{"role": "admin"})
	assert.ErrorIs(t, err, listing.ErrUnknownFilter)
}
