package terminal_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/internal/notify"
	"github.com/hydraterm/hydraterm/terminal"
	"github.com/hydraterm/hydraterm/terminal/models"
)

type stubBinder struct {
	sessions []string
}

func (b *stubBinder) Bind(sessionID string, req models.MerchantRequest) gatt.WriteFunc {
	b.sessions = append(b.sessions, sessionID)
	return func([]byte, int, bool) gatt.Result { return gatt.ResultSuccess }
}

type stubAdvertiser struct {
	active *gatt.Service
}

func (a *stubAdvertiser) Activate(svc *gatt.Service) error {
	a.active = svc
	return nil
}

func newTestRouter(t *testing.T) (chi.Router, *stubBinder, *stubAdvertiser) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	binder := &stubBinder{}
	adv := &stubAdvertiser{}
	hub := notify.NewHub(logger, notify.ScopeBroadcast, 4)
	t.Cleanup(hub.Close)

	svc := terminal.NewService(logger, terminal.NewRepository(), binder, adv, hub)
	r := chi.NewRouter()
	terminal.NewAPI(svc).AppendRoutes(r)
	return r, binder, adv
}

func connect(t *testing.T, r http.Handler) models.Session {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var session models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session
}

func TestAPI_RequestFunds(t *testing.T) {
	r, binder, adv := newTestRouter(t)
	session := connect(t, r)

	body := bytes.NewBufferString(`{"address":"addr1","amount":2.5,"decimals":2,"assetUnit":"lovelace"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/request-funds", body))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp models.RequestFundsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, session.ID, resp.SessionID)
	require.Equal(t, terminal.ServiceUUID, resp.Service)
	require.Len(t, resp.Characteristics, 4)
	require.Equal(t, "addr1", resp.Characteristics[0].Value)
	require.Equal(t, "250", resp.Characteristics[1].Value)
	require.Equal(t, "lovelace", resp.Characteristics[2].Value)
	require.Equal(t, []string{"read", "write"}, resp.Characteristics[3].Properties)

	require.Equal(t, []string{session.ID}, binder.sessions)
	require.NotNil(t, adv.active)

	// the session remembers its last request
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Request)
	require.Equal(t, "addr1", got.Request.Address)
}

func TestAPI_RequestFunds_Invalid(t *testing.T) {
	r, _, adv := newTestRouter(t)
	session := connect(t, r)

	for _, body := range []string{
		`not json`,
		`{"address":"","amount":1}`,
		`{"address":"a","amount":-1}`,
		`{"address":"a","amount":1,"decimals":-2}`,
		`{"address":"a","amount":1,"decimals":19}`,
		`{"address":"a","amount":2.5,"decimals":4294967298}`,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/"+session.ID+"/request-funds", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	require.Nil(t, adv.active)
}

func TestAPI_UnknownSession(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions/nope/request-funds", bytes.NewBufferString(`{"address":"a","amount":1}`)))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/nope/events", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Disconnect(t *testing.T) {
	r, _, _ := newTestRouter(t)
	session := connect(t, r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/"+session.ID, nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/"+session.ID, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
