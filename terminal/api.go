package terminal

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/hydraterm/hydraterm/internal/apperr"
	"github.com/hydraterm/hydraterm/terminal/models"
)

// API is the HTTP surface merchant sessions use to register payment
// requests and to receive payment events.
type API struct {
	sessions *Service
}

func NewAPI(sessions *Service) *API {
	return &API{
		sessions: sessions,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.connect)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", a.getSession)
			r.Delete("/", a.disconnect)
			r.Post("/request-funds", a.requestFunds)
			// payment events are pushed as datastar signal patches: {"payed": {...}}
			r.Get("/events", a.events)
		})
	})
}

func (a *API) connect(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.Connect()
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.sessions.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(session)
}

func (a *API) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Disconnect(chi.URLParam(r, "sessionID")); err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) requestFunds(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	req := models.MerchantRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	resp, err := a.sessions.RequestFunds(sessionID, req)
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// events streams payment events for as long as the client stays connected
// or until the notifier shuts down.
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	events, cancel, err := a.sessions.Subscribe(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), apperr.HTTPStatus(err))
		return
	}
	defer cancel()

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{ev.Name: ev.Payload}); err != nil {
				return
			}
		}
	}
}
