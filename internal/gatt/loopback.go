package gatt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
)

var (
	ErrNotPoweredOn          = errors.New("adapter is not powered on")
	ErrNotAdvertising        = errors.New("not advertising")
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
)

// Loopback is an in-process Peripheral. It stands in for a radio during
// development and tests, and exposes the published services over HTTP so a
// client can read and write characteristics with plain requests.
type Loopback struct {
	mu           sync.RWMutex
	state        State
	advertising  bool
	name         string
	serviceUUIDs []string
	services     []*Service

	stateFns []func(State)
	advFns   []func(error)
}

func NewLoopback() *Loopback {
	return &Loopback{state: StateUnknown}
}

func (l *Loopback) OnStateChange(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateFns = append(l.stateFns, fn)
}

func (l *Loopback) OnAdvertisingStart(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advFns = append(l.advFns, fn)
}

func (l *Loopback) PowerOn()  { l.setState(StatePoweredOn) }
func (l *Loopback) PowerOff() { l.setState(StatePoweredOff) }

func (l *Loopback) setState(s State) {
	l.mu.Lock()
	l.state = s
	if s != StatePoweredOn {
		l.advertising = false
	}
	fns := append([]func(State){}, l.stateFns...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// StartAdvertising reports its outcome through the advertising-start
// callbacks, like a radio stack would.
func (l *Loopback) StartAdvertising(name string, serviceUUIDs []string) error {
	l.mu.Lock()
	var err error
	if l.state != StatePoweredOn {
		err = ErrNotPoweredOn
	} else {
		l.advertising = true
		l.name = name
		l.serviceUUIDs = append([]string(nil), serviceUUIDs...)
	}
	fns := append([]func(error){}, l.advFns...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
	return nil
}

func (l *Loopback) StopAdvertising() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advertising = false
	return nil
}

func (l *Loopback) SetServices(services []*Service) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append([]*Service(nil), services...)
	return nil
}

func (l *Loopback) Advertising() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.advertising
}

// lookup must be called with l.mu held.
func (l *Loopback) lookup(uuid string) (*Characteristic, error) {
	if !l.advertising {
		return nil, ErrNotAdvertising
	}
	for _, svc := range l.services {
		if c, ok := svc.Characteristic(uuid); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", uuid, ErrUnknownCharacteristic)
}

// Read performs a read request from a connected central.
func (l *Loopback) Read(uuid string, offset int) (Result, []byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, err := l.lookup(uuid)
	if err != nil {
		return ResultUnlikelyError, nil, err
	}
	res, value := c.Read(offset)
	return res, value, nil
}

// Write performs a write request from a connected central. The write is
// dispatched with the read lock held, so once PowerOff returns no handler
// is entered.
func (l *Loopback) Write(uuid string, data []byte, withoutResponse bool) (Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, err := l.lookup(uuid)
	if err != nil {
		return ResultUnlikelyError, err
	}
	return c.Write(data, 0, withoutResponse), nil
}

type characteristicView struct {
	UUID       string     `json:"uuid"`
	Properties []Property `json:"properties"`
}

type serviceView struct {
	UUID            string               `json:"uuid"`
	Characteristics []characteristicView `json:"characteristics"`
}

type loopbackView struct {
	Name        string        `json:"name"`
	State       State         `json:"state"`
	Advertising bool          `json:"advertising"`
	Services    []serviceView `json:"services"`
}

type resultView struct {
	Result string `json:"result"`
	Code   byte   `json:"code"`
}

// AppendRoutes mounts the central-side HTTP surface under /gatt.
func (l *Loopback) AppendRoutes(r chi.Router) {
	r.Route("/gatt", func(r chi.Router) {
		r.Get("/", l.describe)
		r.Get("/{uuid}", l.read)
		r.Put("/{uuid}", l.write)
	})
}

func (l *Loopback) describe(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	view := loopbackView{Name: l.name, State: l.state, Advertising: l.advertising, Services: []serviceView{}}
	for _, svc := range l.services {
		sv := serviceView{UUID: svc.UUID}
		for _, c := range svc.Characteristics {
			sv.Characteristics = append(sv.Characteristics, characteristicView{UUID: c.UUID, Properties: c.Properties})
		}
		view.Services = append(view.Services, sv)
	}
	l.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}

func (l *Loopback) read(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "offset must be an integer", http.StatusBadRequest)
			return
		}
		offset = v
	}

	res, value, err := l.Read(chi.URLParam(r, "uuid"), offset)
	if err != nil {
		http.Error(w, err.Error(), lookupStatus(err))
		return
	}
	if res != ResultSuccess {
		writeResult(w, http.StatusBadRequest, res)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

func (l *Loopback) write(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 512))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	withoutResponse := r.URL.Query().Get("without_response") == "true"

	res, err := l.Write(chi.URLParam(r, "uuid"), data, withoutResponse)
	if err != nil {
		http.Error(w, err.Error(), lookupStatus(err))
		return
	}
	status := http.StatusOK
	if res != ResultSuccess {
		status = http.StatusBadRequest
	}
	writeResult(w, status, res)
}

func writeResult(w http.ResponseWriter, status int, res Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resultView{Result: res.String(), Code: byte(res)})
}

func lookupStatus(err error) int {
	if errors.Is(err, ErrNotAdvertising) {
		return http.StatusServiceUnavailable
	}
	return http.StatusNotFound
}
