package gatt

import (
	"sync"

	"golang.org/x/exp/slog"
)

// Driver keeps one active service advertised on a Peripheral. It follows
// the peripheral lifecycle: advertising starts when the adapter powers on
// and the active service is published once advertising has started.
// Activating a new service supersedes the previous one.
type Driver struct {
	p      Peripheral
	name   string
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	advertising bool
	active      *Service
}

func NewDriver(logger *slog.Logger, p Peripheral, name string) *Driver {
	d := &Driver{
		p:      p,
		name:   name,
		logger: logger.With(slog.String("component", "gatt-driver")),
		state:  StateUnknown,
	}
	p.OnStateChange(d.HandleStateChange)
	p.OnAdvertisingStart(d.HandleAdvertisingStart)
	return d
}

// Activate makes svc the advertised service.
func (d *Driver) Activate(svc *Service) error {
	d.mu.Lock()
	d.active = svc
	advertising, poweredOn := d.advertising, d.state == StatePoweredOn
	d.mu.Unlock()

	d.logger.Info("service activated", slog.String("service", svc.UUID), slog.Int("characteristics", len(svc.Characteristics)))

	switch {
	case advertising:
		return d.p.SetServices([]*Service{svc})
	case poweredOn:
		return d.startAdvertising(svc)
	}
	// published on the next poweredOn
	return nil
}

// Active returns the currently advertised service, or nil.
func (d *Driver) Active() *Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Driver) HandleStateChange(state State) {
	d.mu.Lock()
	d.state = state
	active := d.active
	if state != StatePoweredOn {
		d.advertising = false
	}
	d.mu.Unlock()

	d.logger.Info("adapter state changed", slog.String("state", string(state)))

	if state != StatePoweredOn {
		if err := d.p.StopAdvertising(); err != nil {
			d.logger.Error("stopping advertising", "err", err)
		}
		return
	}
	if active == nil {
		return
	}
	if err := d.startAdvertising(active); err != nil {
		d.logger.Error("starting advertising", "err", err)
	}
}

func (d *Driver) HandleAdvertisingStart(err error) {
	if err != nil {
		d.logger.Error("advertising failed to start", "err", err)
		return
	}

	d.mu.Lock()
	d.advertising = true
	active := d.active
	d.mu.Unlock()

	d.logger.Info("advertising started", slog.String("name", d.name))

	var services []*Service
	if active != nil {
		services = []*Service{active}
	}
	if err := d.p.SetServices(services); err != nil {
		d.logger.Error("setting services", "err", err)
	}
}

func (d *Driver) startAdvertising(svc *Service) error {
	return d.p.StartAdvertising(d.name, []string{svc.UUID})
}
