// Package gatt models the peripheral side of a GATT server: a primary
// service made of read and write characteristics, the ATT result codes
// returned to a connected central, and the Peripheral a service is
// advertised on.
package gatt

import "fmt"

// Result is an ATT response code returned for a read or write request.
type Result byte

const (
	ResultSuccess           Result = 0x00
	ResultReadNotPermitted  Result = 0x02
	ResultWriteNotPermitted Result = 0x03
	ResultInvalidOffset     Result = 0x07
	ResultAttrNotLong       Result = 0x0b
	ResultUnlikelyError     Result = 0x0e
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultReadNotPermitted:
		return "read_not_permitted"
	case ResultWriteNotPermitted:
		return "write_not_permitted"
	case ResultInvalidOffset:
		return "invalid_offset"
	case ResultAttrNotLong:
		return "attr_not_long"
	case ResultUnlikelyError:
		return "unlikely_error"
	default:
		return fmt.Sprintf("result(0x%02x)", byte(r))
	}
}

type Property string

const (
	PropertyRead  Property = "read"
	PropertyWrite Property = "write"
)

// State is the adapter power state reported by a Peripheral.
type State string

const (
	StateUnknown    State = "unknown"
	StatePoweredOn  State = "poweredOn"
	StatePoweredOff State = "poweredOff"
)

// WriteFunc handles a write request. It must return promptly; long work is
// expected to continue in the background.
type WriteFunc func(data []byte, offset int, withoutResponse bool) Result

// Characteristic is one readable and/or writable attribute. Value is copied
// on construction and never changes afterwards.
type Characteristic struct {
	UUID       string
	Properties []Property

	value   []byte
	onWrite WriteFunc
}

// NewReadCharacteristic returns a read-only characteristic holding a copy of value.
func NewReadCharacteristic(uuid string, value []byte) *Characteristic {
	return &Characteristic{
		UUID:       uuid,
		Properties: []Property{PropertyRead},
		value:      append([]byte(nil), value...),
	}
}

// NewWriteCharacteristic returns a characteristic that accepts writes and
// answers reads with an empty value.
func NewWriteCharacteristic(uuid string, onWrite WriteFunc) *Characteristic {
	return &Characteristic{
		UUID:       uuid,
		Properties: []Property{PropertyRead, PropertyWrite},
		onWrite:    onWrite,
	}
}

func (c *Characteristic) Has(p Property) bool {
	for _, have := range c.Properties {
		if have == p {
			return true
		}
	}
	return false
}

// Read serves a read request starting at offset. The returned slice is a copy.
func (c *Characteristic) Read(offset int) (Result, []byte) {
	if !c.Has(PropertyRead) {
		return ResultReadNotPermitted, nil
	}
	if offset < 0 || offset > len(c.value) {
		return ResultInvalidOffset, nil
	}
	return ResultSuccess, append([]byte(nil), c.value[offset:]...)
}

func (c *Characteristic) Write(data []byte, offset int, withoutResponse bool) Result {
	if !c.Has(PropertyWrite) || c.onWrite == nil {
		return ResultWriteNotPermitted
	}
	// long writes are not supported; the value must arrive in one request
	if offset != 0 {
		return ResultAttrNotLong
	}
	return c.onWrite(data, offset, withoutResponse)
}

// Service is a primary service together with its characteristics.
type Service struct {
	UUID            string
	Characteristics []*Characteristic
}

func (s *Service) Characteristic(uuid string) (*Characteristic, bool) {
	for _, c := range s.Characteristics {
		if c.UUID == uuid {
			return c, true
		}
	}
	return nil, false
}

// Peripheral is the radio-facing side of the transport.
type Peripheral interface {
	StartAdvertising(name string, serviceUUIDs []string) error
	StopAdvertising() error
	SetServices(services []*Service) error
	OnStateChange(fn func(State))
	OnAdvertisingStart(fn func(error))
}
