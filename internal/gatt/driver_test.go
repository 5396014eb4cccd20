package gatt

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testService(uuid, value string) *Service {
	return &Service{
		UUID:            uuid,
		Characteristics: []*Characteristic{NewReadCharacteristic("c1", []byte(value))},
	}
}

func TestDriver_AdvertisesOnPowerOn(t *testing.T) {
	lb := NewLoopback()
	d := NewDriver(testLogger(), lb, "Hydra TERM")

	require.NoError(t, d.Activate(testService("s1", "first")))
	require.False(t, lb.Advertising(), "nothing is advertised before power on")

	lb.PowerOn()
	require.True(t, lb.Advertising())

	res, value, err := lb.Read("c1", 0)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, res)
	require.Equal(t, "first", string(value))
}

func TestDriver_NewServiceSupersedes(t *testing.T) {
	lb := NewLoopback()
	d := NewDriver(testLogger(), lb, "Hydra TERM")
	lb.PowerOn()

	require.NoError(t, d.Activate(testService("s1", "first")))
	require.NoError(t, d.Activate(testService("s2", "second")))

	_, value, err := lb.Read("c1", 0)
	require.NoError(t, err)
	require.Equal(t, "second", string(value))
	require.Equal(t, "s2", d.Active().UUID)
}

func TestDriver_PowerOffStopsAdvertising(t *testing.T) {
	lb := NewLoopback()
	d := NewDriver(testLogger(), lb, "Hydra TERM")
	lb.PowerOn()
	require.NoError(t, d.Activate(testService("s1", "v")))
	require.True(t, lb.Advertising())

	lb.PowerOff()
	require.False(t, lb.Advertising())
	_, _, err := lb.Read("c1", 0)
	require.ErrorIs(t, err, ErrNotAdvertising)

	// service is republished when the adapter comes back
	lb.PowerOn()
	_, value, err := lb.Read("c1", 0)
	require.NoError(t, err)
	require.Equal(t, "v", string(value))
}
