package terminal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/terminal"
	"github.com/hydraterm/hydraterm/terminal/models"
)

func readValue(t *testing.T, svc *gatt.Service, uuid string) string {
	t.Helper()
	c, ok := svc.Characteristic(uuid)
	require.True(t, ok, "characteristic %s", uuid)
	res, value := c.Read(0)
	require.Equal(t, gatt.ResultSuccess, res)
	return string(value)
}

func TestBuildCharacteristics_WithDecimals(t *testing.T) {
	two := 2
	req := models.MerchantRequest{Address: "addr1", Amount: decimal.RequireFromString("2.5"), Decimals: &two}
	svc, err := terminal.BuildCharacteristics(req, nil)
	require.NoError(t, err)

	require.Equal(t, terminal.ServiceUUID, svc.UUID)
	require.Len(t, svc.Characteristics, 4)
	require.Equal(t, "addr1", readValue(t, svc, terminal.AddressCharacteristicUUID))
	require.Equal(t, "250", readValue(t, svc, terminal.AmountCharacteristicUUID))
	require.Equal(t, "", readValue(t, svc, terminal.AssetUnitCharacteristicUUID))

	// mutating the source request does not reach the built characteristics
	req.Address = "addr2"
	req.Amount = decimal.NewFromInt(99)
	*req.Decimals = 0
	require.Equal(t, "addr1", readValue(t, svc, terminal.AddressCharacteristicUUID))
	require.Equal(t, "250", readValue(t, svc, terminal.AmountCharacteristicUUID))
}

func TestBuildCharacteristics_WithoutDecimals(t *testing.T) {
	req := models.MerchantRequest{Address: "addr1", Amount: decimal.RequireFromString("2.5")}
	svc, err := terminal.BuildCharacteristics(req, nil)
	require.NoError(t, err)

	require.Len(t, svc.Characteristics, 3)
	require.Equal(t, "2.5", readValue(t, svc, terminal.AmountCharacteristicUUID))
	_, ok := svc.Characteristic(terminal.AssetUnitCharacteristicUUID)
	require.False(t, ok)
}

func TestBuildCharacteristics_AssetUnit(t *testing.T) {
	req := models.MerchantRequest{Address: "addr1", Amount: decimal.NewFromInt(3), AssetUnit: "policy.token"}
	svc, err := terminal.BuildCharacteristics(req, nil)
	require.NoError(t, err)
	require.Equal(t, "policy.token", readValue(t, svc, terminal.AssetUnitCharacteristicUUID))
}

func TestBuildCharacteristics_WriteTriggersHandler(t *testing.T) {
	var got string
	onWrite := func(data []byte, offset int, withoutResponse bool) gatt.Result {
		got = string(data)
		return gatt.ResultSuccess
	}
	svc, err := terminal.BuildCharacteristics(models.MerchantRequest{Address: "a", Amount: decimal.NewFromInt(1)}, onWrite)
	require.NoError(t, err)

	c, ok := svc.Characteristic(terminal.ClientAddressCharacteristicUUID)
	require.True(t, ok)
	require.Equal(t, gatt.ResultSuccess, c.Write([]byte("client_addr"), 0, false))
	require.Equal(t, "client_addr", got)

	addr, _ := svc.Characteristic(terminal.AddressCharacteristicUUID)
	require.Equal(t, gatt.ResultWriteNotPermitted, addr.Write([]byte("x"), 0, false))
}

func TestBuildCharacteristics_Invalid(t *testing.T) {
	_, err := terminal.BuildCharacteristics(models.MerchantRequest{Amount: decimal.NewFromInt(1)}, nil)
	require.Error(t, err)
}
