package terminal

import (
	"fmt"

	"github.com/hydraterm/hydraterm/internal/amount"
	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/terminal/models"
)

const (
	ServiceUUID = "1d4ddcb2-279d-42e2-a95a-274352a25248"

	AddressCharacteristicUUID       = "a781af9a-9a04-4422-9d78-9014497ccdc0"
	AmountCharacteristicUUID        = "61b64163-35fa-438a-810c-018d1a719667"
	AssetUnitCharacteristicUUID     = "52f34145-0363-4f4e-9fab-a133e8e5b0b1"
	ClientAddressCharacteristicUUID = "9b16159d-7c3e-4ae6-990b-0d34f22389bb"
)

// BuildCharacteristics returns the service advertised for req. Read values
// are copied now; changing req afterwards does not affect the service.
//
// The amount is advertised in minor units when req carries decimals, which
// is also what the ledger is charged. Without decimals the plain decimal
// amount is advertised. The asset unit characteristic exists only when
// decimals or an asset unit are given.
func BuildCharacteristics(req models.MerchantRequest, onWrite gatt.WriteFunc) (*gatt.Service, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amountValue, err := amount.Format(req.Amount, req.Decimals)
	if err != nil {
		return nil, fmt.Errorf("formatting amount: %w", err)
	}

	chars := []*gatt.Characteristic{
		gatt.NewReadCharacteristic(AddressCharacteristicUUID, []byte(req.Address)),
		gatt.NewReadCharacteristic(AmountCharacteristicUUID, []byte(amountValue)),
	}
	if req.Decimals != nil || req.AssetUnit != "" {
		chars = append(chars, gatt.NewReadCharacteristic(AssetUnitCharacteristicUUID, []byte(req.AssetUnit)))
	}
	chars = append(chars, gatt.NewWriteCharacteristic(ClientAddressCharacteristicUUID, onWrite))

	return &gatt.Service{UUID: ServiceUUID, Characteristics: chars}, nil
}
