package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hydraterm/hydraterm/internal/amount"
)

// MerchantRequest is a pending payment registered by a merchant session.
// It is passed by value and not modified after registration.
type MerchantRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	// Decimals is the minor-unit exponent of the requested asset. When nil
	// the amount is advertised as a plain decimal and settled in the
	// ledger's native unit.
	Decimals  *int   `json:"decimals,omitempty"`
	AssetUnit string `json:"assetUnit,omitempty"`
}

// Validate checks the fields a characteristic set and a payment depend on.
func (r MerchantRequest) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("amount must be >= 0")
	}
	if r.Decimals != nil {
		if err := amount.CheckDecimals(*r.Decimals); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy that shares no memory with r.
func (r MerchantRequest) Clone() MerchantRequest {
	if r.Decimals != nil {
		d := *r.Decimals
		r.Decimals = &d
	}
	return r
}

// PaymentOutcome is reported to merchant sessions after the ledger accepted a payment.
type PaymentOutcome struct {
	ClientAddress   string          `json:"clientAddress"`
	MerchantAddress string          `json:"merchantAddress"`
	Amount          decimal.Decimal `json:"amount"`
	LedgerResult    json.RawMessage `json:"fundsInL2"`
}
