package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hydraterm/hydraterm/internal/amount"
	"github.com/shopspring/decimal"
)

// Client talks to the layer-2 ledger service that holds client funds and
// settles merchant payments.
type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// FundingRef identifies one spendable output on the ledger.
type FundingRef struct {
	TxHash      string `json:"txHash"`
	OutputIndex int    `json:"outputIndex"`
}

type FundsResponse struct {
	FundsInL2 []FundingRef `json:"fundsInL2"`
}

// PayRequest carries the merchant amount as a decimal; the client converts
// it to minor units with Decimals before it goes on the wire.
type PayRequest struct {
	ClientAddress   string
	MerchantAddress string
	Amount          decimal.Decimal
	Decimals        int
	Funding         FundingRef
	AssetUnit       string
}

type utxoRef struct {
	Hash  string `json:"hash"`
	Index int    `json:"index"`
}

type payMerchantBody struct {
	MerchantAddress string  `json:"merchant_address"`
	FundsUTxORef    utxoRef `json:"funds_utxo_ref"`
	Amount          int64   `json:"amount"`
	// always empty; the ledger does not verify signatures yet
	Signature string `json:"signature"`
	AssetUnit string `json:"asset_unit,omitempty"`
}

func (c *Client) QueryFunds(ctx context.Context, address string) (*FundsResponse, error) {
	u, err := url.Parse(c.Base + "/query-funds")
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}
	q := u.Query()
	q.Set("address", address)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build query-funds request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query-funds: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("query-funds", resp); err != nil {
		return nil, err
	}

	var funds FundsResponse
	if err := json.NewDecoder(resp.Body).Decode(&funds); err != nil {
		return nil, fmt.Errorf("decode query-funds: %w", err)
	}
	return &funds, nil
}

// PayMerchant submits the payment and returns the ledger's JSON result as is.
func (c *Client) PayMerchant(ctx context.Context, pr PayRequest) (json.RawMessage, error) {
	minor, err := amount.Encode(pr.Amount, pr.Decimals)
	if err != nil {
		return nil, fmt.Errorf("pay-merchant amount: %w", err)
	}
	body := payMerchantBody{
		MerchantAddress: pr.MerchantAddress,
		FundsUTxORef:    utxoRef{Hash: pr.Funding.TxHash, Index: pr.Funding.OutputIndex},
		Amount:          minor,
		AssetUnit:       pr.AssetUnit,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode pay-merchant: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+"/pay-merchant", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build pay-merchant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pay-merchant: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus("pay-merchant", resp); err != nil {
		return nil, err
	}

	var result json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode pay-merchant: %w", err)
	}
	return result, nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s status=%d body=%s", op, resp.StatusCode, strings.TrimSpace(string(b)))
}
