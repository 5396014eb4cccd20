package models

import "time"

type Session struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	// Request is the last payment request registered by the session.
	Request *MerchantRequest `json:"request,omitempty"`
}

type Characteristic struct {
	UUID       string   `json:"uuid"`
	Properties []string `json:"properties"`
	Value      string   `json:"value,omitempty"`
}

// RequestFundsResponse describes the characteristic set built for a request.
type RequestFundsResponse struct {
	SessionID       string           `json:"session_id"`
	Service         string           `json:"service"`
	Characteristics []Characteristic `json:"characteristics"`
}
