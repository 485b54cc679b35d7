package models

// PriceTick is one market price observation flowing through the ingest pipeline.
// Timestamp is unix seconds.
type PriceTick struct {
	Market    string  `json:"market"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"`
}
