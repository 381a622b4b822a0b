package domain

import "time"

// TradeSample is a single public trade print used to derive average daily
// volume.
type TradeSample struct {
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}
