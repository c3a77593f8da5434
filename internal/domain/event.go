package domain

import (
	"encoding/json"
	"time"
)

// CheckResult represents the interpreted outcome of a single probe.
type CheckResult string

// Check results.
const (
	CheckResultOK   CheckResult = "ok"
	CheckResultWarn CheckResult = "warn"
	CheckResultFail CheckResult = "fail"
)

// IsValid checks if the result is valid.
func (r CheckResult) IsValid() bool {
	return r == CheckResultOK || r == CheckResultWarn || r == CheckResultFail
}

// HealthEvent is one immutable recorded outcome of executing a check.
// Append-only; the sole history source for consecutive-failure counting.
type HealthEvent struct {
	ID           string
	SiteID       string
	CheckID      string
	CheckType    CheckType
	Result       CheckResult
	Latency      time.Duration
	HTTPStatus   *int
	ErrorMessage *string
	RawPayload   json.RawMessage
	CreatedAt    time.Time
}

// healthEventJSON is the wire form of an event; latency travels as
// milliseconds.
type healthEventJSON struct {
	ID           string          `json:"id"`
	SiteID       string          `json:"site_id"`
	CheckID      string          `json:"check_id"`
	CheckType    CheckType       `json:"check_type"`
	Result       CheckResult     `json:"result"`
	LatencyMS    int64           `json:"latency_ms"`
	HTTPStatus   *int            `json:"http_status"`
	ErrorMessage *string         `json:"error_message"`
	RawPayload   json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// MarshalJSON implements json.Marshaler.
func (e HealthEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(healthEventJSON{
		ID:           e.ID,
		SiteID:       e.SiteID,
		CheckID:      e.CheckID,
		CheckType:    e.CheckType,
		Result:       e.Result,
		LatencyMS:    e.Latency.Milliseconds(),
		HTTPStatus:   e.HTTPStatus,
		ErrorMessage: e.ErrorMessage,
		RawPayload:   e.RawPayload,
		CreatedAt:    e.CreatedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *HealthEvent) UnmarshalJSON(data []byte) error {
	var w healthEventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = HealthEvent{
		ID:           w.ID,
		SiteID:       w.SiteID,
		CheckID:      w.CheckID,
		CheckType:    w.CheckType,
		Result:       w.Result,
		Latency:      time.Duration(w.LatencyMS) * time.Millisecond,
		HTTPStatus:   w.HTTPStatus,
		ErrorMessage: w.ErrorMessage,
		RawPayload:   w.RawPayload,
		CreatedAt:    w.CreatedAt,
	}
	return nil
}
