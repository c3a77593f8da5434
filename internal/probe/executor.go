// Package probe executes a single health check probe against a target and
// interprets the response per check type.
package probe

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

	"github.com/rkotelnikov/sitewatch/internal/domain"
)

const (
	// maxBodyBytes bounds how much of a probe response is read.
	maxBodyBytes = 64 * 1024
	// maxRawPayloadBytes bounds the JSON payload persisted with an event.
	maxRawPayloadBytes = 4 * 1024
)

// formProbeBody is the fixed synthetic submission sent by form checks.
var formProbeBody = map[string]string{
	"name":    "Health Check",
	"email":   "healthcheck@example.com",
	"message": "Automated form health check",
}

// Descriptor describes one probe to execute.
type Descriptor struct {
	CheckID        string
	SiteID         string
	Type           domain.CheckType
	Target         string
	Timeout        time.Duration
	ExpectedStatus int
	BaseDomain     string
}

// Outcome is the interpreted result of one probe.
type Outcome struct {
	Result       domain.CheckResult
	Latency      time.Duration
	HTTPStatus   *int
	ErrorMessage *string
	RawPayload   json.RawMessage
}

// Executor runs probes. Executions are independent and safe to run
// concurrently; the per-probe deadline comes from the check configuration.
type Executor struct {
	client         *http.Client
	defaultTimeout time.Duration
}

// NewExecutor creates an executor. No client-level timeout is set; each
// probe carries its own context deadline.
func NewExecutor(defaultTimeout time.Duration) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	return &Executor{
		client:         &http.Client{},
		defaultTimeout: defaultTimeout,
	}
}

// Execute runs one probe and interprets the response. Transport failures and
// timeouts never surface as errors; they become result=fail outcomes.
func (e *Executor) Execute(ctx context.Context, d Descriptor) Outcome {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := e.buildRequest(ctx, d)
	if err != nil {
		return failOutcome(time.Since(start), err)
	}

	resp, err := e.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		recordProbe(d.Type, domain.CheckResultFail, latency)
		return failOutcome(latency, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		body = nil
	}

	outcome := interpret(d, resp.StatusCode, body)
	outcome.Latency = latency

	recordProbe(d.Type, outcome.Result, latency)
	return outcome
}

// buildRequest issues a POST with the synthetic form payload for form
// checks and a GET for everything else.
func (e *Executor) buildRequest(ctx context.Context, d Descriptor) (*http.Request, error) {
	target := ResolveTarget(d.BaseDomain, d.Target)

	if d.Type == domain.CheckTypeForm {
		payload, err := json.Marshal(formProbeBody)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

// ResolveTarget turns a check target into an absolute URL. Relative targets
// are resolved against the site's primary domain; a bare domain gets https.
func ResolveTarget(baseDomain, target string) string {
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}

	base := baseDomain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/")

	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}

// interpret applies check-type-specific interpretation followed by the
// status-code override that holds for every check type.
func interpret(d Descriptor, status int, body []byte) Outcome {
	out := Outcome{HTTPStatus: &status}

	if d.Type.InterpretsJSONStatus() {
		out.Result, out.RawPayload = interpretJSONStatus(status, body)
	} else {
		out.Result = interpretStatus(status, d.ExpectedStatus)
	}

	// Override regardless of check type.
	switch {
	case status >= 500:
		out.Result = domain.CheckResultFail
	case status >= 400:
		out.Result = domain.CheckResultWarn
	}

	if out.Result != domain.CheckResultOK {
		msg := statusMessage(status)
		out.ErrorMessage = &msg
	}

	return out
}

// interpretJSONStatus reads a {"status": ...} health envelope. A body that
// is not such an envelope falls back to the plain HTTP status rule.
func interpretJSONStatus(status int, body []byte) (domain.CheckResult, json.RawMessage) {
	var envelope struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(body, &envelope); err == nil {
		var raw json.RawMessage
		if len(body) <= maxRawPayloadBytes {
			raw = json.RawMessage(body)
		}

		switch envelope.Status {
		case "error":
			return domain.CheckResultFail, raw
		case "degraded":
			return domain.CheckResultWarn, raw
		default:
			return domain.CheckResultOK, raw
		}
	}

	if !isSuccess(status) {
		return domain.CheckResultFail, nil
	}
	return domain.CheckResultOK, nil
}

// interpretStatus applies the plain rule: non-success fails, success with an
// unexpected status warns.
func interpretStatus(status, expected int) domain.CheckResult {
	if !isSuccess(status) {
		return domain.CheckResultFail
	}
	if expected > 0 && status != expected {
		return domain.CheckResultWarn
	}
	return domain.CheckResultOK
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func statusMessage(status int) string {
	return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
}

func failOutcome(latency time.Duration, err error) Outcome {
	msg := err.Error()
	return Outcome{
		Result:       domain.CheckResultFail,
		Latency:      latency,
		ErrorMessage: &msg,
	}
}
