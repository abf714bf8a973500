package serve

import (
	"encoding/json"

	"github.com/blackarrowsec/wap/pkg/types"
)

// Request represents an incoming NDJSON request.
type Request struct {
	Type    string          `json:"type"` // "fingerprint" | "fingerprint_batch" | "close"
	Payload json.RawMessage `json:"payload"`
}

// FingerprintPayload is the payload for "fingerprint" requests. The caller
// ships an already-fetched response; body may be sent as plain text or
// base64 (body_b64 wins when both are present).
type FingerprintPayload struct {
	URL        string              `json:"url"`
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Cookies    map[string]string   `json:"cookies"`
	Body       string              `json:"body"`
	BodyB64    string              `json:"body_b64"`
}

// FingerprintBatchPayload is the payload for "fingerprint_batch" requests.
type FingerprintBatchPayload struct {
	Items []FingerprintPayload `json:"items"`
}

// FingerprintResult is the data field of a "fingerprint" response.
type FingerprintResult struct {
	URL          string            `json:"url,omitempty"`
	Technologies []types.TechMatch `json:"technologies"`
}

// Response represents an outgoing NDJSON response.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"` // "ready" | "fingerprint" | "fingerprint_batch" | "error"
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadyData is the data field for "ready" responses.
type ReadyData struct {
	Version      string `json:"version"`
	Technologies int    `json:"technologies"`
}
