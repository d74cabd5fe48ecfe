package supabase

import (
	"encoding/json"
	"fmt"
)

// UpstreamError is returned when PostgREST, RPC or Auth answers with a non-2xx status.
type UpstreamError struct {
	Operation string
	Status    int
	Body      json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("supabase %s failed: status %d: %s", e.Operation, e.Status, string(e.Body))
}

func (e *UpstreamError) StatusCode() int { return e.Status }

// Response is an upstream reply handed back to the caller undecided: user-token reads let
// the handler choose how to translate RLS-driven 4xx answers.
type Response struct {
	Status int
	Body   json.RawMessage
}

func (r *Response) OK() bool {
	return r != nil && r.Status < 400
}

// normalizeBody keeps valid JSON as-is and wraps anything else as {"raw": text}.
func normalizeBody(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(b)})
	return wrapped
}

// DecodeList decodes a JSON array of objects, returning an empty list for anything that
// is not one.
func DecodeList(body json.RawMessage) []map[string]any {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil || rows == nil {
		return []map[string]any{}
	}
	return rows
}
