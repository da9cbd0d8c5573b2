package protocol

import "encoding/json"

// ProtocolVersion is the wire protocol version reported by /health and
// the health RPC method.
const ProtocolVersion = 1

// Request is a single RPC call sent over the WebSocket connection.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers a Request with the same ID. Exactly one of Result
// or Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail mirrors a JSON-RPC-style error object.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFrame is a server-pushed, unsolicited message (a notification,
// a cron fire, a health ping) distinguished from Response by having no
// ID that answers a prior Request.
type EventFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals payload into an EventFrame, swallowing a marshal
// error into an empty payload since every payload type used by this
// gateway is a plain struct that always marshals cleanly.
func NewEvent(name string, payload any) *EventFrame {
	data, _ := json.Marshal(payload)
	return &EventFrame{Event: name, Payload: data}
}

func NewErrorResponse(id, code, message string) Response {
	return Response{ID: id, Error: &ErrorDetail{Code: code, Message: message}}
}

func NewResultResponse(id string, result any) Response {
	data, _ := json.Marshal(result)
	return Response{ID: id, Result: data}
}
