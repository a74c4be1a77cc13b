package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// GenericMessage is shown when the backend gave no usable message
const GenericMessage = "Network error. Please check your connection and try again."

// Kind classifies a failed call
type Kind string

const (
	// KindValidation is a user-correctable 4xx, possibly with field messages
	KindValidation Kind = "validation"
	// KindAuth is 401/403: bad credentials, missing rights or an expired session
	KindAuth Kind = "auth"
	// KindNetwork means no response was received (including timeouts)
	KindNetwork Kind = "network"
	// KindServer is a 5xx backend fault
	KindServer Kind = "server"
)

// Sentinels for errors.Is. Every *Error matches exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authorization error")
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
)

// Error is a failed API call
type Error struct {
	Kind    Kind
	Status  int               // 0 for KindNetwork
	Message string            // human readable, never empty
	Fields  map[string]string // field-level messages, passed through verbatim
	Body    []byte            // raw response body
	Cause   error             // transport error for KindNetwork
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for e.Kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// FieldSummary joins field messages in a stable order
func (e *Error) FieldSummary() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Message extracts a display message from any error, falling back to GenericMessage
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return GenericMessage
}

// KindOf maps a status code to its Kind
func KindOf(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// errorPayload covers the shapes backends use for failures:
// {"message": ...}, {"error": ...} and an "errors" object or array.
type errorPayload struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

// NewStatusError builds the Error for a non-2xx response
func NewStatusError(status int, body []byte) *Error {
	e := &Error{
		Kind:    KindOf(status),
		Status:  status,
		Message: GenericMessage,
		Body:    body,
	}

	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return e
	}
	switch {
	case p.Message != "":
		e.Message = p.Message
	case p.Error != "":
		e.Message = p.Error
	}
	e.Fields = parseFields(p.Errors)
	return e
}

// NewNetworkError wraps a transport failure
func NewNetworkError(cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: GenericMessage,
		Cause:   cause,
	}
}

func parseFields(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	// {"email": "taken"} or {"email": {"message": "taken"}}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		fields := make(map[string]string, len(obj))
		for k, v := range obj {
			var s string
			if json.Unmarshal(v, &s) == nil {
				fields[k] = s
				continue
			}
			var m struct {
				Message string `json:"message"`
				Msg     string `json:"msg"`
			}
			if json.Unmarshal(v, &m) == nil {
				fields[k] = firstNonEmpty(m.Message, m.Msg)
			}
		}
		return fields
	}

	// [{"path": "email", "msg": "taken"}]
	var list []struct {
		Path    string `json:"path"`
		Param   string `json:"param"`
		Field   string `json:"field"`
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		fields := make(map[string]string, len(list))
		for _, item := range list {
			key := firstNonEmpty(item.Path, item.Param, item.Field)
			if key == "" {
				continue
			}
			fields[key] = firstNonEmpty(item.Msg, item.Message)
		}
		return fields
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
