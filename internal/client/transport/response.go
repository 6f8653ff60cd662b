package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the classification every HTTP outcome is reduced to.
type Kind int

const (
	KindOK Kind = iota
	KindAuth
	KindValidation
	KindPermission
	KindNotFound
	KindNetwork
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindAuth:
		return "auth_failure"
	case KindValidation:
		return "validation_failure"
	case KindPermission:
		return "permission_failure"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network_failure"
	default:
		return "other_failure"
	}
}

// FieldError is one entry of a 422 validation payload.
type FieldError struct {
	Field   string
	Message string
	Type    string
}

// Response is a classified HTTP result. Body and Header are only meaningful
// for KindOK; Fields only for KindValidation; Message for every failure.
type Response struct {
	Kind    Kind
	Status  int
	Header  http.Header
	Body    []byte
	Fields  []FieldError
	Message string
}

func (r Response) OK() bool {
	return r.Kind == KindOK
}

// Decode unmarshals an OK body into v.
func (r Response) Decode(v any) error {
	if r.Kind != KindOK {
		return r.Err()
	}
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DecodeAs is the generic form of Response.Decode.
func DecodeAs[T any](r Response) (T, error) {
	var v T
	err := r.Decode(&v)
	return v, err
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("server unavailable")
	ErrServer       = errors.New("request failed")
)

// Error is the error form of a failed Response. It unwraps to one of the
// sentinel errors above.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindAuth:
		return ErrUnauthorized
	case KindValidation:
		return ErrValidation
	case KindPermission:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindNetwork:
		return ErrUnavailable
	default:
		return ErrServer
	}
}

// Err returns nil for OK responses and an *Error otherwise.
func (r Response) Err() error {
	if r.Kind == KindOK {
		return nil
	}
	return &Error{Kind: r.Kind, Status: r.Status, Message: r.Message, Fields: r.Fields}
}

// classify maps a received status and body to a Response.
func classify(status int, header http.Header, body []byte) Response {
	r := Response{Status: status, Header: header}

	switch {
	case status >= 200 && status < 300:
		r.Kind = KindOK
		r.Body = body
		return r
	case status == http.StatusUnauthorized:
		r.Kind = KindAuth
		r.Message = detailOr(body, "session expired or invalid credentials")
	case status == http.StatusUnprocessableEntity:
		r.Kind = KindValidation
		r.Fields, r.Message = parseValidation(body)
	case status == http.StatusForbidden:
		r.Kind = KindPermission
		r.Message = detailOr(body, "not enough permissions")
	case status == http.StatusNotFound:
		r.Kind = KindNotFound
		r.Message = detailOr(body, "not found")
	default:
		r.Kind = KindOther
		r.Message = detailOr(body, fmt.Sprintf("request failed with status %d", status))
	}
	return r
}

// detailOr returns the string "detail" field of a JSON error body, or def.
func detailOr(body []byte, def string) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return def
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err != nil || s == "" {
		return def
	}
	return s
}

type rawFieldError struct {
	Loc   []any  `json:"loc"`
	Field string `json:"field"`
	Msg   string `json:"msg"`
	Type  string `json:"type"`
}

// parseValidation accepts {"detail": X} or a bare X, where X is either a
// message string or a list of {loc|field, msg, type} entries.
func parseValidation(body []byte) ([]FieldError, string) {
	const generic = "validation failed"

	payload := json.RawMessage(body)
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Detail) > 0 {
		payload = env.Detail
	}

	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		if s == "" {
			return nil, generic
		}
		return nil, s
	}

	var raw []rawFieldError
	if err := json.Unmarshal(payload, &raw); err != nil || len(raw) == 0 {
		return nil, generic
	}

	fields := make([]FieldError, 0, len(raw))
	parts := make([]string, 0, len(raw))
	for _, fe := range raw {
		f := FieldError{Field: fe.Field, Message: fe.Msg, Type: fe.Type}
		if f.Field == "" {
			f.Field = locPath(fe.Loc)
		}
		fields = append(fields, f)
		if f.Field != "" {
			parts = append(parts, f.Field+": "+f.Message)
		} else {
			parts = append(parts, f.Message)
		}
	}
	return fields, strings.Join(parts, "; ")
}

// locPath renders ["body","atm_uid"] as "atm_uid" and ["body","items",0] as "items.0".
func locPath(loc []any) string {
	parts := make([]string, 0, len(loc))
	for i, p := range loc {
		s := fmt.Sprint(p)
		if i == 0 && (s == "body" || s == "query" || s == "path" || s == "header") && len(loc) > 1 {
			continue
		}
		if f, ok := p.(float64); ok {
			s = fmt.Sprintf("%d", int(f))
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}
