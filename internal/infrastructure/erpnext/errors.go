package erpnext

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/erp/bff/internal/domain/shared"
)

// Sentinel errors. Every *Error unwraps to exactly one of them.
var (
	ErrNotFound         = errors.New("erpnext: not found")
	ErrUnauthorized     = errors.New("erpnext: unauthorized")
	ErrForbidden        = errors.New("erpnext: forbidden")
	ErrConflict         = errors.New("erpnext: conflict")
	ErrValidation       = errors.New("erpnext: validation failed")
	ErrUnavailable      = errors.New("erpnext: unavailable")
	ErrInvalidResponse  = errors.New("erpnext: invalid response")
	ErrResponseTooLarge = errors.New("erpnext: response too large")
	ErrUpstream         = errors.New("erpnext: request failed")
)

// Error is a failed ERPNext call
type Error struct {
	Status  int    // HTTP status, 0 for transport errors
	ExcType string // Frappe exception class, e.g. ValidationError
	Message string
	kind    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("erpnext")
	if e.Status != 0 {
		fmt.Fprintf(&b, " %d", e.Status)
	}
	if e.ExcType != "" {
		b.WriteString(" ")
		b.WriteString(e.ExcType)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the sentinel describing the failure class
func (e *Error) Unwrap() error {
	return e.kind
}

var excTypeKinds = map[string]error{
	"AuthenticationError":          ErrUnauthorized,
	"SessionExpired":               ErrUnauthorized,
	"PermissionError":              ErrForbidden,
	"DoesNotExistError":            ErrNotFound,
	"PageDoesNotExistError":        ErrNotFound,
	"DuplicateEntryError":          ErrConflict,
	"UniqueValidationError":        ErrConflict,
	"TimestampMismatchError":       ErrConflict,
	"ValidationError":              ErrValidation,
	"MandatoryError":               ErrValidation,
	"LinkValidationError":          ErrValidation,
	"InvalidStatusError":           ErrValidation,
	"DataError":                    ErrValidation,
	"CannotChangeConstantError":    ErrValidation,
	"UpdateAfterSubmitError":       ErrValidation,
	"DocstatusTransitionError":     ErrValidation,
	"CharacterLengthExceededError": ErrValidation,
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusExpectationFailed, status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrUnavailable
	default:
		return ErrUpstream
	}
}

type errorBody struct {
	ExcType        string          `json:"exc_type"`
	Exception      string          `json:"exception"`
	ServerMessages string          `json:"_server_messages"`
	Message        json.RawMessage `json:"message"`
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

func cleanMessage(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

// parseError decodes a Frappe error body. HTML error pages fall back to the status text.
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		e.ExcType = eb.ExcType
		e.Message = serverMessage(eb.ServerMessages)
		if e.Message == "" && eb.Exception != "" {
			msg := eb.Exception
			if i := strings.Index(msg, ": "); i >= 0 {
				msg = msg[i+2:]
			}
			e.Message = cleanMessage(msg)
			if e.ExcType == "" {
				e.ExcType = excTypeFromException(eb.Exception)
			}
		}
		if e.Message == "" && len(eb.Message) > 0 {
			var s string
			if json.Unmarshal(eb.Message, &s) == nil {
				e.Message = cleanMessage(s)
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	if k, ok := excTypeKinds[e.ExcType]; ok {
		e.kind = k
	} else {
		e.kind = kindForStatus(status)
	}
	return e
}

// serverMessage extracts the first message of the JSON-in-JSON _server_messages field
func serverMessage(raw string) string {
	if raw == "" {
		return ""
	}
	var items []string
	if json.Unmarshal([]byte(raw), &items) != nil {
		return ""
	}
	for _, item := range items {
		var m struct {
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(item), &m) == nil && m.Message != "" {
			return cleanMessage(m.Message)
		}
		if item != "" && !strings.HasPrefix(item, "{") {
			return cleanMessage(item)
		}
	}
	return ""
}

// excTypeFromException reads "frappe.exceptions.ValidationError: ..." -> ValidationError
func excTypeFromException(exc string) string {
	head := exc
	if i := strings.Index(head, ":"); i >= 0 {
		head = head[:i]
	}
	if i := strings.LastIndex(head, "."); i >= 0 {
		head = head[i+1:]
	}
	return strings.TrimSpace(head)
}

func transportError(err error) *Error {
	return &Error{Message: err.Error(), kind: ErrUnavailable}
}

// AsDomainError translates upstream failures into domain errors so handlers
// map them like any other. Non-erpnext errors are returned unchanged.
func AsDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	var ue *Error
	if !errors.As(err, &ue) {
		if errors.Is(err, ErrInvalidResponse) {
			return shared.Wrap(shared.ErrUpstreamUnavailable, "Unexpected response from ERPNext", err)
		}
		return err
	}
	switch {
	case errors.Is(ue, ErrNotFound):
		return shared.Wrap(shared.ErrNotFound, ue.Message, err)
	case errors.Is(ue, ErrUnauthorized):
		return shared.Wrap(shared.ErrUnauthorized, ue.Message, err)
	case errors.Is(ue, ErrForbidden):
		return shared.Wrap(shared.ErrForbidden, ue.Message, err)
	case errors.Is(ue, ErrConflict):
		return shared.Wrap(shared.ErrConflict, ue.Message, err)
	case errors.Is(ue, ErrValidation):
		return shared.Wrap(shared.ErrInvalidInput, ue.Message, err)
	default:
		return shared.Wrap(shared.ErrUpstreamUnavailable, "ERPNext request failed", err)
	}
}
