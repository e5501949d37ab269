package errx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Type classifies an error for transport mapping and recovery decisions.
type Type string

const (
	TypeValidation    Type = "VALIDATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeInternal      Type = "INTERNAL"
	TypeBusiness      Type = "BUSINESS"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeExternal      Type = "EXTERNAL"
	TypeUnavailable   Type = "UNAVAILABLE"
)

// Code is a fully qualified error code, e.g. "CANDIDATURE.NOT_FOUND".
type Code string

func (c Code) String() string { return string(c) }

// Error is the structured error carried across package boundaries.
type Error struct {
	Code       Code           `json:"code"`
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e with key set to value.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := e.clone()
	cp.Details[key] = value
	return cp
}

// WithDetails returns a copy of e with all entries merged into its details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := e.clone()
	for k, v := range details {
		cp.Details[k] = v
	}
	return cp
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := e.clone()
	cp.Cause = cause
	return cp
}

func (e *Error) clone() *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	return &cp
}

// ToHTTPResponse renders the error as a JSON-ready body.
func (e *Error) ToHTTPResponse() map[string]any {
	resp := map[string]any{
		"error":   e.Message,
		"type":    e.Type,
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		resp["details"] = e.Details
	}
	return resp
}

type definition struct {
	typ     Type
	status  int
	message string
}

// Registry namespaces error codes for one bounded context.
type Registry struct {
	prefix string
	mu     sync.RWMutex
	defs   map[Code]definition
}

func NewRegistry(prefix string) *Registry {
	return &Registry{prefix: prefix, defs: make(map[Code]definition)}
}

// Register declares a code and returns its qualified form.
func (r *Registry) Register(code string, typ Type, httpStatus int, message string) Code {
	full := Code(r.prefix + "." + code)
	r.mu.Lock()
	r.defs[full] = definition{typ: typ, status: httpStatus, message: message}
	r.mu.Unlock()
	return full
}

func (r *Registry) New(code Code) *Error {
	r.mu.RLock()
	def, ok := r.defs[code]
	r.mu.RUnlock()
	if !ok {
		def = definition{typ: TypeInternal, status: http.StatusInternalServerError, message: "unregistered error code"}
	}
	return &Error{
		Code:       code,
		Type:       def.typ,
		Message:    def.message,
		HTTPStatus: def.status,
		Details:    map[string]any{},
	}
}

func (r *Registry) NewWithCause(code Code, cause error) *Error {
	e := r.New(code)
	e.Cause = cause
	return e
}

// Wrap turns an arbitrary error into an *Error of the given type.
func Wrap(err error, message string, typ Type) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       Code(typ),
		Type:       typ,
		Message:    message,
		HTTPStatus: statusFor(typ),
		Details:    map[string]any{},
		Cause:      err,
	}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether any *Error in err's chain carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost *Error, or TypeInternal.
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

func statusFor(typ Type) int {
	switch typ {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeBusiness:
		return http.StatusUnprocessableEntity
	case TypeAuthorization:
		return http.StatusForbidden
	case TypeExternal:
		return http.StatusBadGateway
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
