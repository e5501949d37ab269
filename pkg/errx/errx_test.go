package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var testRegistry = NewRegistry("TEST")

var (
	codeMissing = testRegistry.Register("MISSING", TypeNotFound, http.StatusNotFound, "thing not found")
	codeBroken  = testRegistry.Register("BROKEN", TypeInternal, http.StatusInternalServerError, "thing broke")
)

func TestRegistryNew(t *testing.T) {
	e := testRegistry.New(codeMissing)
	if e.Code != "TEST.MISSING" {
		t.Fatalf("code = %q", e.Code)
	}
	if e.HTTPStatus != http.StatusNotFound || e.Type != TypeNotFound {
		t.Fatalf("unexpected status/type: %d %s", e.HTTPStatus, e.Type)
	}
}

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	base := testRegistry.New(codeMissing)
	withID := base.WithDetail("id", "42")
	if _, ok := base.Details["id"]; ok {
		t.Fatal("base error was mutated")
	}
	if withID.Details["id"] != "42" {
		t.Fatalf("detail missing: %v", withID.Details)
	}
}

func TestIsCodeFollowsCauseChain(t *testing.T) {
	inner := testRegistry.New(codeMissing)
	outer := testRegistry.NewWithCause(codeBroken, fmt.Errorf("lookup: %w", inner))

	if !IsCode(outer, codeBroken) {
		t.Error("outer code not matched")
	}
	if !IsCode(outer, codeMissing) {
		t.Error("inner code not matched through cause")
	}
	if IsCode(errors.New("plain"), codeMissing) {
		t.Error("plain error matched")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", testRegistry.New(codeMissing).WithDetail("k", "v"))
	if !errors.Is(err, testRegistry.New(codeMissing)) {
		t.Fatal("errors.Is did not match same code")
	}
	if errors.Is(err, testRegistry.New(codeBroken)) {
		t.Fatal("errors.Is matched a different code")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x", TypeInternal) != nil {
		t.Fatal("wrapping nil should return nil")
	}
	cause := errors.New("disk full")
	e := Wrap(cause, "write failed", TypeExternal)
	if !errors.Is(e, cause) {
		t.Fatal("cause not reachable")
	}
	if e.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("status = %d", e.HTTPStatus)
	}
}
