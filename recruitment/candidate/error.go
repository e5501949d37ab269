package candidate

import (
	"net/http"

	"github.com/Abraxas-365/applyflow/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("CANDIDATE")

// Error codes - Record Operations
var (
	CodeCandidateNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Candidate not found")
	CodeInvalidRecord          = ErrRegistry.Register("INVALID_RECORD", errx.TypeValidation, http.StatusBadRequest, "Source record is not a valid object")
	CodeSearchCriteriaRequired = ErrRegistry.Register("SEARCH_CRITERIA_REQUIRED", errx.TypeValidation, http.StatusBadRequest, "At least one of first_name or last_name is required")
	CodeInvalidRequest         = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid request data")
	CodeSourceInvalid          = ErrRegistry.Register("SOURCE_INVALID", errx.TypeValidation, http.StatusBadRequest, "Source file is not a list of records")
)

// Error codes - Store Operations
var (
	CodeDuplicateKey      = ErrRegistry.Register("DUPLICATE_KEY", errx.TypeConflict, http.StatusConflict, "Record with this key already exists")
	CodeThrottled         = ErrRegistry.Register("THROTTLED", errx.TypeUnavailable, http.StatusTooManyRequests, "Store is rate limiting requests")
	CodeStoreFailed       = ErrRegistry.Register("STORE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Store operation failed")
	CodeStoreUnavailable  = ErrRegistry.Register("STORE_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Store is unreachable")
	CodeSearchFailed      = ErrRegistry.Register("SEARCH_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Search operation failed")
	CodeVectorUnsupported = ErrRegistry.Register("VECTOR_UNSUPPORTED", errx.TypeBusiness, http.StatusNotImplemented, "Store does not support similarity search")
)

// Error codes - Document Operations
var (
	CodeFetchFailed           = ErrRegistry.Register("FETCH_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to fetch document")
	CodeExtractionFailed      = ErrRegistry.Register("EXTRACTION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Text extraction failed")
	CodeDocumentUnreadable    = ErrRegistry.Register("DOCUMENT_UNREADABLE", errx.TypeValidation, http.StatusUnprocessableEntity, "Document cannot be read by the extraction service")
	CodeRecognizerUnavailable = ErrRegistry.Register("RECOGNIZER_UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Text extraction service is unreachable")
)

// Helper functions - Record Operations
func ErrCandidateNotFound() *errx.Error {
	return ErrRegistry.New(CodeCandidateNotFound)
}

func ErrInvalidRecord() *errx.Error {
	return ErrRegistry.New(CodeInvalidRecord)
}

func ErrSearchCriteriaRequired() *errx.Error {
	return ErrRegistry.New(CodeSearchCriteriaRequired)
}

func ErrInvalidRequest() *errx.Error {
	return ErrRegistry.New(CodeInvalidRequest)
}

func ErrSourceInvalid() *errx.Error {
	return ErrRegistry.New(CodeSourceInvalid)
}

// Helper functions - Store Operations
func ErrDuplicateKey() *errx.Error {
	return ErrRegistry.New(CodeDuplicateKey)
}

func ErrThrottled() *errx.Error {
	return ErrRegistry.New(CodeThrottled)
}

func ErrStoreFailed() *errx.Error {
	return ErrRegistry.New(CodeStoreFailed)
}

func ErrStoreUnavailable() *errx.Error {
	return ErrRegistry.New(CodeStoreUnavailable)
}

func ErrSearchFailed() *errx.Error {
	return ErrRegistry.New(CodeSearchFailed)
}

func ErrVectorUnsupported() *errx.Error {
	return ErrRegistry.New(CodeVectorUnsupported)
}

// Helper functions - Document Operations
func ErrFetchFailed() *errx.Error {
	return ErrRegistry.New(CodeFetchFailed)
}

func ErrExtractionFailed() *errx.Error {
	return ErrRegistry.New(CodeExtractionFailed)
}

func ErrDocumentUnreadable() *errx.Error {
	return ErrRegistry.New(CodeDocumentUnreadable)
}

func ErrRecognizerUnavailable() *errx.Error {
	return ErrRegistry.New(CodeRecognizerUnavailable)
}

// IsDuplicateKey reports whether err is a duplicate-key outcome.
func IsDuplicateKey(err error) bool { return errx.IsCode(err, CodeDuplicateKey) }

// IsThrottled reports whether err is a rate-limiting signal from the store.
func IsThrottled(err error) bool { return errx.IsCode(err, CodeThrottled) }

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errx.IsCode(err, CodeCandidateNotFound) }
