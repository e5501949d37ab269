package candidateinfra

import (
	"errors"
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

// Cosmos DB for MongoDB reports request-rate throttling as command error
// 16500 ("TooManyRequests"); the HTTP surfaces use 429.
const cosmosThrottleCode = 16500

var throttleMarkers = []string{"429", "TooManyRequests", "Request rate is large", "16500"}

// isThrottleSignal inspects a raw driver error for rate limiting.
func isThrottleSignal(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == cosmosThrottleCode {
		return true
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == cosmosThrottleCode {
				return true
			}
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// too_many_connections
		return pqErr.Code == "53300"
	}

	msg := err.Error()
	for _, m := range throttleMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// classify converts a backend error into the domain taxonomy: throttling,
// duplicate key, or a generic store failure carrying the cause.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := errx.As(err); ok {
		return err
	}
	switch {
	// Duplicate-key messages echo the colliding key, which may contain a
	// throttle marker, so they are matched first.
	case mongo.IsDuplicateKeyError(err), isPQUniqueViolation(err):
		return candidate.ErrRegistry.NewWithCause(candidate.CodeDuplicateKey, err).WithDetail("op", op)
	case isThrottleSignal(err):
		return candidate.ErrRegistry.NewWithCause(candidate.CodeThrottled, err).WithDetail("op", op)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err).WithDetail("op", op)
	default:
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", op)
	}
}

func isPQUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
