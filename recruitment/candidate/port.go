package candidate

import (
	"context"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
)

type Repository interface {
	// Upsert replaces the record matching its key, or inserts it. A non-empty
	// applicationID is set on the record and becomes the key.
	Upsert(ctx context.Context, c *Candidate, applicationID kernel.ApplicationID) (kernel.CandidateID, error)

	// GetByID retrieves a record by its storage identifier
	GetByID(ctx context.Context, id kernel.CandidateID) (*Candidate, error)

	// FindByApplicationID retrieves a record by external application id
	FindByApplicationID(ctx context.Context, id kernel.ApplicationID) (*Candidate, error)

	// ExistsByApplicationID checks whether a record with the external id is stored
	ExistsByApplicationID(ctx context.Context, id kernel.ApplicationID) (bool, error)

	// InsertRaw stores a pre-built document as-is. A key collision returns ErrDuplicateKey.
	InsertRaw(ctx context.Context, doc map[string]any) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)

	// List returns every stored record
	List(ctx context.Context) ([]Candidate, error)

	// Search matches first and/or last name, case-insensitive substring
	Search(ctx context.Context, req SearchCandidatesRequest) ([]Candidate, error)

	// Sample returns up to limit records for inspection
	Sample(ctx context.Context, limit int) ([]Candidate, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// VectorIndex is implemented by stores that keep CV embeddings.
type VectorIndex interface {
	SaveEmbedding(ctx context.Context, id kernel.CandidateID, embedding kernel.Embedding) error
	Similar(ctx context.Context, embedding kernel.Embedding, limit int) ([]ScoredCandidate, error)
}

// Fetcher retrieves document bytes into transient local storage.
type Fetcher interface {
	Fetch(ctx context.Context, url, destination string) (*FetchedDocument, error)
	Release(ctx context.Context, doc *FetchedDocument) error
}

// TextRecognizer turns document bytes into plain text.
type TextRecognizer interface {
	Recognize(ctx context.Context, doc *FetchedDocument) (string, error)
}

// TextCache memoises recognized text by content hash.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

// Embedder produces a vector for semantic lookup.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}
