package candidatesrv

import (
	"context"
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
)

const (
	defaultSimilarLimit = 10
	maxSimilarLimit     = 50
)

// QueryService provides the read operations behind the query API
type QueryService struct {
	repo     candidate.Repository
	vectors  candidate.VectorIndex
	embedder candidate.Embedder
}

// NewQueryService creates a query service. vectors and embedder may be nil,
// in which case similarity search is unavailable.
func NewQueryService(
	repo candidate.Repository,
	vectors candidate.VectorIndex,
	embedder candidate.Embedder,
) *QueryService {
	return &QueryService{
		repo:     repo,
		vectors:  vectors,
		embedder: embedder,
	}
}

// GetAll returns every stored record
func (s *QueryService) GetAll(ctx context.Context) (*candidate.CandidateListResponse, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := candidate.NewCandidateListResponse(items)
	return &resp, nil
}

// Search matches records by first and/or last name
func (s *QueryService) Search(ctx context.Context, req candidate.SearchCandidatesRequest) (*candidate.CandidateListResponse, error) {
	req = req.Normalize()
	if req.IsEmpty() {
		return nil, candidate.ErrSearchCriteriaRequired()
	}

	items, err := s.repo.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := candidate.NewCandidateListResponse(items)
	return &resp, nil
}

// GetByID retrieves a record by storage id
func (s *QueryService) GetByID(ctx context.Context, id kernel.CandidateID) (*candidate.CandidateResponse, error) {
	if id.IsEmpty() {
		return nil, candidate.ErrInvalidRequest().WithDetail("field", "id")
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := c.ToResponse()
	return &resp, nil
}

// Similar ranks records whose CV is closest to the query text
func (s *QueryService) Similar(ctx context.Context, req candidate.SimilarCandidatesRequest) ([]candidate.ScoredCandidate, error) {
	if s.vectors == nil || s.embedder == nil {
		return nil, candidate.ErrVectorUnsupported()
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, candidate.ErrInvalidRequest().WithDetail("field", "q")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
	}
	return s.vectors.Similar(ctx, vec, limit)
}

// Count returns the number of stored records
func (s *QueryService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Health reports whether the store is reachable
func (s *QueryService) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
	}
	return nil
}
