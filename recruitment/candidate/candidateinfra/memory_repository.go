package candidateinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process store used for dry runs (memory://)
// and tests. It honours the same key and duplicate semantics as the
// persistent adapters.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[kernel.CandidateID]*candidate.Candidate
	order   []kernel.CandidateID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[kernel.CandidateID]*candidate.Candidate)}
}

var (
	_ candidate.Repository  = (*MemoryRepository)(nil)
	_ candidate.VectorIndex = (*MemoryRepository)(nil)
)

func (r *MemoryRepository) findKey(k candidate.Key) (kernel.CandidateID, bool) {
	for _, id := range r.order {
		c := r.records[id]
		if k.ByApplicationID() {
			if c.ApplicationID == k.ApplicationID {
				return id, true
			}
			continue
		}
		if c.FirstName == k.FirstName && c.LastName == k.LastName {
			return id, true
		}
	}
	return "", false
}

func clone(c *candidate.Candidate) *candidate.Candidate {
	cp := *c
	cp.Offer.Questions = cloneMTP(c.Offer.Questions)
	cp.Answers = cloneMTP(c.Answers)
	cp.Documents = candidate.DocumentSet{}
	for _, k := range candidate.DocumentKinds {
		if text, ok := c.Documents.Get(k); ok {
			cp.Documents.Set(k, text)
		}
	}
	if c.Embedding != nil {
		cp.Embedding = append(kernel.Embedding(nil), c.Embedding...)
	}
	return &cp
}

func cloneMTP(m candidate.MTP) candidate.MTP {
	return candidate.MTP{
		Professional: copyStrings(m.Professional),
		Talent:       copyStrings(m.Talent),
		Paradigm:     copyStrings(m.Paradigm),
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (r *MemoryRepository) Upsert(ctx context.Context, c *candidate.Candidate, applicationID kernel.ApplicationID) (kernel.CandidateID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !applicationID.IsEmpty() {
		c.ApplicationID = applicationID
	}
	c.Touch()

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.findKey(c.Key())
	if !ok {
		id = kernel.CandidateID(uuid.New().String())
		r.order = append(r.order, id)
	}
	c.ID = id
	stored := clone(c)
	if ok && stored.ApplicationID.IsEmpty() {
		stored.ApplicationID = r.records[id].ApplicationID
	}
	r.records[id] = stored
	return id, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id kernel.CandidateID) (*candidate.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.records[id]
	if !ok {
		return nil, candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	return clone(c), nil
}

func (r *MemoryRepository) FindByApplicationID(_ context.Context, id kernel.ApplicationID) (*candidate.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cid, ok := r.findKey(candidate.Key{ApplicationID: id}); ok {
		return clone(r.records[cid]), nil
	}
	return nil, candidate.ErrCandidateNotFound().WithDetail("application_id", id.String())
}

func (r *MemoryRepository) ExistsByApplicationID(_ context.Context, id kernel.ApplicationID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.findKey(candidate.Key{ApplicationID: id})
	return ok, nil
}

// InsertRaw decodes doc into a record. An existing _id or application_id
// is a duplicate key.
func (r *MemoryRepository) InsertRaw(_ context.Context, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", "encode")
	}
	c := candidate.New()
	if err := json.Unmarshal(data, c); err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", "decode")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID.IsEmpty() {
		c.ID = kernel.CandidateID(uuid.New().String())
	}
	if _, exists := r.records[c.ID]; exists {
		return candidate.ErrDuplicateKey().WithDetail("_id", c.ID.String())
	}
	if !c.ApplicationID.IsEmpty() {
		if _, exists := r.findKey(candidate.Key{ApplicationID: c.ApplicationID}); exists {
			return candidate.ErrDuplicateKey().WithDetail("application_id", c.ApplicationID.String())
		}
	}
	r.records[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records)), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]candidate.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]candidate.Candidate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *clone(r.records[id]))
	}
	return out, nil
}

func (r *MemoryRepository) Search(_ context.Context, req candidate.SearchCandidatesRequest) ([]candidate.Candidate, error) {
	req = req.Normalize()
	if req.IsEmpty() {
		return nil, candidate.ErrSearchCriteriaRequired()
	}
	first, last := strings.ToLower(req.FirstName), strings.ToLower(req.LastName)

	r.mu.Lock()
	defer r.mu.Unlock()
	out := []candidate.Candidate{}
	for _, id := range r.order {
		c := r.records[id]
		if first != "" && !strings.Contains(strings.ToLower(c.FirstName), first) {
			continue
		}
		if last != "" && !strings.Contains(strings.ToLower(c.LastName), last) {
			continue
		}
		out = append(out, *clone(c))
	}
	return out, nil
}

func (r *MemoryRepository) Sample(ctx context.Context, limit int) ([]candidate.Candidate, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error { return ctx.Err() }

func (r *MemoryRepository) SaveEmbedding(_ context.Context, id kernel.CandidateID, embedding kernel.Embedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.records[id]
	if !ok {
		return candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	c.Embedding = append(kernel.Embedding(nil), embedding...)
	return nil
}

// Similar ranks by cosine distance, matching the Postgres <=> operator.
func (r *MemoryRepository) Similar(_ context.Context, embedding kernel.Embedding, limit int) ([]candidate.ScoredCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []candidate.ScoredCandidate
	for _, id := range r.order {
		c := r.records[id]
		if len(c.Embedding) == 0 {
			continue
		}
		d, err := cosineDistance(embedding, c.Embedding)
		if err != nil {
			return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
		}
		out = append(out, candidate.ScoredCandidate{Candidate: *clone(c), Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineDistance(a, b kernel.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}
