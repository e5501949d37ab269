package candidate

import (
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
)

// SearchCandidatesRequest - DTO for name search
type SearchCandidatesRequest struct {
	FirstName string `json:"first_name,omitempty" query:"first_name"`
	LastName  string `json:"last_name,omitempty" query:"last_name"`
}

// Normalize trims both terms.
func (r SearchCandidatesRequest) Normalize() SearchCandidatesRequest {
	return SearchCandidatesRequest{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
	}
}

// IsEmpty reports whether no criterion is set.
func (r SearchCandidatesRequest) IsEmpty() bool {
	n := r.Normalize()
	return n.FirstName == "" && n.LastName == ""
}

// SimilarCandidatesRequest - DTO for semantic lookup against CV text
type SimilarCandidatesRequest struct {
	Query string `json:"q" query:"q"`
	Limit int    `json:"limit" query:"limit"`
}

// FetchedDocument is a document pulled into transient storage.
type FetchedDocument struct {
	Kind        DocumentKind
	URL         string
	Path        string
	ContentType string
	Data        []byte
}

// ScoredCandidate pairs a record with its similarity distance.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	Distance  float64   `json:"distance"`
}

// CandidateResponse - DTO returned by the query API
type CandidateResponse struct {
	ID            kernel.CandidateID   `json:"_id"`
	ApplicationID kernel.ApplicationID `json:"application_id,omitempty"`
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Offer         Offer                `json:"offre"`
	Answers       MTP                  `json:"reponses_mtp"`
	Documents     DocumentSet          `json:"documents"`
}

func (c *Candidate) ToResponse() CandidateResponse {
	return CandidateResponse{
		ID:            c.ID,
		ApplicationID: c.ApplicationID,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Offer:         c.Offer,
		Answers:       c.Answers,
		Documents:     c.Documents,
	}
}

// CandidateListResponse - DTO for list/search results
type CandidateListResponse struct {
	Count int                 `json:"count"`
	Items []CandidateResponse `json:"items"`
}

func NewCandidateListResponse(items []Candidate) CandidateListResponse {
	out := make([]CandidateResponse, 0, len(items))
	for i := range items {
		out = append(out, items[i].ToResponse())
	}
	return CandidateListResponse{Count: len(out), Items: out}
}
