package candidateinfra

import (
	"context"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
)

// Analyzer is the shape shared by the OCR clients in internal/ai.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, contentType string) (string, error)
}

// DocumentRecognizer adapts an Analyzer to the domain, translating its
// failures into extraction error codes.
type DocumentRecognizer struct {
	analyzer Analyzer
}

func NewDocumentRecognizer(a Analyzer) *DocumentRecognizer {
	return &DocumentRecognizer{analyzer: a}
}

var _ candidate.TextRecognizer = (*DocumentRecognizer)(nil)

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping verifies the analysis service can be reached. Analyzers without a
// health check are assumed reachable.
func (r *DocumentRecognizer) Ping(ctx context.Context) error {
	p, ok := r.analyzer.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeRecognizerUnavailable, err)
	}
	return nil
}

func (r *DocumentRecognizer) Recognize(ctx context.Context, doc *candidate.FetchedDocument) (string, error) {
	text, err := r.analyzer.Analyze(ctx, doc.Data, doc.ContentType)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	var code errx.Code
	switch errx.TypeOf(err) {
	case errx.TypeValidation:
		code = candidate.CodeDocumentUnreadable
	case errx.TypeUnavailable:
		code = candidate.CodeRecognizerUnavailable
	default:
		code = candidate.CodeExtractionFailed
	}
	return "", candidate.ErrRegistry.NewWithCause(code, err).
		WithDetail("kind", string(doc.Kind)).
		WithDetail("url", doc.URL)
}
