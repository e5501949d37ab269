package candidateinfra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Abraxas-365/applyflow/pkg/fsx"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
)

const (
	defaultFetchTimeout = 60 * time.Second
	maxDocumentSize     = 50 << 20
)

type fetcherConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	keepFiles  bool
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*fetcherConfig)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(cfg *fetcherConfig) { cfg.httpClient = c }
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) FetcherOption {
	return func(cfg *fetcherConfig) { cfg.timeout = d }
}

// WithKeepFiles leaves spooled files in place after release.
func WithKeepFiles(keep bool) FetcherOption {
	return func(cfg *fetcherConfig) { cfg.keepFiles = keep }
}

// HTTPFetcher downloads public documents and spools them locally. It does
// not retry; a timeout, transport error or non-2xx status is a failure.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	keep    bool
	spool   fsx.FileSystem
}

func NewHTTPFetcher(spool fsx.FileSystem, opts ...FetcherOption) *HTTPFetcher {
	cfg := fetcherConfig{timeout: defaultFetchTimeout}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}
	return &HTTPFetcher{
		client:  cfg.httpClient,
		timeout: cfg.timeout,
		keep:    cfg.keepFiles,
		spool:   spool,
	}
}

var _ candidate.Fetcher = (*HTTPFetcher)(nil)

func (f *HTTPFetcher) Fetch(ctx context.Context, url, destination string) (*candidate.FetchedDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeFetchFailed, err).WithDetail("url", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeFetchFailed, err).WithDetail("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, candidate.ErrFetchFailed().
			WithDetail("url", url).
			WithDetail("status", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeFetchFailed, err).WithDetail("url", url)
	}
	if len(data) > maxDocumentSize {
		return nil, candidate.ErrFetchFailed().
			WithDetail("url", url).
			WithDetail("reason", fmt.Sprintf("document exceeds %d bytes", maxDocumentSize))
	}

	return spoolDocument(ctx, f.spool, url, destination, resp.Header.Get("Content-Type"), data)
}

func (f *HTTPFetcher) Release(ctx context.Context, doc *candidate.FetchedDocument) error {
	return releaseDocument(ctx, f.spool, f.keep, doc)
}

// StorageFetcher reads documents straight from the bucket through an
// S3-compatible API, for buckets that are not public. URLs outside the
// bucket fall back to the HTTP fetcher.
type StorageFetcher struct {
	objects  fsx.FileReader
	resolver *candidate.Resolver
	fallback *HTTPFetcher
}

func NewStorageFetcher(objects fsx.FileReader, resolver *candidate.Resolver, fallback *HTTPFetcher) *StorageFetcher {
	return &StorageFetcher{objects: objects, resolver: resolver, fallback: fallback}
}

var _ candidate.Fetcher = (*StorageFetcher)(nil)

func (f *StorageFetcher) Fetch(ctx context.Context, url, destination string) (*candidate.FetchedDocument, error) {
	key, ok := f.resolver.ObjectKey(url)
	if !ok {
		return f.fallback.Fetch(ctx, url, destination)
	}

	ctx, cancel := context.WithTimeout(ctx, f.fallback.timeout)
	defer cancel()

	data, err := f.objects.ReadFile(ctx, key)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeFetchFailed, err).
			WithDetail("url", url).
			WithDetail("key", key)
	}
	return spoolDocument(ctx, f.fallback.spool, url, destination, http.DetectContentType(data), data)
}

func (f *StorageFetcher) Release(ctx context.Context, doc *candidate.FetchedDocument) error {
	return f.fallback.Release(ctx, doc)
}

func spoolDocument(ctx context.Context, spool fsx.FileSystem, url, destination, contentType string, data []byte) (*candidate.FetchedDocument, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if err := spool.WriteFile(ctx, destination, data); err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeFetchFailed, err).
			WithDetail("url", url).
			WithDetail("destination", destination)
	}
	return &candidate.FetchedDocument{
		URL:         url,
		Path:        destination,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func releaseDocument(ctx context.Context, spool fsx.FileSystem, keep bool, doc *candidate.FetchedDocument) error {
	if doc == nil || keep || doc.Path == "" {
		return nil
	}
	if err := spool.DeleteFile(ctx, doc.Path); err != nil {
		logx.Warnf("Failed to remove spooled file %s: %v", doc.Path, err)
		return err
	}
	return nil
}
