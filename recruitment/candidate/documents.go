package candidate

import (
	"strings"
)

// LocationMap maps each resolvable document kind to a fetch URL. It is
// rebuilt for every record and never persisted.
type LocationMap map[DocumentKind]string

// Kinds returns the mapped kinds in canonical order.
func (m LocationMap) Kinds() []DocumentKind {
	kinds := make([]DocumentKind, 0, len(m))
	for _, k := range DocumentKinds {
		if _, ok := m[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Resolver turns document descriptors into public storage URLs.
type Resolver struct {
	BaseURL string
	Bucket  string
}

func NewResolver(baseURL, bucket string) *Resolver {
	return &Resolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bucket:  strings.Trim(bucket, "/"),
	}
}

// PublicURL applies the storage layout rule to a relative path.
func (r *Resolver) PublicURL(relativePath string) string {
	return r.BaseURL + "/storage/v1/object/public/" + r.Bucket + "/" + strings.TrimLeft(relativePath, "/")
}

// ObjectKey is the inverse of PublicURL: it returns the bucket-relative key
// of a URL produced by this resolver.
func (r *Resolver) ObjectKey(url string) (string, bool) {
	prefix := r.BaseURL + "/storage/v1/object/public/" + r.Bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Resolve reads the record's "documents" list. Entries with an unknown
// type or no path are dropped and their labels returned; a later entry of
// the same kind replaces an earlier one.
func (r *Resolver) Resolve(raw RawRecord) (LocationMap, []string) {
	locations := LocationMap{}
	var dropped []string

	entries, _ := raw["documents"].([]any)
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			dropped = append(dropped, "<malformed>")
			continue
		}

		label := toString(entry["type"])
		kind, ok := ParseDocumentKind(label)
		if !ok {
			dropped = append(dropped, label)
			continue
		}

		if url := toString(entry["url"]); isAbsoluteURL(url) {
			locations[kind] = url
			continue
		}

		path := toString(entry["relative_path"])
		if path == "" {
			path = toString(entry["path"])
		}
		if path == "" {
			path = toString(entry["url"])
		}
		if strings.TrimLeft(path, "/") == "" {
			dropped = append(dropped, label)
			continue
		}
		locations[kind] = r.PublicURL(path)
	}
	return locations, dropped
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

var spoolNameCleaner = strings.NewReplacer(" ", "_", "/", "_", `\`, "_", "..", "_")

// SpoolName derives the transient file name for a fetched document:
// {first}_{last}_{kind}{ext}, defaulting the extension to .pdf.
func SpoolName(c *Candidate, kind DocumentKind, url string) string {
	ext := ".pdf"
	base := url
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if slash := strings.LastIndex(base, "/"); slash >= 0 {
		base = base[slash+1:]
	}
	if dot := strings.LastIndex(base, "."); dot > 0 && len(base)-dot <= 6 {
		ext = strings.ToLower(base[dot:])
	}
	name := spoolNameCleaner.Replace(c.FirstName + "_" + c.LastName)
	return name + "_" + kind.String() + ext
}
