package candidate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolveBuildsPublicURLs(t *testing.T) {
	r := NewResolver("https://proj.supabase.co/", "application-documents")
	raw := RawRecord{
		"documents": []any{
			map[string]any{"type": "cv", "relative_path": "/42/cv.pdf"},
			map[string]any{"type": "cover_letter", "relative_path": "42/lettre.pdf"},
			map[string]any{"type": "diploma", "path": "42/diplome.pdf"},
			map[string]any{"type": "certificate", "url": "https://cdn.example.com/cert.pdf"},
			map[string]any{"type": "passport", "relative_path": "42/passport.pdf"},
			map[string]any{"type": "cv"},
			"garbage",
		},
	}

	got, dropped := r.Resolve(raw)
	want := LocationMap{
		DocumentCV:          "https://proj.supabase.co/storage/v1/object/public/application-documents/42/cv.pdf",
		DocumentCoverLetter: "https://proj.supabase.co/storage/v1/object/public/application-documents/42/lettre.pdf",
		DocumentDiploma:     "https://proj.supabase.co/storage/v1/object/public/application-documents/42/diplome.pdf",
		DocumentCertificate: "https://cdn.example.com/cert.pdf",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"passport", "cv", "<malformed>"}, dropped); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DocumentKinds, got.Kinds()); diff != "" {
		t.Errorf("kinds order (-want +got):\n%s", diff)
	}
}

func TestResolveLaterEntryWins(t *testing.T) {
	r := NewResolver("https://s", "b")
	got, _ := r.Resolve(RawRecord{"documents": []any{
		map[string]any{"type": "cv", "relative_path": "old.pdf"},
		map[string]any{"type": "CV", "relative_path": "new.pdf"},
	}})
	if got[DocumentCV] != "https://s/storage/v1/object/public/b/new.pdf" {
		t.Errorf("cv = %q", got[DocumentCV])
	}
}

func TestResolveEmptyIsValid(t *testing.T) {
	r := NewResolver("https://s", "b")
	for name, raw := range map[string]RawRecord{
		"missing": {},
		"empty":   {"documents": []any{}},
		"wrong":   {"documents": "cv.pdf"},
	} {
		got, _ := r.Resolve(raw)
		if len(got) != 0 {
			t.Errorf("%s: expected empty map, got %v", name, got)
		}
	}
}

func TestObjectKeyRoundTrip(t *testing.T) {
	r := NewResolver("https://s", "b")
	key, ok := r.ObjectKey(r.PublicURL("42/cv.pdf"))
	if !ok || key != "42/cv.pdf" {
		t.Fatalf("ObjectKey = %q, %v", key, ok)
	}
	if _, ok := r.ObjectKey("https://elsewhere/x.pdf"); ok {
		t.Fatal("foreign URL should not resolve")
	}
}

func TestDocumentSetIsWriteOnce(t *testing.T) {
	var d DocumentSet
	if d.Set(DocumentCV, "") {
		t.Fatal("empty text must not fill a slot")
	}
	if !d.Set(DocumentCV, "first") {
		t.Fatal("first write rejected")
	}
	if d.Set(DocumentCV, "second") {
		t.Fatal("second write accepted")
	}
	if got, _ := d.Get(DocumentCV); got != "first" {
		t.Fatalf("cv = %q", got)
	}
	if _, ok := d.Get(DocumentDiploma); ok {
		t.Fatal("diploma should be absent")
	}
}

func TestKeyFallsBackToName(t *testing.T) {
	c := New()
	c.FirstName, c.LastName = "Jean", "Dupont"
	if k := c.Key(); k.ByApplicationID() || k.FirstName != "Jean" {
		t.Fatalf("key = %+v", k)
	}
	c.ApplicationID = "APP-1"
	if k := c.Key(); !k.ByApplicationID() || k.FirstName != "" {
		t.Fatalf("key = %+v", k)
	}
}

func TestSpoolName(t *testing.T) {
	c := New()
	c.FirstName, c.LastName = "Jean Marc", "Dupont"
	tests := map[string]string{
		"https://s/b/42/cv.PDF":          "Jean_Marc_Dupont_cv.pdf",
		"https://s/b/42/scan.jpeg?x=1":   "Jean_Marc_Dupont_cv.jpeg",
		"https://s/b/42/no-extension":    "Jean_Marc_Dupont_cv.pdf",
		"https://s/b/42/archive.tar.bz2": "Jean_Marc_Dupont_cv.bz2",
	}
	for url, want := range tests {
		if got := SpoolName(c, DocumentCV, url); got != want {
			t.Errorf("SpoolName(%q) = %q, want %q", url, got, want)
		}
	}
}
