package fsxlocal

import (
	"context"
	"strings"
	"testing"
)

func TestWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p := l.Join("spool", "jean_dupont_cv.pdf")
	if err := l.WriteFileStream(ctx, p, strings.NewReader("%PDF-1.4")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := l.Exists(ctx, p)
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
	data, err := l.ReadFile(ctx, p)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("read = %q, %v", data, err)
	}
	if err := l.DeleteFile(ctx, p); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := l.DeleteFile(ctx, p); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if ok, _ := l.Exists(ctx, p); ok {
		t.Fatal("file still exists")
	}
}
