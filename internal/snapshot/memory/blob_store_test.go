package memory

import (
	"context"
	"testing"
)

func TestBlobStorePutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	uri, err := s.Put(context.Background(), "job-1/abc.html", "text/html", []byte("<html/>"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if uri != "memory://job-1/abc.html" {
		t.Fatalf("uri = %q", uri)
	}

	data, ok := s.Get("job-1/abc.html")
	if !ok || string(data) != "<html/>" {
		t.Fatalf("Get() = %q, %v", data, ok)
	}

	if _, ok := s.Get("missing"); ok {
		t.Fatal("expected miss for unknown path")
	}
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := New().Put(context.Background(), "", "text/html", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}
