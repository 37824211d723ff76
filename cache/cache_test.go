package cache

import (
	"bytes"
	"errors"
	"testing"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t)

	digest := Digest(map[string]string{"main.sy": "print 1"})
	image := []byte("fake image bytes")
	if err := c.Put(digest, image); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := c.Get(digest)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Errorf("Get() = %q, want %q", got, image)
	}
}

func TestGetMiss(t *testing.T) {
	c := openTestCache(t)
	if _, err := c.Get(Digest(map[string]string{"main.sy": "x := 1"})); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() error = %v, want ErrMiss", err)
	}
}

func TestPutReplaces(t *testing.T) {
	c := openTestCache(t)

	digest := Digest(map[string]string{"main.sy": "print 1"})
	if err := c.Put(digest, []byte("old")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := c.Put(digest, []byte("new")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, err := c.Get(digest)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
	if n, _ := c.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}

func TestDelete(t *testing.T) {
	c := openTestCache(t)

	digest := Digest(map[string]string{"main.sy": "print 1"})
	if err := c.Put(digest, []byte("bytes")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := c.Delete(digest); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := c.Get(digest); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after delete error = %v, want ErrMiss", err)
	}
	if err := c.Delete(digest); err != nil {
		t.Errorf("Delete() of absent digest error = %v", err)
	}
}

func TestDigestStable(t *testing.T) {
	a := Digest(map[string]string{"a.sy": "1", "b.sy": "2"})
	b := Digest(map[string]string{"b.sy": "2", "a.sy": "1"})
	if a != b {
		t.Errorf("digests differ for the same sources: %q, %q", a, b)
	}
}

func TestDigestSensitive(t *testing.T) {
	base := Digest(map[string]string{"a.sy": "print 1"})

	changed := Digest(map[string]string{"a.sy": "print 2"})
	if base == changed {
		t.Errorf("digest unchanged after source edit")
	}

	renamed := Digest(map[string]string{"b.sy": "print 1"})
	if base == renamed {
		t.Errorf("digest unchanged after file rename")
	}

	// Path/content boundaries must not be ambiguous.
	x := Digest(map[string]string{"ab.sy": "c"})
	y := Digest(map[string]string{"a.sy": "bc"})
	if x == y {
		t.Errorf("digest collides across path boundaries")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	digest := Digest(map[string]string{"main.sy": "print 1"})

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := c.Put(digest, []byte("persisted")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	c2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer c2.Close()

	got, err := c2.Get(digest)
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get() = %q, want %q", got, "persisted")
	}
}
