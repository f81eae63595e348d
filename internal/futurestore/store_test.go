package futurestore

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "futures.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterLookupDrop(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	rec := Record{
		ID:           "id1",
		URL:          "syft://bob@example.com/app_data/app/rpc/ping",
		ResponsePath: "/ws/.../id1.response",
		Created:      now,
		Expires:      now.Add(time.Minute),
	}
	if err := s.Register(rec); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.Lookup("id1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("expected to find id1")
	}
	if got.URL != rec.URL {
		t.Errorf("got %+v", got)
	}

	if err := s.Drop("id1"); err != nil {
		t.Fatal(err)
	}
	_, found, err = s.Lookup("id1")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Errorf("expected id1 to be gone after Drop")
	}
}

func TestListPendingExcludesResolvedAndExpired(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	pending := Record{ID: "pending", Created: now, Expires: now.Add(time.Minute)}
	resolved := Record{ID: "resolved", Created: now, Expires: now.Add(time.Minute), Resolved: true}
	expired := Record{ID: "expired", Created: now.Add(-time.Hour), Expires: now.Add(-time.Minute)}

	for _, r := range []Record{pending, resolved, expired} {
		if err := s.Register(r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListPending(now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "pending" {
		t.Errorf("expected only the pending record, got %+v", got)
	}
}

func TestCacheKeyLookup(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	key := Fingerprint("GET", "syft://b@x/app_data/a/rpc/ping", http.Header{"X-A": []string{"1"}}, []byte("body"))

	rec := Record{ID: "id1", CacheKey: key, Created: now, Expires: now.Add(time.Minute)}
	if err := s.Register(rec); err != nil {
		t.Fatal(err)
	}

	got, found, err := s.LookupByCacheKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.ID != "id1" {
		t.Errorf("expected cache hit for id1, got found=%v rec=%+v", found, got)
	}

	if _, found, _ := s.LookupByCacheKey("nonexistent"); found {
		t.Errorf("expected cache miss for unknown key")
	}
}

func TestFingerprintStableUnderHeaderOrder(t *testing.T) {
	a := Fingerprint("GET", "u", http.Header{"X-A": {"1"}, "X-B": {"2"}}, []byte("b"))
	b := Fingerprint("GET", "u", http.Header{"X-B": {"2"}, "X-A": {"1"}}, []byte("b"))
	if a != b {
		t.Errorf("fingerprint should be independent of header insertion order")
	}
}
