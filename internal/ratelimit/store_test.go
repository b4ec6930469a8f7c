package ratelimit

import (
	"testing"
	"time"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	s := NewMemoryStore()
	key := recordKey("client-a", "contact-form")

	rec, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatal("missing key should return nil record")
	}

	want := Record{Count: 3, WindowStart: time.Now(), LastSeen: time.Now()}
	if err := s.Set(key, &want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Count != 3 {
		t.Errorf("Get = %+v, want count 3", got)
	}

	// Stored records are copies: mutating the returned pointer must not
	// leak back into the store.
	got.Count = 99
	again, _ := s.Get(key)
	if again.Count != 3 {
		t.Errorf("store shares memory with callers: count = %d", again.Count)
	}

	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec, _ := s.Get(key); rec != nil {
		t.Error("deleted key should be gone")
	}
}

func TestMemoryStore_ForEach(t *testing.T) {
	s := NewMemoryStore()
	s.Set(recordKey("a", "x"), &Record{Count: 1})
	s.Set(recordKey("b", "x"), &Record{Count: 2})
	s.Set(recordKey("b", "y"), &Record{Count: 3})

	seen := map[string]int{}
	err := s.ForEach(func(key string, rec Record) bool {
		seen[key] = rec.Count
		return true
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("visited %d records, want 3", len(seen))
	}
	if seen[recordKey("b", "y")] != 3 {
		t.Errorf("b:y count = %d, want 3", seen[recordKey("b", "y")])
	}

	// Early exit after the first record.
	visits := 0
	s.ForEach(func(string, Record) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("early exit visited %d records, want 1", visits)
	}
}

func TestSplitRecordKey(t *testing.T) {
	ck, cat := splitRecordKey(recordKey("abc123", "contact-form"))
	if ck != "abc123" || cat != "contact-form" {
		t.Errorf("splitRecordKey = %q, %q", ck, cat)
	}
}
