package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/graphfetch/graphfetch/internal/result"
)

func res(data string) result.OperationResult {
	return result.OperationResult{Data: json.RawMessage(data)}
}

func TestGetMiss(t *testing.T) {
	c := New()
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("unexpected hit on empty cache")
	}
}

func TestSetOverwrites(t *testing.T) {
	c := New()
	c.Set("k", res(`{"v":1}`))
	c.Set("k", res(`{"v":2}`))
	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if diff := cmp.Diff(res(`{"v":2}`), got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 1 {
		t.Fatalf("len %d, want 1", c.Len())
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	c := New(WithMaxEntries(2))
	c.Set("a", res(`1`))
	c.Set("b", res(`2`))
	c.Set("a", res(`3`)) // overwrite keeps insertion position
	c.Set("c", res(`4`)) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Fatalf("oldest key not evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("newer key evicted")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("latest key missing")
	}
	if c.Len() != 2 {
		t.Fatalf("len %d, want 2", c.Len())
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	c := New(WithTTL(time.Minute))
	c.now = func() time.Time { return now }

	c.Set("k", res(`1`))
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not dropped")
	}

	// A rewrite resurrects the key.
	c.Set("k", res(`2`))
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit after rewrite")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for range 100 {
				c.Set(key, res(`1`))
				c.Get(key)
			}
		}()
	}
	wg.Wait()
	if c.Len() != 4 {
		t.Fatalf("len %d, want 4", c.Len())
	}
}
