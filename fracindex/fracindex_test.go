package fracindex_test

import (
	"errors"
	"testing"

	"github.com/replidoc/replidoc/fracindex"
)

func TestGenerateOrdering(t *testing.T) {
	alloc := fracindex.NewAllocator(0)

	t.Run("between nothing yields the default key", func(t *testing.T) {
		key, err := alloc.Generate(nil, nil)
		if err != nil {
			t.Fatalf("Generate(nil, nil) failed: %v", err)
		}
		if fracindex.Compare(key, fracindex.DefaultKey()) != 0 {
			t.Errorf("got %s, want %s", key, fracindex.DefaultKey())
		}
	})

	t.Run("generated key sorts between its bounds", func(t *testing.T) {
		low := fracindex.DefaultKey()
		high, err := alloc.Generate(low, nil)
		if err != nil {
			t.Fatalf("Generate after low failed: %v", err)
		}
		mid, err := alloc.Generate(low, high)
		if err != nil {
			t.Fatalf("Generate between failed: %v", err)
		}
		if fracindex.Compare(low, mid) >= 0 {
			t.Errorf("mid %s is not above low %s", mid, low)
		}
		if fracindex.Compare(mid, high) >= 0 {
			t.Errorf("mid %s is not below high %s", mid, high)
		}
	})

	t.Run("adjacent bounds still admit a key", func(t *testing.T) {
		low := fracindex.Key{0x80}
		high := fracindex.Key{0x81}
		mid, err := alloc.Generate(low, high)
		if err != nil {
			t.Fatalf("Generate between adjacent keys failed: %v", err)
		}
		if fracindex.Compare(low, mid) >= 0 || fracindex.Compare(mid, high) >= 0 {
			t.Errorf("key %s does not sort between %s and %s", mid, low, high)
		}
	})

	t.Run("inverted bounds are rejected", func(t *testing.T) {
		if _, err := alloc.Generate(fracindex.Key{0x81}, fracindex.Key{0x80}); err == nil {
			t.Error("expected error for low >= high")
		}
	})
}

func TestGenerateRepeatedSubdivision(t *testing.T) {
	// Repeatedly halving the same interval must keep producing ordered keys.
	alloc := fracindex.NewAllocator(0)
	low := fracindex.Key(nil)
	high, err := alloc.Generate(nil, nil)
	if err != nil {
		t.Fatalf("initial Generate failed: %v", err)
	}
	prev := high
	for i := 0; i < 200; i++ {
		key, err := alloc.Generate(low, prev)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if fracindex.Compare(key, prev) >= 0 {
			t.Fatalf("iteration %d: key %s does not sort below %s", i, key, prev)
		}
		prev = key
	}
}

func TestGenerateDeterministicWithoutJitter(t *testing.T) {
	a := fracindex.NewAllocator(0)
	b := fracindex.NewAllocator(0)
	low := fracindex.DefaultKey()

	keyA, err := a.Generate(low, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	keyB, err := b.Generate(low, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if fracindex.Compare(keyA, keyB) != 0 {
		t.Errorf("allocators disagree without jitter: %s vs %s", keyA, keyB)
	}
}

func TestGenerateJitterAvoidsCollisions(t *testing.T) {
	alloc := fracindex.NewAllocator(2)
	low := fracindex.DefaultKey()

	seen := make(map[string]bool)
	const trials = 200
	for i := 0; i < trials; i++ {
		key, err := alloc.Generate(low, nil)
		if err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
		if fracindex.Compare(low, key) >= 0 {
			t.Fatalf("trial %d: key %s does not sort above %s", i, key, low)
		}
		seen[key.String()] = true
	}
	if len(seen) < trials {
		t.Errorf("expected %d distinct jittered keys, got %d", trials, len(seen))
	}
}

func TestGenerateKeyExhaustion(t *testing.T) {
	// A lower bound of maximal digits forces the allocator past the key
	// length cap.
	low := make(fracindex.Key, 5000)
	for i := range low {
		low[i] = 0xFF
	}
	alloc := fracindex.NewAllocator(0)
	if _, err := alloc.Generate(low, nil); !errors.Is(err, fracindex.ErrKeyExhausted) {
		t.Fatalf("got %v, want ErrKeyExhausted", err)
	}
}
