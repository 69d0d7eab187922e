// Package fracindex generates orderable keys for positioning siblings and
// elements. A key can always be generated strictly between two existing
// keys, so repositioning never requires renumbering neighbors.
//
// Keys are byte strings interpreted as base-256 fractions and compared
// bytewise. Generated keys never end in a zero byte, which keeps bytewise
// order identical to numeric order.
package fracindex

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
)

// ErrKeyExhausted indicates the allocator could not produce a key between
// the given bounds without exceeding the maximum key length. It only occurs
// in pathological repeated-midpoint workloads; normal operation extends key
// length internally instead of failing.
var ErrKeyExhausted = errors.New("fractional index key exhausted")

// maxKeyLen bounds key growth. Each level of nesting between ever-closer
// bounds adds bytes; hitting this limit means millions of adversarial
// same-position inserts.
const maxKeyLen = 4096

// Key is an orderable position key. Compare keys with Compare; the zero
// value is not a valid key.
type Key []byte

// DefaultKey returns the single fixed key used when fractional indexing is
// disabled and all siblings share one position.
func DefaultKey() Key {
	return Key{0x80}
}

// Compare orders keys bytewise. It returns -1, 0, or 1.
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// String returns the key in display-hex form.
func (k Key) String() string {
	return hex.EncodeToString(k)
}

// Allocator generates keys, optionally perturbed by jitter.
//
// With jitter zero the allocator is deterministic: the same bounds always
// produce the same key. With jitter greater than zero the chosen key is
// randomly perturbed within the open interval, so two peers concurrently
// inserting at the same logical position are unlikely to pick identical
// keys. Larger jitter values add more random suffix bytes, trading key
// growth for collision avoidance.
type Allocator struct {
	jitter uint8
	rng    *rand.Rand
}

// NewAllocator creates an allocator with the given jitter.
func NewAllocator(jitter uint8) *Allocator {
	var rng *rand.Rand
	if jitter > 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Allocator{jitter: jitter, rng: rng}
}

// Jitter returns the configured jitter.
func (a *Allocator) Jitter() uint8 {
	return a.jitter
}

// Generate returns a key strictly between low and high. A nil bound is
// open: nil low means before everything, nil high means after everything.
func (a *Allocator) Generate(low, high Key) (Key, error) {
	if low != nil && high != nil && Compare(low, high) >= 0 {
		return nil, fmt.Errorf("fracindex: low %s is not below high %s", low, high)
	}
	key, err := a.between(low, high)
	if err != nil {
		return nil, err
	}
	if a.jitter > 0 {
		key = a.perturb(key)
	}
	return key, nil
}

// between picks the deterministic midpoint-style key in (low, high).
func (a *Allocator) between(low, high Key) (Key, error) {
	ans := make(Key, 0, 8)
	for i := 0; ; i++ {
		if len(ans) > maxKeyLen {
			return nil, ErrKeyExhausted
		}
		l := 0
		if i < len(low) {
			l = int(low[i])
		}
		h := 256
		if high != nil {
			if i < len(high) {
				h = int(high[i])
			} else {
				// high ran out while matching low's prefix, so the bounds
				// were not ordered; Generate guards against this.
				return nil, ErrKeyExhausted
			}
		}
		switch {
		case h-l >= 2:
			ans = append(ans, byte(l+(h-l)/2))
			return ans, nil
		case h-l == 1:
			// No room at this digit. Keep low's digit and continue in the
			// open interval (low's remainder, 1).
			ans = append(ans, byte(l))
			low = low[min(i+1, len(low)):]
			high = nil
			i = -1
		default:
			// Digits equal; copy and descend.
			ans = append(ans, byte(l))
		}
	}
}

// perturb appends random bytes so concurrent allocations at one position
// diverge. At least four random bytes are appended regardless of the jitter
// value; the final byte is forced nonzero to preserve ordering invariants.
func (a *Allocator) perturb(key Key) Key {
	extra := int(a.jitter) + 3
	for i := 0; i < extra; i++ {
		key = append(key, byte(a.rng.Intn(256)))
	}
	key = append(key, byte(1+a.rng.Intn(255)))
	return key
}
