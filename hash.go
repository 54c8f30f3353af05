package adjudicator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sync"
)

// Domain prefixes for content-addressed hashing. The version suffix allows
// future algorithm migration without colliding with old keys.
const (
	domainValue      = "adjudicator/value/v1"
	domainParams     = "adjudicator/params/v1"
	domainInvocation = "adjudicator/invocation/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hasher produces a stable content hash for a value of one registered Type.
type Hasher func(value any) (string, error)

// HashSupport maps Types to custom hashing functions. Values of unregistered
// types are hashed by their canonical JSON form; registration exists for
// types with no canonical form, or whose cache identity is deliberately not
// structural (e.g. an external, mutable context object hashed by pointer
// identity).
//
// Safe for concurrent use. Registration is expected during setup, lookups
// happen on every rule execution.
type HashSupport struct {
	mu      sync.RWMutex
	hashers map[Type]Hasher
}

// NewHashSupport creates an empty registry.
func NewHashSupport() *HashSupport {
	return &HashSupport{hashers: make(map[Type]Hasher)}
}

// Register installs fn as the hasher for t, replacing any previous hasher.
func (h *HashSupport) Register(t Type, fn Hasher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashers[t] = fn
}

// HashValue hashes a single value stored under type t.
func (h *HashSupport) HashValue(t Type, value any) (string, error) {
	h.mu.RLock()
	fn := h.hashers[t]
	h.mu.RUnlock()

	if fn != nil {
		digest, err := fn(value)
		if err != nil {
			return "", fmt.Errorf("custom hasher for %s: %w", t, err)
		}
		return digest, nil
	}

	canonical, err := marshalCanonical(value)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", t, err)
	}
	return hashWithDomain(domainValue, canonical), nil
}

// IdentityHasher returns a Hasher that hashes by referential identity rather
// than content. Only pointer-shaped values (pointers, maps, slices, channels,
// funcs) carry a usable identity; anything else is rejected.
//
// Use for types whose values are mutable or opaque: two queries against the
// same object hit the same cache entry, a different object never does.
func IdentityHasher() Hasher {
	return func(value any) (string, error) {
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return hashWithDomain(domainValue, []byte(fmt.Sprintf("%#x", rv.Pointer()))), nil
		default:
			return "", fmt.Errorf("identity hash needs a reference kind, got %T", value)
		}
	}
}
