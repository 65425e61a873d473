package plugin

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"github.com/orizon-lang/orizon/internal/link/pool"
)

// newDigest returns a fresh hash.Hash for the named algorithm, mirroring
// internal/finder's pluggable-by-name digest choice (sha256 default,
// blake2b as the faster alternative).
func newDigest(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256", "":
		return sha256.New(), nil
	case "blake2b":
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("plugin: unsupported digest algorithm %q", algorithm)
	}
}

// NewDigestVerifier builds a VERIFIER-category plugin that computes each
// resource's content digest and records it as a parallel ".sha256"/".blake2b"
// resource beside it. It does not compare the digest against any earlier
// value; it only records it.
func NewDigestVerifier(algorithm string) Plugin {
	cat := Verifier

	return Plugin{
		Name:     "verify-digest",
		Category: &cat,
		Apply: func(input *pool.Pool, _ map[string]string) (*pool.Pool, error) {
			out := pool.New()

			for _, r := range input.Entries() {
				if err := out.Add(r); err != nil {
					return nil, err
				}

				h, err := newDigest(algorithm)
				if err != nil {
					return nil, err
				}

				h.Write(r.Content)

				digestPath := r.Path + "." + digestSuffix(algorithm)

				if err := out.Add(pool.Resource{
					Path:       digestPath,
					ModuleName: r.ModuleName,
					Content:    []byte(fmt.Sprintf("%x", h.Sum(nil))),
				}); err != nil {
					return nil, err
				}
			}

			return out, nil
		},
	}
}

func digestSuffix(algorithm string) string {
	if algorithm == "" {
		return "sha256"
	}

	return algorithm
}
