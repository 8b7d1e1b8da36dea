package derive

import (
	"crypto"
	"fmt"
	"sort"
	"strings"

	// Register the selectable digests with the crypto package.
	_ "crypto/sha256"
	_ "crypto/sha512"

	_ "golang.org/x/crypto/blake2b"
	_ "golang.org/x/crypto/blake2s"
	_ "golang.org/x/crypto/sha3"
)

// DefaultDigest is the digest reference schedules are computed with.
const DefaultDigest = "sha256"

var digestsByName = map[string]crypto.Hash{
	"sha256":      crypto.SHA256,
	"sha512/256":  crypto.SHA512_256,
	"sha3-256":    crypto.SHA3_256,
	"blake2b-256": crypto.BLAKE2b_256,
	"blake2s-256": crypto.BLAKE2s_256,
}

// ParseDigest maps a config name such as "sha256" or "sha3-256" to its hash.
// Names are case-insensitive.
func ParseDigest(name string) (crypto.Hash, error) {
	h, ok := digestsByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("derive: unknown digest %q (supported: %s)", name, strings.Join(DigestNames(), ", "))
	}
	return h, nil
}

// DigestNames lists the accepted digest names in sorted order.
func DigestNames() []string {
	names := make([]string, 0, len(digestsByName))
	for n := range digestsByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func checkDigest(h crypto.Hash) error {
	if !h.Available() {
		return fmt.Errorf("%w: %s", ErrHashingUnavailable, h)
	}
	if h.Size() != digestSize {
		return fmt.Errorf("%w: %s is %d bits", ErrUnsupportedDigest, h, h.Size()*8)
	}
	return nil
}
