package secretstore

import (
	"regexp"
	"time"
)

// namePattern mirrors spec.md §4.4: names match ^[A-Z][A-Z0-9_]*$.
var namePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

const (
	MaxSecretBytes = 64 << 10
	MaxShareCount  = 255
)

// Share is one node's sealed fragment of a secret's value, plus enough
// metadata to detect tampering or staleness (spec.md §3).
type Share struct {
	NodeID    string `json:"nodeId"`
	X         byte   `json:"x"`
	Sealed    []byte `json:"sealed"`    // AES-256-GCM envelope, keyed per-node
	ShareHash string `json:"shareHash"` // hex sha256 of the plaintext share
	Version   int    `json:"version"`
}

// Secret is the durable record for one managed secret (spec.md §3 and
// §4.4): name, threshold parameters, and the current share set.
type Secret struct {
	ID        string    `json:"id"`
	DAOID     string    `json:"daoId"`
	Name      string    `json:"name"`
	K         int       `json:"k"`
	N         int       `json:"n"`
	Version   int       `json:"version"`
	Shares    []Share   `json:"shares"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidateName reports whether name satisfies spec.md §4.4's identifier
// shape: an uppercase letter followed by uppercase letters, digits, or
// underscores.
func ValidateName(name string) bool {
	return namePattern.MatchString(name)
}
