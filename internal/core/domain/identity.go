package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NodeIdentity names one application instance on the mesh.
type NodeIdentity struct {
	id uuid.UUID
}

// NilIdentity is the zero identity. It is never valid for a node.
var NilIdentity = NodeIdentity{}

// NewNodeIdentity wraps an existing UUID.
func NewNodeIdentity(id uuid.UUID) NodeIdentity {
	return NodeIdentity{id: id}
}

// GenerateNodeIdentity returns a random (version 4) identity.
func GenerateNodeIdentity() (NodeIdentity, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return NilIdentity, ErrInternal.WithCause(err)
	}
	return NodeIdentity{id: id}, nil
}

// ParseNodeIdentity parses the canonical (hyphenated) or the 32-digit hex form.
func ParseNodeIdentity(s string) (NodeIdentity, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return NilIdentity, ErrInvalidArgument.WithDetails("node identity " + strconv.Quote(s)).WithCause(err)
	}
	if id == uuid.Nil {
		return NilIdentity, ErrInvalidArgument.WithDetails("node identity must not be nil")
	}
	return NodeIdentity{id: id}, nil
}

// MustParseNodeIdentity is like ParseNodeIdentity but panics on error.
func MustParseNodeIdentity(s string) NodeIdentity {
	id, err := ParseNodeIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical lowercase hyphenated form.
// It is also the file name used by the token store.
func (n NodeIdentity) String() string {
	return n.id.String()
}

// Hex returns the 32 lowercase hex digits without separators.
func (n NodeIdentity) Hex() string {
	return hex.EncodeToString(n.id[:])
}

// Bytes returns a copy of the 16 raw identity bytes.
func (n NodeIdentity) Bytes() []byte {
	b := make([]byte, len(n.id))
	copy(b, n.id[:])
	return b
}

// UUID returns the underlying UUID.
func (n NodeIdentity) UUID() uuid.UUID {
	return n.id
}

// IsZero reports whether n is the nil identity.
func (n NodeIdentity) IsZero() bool {
	return n.id == uuid.Nil
}

// AuthToken is the credential issued by the mesh daemon when a node is
// created. Zero means "no token yet".
type AuthToken uint64

// NoToken is the absent-token sentinel.
const NoToken AuthToken = 0

// String formats the token as lowercase hex without prefix or padding.
func (t AuthToken) String() string {
	return strconv.FormatUint(uint64(t), 16)
}

// IsZero reports whether no token is present.
func (t AuthToken) IsZero() bool {
	return t == NoToken
}

// ParseAuthToken parses the persisted hex form. Surrounding whitespace is
// tolerated; a "0x" prefix, sign or any other trailing data is not.
func ParseAuthToken(s string) (AuthToken, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoToken, ErrStoreCorruption.WithDetails("empty token")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return NoToken, ErrStoreCorruption.WithDetails("token " + strconv.Quote(s) + " is not hex")
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return NoToken, ErrStoreCorruption.WithDetails("token " + strconv.Quote(s) + " is not hex").WithCause(err)
	}
	return AuthToken(v), nil
}
