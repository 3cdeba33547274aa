// Package prefixed_uuid provides UUIDs tagged with a short type prefix, such
// as "task-1b4e28ba-2fa1-11d2-883f-0016d3cca427" or "session-...".
package prefixed_uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a random UUID.
// It panics when the prefix is not a valid identifier, which is a programming error.
func New(prefix string) PrefixedUUID {
	if err := validPrefix(prefix); err != nil {
		panic(err)
	}
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

func validPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	for _, r := range prefix {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("prefix %q may only contain lowercase letters, digits and underscores", prefix)
		}
	}
	return nil
}

// Parse reads a "prefix-uuid" string.
func Parse(s string) (PrefixedUUID, error) {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}
	if err := validPrefix(prefix); err != nil {
		return PrefixedUUID{}, err
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return PrefixedUUID{Prefix: prefix, UUID: id}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s, want string) (PrefixedUUID, error) {
	p, err := Parse(s)
	if err != nil {
		return PrefixedUUID{}, err
	}
	if p.Prefix != want {
		return PrefixedUUID{}, fmt.Errorf("expected prefix %q, got %q", want, p.Prefix)
	}
	return p, nil
}

// String returns the "prefix-uuid" form.
func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero reports whether p is the zero value.
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler, which also covers JSON and YAML.
func (p PrefixedUUID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PrefixedUUID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
