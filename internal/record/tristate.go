package record

import (
	"fmt"
	"strings"
)

// TriState is a boolean that may also be unknown. The zero value is Unknown.
type TriState int8

const (
	Unknown TriState = iota
	False
	True
)

// ParseTriState accepts blank (Unknown) or case-insensitive "true"/"false".
func ParseTriState(s string) (TriState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return Unknown, nil
	case "true":
		return True, nil
	case "false":
		return False, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrInvalidBool, s)
	}
}

// Of converts a definite bool.
func Of(b bool) TriState {
	if b {
		return True
	}
	return False
}

// Known reports whether t is True or False.
func (t TriState) Known() bool { return t == True || t == False }

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return ""
	}
}

// MarshalText renders Unknown as an empty string so CSV and YAML
// output keep the blank-means-unknown convention.
func (t TriState) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (t *TriState) UnmarshalText(b []byte) error {
	v, err := ParseTriState(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
