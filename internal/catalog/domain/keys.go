package domain

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidResourceKey = errors.New("invalid_resource_key")

// KeyBase names a billable resource on the wire.
type KeyBase string

const (
	KeyChild    KeyBase = "child"
	KeySchool   KeyBase = "school"
	KeyStaff    KeyBase = "staff"
	KeyStudent  KeyBase = "student"
	KeyEmployee KeyBase = "employee"
)

// ResourceKey is the parsed form of the wire vocabulary: a plain key
// ("child", "staff") or a composite key ("student:<staffID>") carrying the
// sub-key the counter is scoped to. Raw composite strings are parsed once at
// the boundary and never passed around.
type ResourceKey struct {
	Base   KeyBase
	SubKey snowflake.ID
}

// ParseResourceKey parses the wire form "<base>" or "<base>:<subKey>".
func ParseResourceKey(raw string) (ResourceKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ResourceKey{}, ErrInvalidResourceKey
	}

	base, sub, hasSub := strings.Cut(raw, ":")
	key := ResourceKey{Base: KeyBase(base)}
	switch key.Base {
	case KeyChild, KeySchool, KeyStaff, KeyStudent, KeyEmployee:
	default:
		return ResourceKey{}, ErrInvalidResourceKey
	}

	if hasSub {
		if !key.ScopedBase() {
			return ResourceKey{}, ErrInvalidResourceKey
		}
		id, err := snowflake.ParseString(strings.TrimSpace(sub))
		if err != nil || id == 0 {
			return ResourceKey{}, ErrInvalidResourceKey
		}
		key.SubKey = id
	}

	return key, nil
}

// ScopedBase reports whether the base counts per sub-key (per staff member).
func (k ResourceKey) ScopedBase() bool {
	switch k.Base {
	case KeyStudent, KeyEmployee:
		return true
	default:
		return false
	}
}

// LimitKey maps the resource to the package limit key it is admitted against.
func (k ResourceKey) LimitKey() string {
	switch k.Base {
	case KeyChild:
		return LimitChildren
	case KeySchool:
		return LimitSchools
	case KeyStaff:
		return LimitStaff
	case KeyStudent:
		return LimitStudentsPerStaff
	case KeyEmployee:
		return LimitEmployeesPerStaff
	default:
		return ""
	}
}

func (k ResourceKey) String() string {
	if k.SubKey != 0 {
		return string(k.Base) + ":" + k.SubKey.String()
	}
	return string(k.Base)
}
