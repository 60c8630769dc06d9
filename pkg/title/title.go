package title

import (
	"errors"
	"fmt"
)

// Kind identifies what a title is relative to its base game.
type Kind string

const (
	KindBase   Kind = "base"
	KindUpdate Kind = "update"
	KindDLC    Kind = "dlc"
)

// AllKinds returns the three content kinds.
func AllKinds() []Kind {
	return []Kind{KindBase, KindUpdate, KindDLC}
}

// IDLength is the fixed length of a title identifier.
const IDLength = 16

const (
	baseSuffix   = "000"
	updateSuffix = "800"
)

// ErrInvalidIdentifier reports a malformed title identifier.
var ErrInvalidIdentifier = errors.New("invalid title identifier")

// Info is the classification of a single identifier.
type Info struct {
	ID     string
	Kind   Kind
	BaseID string // equals ID for base titles
}

// IsBase reports whether the title is a base game.
func (i Info) IsBase() bool { return i.Kind == KindBase }

// IsUpdate reports whether the title is an update.
func (i Info) IsUpdate() bool { return i.Kind == KindUpdate }

// IsDLC reports whether the title is DLC.
func (i Info) IsDLC() bool { return i.Kind == KindDLC }

// Classify derives a title's kind and base identifier from its identifier.
//
// Identifiers are 16 hex characters. A "000" suffix marks a base title,
// "800" marks an update, anything else is DLC. For DLC the base identifier
// is reached by decrementing the 13th character and replacing the suffix
// with "000"; this is a convention of the identifier scheme, not something
// derivable from the identifier alone.
func Classify(id string) (Info, error) {
	if len(id) != IDLength {
		return Info{}, fmt.Errorf("%w: %q has length %d, want %d", ErrInvalidIdentifier, id, len(id), IDLength)
	}
	for _, r := range id {
		if !isHex(r) {
			return Info{}, fmt.Errorf("%w: %q contains non-hex character %q", ErrInvalidIdentifier, id, r)
		}
	}

	suffix := id[IDLength-3:]
	switch suffix {
	case baseSuffix:
		return Info{ID: id, Kind: KindBase, BaseID: id}, nil
	case updateSuffix:
		return Info{ID: id, Kind: KindUpdate, BaseID: id[:IDLength-3] + baseSuffix}, nil
	}

	base := id[:12] + string(id[12]-1) + baseSuffix
	return Info{ID: id, Kind: KindDLC, BaseID: base}, nil
}

func isHex(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	}
	return false
}
