package query

import (
	"fmt"
	"strings"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/forum/keys"
)

var ErrInvalidSort = fmt.Errorf("%w: invalid sort", store.ErrInvalidArgument)

type SortKind int

const (
	// SortNew orders questions by creation date.
	SortNew SortKind = iota + 1
	// SortPopular orders questions by like count.
	SortPopular
	SortAuthor
	SortTag
	// SortSearch is a linear scan with a substring filter. It reads the
	// whole table in the worst case.
	SortSearch
)

var sortNames = map[SortKind]string{
	SortNew:     "new",
	SortPopular: "popular",
	SortAuthor:  "author",
	SortTag:     "tag",
	SortSearch:  "search",
}

func (k SortKind) String() string {
	if s, ok := sortNames[k]; ok {
		return s
	}
	return fmt.Sprintf("SortKind(%d)", int(k))
}

// Sort is a logical ordering plus its argument: the author id, the tag or
// the search text.
type Sort struct {
	Kind SortKind
	Arg  string
}

func Recency() Sort              { return Sort{Kind: SortNew} }
func Popularity() Sort           { return Sort{Kind: SortPopular} }
func ByAuthor(uid string) Sort   { return Sort{Kind: SortAuthor, Arg: uid} }
func ByTag(tag string) Sort      { return Sort{Kind: SortTag, Arg: tag} }
func FullTextLike(q string) Sort { return Sort{Kind: SortSearch, Arg: q} }

func (s Sort) String() string {
	if s.Arg == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ":" + s.Arg
}

// Validate reports whether the sort can be planned.
func (s Sort) Validate() error {
	switch s.Kind {
	case SortNew, SortPopular:
		if s.Arg != "" {
			return fmt.Errorf("%w: %s takes no argument", ErrInvalidSort, s.Kind)
		}
	case SortAuthor, SortTag:
		if err := keys.ValidateID(s.Arg); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSort, s.Kind, err)
		}
	case SortSearch:
		if strings.TrimSpace(s.Arg) == "" {
			return fmt.Errorf("%w: empty search text", ErrInvalidSort)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSort, s.Kind)
	}
	return nil
}

// ParseSort accepts "new", "popular", "author:<id>", "tag:<tag>" and
// "search:<text>".
func ParseSort(s string) (Sort, error) {
	name, arg, _ := strings.Cut(s, ":")
	var out Sort
	switch name {
	case "new":
		out = Recency()
	case "popular":
		out = Popularity()
	case "author":
		out = ByAuthor(arg)
	case "tag":
		out = ByTag(arg)
	case "search":
		out = FullTextLike(arg)
	default:
		return Sort{}, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
	if (out.Kind == SortNew || out.Kind == SortPopular) && arg != "" {
		return Sort{}, fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
	if err := out.Validate(); err != nil {
		return Sort{}, err
	}
	return out, nil
}

type Direction int

const (
	// Backward returns the largest sort value first: newest, most liked.
	Backward Direction = iota
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// ParseDirection accepts forward|asc and backward|desc. Empty means
// Backward.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "backward", "desc":
		return Backward, nil
	case "forward", "asc":
		return Forward, nil
	}
	return 0, fmt.Errorf("%w: invalid direction %q", store.ErrInvalidArgument, s)
}
