// Package tree addresses values inside a value tree by index path.
package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidNode is returned for malformed or empty node ids.
var ErrInvalidNode = errors.New("invalid node id")

// NodeID is the index path of a node, outermost index first. The zero
// value is the empty id, which addresses the root.
//
// NodeID is a value type; the methods that change the path return a new id.
type NodeID struct {
	index []int
}

// New creates a node id from its indexes.
func New(indices ...int) (NodeID, error) {
	var id NodeID
	for _, i := range indices {
		var err error
		if id, err = id.Append(i); err != nil {
			return NodeID{}, err
		}
	}
	return id, nil
}

// Parse reads a path of non-negative integers separated by '.' or ':'.
// Empty segments are skipped.
func Parse(s string) (NodeID, error) {
	var id NodeID
	start := -1
	flush := func(end int) error {
		if start < 0 {
			return nil
		}
		n, err := strconv.Atoi(s[start:end])
		if err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidNode, s, err)
		}
		id.index = append(id.index, n)
		start = -1
		return nil
	}

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			if start < 0 {
				start = i
			}
		case c == '.' || c == ':':
			if err := flush(i); err != nil {
				return NodeID{}, err
			}
		default:
			return NodeID{}, fmt.Errorf("%w %q: unexpected character %q", ErrInvalidNode, s, c)
		}
	}
	if err := flush(len(s)); err != nil {
		return NodeID{}, err
	}
	return id, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) NodeID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the id with '.' separators.
func (id NodeID) String() string { return id.Format('.') }

// Format renders the id with the given separator.
func (id NodeID) Format(sep byte) string {
	var sb strings.Builder
	for i, n := range id.index {
		if i > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// Depth returns the number of indexes.
func (id NodeID) Depth() int { return len(id.index) }

// Valid reports whether the id addresses something below the root.
func (id NodeID) Valid() bool { return len(id.index) > 0 }

// Indices returns a copy of the path.
func (id NodeID) Indices() []int { return append([]int(nil), id.index...) }

// At returns the index at depth i.
func (id NodeID) At(i int) (int, error) {
	if i < 0 || i >= len(id.index) {
		return 0, fmt.Errorf("%w: depth %d out of range for %q", ErrInvalidNode, i, id)
	}
	return id.index[i], nil
}

// End returns the last index.
func (id NodeID) End() (int, error) {
	if len(id.index) == 0 {
		return 0, fmt.Errorf("%w: end of an empty node id", ErrInvalidNode)
	}
	return id.index[len(id.index)-1], nil
}

// Parent returns the id without its last index. Ids with fewer than two
// indexes have the empty id as parent.
func (id NodeID) Parent() NodeID {
	if len(id.index) < 2 {
		return NodeID{}
	}
	return NodeID{index: append([]int(nil), id.index[:len(id.index)-1]...)}
}

// Next returns the following sibling.
func (id NodeID) Next() (NodeID, bool) {
	if len(id.index) == 0 {
		return id, false
	}
	next := id.Indices()
	next[len(next)-1]++
	return NodeID{index: next}, true
}

// Previous returns the preceding sibling. The first child has none.
func (id NodeID) Previous() (NodeID, bool) {
	if len(id.index) == 0 || id.index[len(id.index)-1] == 0 {
		return id, false
	}
	prev := id.Indices()
	prev[len(prev)-1]--
	return NodeID{index: prev}, true
}

// Append returns the id of child i.
func (id NodeID) Append(i int) (NodeID, error) {
	if i < 0 {
		return id, fmt.Errorf("%w: negative node index %d", ErrInvalidNode, i)
	}
	return NodeID{index: append(id.Indices(), i)}, nil
}

// Prepend returns the id with i inserted as the outermost index.
func (id NodeID) Prepend(i int) (NodeID, error) {
	if i < 0 {
		return id, fmt.Errorf("%w: negative node index %d", ErrInvalidNode, i)
	}
	return NodeID{index: append([]int{i}, id.index...)}, nil
}

// Equal reports whether both ids have the same path.
func (id NodeID) Equal(other NodeID) bool {
	if len(id.index) != len(other.index) {
		return false
	}
	for i, n := range id.index {
		if n != other.index[i] {
			return false
		}
	}
	return true
}

// Less orders shorter ids first, so a parent sorts before its children.
// Ids of the same depth are less only when every index is strictly smaller.
func (id NodeID) Less(other NodeID) bool {
	if len(id.index) != len(other.index) {
		return len(id.index) < len(other.index)
	}
	if len(id.index) == 0 {
		return false
	}
	for i, n := range id.index {
		if n >= other.index[i] {
			return false
		}
	}
	return true
}
