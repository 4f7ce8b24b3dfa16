package record

import (
	"strconv"
	"strings"
)

// Lookup resolves a dotted path against v. Each segment selects a map entry
// by key, or a list item by index when the current value is a list and the
// segment is a non-negative integer. It reports false when any segment
// cannot be resolved, including empty paths and empty segments.
func (v Value) Lookup(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}

	current := v
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return Value{}, false
		}

		switch current.kind {
		case KindMap:
			next, ok := current.m[segment]
			if !ok {
				return Value{}, false
			}
			current = next

		case KindList:
			idx, err := strconv.Atoi(segment)
			if err != nil {
				return Value{}, false
			}
			next, ok := current.Index(idx)
			if !ok {
				return Value{}, false
			}
			current = next

		default:
			return Value{}, false
		}
	}

	return current, true
}
