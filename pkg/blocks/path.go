package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SetField returns a copy of c with the value at path replaced.
//
// Paths are dotted JSON field names; list elements are addressed by index,
// either as a segment ("entries.0.value") or in brackets ("entries[0].value").
// Addressing one past the end of a list appends. The value is not validated
// beyond fitting the content shape: unknown fields and type mismatches fail.
func SetField(c Content, path string, value any) (Content, error) {
	if c == nil {
		return nil, fmt.Errorf("set field %q: no content", path)
	}
	if _, ok := c.(*UnknownContent); ok {
		return nil, fmt.Errorf("set field %q: %w: %s", path, ErrUnknownType, c.BlockType())
	}
	segs, err := ParsePath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("set field %q: encode: %w", path, err)
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("set field %q: decode: %w", path, err)
	}

	root, err = setPath(root, segs, value)
	if err != nil {
		return nil, fmt.Errorf("set field %q: %w: %v", path, ErrInvalidField, err)
	}

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("set field %q: encode value: %w", path, err)
	}
	fresh, err := newLike(c)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.DisallowUnknownFields()
	if err := dec.Decode(fresh); err != nil {
		return nil, fmt.Errorf("set field %q on %s: %w: %v", path, c.BlockType(), ErrInvalidField, err)
	}
	return fresh, nil
}

// ParsePath splits a field path into segments.
func ParsePath(path string) ([]string, error) {
	normalized := strings.NewReplacer("[", ".", "]", "").Replace(strings.TrimSpace(path))
	if normalized == "" {
		return nil, fmt.Errorf("empty field path")
	}
	segs := strings.Split(normalized, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("malformed field path %q", path)
		}
	}
	return segs, nil
}

func setPath(node any, segs []string, value any) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg, rest := segs[0], segs[1:]

	switch n := node.(type) {
	case map[string]any:
		updated, err := setPath(n[seg], rest, value)
		if err != nil {
			return nil, err
		}
		n[seg] = updated
		return n, nil

	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("list index %q is not a number", seg)
		}
		if idx < 0 || idx > len(n) {
			return nil, fmt.Errorf("list index %d out of range (len %d)", idx, len(n))
		}
		if idx == len(n) {
			n = append(n, nil)
		}
		updated, err := setPath(n[idx], rest, value)
		if err != nil {
			return nil, err
		}
		n[idx] = updated
		return n, nil

	case nil:
		if idx, err := strconv.Atoi(seg); err == nil {
			if idx != 0 {
				return nil, fmt.Errorf("list index %d out of range (len 0)", idx)
			}
			return setPath([]any{}, segs, value)
		}
		return setPath(map[string]any{}, segs, value)

	default:
		return nil, fmt.Errorf("cannot descend into %q: not an object or list", seg)
	}
}
