package command

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// ErrMalformedCommand marks a command rejected during normalization.
var ErrMalformedCommand = errors.New("malformed command")

// UnsupportedPayloadError reports a payload member that cannot survive a
// JSON-safe structural copy.
type UnsupportedPayloadError struct {
	Path   string
	Reason string
}

func (e *UnsupportedPayloadError) Error() string {
	return fmt.Sprintf("unsupported payload value at %s: %s", e.Path, e.Reason)
}

// CloneValue performs a structural copy of a JSON-safe value. Numbers are
// widened to float64 the way encoding/json decodes them, so a command carries
// the same payload whether it came from a live recorder or a decoded stream.
//
// The copy fails on non-finite numbers, values with no JSON representation
// (funcs, channels, complex numbers, non-plain structs) and true cycles.
// Cycle detection walks an ancestor path threaded through the recursion, so
// diamond-shaped sharing of the same subtree is legal while a value that
// contains itself is not.
func CloneValue(v any) (any, error) {
	return cloneValue(v, "$", nil)
}

type ancestor struct {
	ptr  uintptr
	prev *ancestor
}

func (a *ancestor) contains(ptr uintptr) bool {
	for node := a; node != nil; node = node.prev {
		if node.ptr == ptr {
			return true
		}
	}
	return false
}

func cloneValue(v any, path string, parents *ancestor) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch value := v.(type) {
	case bool:
		return value, nil
	case string:
		return value, nil
	case float64:
		return cloneFloat(value, path)
	case float32:
		return cloneFloat(float64(value), path)
	case int:
		return float64(value), nil
	case int8:
		return float64(value), nil
	case int16:
		return float64(value), nil
	case int32:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case uint:
		return float64(value), nil
	case uint8:
		return float64(value), nil
	case uint16:
		return float64(value), nil
	case uint32:
		return float64(value), nil
	case uint64:
		return float64(value), nil
	case []any:
		return cloneSlice(value, path, parents)
	case map[string]any:
		return cloneMap(value, path, parents)
	}
	return nil, &UnsupportedPayloadError{
		Path:   path,
		Reason: fmt.Sprintf("type %T has no JSON-safe representation", v),
	}
}

func cloneFloat(value float64, path string) (any, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &UnsupportedPayloadError{Path: path, Reason: "non-finite number"}
	}
	return value, nil
}

func cloneSlice(value []any, path string, parents *ancestor) (any, error) {
	if value == nil {
		return nil, nil
	}
	ptr := reflect.ValueOf(value).Pointer()
	if parents.contains(ptr) {
		return nil, &UnsupportedPayloadError{Path: path, Reason: "circular reference"}
	}
	frame := &ancestor{ptr: ptr, prev: parents}
	cloned := make([]any, len(value))
	for i, member := range value {
		copied, err := cloneValue(member, fmt.Sprintf("%s[%d]", path, i), frame)
		if err != nil {
			return nil, err
		}
		cloned[i] = copied
	}
	return cloned, nil
}

func cloneMap(value map[string]any, path string, parents *ancestor) (any, error) {
	if value == nil {
		return nil, nil
	}
	ptr := reflect.ValueOf(value).Pointer()
	if parents.contains(ptr) {
		return nil, &UnsupportedPayloadError{Path: path, Reason: "circular reference"}
	}
	frame := &ancestor{ptr: ptr, prev: parents}
	cloned := make(map[string]any, len(value))
	for key, member := range value {
		copied, err := cloneValue(member, path+"."+key, frame)
		if err != nil {
			return nil, err
		}
		cloned[key] = copied
	}
	return cloned, nil
}
