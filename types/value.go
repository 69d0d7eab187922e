package types

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidValueType indicates that a host value could not be converted
// into the value union at the API boundary.
var ErrInvalidValueType = errors.New("invalid value type")

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	NullValue ValueKind = iota
	BoolValue
	I64Value
	DoubleValue
	StringValue
	BinaryValue
	ListValue
	MapValue
	ContainerValue
)

// Value is the tagged union carried by all containers: null, bool, integer,
// double, string, binary, list, string-keyed map, or a reference to a nested
// container. Equality is structural and recursive.
type Value struct {
	Kind      ValueKind
	Bool      bool
	I64       int64
	Double    float64
	Str       string
	Binary    []byte
	List      []Value
	Map       map[string]Value
	Container ContainerID
}

// Null returns the null value.
func Null() Value { return Value{Kind: NullValue} }

// NewBool wraps a bool.
func NewBool(b bool) Value { return Value{Kind: BoolValue, Bool: b} }

// NewI64 wraps a 64-bit integer.
func NewI64(i int64) Value { return Value{Kind: I64Value, I64: i} }

// NewDouble wraps a float64.
func NewDouble(d float64) Value { return Value{Kind: DoubleValue, Double: d} }

// NewString wraps a string.
func NewString(s string) Value { return Value{Kind: StringValue, Str: s} }

// NewBinary wraps a byte slice.
func NewBinary(b []byte) Value { return Value{Kind: BinaryValue, Binary: b} }

// NewList wraps a list of values.
func NewList(vs ...Value) Value { return Value{Kind: ListValue, List: vs} }

// NewMap wraps a string-keyed map of values.
func NewMap(m map[string]Value) Value { return Value{Kind: MapValue, Map: m} }

// NewContainerRef wraps a reference to a nested container.
func NewContainerRef(id ContainerID) Value {
	return Value{Kind: ContainerValue, Container: id}
}

// FromGo converts a plain Go value into a Value. Supported host types:
// nil, bool, int/int32/int64/uint/uint32, float32/float64, string, []byte,
// []interface{}, []Value, map[string]interface{}, map[string]Value,
// ContainerID, and Value itself. Anything else reports ErrInvalidValueType.
func FromGo(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return NewBool(x), nil
	case int:
		return NewI64(int64(x)), nil
	case int32:
		return NewI64(int64(x)), nil
	case int64:
		return NewI64(x), nil
	case uint:
		return NewI64(int64(x)), nil
	case uint32:
		return NewI64(int64(x)), nil
	case float32:
		return NewDouble(float64(x)), nil
	case float64:
		return NewDouble(x), nil
	case string:
		return NewString(x), nil
	case []byte:
		return NewBinary(x), nil
	case ContainerID:
		return NewContainerRef(x), nil
	case []Value:
		return NewList(x...), nil
	case []interface{}:
		list := make([]Value, 0, len(x))
		for _, item := range x {
			converted, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			list = append(list, converted)
		}
		return NewList(list...), nil
	case map[string]Value:
		return NewMap(x), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(x))
		for key, item := range x {
			converted, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			m[key] = converted
		}
		return NewMap(m), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrInvalidValueType, v)
	}
}

// ToGo converts a Value back into plain Go types: nil, bool, int64, float64,
// string, []byte, []interface{}, map[string]interface{}, or ContainerID.
func (v Value) ToGo() interface{} {
	switch v.Kind {
	case NullValue:
		return nil
	case BoolValue:
		return v.Bool
	case I64Value:
		return v.I64
	case DoubleValue:
		return v.Double
	case StringValue:
		return v.Str
	case BinaryValue:
		return v.Binary
	case ListValue:
		list := make([]interface{}, len(v.List))
		for i, item := range v.List {
			list[i] = item.ToGo()
		}
		return list
	case MapValue:
		m := make(map[string]interface{}, len(v.Map))
		for key, item := range v.Map {
			m[key] = item.ToGo()
		}
		return m
	default:
		return v.Container
	}
}

// Equal reports structural, recursive equality.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case NullValue:
		return true
	case BoolValue:
		return v.Bool == other.Bool
	case I64Value:
		return v.I64 == other.I64
	case DoubleValue:
		return v.Double == other.Double
	case StringValue:
		return v.Str == other.Str
	case BinaryValue:
		return bytes.Equal(v.Binary, other.Binary)
	case ListValue:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case MapValue:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for key, item := range v.Map {
			otherItem, ok := other.Map[key]
			if !ok || !item.Equal(otherItem) {
				return false
			}
		}
		return true
	default:
		return v.Container == other.Container
	}
}

// String renders the value for debugging. Map keys are sorted so the output
// is deterministic.
func (v Value) String() string {
	switch v.Kind {
	case NullValue:
		return "null"
	case BoolValue:
		return fmt.Sprintf("%t", v.Bool)
	case I64Value:
		return fmt.Sprintf("%d", v.I64)
	case DoubleValue:
		return fmt.Sprintf("%g", v.Double)
	case StringValue:
		return fmt.Sprintf("%q", v.Str)
	case BinaryValue:
		return fmt.Sprintf("binary(%d bytes)", len(v.Binary))
	case ListValue:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case MapValue:
		keys := make([]string, 0, len(v.Map))
		for key := range v.Map {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = fmt.Sprintf("%q: %s", key, v.Map[key])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Container.String()
	}
}
