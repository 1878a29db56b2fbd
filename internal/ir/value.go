package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the constrained value types that can be
// digested: String, Int, Bool, Array and Object. There is no float and no
// null; optional fields are omitted from an Object instead.
type Value interface {
	irValue()
}

// String is a string value.
type String string

func (String) irValue() {}

// Int is an integer value. Instants are carried as epoch milliseconds.
type Int int64

func (Int) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps keys to values. Iterate with SortedKeys for a stable order.
type Object map[string]Value

func (Object) irValue() {}

// Strings builds an Array that keeps the order of ss.
func Strings(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// StringSet builds an Array from ss in canonical order, so that two sets
// with the same members digest identically.
func StringSet(ss []string) Array {
	sorted := slices.Clone(ss)
	slices.SortFunc(sorted, compareKeysRFC8785)
	sorted = slices.Compact(sorted)
	return Strings(sorted)
}

// SetIfNotEmpty stores s under key unless s is empty.
func (obj Object) SetIfNotEmpty(key, s string) {
	if s != "" {
		obj[key] = String(s)
	}
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
