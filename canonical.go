package adjudicator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// marshalCanonical produces canonical JSON for content-addressed hashing.
// This is the only serialization used for cache keys and fact comparison.
//
// Properties, following RFC 8785:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Floats use the shortest round-trip decimal form; NaN and infinities
//     are rejected
//
// Accepts arbitrary Go values via reflection: primitives, pointers, slices,
// arrays, string-keyed maps, and structs (exported fields, honoring a `json`
// tag name if present). Values outside this shape (channels, funcs, non-string
// map keys) have no canonical form and must be covered by a custom hasher
// registered with HashSupport.
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, rv reflect.Value) error {
	if !rv.IsValid() {
		buf.WriteString("null")
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return writeCanonical(buf, rv.Elem())

	case reflect.Bool:
		if rv.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(rv.Int(), 10))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(rv.Uint(), 10))
		return nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("canonical JSON cannot represent %v", f)
		}
		// Shortest round-trip form; integral floats render without exponent
		// or trailing ".0" so 1.0 and 1 hash alike across numeric kinds.
		if f == math.Trunc(f) && math.Abs(f) < 1e21 {
			buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		} else {
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return nil

	case reflect.String:
		return writeCanonicalString(buf, rv.String())

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, rv.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("canonical JSON requires string map keys, got %s", rv.Type())
		}
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sortKeysRFC8785(keys)
		return writeCanonicalObject(buf, keys, func(k string) reflect.Value { return byKey[k] })

	case reflect.Struct:
		keys, fields := canonicalFields(rv)
		return writeCanonicalObject(buf, keys, func(k string) reflect.Value { return fields[k] })

	default:
		return fmt.Errorf("no canonical form for %s (register a hasher with HashSupport)", rv.Type())
	}
}

// writeCanonicalObject writes a JSON object with pre-sorted keys.
func writeCanonicalObject(buf *bytes.Buffer, keys []string, value func(string) reflect.Value) error {
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, value(k)); err != nil {
			return fmt.Errorf("%q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// canonicalFields collects the exported fields of a struct value, keyed by
// json tag name where one is present, sorted in canonical key order.
func canonicalFields(rv reflect.Value) ([]string, map[string]reflect.Value) {
	rt := rv.Type()
	keys := make([]string, 0, rt.NumField())
	fields := make(map[string]reflect.Value, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		keys = append(keys, name)
		fields[name] = rv.Field(i)
	}
	sortKeysRFC8785(keys)
	return keys, fields
}

// writeCanonicalString writes a JSON string with NFC normalization and no
// HTML escaping. Only control characters, backslash and quote are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var enc bytes.Buffer
	e := json.NewEncoder(&enc)
	e.SetEscapeHTML(false)
	if err := e.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimRight(enc.Bytes(), "\n")

	// encoding/json escapes U+2028/U+2029 for JavaScript embedding; RFC 8785
	// wants them literal. The escapes the encoder emits always stand for the
	// real characters (a literal backslash would itself be escaped as \\), so
	// a plain replace is safe here.
	out = bytes.ReplaceAll(out, []byte(`\u2028`), []byte(" "))
	out = bytes.ReplaceAll(out, []byte(`\u2029`), []byte(" "))

	buf.Write(out)
	return nil
}

// sortKeysRFC8785 sorts keys by UTF-16 code units as RFC 8785 requires.
// Go's sort.Strings compares UTF-8 bytes, which orders supplementary-plane
// characters differently.
func sortKeysRFC8785(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return compareUTF16(keys[i], keys[j]) < 0
	})
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := len(a16)
	if len(b16) < n {
		n = len(b16)
	}
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
	default:
		return 0
	}
}
