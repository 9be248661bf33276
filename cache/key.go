package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// maxKeyLen bounds the length of generated keys; anything longer is
// replaced by a hash so downstream stores never see oversized keys.
const maxKeyLen = 200

// Param is a single named scalar parameter for key construction. The
// value carries a type tag so that Int("p", 5) and String("p", "5")
// produce different keys. Composite values are unrepresentable: callers
// must flatten nested parameters into scalars first.
type Param struct {
	Name string

	tag   byte
	value string
}

// String returns a string-valued parameter.
func String(name, v string) Param {
	return Param{Name: name, tag: 's', value: v}
}

// Int returns an integer-valued parameter.
func Int(name string, v int64) Param {
	return Param{Name: name, tag: 'i', value: strconv.FormatInt(v, 10)}
}

// Bool returns a boolean-valued parameter.
func Bool(name string, v bool) Param {
	return Param{Name: name, tag: 'b', value: strconv.FormatBool(v)}
}

// Float returns a float-valued parameter.
func Float(name string, v float64) Param {
	return Param{Name: name, tag: 'f', value: strconv.FormatFloat(v, 'g', -1, 64)}
}

// Build generates a deterministic cache key from a namespace, an
// operation name and a parameter set. Parameters are sorted by name
// before concatenation, so insertion order never changes the key.
// Names and values are query-escaped so a value containing the
// delimiter characters cannot forge extra parameters and collide with
// a different parameter set. Build is a pure function: no time, no
// randomness, no I/O.
//
// Format: <namespace>:<operation>?<name>=<tag>:<value>&...
// Keys longer than maxKeyLen collapse to <namespace>:<operation>:<sha256/16B>.
func Build(namespace, operation string, params ...Param) string {
	sorted := make([]Param, len(params))
	copy(sorted, params)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(operation)
	for i, p := range sorted {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteByte(p.tag)
		b.WriteByte(':')
		b.WriteString(url.QueryEscape(p.value))
	}

	key := b.String()
	if len(key) > maxKeyLen {
		sum := sha256.Sum256([]byte(key))
		return namespace + ":" + operation + ":" + hex.EncodeToString(sum[:16])
	}
	return key
}
