package keys

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/callcache/types"
)

// maxDepth bounds recursion so cyclic pointer graphs fail instead of looping.
const maxDepth = 32

// Args carries the positional and named arguments of one call. Named
// arguments are order-normalized, so the order they were supplied in never
// changes the key.
type Args struct {
	Positional []any
	Named      map[string]any
}

// Keyer lets a type supply its own canonical form. Implement it on types
// whose natural representation is not deterministic (sets, maps, handles).
type Keyer interface {
	CacheKey() (string, error)
}

// KeyFunc overrides default derivation for one wrapper.
type KeyFunc[A any] func(arg A) (string, error)

/*
Deriver builds cache keys from an operation identity and the call arguments.

The canonical form is a tagged, length-prefixed encoding, so distinct argument
lists never concatenate to the same text. Supported values: nil, booleans,
integers, floats, complex numbers, strings, byte slices, pointers (followed),
interfaces, arrays, slices, structs (all fields, in declaration order), Args,
and anything implementing Keyer or encoding.TextMarshaler.

Maps, functions, channels and unsafe pointers have no deterministic form and
yield types.ErrUnhashableArguments unless a Normalizer is registered for
their type. So does an unexported struct field whose type has its own
canonical form (Keyer, TextMarshaler, time.Time or a Normalizer).
*/
type Deriver struct {
	// Typed includes each value's dynamic type, so int32(1) and int64(1)
	// derive different keys.
	Typed bool

	// Hash replaces the canonical text by its SHA-256 digest to bound key size.
	Hash bool

	// Normalizers convert values of a given type to a deterministic stand-in
	// before encoding.
	Normalizers map[reflect.Type]func(any) (any, error)
}

// Derive returns the key for identity applied to arg.
func (d *Deriver) Derive(identity string, arg any) (string, error) {
	var b strings.Builder
	writeString(&b, identity)
	b.WriteByte('|')

	if err := d.encode(&b, reflect.ValueOf(arg), 0); err != nil {
		return "", err
	}

	if d.Hash {
		sum := sha256.Sum256([]byte(b.String()))
		return identity + ":" + hex.EncodeToString(sum[:]), nil
	}
	return b.String(), nil
}

var (
	argsType          = reflect.TypeOf(Args{})
	keyerType         = reflect.TypeOf((*Keyer)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	timeType          = reflect.TypeOf(time.Time{})
)

func (d *Deriver) encode(b *strings.Builder, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return unhashable("argument nesting deeper than %d", maxDepth)
	}
	if !v.IsValid() {
		b.WriteString("n;")
		return nil
	}

	t := v.Type()
	if d.Typed {
		writeString(b, t.String())
	}

	// Values reached through unexported fields cannot be handed to a hook,
	// and encoding their internals would bypass its canonical form.
	if !v.CanInterface() && d.hooked(t) {
		return unhashable("unexported field of type %s has a canonical form that cannot be reached", t)
	}

	if norm, ok := d.Normalizers[t]; ok {
		out, err := norm(v.Interface())
		if err != nil {
			return platformerrors.Wrap(types.ErrUnhashableArguments, types.CodeUnhashableArguments, err.Error())
		}
		b.WriteString("N")
		return d.encode(b, reflect.ValueOf(out), depth+1)
	}

	if t == argsType {
		return d.encodeArgs(b, v.Interface().(Args), depth)
	}

	if t.Implements(keyerType) && !isNilPointer(v) {
		s, err := v.Interface().(Keyer).CacheKey()
		if err != nil {
			return platformerrors.Wrap(types.ErrUnhashableArguments, types.CodeUnhashableArguments, err.Error())
		}
		b.WriteString("K")
		writeString(b, s)
		return nil
	}

	if t == timeType {
		// time.Time implements TextMarshaler; normalizing to UTC makes equal
		// instants in different zones derive the same key.
		txt, _ := v.Interface().(time.Time).UTC().MarshalText()
		b.WriteString("T")
		writeString(b, string(txt))
		return nil
	}

	if t.Implements(textMarshalerType) && !isNilPointer(v) {
		txt, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return platformerrors.Wrap(types.ErrUnhashableArguments, types.CodeUnhashableArguments, err.Error())
		}
		b.WriteString("M")
		writeString(b, string(txt))
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		b.WriteString("b" + strconv.FormatBool(v.Bool()) + ";")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString("i" + strconv.FormatInt(v.Int(), 10) + ";")
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString("u" + strconv.FormatUint(v.Uint(), 10) + ";")
	case reflect.Float32, reflect.Float64:
		b.WriteString("f" + strconv.FormatFloat(v.Float(), 'g', -1, 64) + ";")
	case reflect.Complex64, reflect.Complex128:
		b.WriteString("c" + strconv.FormatComplex(v.Complex(), 'g', -1, 128) + ";")
	case reflect.String:
		b.WriteString("s")
		writeString(b, v.String())
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			b.WriteString("n;")
			return nil
		}
		b.WriteString("p")
		return d.encode(b, v.Elem(), depth+1)
	case reflect.Slice:
		if v.IsNil() {
			b.WriteString("n;")
			return nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			b.WriteString("y")
			writeString(b, string(v.Bytes()))
			return nil
		}
		return d.encodeList(b, v, depth)
	case reflect.Array:
		return d.encodeList(b, v, depth)
	case reflect.Struct:
		b.WriteString("{" + strconv.Itoa(v.NumField()) + ":")
		for i := 0; i < v.NumField(); i++ {
			writeString(b, t.Field(i).Name)
			if err := d.encode(b, v.Field(i), depth+1); err != nil {
				return err
			}
		}
		b.WriteString("}")
	case reflect.Map:
		return unhashable("map of type %s has no deterministic order", t)
	default:
		return unhashable("value of kind %s cannot be part of a key", v.Kind())
	}
	return nil
}

// hooked reports whether values of t are encoded through a hook rather than
// by their representation.
func (d *Deriver) hooked(t reflect.Type) bool {
	if _, ok := d.Normalizers[t]; ok {
		return true
	}
	return t == argsType || t == timeType || t.Implements(keyerType) || t.Implements(textMarshalerType)
}

func (d *Deriver) encodeList(b *strings.Builder, v reflect.Value, depth int) error {
	b.WriteString("[" + strconv.Itoa(v.Len()) + ":")
	for i := 0; i < v.Len(); i++ {
		if err := d.encode(b, v.Index(i), depth+1); err != nil {
			return err
		}
	}
	b.WriteString("]")
	return nil
}

func (d *Deriver) encodeArgs(b *strings.Builder, a Args, depth int) error {
	b.WriteString("A" + strconv.Itoa(len(a.Positional)) + ":")
	for _, p := range a.Positional {
		if err := d.encode(b, reflect.ValueOf(p), depth+1); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(a.Named))
	for name := range a.Named {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("/" + strconv.Itoa(len(names)) + ":")
	for _, name := range names {
		writeString(b, name)
		if err := d.encode(b, reflect.ValueOf(a.Named[name]), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeString writes s length-prefixed.
func writeString(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte('#')
	b.WriteString(s)
}

func isNilPointer(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func unhashable(format string, args ...any) error {
	return platformerrors.Wrap(types.ErrUnhashableArguments, types.CodeUnhashableArguments, fmt.Sprintf(format, args...))
}
