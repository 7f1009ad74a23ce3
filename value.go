package sqlitekit

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is the text layout SQLite's datetime() produces and the
// layout numeric-to-text coercions use.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// timeLayouts are the accepted layouts when extracting a time from a text
// column, most precise first. These match the driver's own timestamp formats.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	sqliteTimeLayout,
	"2006-01-02",
}

// BindPolicy is the lifetime contract for bound byte ranges.
//
// SQLite distinguishes static binds (the caller guarantees the bytes outlive
// the statement step, so the engine may skip the copy) from transient binds
// (the engine copies immediately). database/sql copies every argument before
// the driver sees it, which satisfies both contracts: Transient is the
// guarantee, Static merely permits a non-copying engine. The policy is kept
// in the API so callers state their lifetime intent explicitly.
type BindPolicy int

const (
	// Transient requires the engine to copy bound bytes immediately.
	// Every convenience path defaults to this.
	Transient BindPolicy = iota

	// Static declares the caller keeps the referenced bytes alive until the
	// statement has stepped, permitting a zero-copy bind.
	Static
)

// bindArgs converts every argument, in order, to its driver-level value.
// Position reporting is 1-based to match SQLite parameter numbering.
// Any conversion failure surfaces before the engine sees a single binding.
func bindArgs(policy BindPolicy, args []any) ([]any, error) {
	bound := make([]any, len(args))
	for i, arg := range args {
		v, err := bindValue(policy, arg)
		if err != nil {
			return nil, fmt.Errorf("binding parameter %d: %w", i+1, err)
		}
		bound[i] = v
	}
	return bound, nil
}

// bindValue maps one Go value onto the engine's native representation:
// booleans to 0/1 integers, integers of any width to 64-bit integers,
// floats, text, blobs, fixed-size byte buffers to text of capacity-1 bytes,
// nil (typed or untyped) to NULL. Pointers are the optional wrapper and
// named types dispatch through their underlying kind.
func bindValue(policy BindPolicy, arg any) (any, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		// Out-of-range values reinterpret as the engine's signed 64-bit
		// integer; staying in range is the caller's contract.
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil
	case []byte:
		return v, nil
	case time.Time:
		return v, nil
	}
	return bindReflect(policy, reflect.ValueOf(arg))
}

// bindReflect covers what the type switch cannot name: pointers (the
// optional codec), fixed-size byte arrays, and named types whose underlying
// kind is in the supported set.
func bindReflect(policy BindPolicy, rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return bindValue(policy, rv.Elem().Interface())
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return bindFixedBuffer(rv), nil
		}
	}
	return nil, fmt.Errorf("cannot bind value of type %s", rv.Type())
}

// bindFixedBuffer transmits exactly capacity-1 bytes of the buffer as text,
// matching the C string convention of reserving the last slot for the
// terminator.
func bindFixedBuffer(rv reflect.Value) string {
	n := rv.Len()
	if n <= 1 {
		return ""
	}
	buf := make([]byte, n)
	reflect.Copy(reflect.ValueOf(buf), rv)
	return string(buf[:n-1])
}

// extractValue assigns one column's driver value to dest. The driver value's
// dynamic type is the column's storage class: nil, int64, float64, string,
// []byte or time.Time.
func extractValue(dest, raw any) error {
	switch d := dest.(type) {
	case *bool:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = i != 0
	case *int:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = int(i)
	case *int8:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = int8(i)
	case *int16:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = int16(i)
	case *int32:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = int32(i)
	case *int64:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = i
	case *uint:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = uint(i)
	case *uint8:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = uint8(i)
	case *uint16:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = uint16(i)
	case *uint32:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = uint32(i)
	case *uint64:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		*d = uint64(i)
	case *float32:
		f, err := columnFloat(raw)
		if err != nil {
			return err
		}
		*d = float32(f)
	case *float64:
		f, err := columnFloat(raw)
		if err != nil {
			return err
		}
		*d = f
	case *string:
		*d = columnText(raw)
	case *[]byte:
		*d = columnBlob(raw)
	case *time.Time:
		t, err := columnTime(raw)
		if err != nil {
			return err
		}
		*d = t
	case *any:
		*d = raw
	default:
		return extractReflect(dest, raw)
	}
	return nil
}

// extractReflect covers pointer-to-pointer optionals, fixed-size byte
// buffers and named types on the extraction side.
func extractReflect(dest, raw any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("cannot extract into %T, need a non-nil pointer", dest)
	}
	elem := rv.Elem()
	switch elem.Kind() {
	case reflect.Pointer:
		// Optional: NULL storage class empties the target, anything else is
		// extracted into a freshly allocated payload.
		if raw == nil {
			elem.SetZero()
			return nil
		}
		payload := reflect.New(elem.Type().Elem())
		if err := extractValue(payload.Interface(), raw); err != nil {
			return err
		}
		elem.Set(payload)
		return nil
	case reflect.Bool:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		elem.SetBool(i != 0)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		elem.Set(reflect.ValueOf(i).Convert(elem.Type()))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := columnInt(raw)
		if err != nil {
			return err
		}
		elem.Set(reflect.ValueOf(i).Convert(elem.Type()))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := columnFloat(raw)
		if err != nil {
			return err
		}
		elem.Set(reflect.ValueOf(f).Convert(elem.Type()))
		return nil
	case reflect.String:
		elem.SetString(columnText(raw))
		return nil
	case reflect.Slice:
		if elem.Type().Elem().Kind() == reflect.Uint8 {
			elem.Set(reflect.ValueOf(columnBlob(raw)).Convert(elem.Type()))
			return nil
		}
	case reflect.Array:
		if elem.Type().Elem().Kind() == reflect.Uint8 {
			extractFixedBuffer(elem, raw)
			return nil
		}
	}
	return fmt.Errorf("cannot extract column into %T", dest)
}

// extractFixedBuffer copies at most capacity-1 bytes into the buffer and
// zero-fills the remainder, so a terminator is always present and nothing is
// ever written past the declared capacity. A NULL column leaves the buffer
// untouched.
func extractFixedBuffer(buf reflect.Value, raw any) {
	if raw == nil {
		return
	}
	src := []byte(columnText(raw))
	capacity := buf.Len()
	n := capacity - 1
	if n < 0 {
		return
	}
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		buf.Index(i).SetUint(uint64(src[i]))
	}
	for i := n; i < capacity; i++ {
		buf.Index(i).SetUint(0)
	}
}

// columnInt coerces a storage-class value to a 64-bit integer the way the
// engine's integer accessor does: NULL reads as 0, floats truncate, text
// parses numerically.
func columnInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case time.Time:
		return v.Unix(), nil
	case string:
		return parseTextInt(v)
	case []byte:
		return parseTextInt(string(v))
	}
	return 0, fmt.Errorf("cannot read %T column as integer", raw)
}

func parseTextInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot read text %q as integer", s)
	}
	return int64(f), nil
}

// columnFloat coerces a storage-class value to a float, NULL reading as 0.
func columnFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return parseTextFloat(v)
	case []byte:
		return parseTextFloat(string(v))
	}
	return 0, fmt.Errorf("cannot read %T column as float", raw)
}

func parseTextFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot read text %q as float", s)
	}
	return f, nil
}

// columnText renders a storage-class value as text. NULL yields the empty
// string: the engine reports no bytes for a NULL text accessor. Byte ranges
// come through verbatim, embedded zero bytes included.
func columnText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.UTC().Format(sqliteTimeLayout)
	}
	return fmt.Sprint(raw)
}

// columnBlob returns a copy of the column's bytes, nil for NULL.
func columnBlob(raw any) []byte {
	switch v := raw.(type) {
	case nil:
		return nil
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out
	case string:
		return []byte(v)
	}
	return []byte(columnText(raw))
}

// columnTime reads a storage-class value as a timestamp: driver-native
// times pass through, text parses against the accepted layouts, integers
// read as Unix seconds. NULL yields the zero time.
func columnTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case string:
		return parseTextTime(v)
	case []byte:
		return parseTextTime(string(v))
	}
	return time.Time{}, fmt.Errorf("cannot read %T column as time", raw)
}

func parseTextTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read text %q as time", s)
}
