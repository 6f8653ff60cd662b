package listing

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// sortItems stably orders items by acc. Nil values go last in both
// directions.
func sortItems[T any](items []T, acc Accessor[T], order SortOrder, coll *collate.Collator) {
	slices.SortStableFunc(items, func(a, b T) int {
		va, vb := deref(acc(a)), deref(acc(b))
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return 1
		case vb == nil:
			return -1
		}
		c := compareValues(va, vb, coll)
		if order == Desc {
			c = -c
		}
		return c
	})
}

func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func compareValues(a, b any, coll *collate.Collator) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case isInt(ra) && isInt(rb):
		return cmp.Compare(ra.Int(), rb.Int())
	case isUint(ra) && isUint(rb):
		return cmp.Compare(ra.Uint(), rb.Uint())
	case isNumber(ra) && isNumber(rb):
		return cmp.Compare(toFloat(ra), toFloat(rb))
	case ra.Kind() == reflect.Bool && rb.Kind() == reflect.Bool:
		return cmp.Compare(boolRank(ra.Bool()), boolRank(rb.Bool()))
	case ra.Kind() == reflect.String && rb.Kind() == reflect.String:
		return coll.CompareString(ra.String(), rb.String())
	}
	return coll.CompareString(fmt.Sprint(a), fmt.Sprint(b))
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(v reflect.Value) bool {
	return isInt(v) || isUint(v) || v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	}
	return v.Float()
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
