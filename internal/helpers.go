package internal

import (
	"reflect"
	"sort"
)

// Returns type of instance as written in source, e.g. "*pkg.Type" or "map[string]int".
func TypeName(instance any) string {
	if instance == nil {
		return "nil"
	}

	return reflect.TypeOf(instance).String()
}

// Returns true for nil values of nillable kinds (func, map, slice, pointer...).
func IsNil(instance any) bool {
	if instance == nil {
		return true
	}

	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// Returns elements of any slice or array, or false for other kinds.
func Elements(instance any) ([]any, bool) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}

	elements := make([]any, v.Len())
	for i := range elements {
		elements[i] = v.Index(i).Interface()
	}

	return elements, true
}

// Pair is a single key/value of a string keyed mapping.
type Pair struct {
	Key   string
	Value any
}

// Returns pairs of any map with string keys sorted by key, or false for other values.
func Pairs(instance any) ([]Pair, bool) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	pairs := make([]Pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, Pair{Key: iter.Key().String(), Value: iter.Value().Interface()})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	return pairs, true
}

// Returns true if instance is a map of any type.
func IsMapping(instance any) bool {
	return instance != nil && reflect.TypeOf(instance).Kind() == reflect.Map
}
