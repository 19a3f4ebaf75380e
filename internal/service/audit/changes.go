package audit

import (
	"reflect"
	"strings"
)

// Change is the before and after value of one field.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Diff compares the json-named fields of two structs of the same type and
// returns the ones that differ. Embedded structs are flattened.
func Diff(old, new interface{}, fields ...string) map[string]Change {
	changes := make(map[string]Change)
	if old == nil || new == nil {
		return changes
	}

	oldFields := extractFields(old, fields)
	for name, newValue := range extractFields(new, fields) {
		oldValue, ok := oldFields[name]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(oldValue, newValue) {
			changes[name] = Change{Old: oldValue, New: newValue}
		}
	}
	return changes
}

func extractFields(obj interface{}, fields []string) map[string]interface{} {
	result := make(map[string]interface{})
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return result
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return result
	}
	collect(val, fields, result)
	return result
}

func collect(val reflect.Value, fields []string, out map[string]interface{}) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collect(val.Field(i), fields, out)
			continue
		}
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		if len(fields) > 0 && !contains(fields, name) {
			continue
		}
		out[name] = val.Field(i).Interface()
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
