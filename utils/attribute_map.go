package utils

import (
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a convenience wrapper for pulling out typed information from a map.
type AttributeMap map[string]interface{}

// Has returns whether or not the given name is in the attributes.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// Float64 returns the float64 stored under name, or the default when absent or of another type.
func (am AttributeMap) Float64(name string, def float64) float64 {
	switch v := am[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int returns the int stored under name, or the default when absent or of another type.
// JSON numbers decode as float64 and are truncated.
func (am AttributeMap) Int(name string, def int) int {
	switch v := am[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns the bool stored under name, or the default.
func (am AttributeMap) Bool(name string, def bool) bool {
	if v, ok := am[name].(bool); ok {
		return v
	}
	return def
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Keys are matched against `json` struct tags. Unknown keys are an error so misspelled stage
// parameters are caught at configuration time.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		// nothing to transform
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	if len(md.Unused) != 0 {
		return out, errors.Errorf("unknown attributes %v", md.Unused)
	}
	return out, nil
}
