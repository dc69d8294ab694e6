package bson

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// structField describes one encodable/decodable field of a struct type,
// resolved once and cached per reflect.Type.
type structField struct {
	name      string
	index     []int
	omitEmpty bool
}

var structFieldCache sync.Map // reflect.Type -> []structField

// structFieldsFor returns the encodable fields of t, in declaration order,
// respecting `bson:"name,omitempty"` struct tags the same way the teacher's
// struct codec does: a name of "-" skips the field, an empty name defaults
// to the lower-cased Go field name, and unexported fields are skipped.
func structFieldsFor(t reflect.Type) ([]structField, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("structFieldsFor: %s is not a struct", t)
	}
	if cached, ok := structFieldCache.Load(t); ok {
		return cached.([]structField), nil
	}

	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" && !sf.Anonymous {
			continue // unexported
		}
		tag, ok := sf.Tag.Lookup("bson")
		name := strings.ToLower(sf.Name)
		omitEmpty := false
		if ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fields = append(fields, structField{name: name, index: sf.Index, omitEmpty: omitEmpty})
	}

	structFieldCache.Store(t, fields)
	return fields, nil
}
