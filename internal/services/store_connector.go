package services

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/themeflow/server/internal/store"
)

// StoreConnector resolves dotted store paths against a fixed set of named stores
type StoreConnector struct {
	stores map[string]store.Store
}

// NewStoreConnector creates a connector over stores. The map is copied.
func NewStoreConnector(stores map[string]store.Store) *StoreConnector {
	c := &StoreConnector{stores: make(map[string]store.Store, len(stores))}
	for name, s := range stores {
		c.stores[name] = s
	}
	return c
}

// Store returns the named store
func (c *StoreConnector) Store(name string) (store.Store, bool) {
	s, ok := c.stores[name]
	return s, ok
}

// ResolveValue walks path through the current state of the named store.
// Segments are separated by dots; a segment of the form field[key] looks up
// field and then key. Any miss yields (nil, false).
func (c *StoreConnector) ResolveValue(storeName, path string) (any, bool) {
	s, ok := c.stores[storeName]
	if !ok {
		return nil, false
	}
	var current any = map[string]any(s.GetState())
	for _, segment := range strings.Split(path, ".") {
		field, key, bracketed := splitSegment(segment)
		current, ok = LookupField(current, field)
		if !ok {
			return nil, false
		}
		if bracketed {
			current, ok = LookupField(current, key)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

// ResolvePath resolves a full "store.rest.of.path" address
func (c *StoreConnector) ResolvePath(fullPath string) (any, bool) {
	storeName, rest, ok := strings.Cut(fullPath, ".")
	if !ok {
		return nil, false
	}
	return c.ResolveValue(storeName, rest)
}

// ResolveAction returns the value at name in the named store only if it is callable
func (c *StoreConnector) ResolveAction(storeName, name string) (any, bool) {
	v, ok := c.ResolveValue(storeName, name)
	if !ok || v == nil {
		return nil, false
	}
	if reflect.TypeOf(v).Kind() != reflect.Func || reflect.ValueOf(v).IsNil() {
		return nil, false
	}
	return v, true
}

// Subscribe forwards to the named store; an unknown store yields a no-op unsubscribe
func (c *StoreConnector) Subscribe(storeName string, cb store.Listener) func() {
	s, ok := c.stores[storeName]
	if !ok {
		return func() {}
	}
	return s.Subscribe(cb)
}

// splitSegment splits "field[key]" into its parts
func splitSegment(segment string) (field, key string, bracketed bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 || !strings.HasSuffix(segment, "]") {
		return segment, "", false
	}
	return segment[:open], segment[open+1 : len(segment)-1], true
}

// LookupField reads key from a string-keyed map, a slice or array (numeric key),
// or a struct (field name or json tag name). Pointers and interfaces are followed.
func LookupField(container any, key string) (any, bool) {
	v := reflect.ValueOf(container)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		entry := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		if !entry.IsValid() {
			return nil, false
		}
		return entry.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= v.Len() {
			return nil, false
		}
		return v.Index(i).Interface(), true
	case reflect.Struct:
		return structField(v, key)
	}
	return nil, false
}

func structField(v reflect.Value, key string) (any, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if f.Name == key || (name != "" && name != "-" && name == key) {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}
