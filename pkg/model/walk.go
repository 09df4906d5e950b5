package model

// Walk calls fn for every model reachable from value, descending through
// sequences, mappings and the attributes of nested models. Each model is
// visited once, so cyclic graphs terminate. Returning false from fn stops
// descent below that model.
func Walk(value any, fn func(*Model) bool) {
	walk(value, fn, make(map[*Model]struct{}))
}

func walk(value any, fn func(*Model) bool, seen map[*Model]struct{}) {
	switch v := value.(type) {
	case *Model:
		if v == nil {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		if !fn(v) {
			return
		}
		for _, name := range v.Names() {
			child, _ := v.Get(name)
			walk(child, fn, seen)
		}
	case []any:
		for _, item := range v {
			walk(item, fn, seen)
		}
	case map[string]any:
		for _, item := range v {
			walk(item, fn, seen)
		}
	}
}
