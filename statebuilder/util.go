package statebuilder

import "sort"

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deepCopy copies the maps and slices of a decoded JSON value.
func deepCopy(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		dup := make(map[string]interface{}, len(x))
		for k, elem := range x {
			dup[k] = deepCopy(elem)
		}
		return dup
	case []interface{}:
		dup := make([]interface{}, len(x))
		for i, elem := range x {
			dup[i] = deepCopy(elem)
		}
		return dup
	}
	return v
}
