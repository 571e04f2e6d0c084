package partial

import (
	"sort"
	"strconv"
)

// Reviver transforms a decoded value. It is called with the member name, or
// the decimal index for array elements, and the value after its children
// have been revived. Returning keep == false removes an object member; a
// removed array element becomes nil so the array keeps its length and
// later elements keep their index. The document root is visited last with
// key "".
type Reviver func(key string, value any) (replacement any, keep bool)

// revive walks value bottom-up: array elements by index, then object members
// by sorted key, then the value itself. Containers are modified in place.
func revive(key string, value any, reviver Reviver) (any, bool) {
	switch v := value.(type) {
	case []any:
		for i, elem := range v {
			if replacement, keep := revive(strconv.Itoa(i), elem, reviver); keep {
				v[i] = replacement
			} else {
				v[i] = nil
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if replacement, keep := revive(k, v[k], reviver); keep {
				v[k] = replacement
			} else {
				delete(v, k)
			}
		}
	}
	return reviver(key, value)
}
