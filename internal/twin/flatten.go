package twin

import (
	"fmt"
	"math"
	"strconv"
)

// Namespace prefixes every flattened attribute key, marking the attribute
// as mirrored from a hub device twin rather than locally authored.
const Namespace = "azureiot"

// Separator joins path segments in flattened attribute keys.
const Separator = "#"

// Flatten converts a nested twin property document into flat string
// attributes suitable for the local registry.
//
// Each leaf becomes one attribute whose key is the namespace followed by
// the full path to the leaf, segments joined with Separator:
//
//	{"Root": {"Value": 500.0}}  →  {"azureiot#Root#Value": "500.0"}
//
// Nested maps recurse and produce no entry of their own. Leaves render
// via their natural string form (see stringForm). On a key collision the
// last write wins.
//
// Parameters:
//   - doc: Decoded twin property document
//
// Returns:
//   - map[string]string: Flattened attributes; empty map for empty input
func Flatten(doc map[string]interface{}) map[string]string {
	flat := make(map[string]string, len(doc))
	for key, value := range doc {
		flattenInto(flat, Namespace+Separator+key, value)
	}
	return flat
}

// flattenInto walks one subtree, appending leaves to flat.
func flattenInto(flat map[string]string, prefix string, value interface{}) {
	nested, ok := value.(map[string]interface{})
	if !ok {
		flat[prefix] = stringForm(value)
		return
	}
	for key, child := range nested {
		flattenInto(flat, prefix+Separator+key, child)
	}
}

// stringForm renders a leaf value as an attribute string.
//
// Whole floats keep one decimal place (500.0 renders as "500.0", not
// "500") so numeric attributes round-trip byte-identically with the twin
// documents the hub serves.
func stringForm(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatFloat(v, 'f', 1, 64)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
