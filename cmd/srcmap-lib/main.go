// Package main provides a C-callable static library for source map handling.
//
// This is built with -buildmode=c-archive to produce libsrcmap.a
// that can be linked into Zig/C/Rust programs.
//
// Build:
//
//	CGO_ENABLED=1 go build -buildmode=c-archive -o build/libsrcmap.a ./cmd/srcmap-lib
//
// Every function taking a map returns a JSON result object in out_json,
// shaped like the matching pkg/api result.
//
// Exported functions:
//
//	srcmap_encode(decoded, decoded_len, out_json, out_len) -> error_code
//	srcmap_decode(map, map_len, out_json, out_len) -> error_code
//	srcmap_flatten(map, map_len, out_json, out_len) -> error_code
//	srcmap_compose(outer, outer_len, inners_json, inners_len, out_json, out_len) -> error_code
//	srcmap_lookup(map, map_len, line, column, bias, out_json, out_len) -> error_code
//	srcmap_reverse(map, map_len, source, source_len, line, column, out_json, out_len) -> error_code
//	srcmap_validate(map, map_len, out_json, out_len) -> error_code
//	srcmap_free(ptr) -> void
//	srcmap_version() -> *char
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"unsafe"

	"github.com/HugoDaniel/srcmap/pkg/api"
)

// Version should match the release version
const version = "0.1.0"

// Error codes
const (
	SRCMAP_OK              = 0
	SRCMAP_ERR_JSON_ENCODE = 1
	SRCMAP_ERR_NULL_INPUT  = 2
	SRCMAP_ERR_JSON_DECODE = 3
)

// Bias values accepted by srcmap_lookup.
const (
	SRCMAP_BIAS_GLB = 0
	SRCMAP_BIAS_LUB = 1
)

// writeJSON marshals result into a C string owned by the caller.
func writeJSON(result any, out_json **C.char, out_len *C.int) C.int {
	data, err := json.Marshal(result)
	if err != nil {
		return SRCMAP_ERR_JSON_ENCODE
	}
	*out_json = C.CString(string(data))
	*out_len = C.int(len(data))
	return SRCMAP_OK
}

// srcmap_encode converts a decoded map into an encoded map.
//
// Parameters:
//   - decoded: pointer to the decoded map JSON (UTF-8)
//   - decoded_len: length of the JSON in bytes
//   - out_json: pointer to receive the result (caller must free with srcmap_free)
//   - out_len: pointer to receive the result length
//
// Returns:
//   - 0 on success, including maps with errors (see the "errors" field)
//   - non-zero error code on failure
//
//export srcmap_encode
func srcmap_encode(decoded *C.char, decoded_len C.int, out_json **C.char, out_len *C.int) C.int {
	if decoded == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	return writeJSON(api.Encode(C.GoStringN(decoded, decoded_len)), out_json, out_len)
}

// srcmap_decode converts an encoded or sectioned map into its decoded form.
//
//export srcmap_decode
func srcmap_decode(sm *C.char, sm_len C.int, out_json **C.char, out_len *C.int) C.int {
	if sm == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	return writeJSON(api.Decode(C.GoStringN(sm, sm_len)), out_json, out_len)
}

// srcmap_flatten converts a sectioned map into a flat encoded map.
//
//export srcmap_flatten
func srcmap_flatten(sm *C.char, sm_len C.int, out_json **C.char, out_len *C.int) C.int {
	if sm == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	return writeJSON(api.Flatten(C.GoStringN(sm, sm_len)), out_json, out_len)
}

// srcmap_compose composes an outer map with the maps of its sources.
//
// Parameters:
//   - outer: pointer to the outer map JSON
//   - outer_len: length of the outer map
//   - inners_json: JSON array of inner maps, each a map object (can be NULL)
//   - inners_len: length of inners_json
//   - out_json, out_len: result, as for srcmap_encode
//
//export srcmap_compose
func srcmap_compose(
	outer *C.char, outer_len C.int,
	inners_json *C.char, inners_len C.int,
	out_json **C.char, out_len *C.int,
) C.int {
	if outer == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}

	var inners []string
	if inners_json != nil && inners_len > 0 {
		var raw []json.RawMessage
		if err := json.Unmarshal([]byte(C.GoStringN(inners_json, inners_len)), &raw); err != nil {
			return SRCMAP_ERR_JSON_DECODE
		}
		inners = make([]string, len(raw))
		for i, r := range raw {
			inners[i] = string(r)
		}
	}
	return writeJSON(api.Compose(C.GoStringN(outer, outer_len), inners), out_json, out_len)
}

// srcmap_lookup finds the original position of a generated position.
// line is 1-based, column is a 0-based UTF-16 offset and bias is
// SRCMAP_BIAS_GLB or SRCMAP_BIAS_LUB.
//
//export srcmap_lookup
func srcmap_lookup(
	sm *C.char, sm_len C.int,
	line, column, bias C.int,
	out_json **C.char, out_len *C.int,
) C.int {
	if sm == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	biasName := "glb"
	if bias == SRCMAP_BIAS_LUB {
		biasName = "lub"
	}
	result := api.LookupWithBias(C.GoStringN(sm, sm_len), int(line), int(column), biasName)
	return writeJSON(result, out_json, out_len)
}

// srcmap_reverse finds the generated positions of an original position.
//
//export srcmap_reverse
func srcmap_reverse(
	sm *C.char, sm_len C.int,
	source *C.char, source_len C.int,
	line, column C.int,
	out_json **C.char, out_len *C.int,
) C.int {
	if sm == nil || source == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	result := api.Reverse(C.GoStringN(sm, sm_len), C.GoStringN(source, source_len), int(line), int(column))
	return writeJSON(result, out_json, out_len)
}

// srcmap_validate checks a map for structural faults and returns its
// diagnostics.
//
//export srcmap_validate
func srcmap_validate(sm *C.char, sm_len C.int, out_json **C.char, out_len *C.int) C.int {
	if sm == nil || out_json == nil || out_len == nil {
		return SRCMAP_ERR_NULL_INPUT
	}
	return writeJSON(api.Validate(C.GoStringN(sm, sm_len)), out_json, out_len)
}

// srcmap_free frees memory allocated by srcmap functions.
//
//export srcmap_free
func srcmap_free(ptr *C.char) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

// srcmap_version returns the library version string.
// The caller must free it with srcmap_free.
//
//export srcmap_version
func srcmap_version() *C.char {
	return C.CString(version)
}

// Required for c-archive build mode
func main() {}
