//go:build js && wasm

// Command srcmap-wasm is the WebAssembly build of srcmap.
// It exposes the pkg/api functions to JavaScript via syscall/js.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/HugoDaniel/srcmap/pkg/api"
)

var version = "dev"

func main() {
	js.Global().Set("__srcmap", js.ValueOf(map[string]interface{}{
		"encode":    js.FuncOf(encodeJS),
		"decode":    js.FuncOf(decodeJS),
		"flatten":   js.FuncOf(flattenJS),
		"compose":   js.FuncOf(composeJS),
		"lookup":    js.FuncOf(lookupJS),
		"reverse":   js.FuncOf(reverseJS),
		"validate":  js.FuncOf(validateJS),
		"encodeVLQ": js.FuncOf(encodeVLQJS),
		"decodeVLQ": js.FuncOf(decodeVLQJS),
		"version":   version,
	}))

	// Keep the Go runtime alive
	select {}
}

// Signature: __srcmap.encode(decoded: string | object) => {map, dataURI, errors}
func encodeJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("encode requires 1 argument (decoded map)")
	}
	return toJS(api.Encode(jsonArg(args[0])))
}

// Signature: __srcmap.decode(map: string | object) => {map, errors}
func decodeJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("decode requires 1 argument (map)")
	}
	return toJS(api.Decode(jsonArg(args[0])))
}

// Signature: __srcmap.flatten(map: string | object) => {map, dataURI, errors}
func flattenJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("flatten requires 1 argument (map)")
	}
	return toJS(api.Flatten(jsonArg(args[0])))
}

// Signature: __srcmap.compose(outer, inners?: Array) => {map, dataURI, errors}
func composeJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("compose requires at least 1 argument (outer map)")
	}
	var inners []string
	if len(args) > 1 && args[1].Type() == js.TypeObject {
		n := args[1].Get("length").Int()
		inners = make([]string, n)
		for i := 0; i < n; i++ {
			inners[i] = jsonArg(args[1].Index(i))
		}
	}
	return toJS(api.Compose(jsonArg(args[0]), inners))
}

// Signature: __srcmap.lookup(map, line, column, bias?: "glb" | "lub") => object
func lookupJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return makeError("lookup requires 3 arguments (map, line, column)")
	}
	bias := "glb"
	if len(args) > 3 && args[3].Type() == js.TypeString {
		bias = args[3].String()
	}
	return toJS(api.LookupWithBias(jsonArg(args[0]), args[1].Int(), args[2].Int(), bias))
}

// Signature: __srcmap.reverse(map, source, line, column) => object
func reverseJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return makeError("reverse requires 4 arguments (map, source, line, column)")
	}
	return toJS(api.Reverse(jsonArg(args[0]), args[1].String(), args[2].Int(), args[3].Int()))
}

// Signature: __srcmap.validate(map) => {valid, diagnostics, errors}
func validateJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("validate requires 1 argument (map)")
	}
	return toJS(api.Validate(jsonArg(args[0])))
}

// Signature: __srcmap.encodeVLQ(values: number[]) => {encoded, errors}
func encodeVLQJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return makeError("encodeVLQ requires 1 argument (array of integers)")
	}
	n := args[0].Get("length").Int()
	values := make([]int, n)
	for i := range values {
		values[i] = args[0].Index(i).Int()
	}
	return toJS(api.EncodeVLQ(values))
}

// Signature: __srcmap.decodeVLQ(s: string) => {values, errors}
func decodeVLQJS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("decodeVLQ requires 1 argument (string)")
	}
	return toJS(api.DecodeVLQ(args[0].String()))
}

// jsonArg accepts a map either as a JSON string or as a plain object.
func jsonArg(v js.Value) string {
	if v.Type() == js.TypeString {
		return v.String()
	}
	return js.Global().Get("JSON").Call("stringify", v).String()
}

// toJS converts a result struct into a plain JavaScript object.
func toJS(result interface{}) interface{} {
	data, err := json.Marshal(result)
	if err != nil {
		return makeError(err.Error())
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

// makeError creates a result object with an error.
func makeError(msg string) interface{} {
	return map[string]interface{}{
		"errors": []interface{}{msg},
	}
}
