//go:build js && wasm
// +build js,wasm

// Browser helpers for the bridge dashboard. Lines arriving on
// /ws/telemetry are classified and decoded here with the same code the
// host uses, and commands typed in the page are normalized before they
// are posted to /api/command.
package main

import (
	"encoding/json"
	"strings"
	"syscall/js"

	"pilot/protocol"
)

func main() {
	js.Global().Set("pilotWasm", js.ValueOf(map[string]interface{}{
		"classifyLine":     js.FuncOf(classifyLineWrapper),
		"decodeTelemetry":  js.FuncOf(decodeTelemetryWrapper),
		"parseMenuStatus":  js.FuncOf(parseMenuStatusWrapper),
		"parseSetPosition": js.FuncOf(parseSetPositionWrapper),
		"encodeCommand":    js.FuncOf(encodeCommandWrapper),
	}))

	// Keep the program running
	select {}
}

// classifyLineWrapper returns the kind name of one hub output line
// Args: line (string)
func classifyLineWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(protocol.LineOther.String())
	}
	return js.ValueOf(protocol.ClassifyLine(args[0].String()).String())
}

// decodeTelemetryWrapper re-encodes a telemetry line as plain JSON
// Returns: {json: string, error: string}
func decodeTelemetryWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult("", "missing line argument")
	}
	rec, err := protocol.DecodeTelemetry(args[0].String())
	if err != nil {
		return makeResult("", err.Error())
	}
	return marshalResult(rec)
}

func parseMenuStatusWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult("", "missing line argument")
	}
	st, err := protocol.ParseMenuStatus(args[0].String())
	if err != nil {
		return makeResult("", err.Error())
	}
	return marshalResult(st)
}

func parseSetPositionWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult("", "missing line argument")
	}
	pos, err := protocol.ParseSetPosition(args[0].String())
	if err != nil {
		return makeResult("", err.Error())
	}
	return marshalResult(pos)
}

// encodeCommandWrapper validates a command or command list and returns
// the line the hub expects, without the trailing newline
func encodeCommandWrapper(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeResult("", "missing command argument")
	}
	batch, err := protocol.ParseLine(args[0].String())
	if err != nil {
		return makeResult("", err.Error())
	}
	if err := batch.Err(); err != nil {
		return makeResult("", err.Error())
	}
	var line []byte
	if batch.Sequence {
		line, err = protocol.EncodeSequence(batch.Commands)
	} else {
		line, err = protocol.EncodeLine(batch.Commands...)
	}
	if err != nil {
		return makeResult("", err.Error())
	}
	return makeResult(strings.TrimRight(string(line), "\n"), "")
}

func marshalResult(v interface{}) js.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return makeResult("", err.Error())
	}
	return makeResult(string(data), "")
}

func makeResult(value string, errMsg string) js.Value {
	result := map[string]interface{}{"json": value}
	if errMsg != "" {
		result["error"] = errMsg
	}
	return js.ValueOf(result)
}
