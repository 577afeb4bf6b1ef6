// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"path/filepath"
	"runtime"
	"strconv"
)

// StackFrame is one entry of a captured call stack.
type StackFrame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f StackFrame) String() string {
	return f.File + ":" + strconv.Itoa(f.Line) + ":" + f.Function
}

// callstack captures the stack above the logging call that invoked it.
func callstack() []StackFrame {
	var callers [16]uintptr
	n := runtime.Callers(4, callers[:]) // skip runtime.Callers, callstack, callstackStrings, and the log method
	frames := runtime.CallersFrames(callers[:n])

	fr := make([]StackFrame, 0, n)
	for {
		frame, more := frames.Next()
		fr = append(fr, StackFrame{File: filepath.Base(frame.File), Line: frame.Line, Function: frame.Function})
		if !more || frame.Function == "main.main" {
			break
		}
	}
	return fr
}

// callstackStrings is the form actually attached to log records: a plain
// slice of "file:line:function" strings, cheap to serialize as JSON.
func callstackStrings() []string {
	frames := callstack()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}
