package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"
)

// ScriptWriter is a ScriptHost that writes each call as one JavaScript
// statement. It returns no results, so queries read as their zero value.
type ScriptWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// Ensure ScriptWriter implements ScriptHost interface
var _ ScriptHost = (*ScriptWriter)(nil)

// NewScriptWriter creates a writer host over w.
func NewScriptWriter(w io.Writer) *ScriptWriter {
	return &ScriptWriter{w: w}
}

// Call writes call as a statement such as
//
//	mixpanel.get_group("company","acme").set({"plan":"pro"});
func (s *ScriptWriter) Call(_ context.Context, call ScriptCall) (any, error) {
	stmt, err := FormatScriptCall(call)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, stmt); err != nil {
		return nil, fmt.Errorf("write script call %s: %w", call.Method, err)
	}
	return nil, nil
}

// FormatScriptCall renders call as a JavaScript statement ending in a newline.
func FormatScriptCall(call ScriptCall) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(call.Receiver)
	if call.ReceiverArgs != nil {
		if err := writeArgs(&buf, call.ReceiverArgs); err != nil {
			return "", fmt.Errorf("encode %s receiver arguments: %w", call.Receiver, err)
		}
	}
	buf.WriteByte('.')
	buf.WriteString(call.Method)
	if err := writeArgs(&buf, call.Args); err != nil {
		return "", fmt.Errorf("encode %s arguments: %w", call.Method, err)
	}
	buf.WriteString(";\n")
	return buf.String(), nil
}

func writeArgs(buf *bytes.Buffer, args []any) error {
	buf.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(arg)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	buf.WriteByte(')')
	return nil
}
