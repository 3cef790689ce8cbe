// Package mcpserver is the Tool Server (§4.5): a hand-rolled line-delimited
// JSON transport over standard input/output. The wire contract —
// list_tools/call_tool dispatch, empty-result substitution, and
// error-wrapping — is specified precisely enough by the MCP tool-server
// contract that it is implemented directly rather than through a
// general-purpose SDK.
package mcpserver

import "encoding/json"

// request is one line of incoming JSON on stdin.
type request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// response is one line of outgoing JSON on stdout.
type response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *errorDetail    `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// callToolParams is the params payload of a call_tool request.
type callToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// contentElement is one element of a call_tool reply's content list, always
// of type "text" whose body is the JSON-serialized tool result (§6).
type contentElement struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// callToolResult is the payload returned for a call_tool request.
type callToolResult struct {
	Content []contentElement `json:"content"`
	IsError bool             `json:"is_error,omitempty"`
}

// toolDescriptor is the payload returned per-tool by list_tools.
type toolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// listToolsResult is the payload returned for a list_tools request.
type listToolsResult struct {
	Tools []toolDescriptor `json:"tools"`
}
