package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/registry"
)

// maxLineBytes bounds a single stdin JSON message; inline Jenkinsfile
// content in run_pipeline/edit_template is the largest expected payload.
const maxLineBytes = 8 << 20

// Server is the Tool Server (§4.5): a registry of Handlers dispatched over
// line-delimited JSON on stdin/stdout.
type Server struct {
	tools *registry.Registry[Handler]
	log   *logrus.Entry
}

// New constructs a Server with the full tool catalog wired against the
// given dependencies (§6 tool catalog).
func New(store Store, templates Templates, coord Coordinator, log *logrus.Logger) (*Server, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		tools: registry.New[Handler](),
		log:   log.WithField("component", "mcpserver"),
	}

	handlers := []Handler{
		helloWorldHandler{},
		createTemplateHandler{templates: templates},
		editTemplateHandler{templates: templates},
		listTemplatesHandler{store: store},
		deployPipelineHandler{coordinator: coord},
		runPipelineHandler{coordinator: coord},
		getPipelineStatusHandler{coordinator: coord},
		listPipelineRunsHandler{coordinator: coord},
		executeCommandHandler{coordinator: coord},
	}
	for _, h := range handlers {
		if err := s.tools.Register(h.Name(), h); err != nil {
			return nil, pipeerr.Wrap(pipeerr.CodeInternal, "mcpserver.new", err)
		}
	}
	return s, nil
}

// Run reads one JSON request per line from in and writes one JSON response
// per line to out until in is exhausted or ctx is cancelled (§4.5
// "Transport").
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := s.dispatch(ctx, []byte(line))
		if err := writeResponse(writer, resp); err != nil {
			return pipeerr.Wrap(pipeerr.CodeInternal, "mcpserver.run.write", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return pipeerr.Wrap(pipeerr.CodeInternal, "mcpserver.run.read", err)
	}
	return nil
}

func writeResponse(w *bufio.Writer, resp response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(encoded); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Server) dispatch(ctx context.Context, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Error: &errorDetail{Code: string(pipeerr.CodeInputMissing), Message: "malformed request: " + err.Error()}}
	}

	switch req.Method {
	case "list_tools":
		return response{ID: req.ID, Result: s.listTools()}
	case "call_tool":
		return s.callTool(ctx, req)
	default:
		return response{ID: req.ID, Error: &errorDetail{Code: string(pipeerr.CodeUnknownTool), Message: "unknown method: " + req.Method}}
	}
}

func (s *Server) listTools() listToolsResult {
	names := s.tools.Names()
	out := make([]toolDescriptor, 0, len(names))
	for _, name := range names {
		h, _ := s.tools.Get(name)
		out = append(out, toolDescriptor{
			Name:        h.Name(),
			Description: h.Description(),
			InputSchema: h.InputSchema(),
		})
	}
	return listToolsResult{Tools: out}
}

// callTool executes a single call_tool request: lookup, invoke, serialize,
// and empty-result substitution, all wrapped in one content element
// (§4.5 steps 1-4).
func (s *Server) callTool(ctx context.Context, req request) response {
	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return response{ID: req.ID, Error: &errorDetail{Code: string(pipeerr.CodeInputMissing), Message: "malformed call_tool params: " + err.Error()}}
	}

	handler, ok := s.tools.Get(params.Name)
	if !ok {
		return response{ID: req.ID, Result: errorCallResult(pipeerr.New(pipeerr.CodeUnknownTool, "call_tool", "no such tool: "+params.Name))}
	}

	result, err := s.invoke(ctx, handler, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("call_tool failed")
		return response{ID: req.ID, Result: errorCallResult(err)}
	}

	return response{ID: req.ID, Result: callToolResult{Content: []contentElement{{Type: "text", Text: substituteIfEmpty(result)}}}}
}

// invoke runs a handler with panic recovery so a single bad tool call can't
// crash the stdio process (SPEC_FULL §0.2 "nothing propagates as ... a panic
// to the MCP transport").
func (s *Server) invoke(ctx context.Context, handler Handler, arguments json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("tool", handler.Name()).Errorf("call_tool recovered panic: %v", r)
			err = pipeerr.New(pipeerr.CodeInternal, "call_tool", fmt.Sprintf("recovered panic: %v", r))
		}
	}()
	return handler.Handle(ctx, arguments)
}

func errorCallResult(err error) callToolResult {
	encoded, marshalErr := json.Marshal(map[string]any{"success": false, "error": err.Error()})
	if marshalErr != nil {
		encoded = []byte(`{"success":false,"error":"internal error"}`)
	}
	return callToolResult{
		Content: []contentElement{{Type: "text", Text: string(encoded)}},
		IsError: true,
	}
}

// substituteIfEmpty serializes result, replacing an empty/null body with a
// success record so the client never sees an empty response
// (§4.5 step 3).
func substituteIfEmpty(result any) string {
	encoded, err := json.Marshal(result)
	if err != nil || len(encoded) == 0 || string(encoded) == "null" {
		return `{"success":true,"message":"completed with no additional output"}`
	}
	return string(encoded)
}
