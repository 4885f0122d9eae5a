package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/voxfeld/scriptgate/hostfunc"
)

// Dialect stdlibs talk to the host over two in-band channels. Calls are
// frames written to stderr as \x00SGATE:{json}\x00, answered with one JSON
// line on stdin. Checker diagnostics come back as a bare JSON line on
// stdout. Both wire shapes live here.
const (
	protocolPrefix = "\x00SGATE:"
	protocolSuffix = "\x00"
)

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// protocolHandler intercepts stderr to handle host function calls. Regular
// stderr output passes through; call frames are stripped and dispatched.
type protocolHandler struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter *io.PipeWriter
	realStderr  bytes.Buffer
	buf         bytes.Buffer
	mu          sync.Mutex
}

func newProtocolHandler(ctx context.Context, registry *hostfunc.Registry, stdinWriter *io.PipeWriter) *protocolHandler {
	return &protocolHandler{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
	}
}

func (p *protocolHandler) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)
	for {
		frame, ok := p.nextFrame()
		if !ok {
			break
		}
		p.dispatch(frame)
	}
	return len(data), nil
}

// nextFrame consumes buffered stderr up to and including the next complete
// call frame. Output before the frame passes through to realStderr. Returns
// false when no complete frame remains; a partial frame stays buffered for
// the next Write.
func (p *protocolHandler) nextFrame() (string, bool) {
	content := p.buf.String()

	start := strings.Index(content, protocolPrefix)
	if start == -1 {
		p.realStderr.WriteString(content)
		p.buf.Reset()
		return "", false
	}
	p.realStderr.WriteString(content[:start])

	body := content[start+len(protocolPrefix):]
	end := strings.Index(body, protocolSuffix)
	if end == -1 {
		p.buf.Reset()
		p.buf.WriteString(content[start:])
		return "", false
	}

	p.buf.Reset()
	p.buf.WriteString(body[end+len(protocolSuffix):])
	return body[:end], true
}

// dispatch decodes one call frame and queues the response on stdin.
func (p *protocolHandler) dispatch(frame string) {
	var req callRequest
	if err := json.Unmarshal([]byte(frame), &req); err != nil {
		p.respond(callResponse{Error: "invalid call format"})
		return
	}
	p.respond(p.handleCall(req))
}

func (p *protocolHandler) respond(resp callResponse) {
	data, _ := json.Marshal(resp)
	go p.stdinWriter.Write(append(data, '\n'))
}

func (p *protocolHandler) handleCall(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *protocolHandler) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String()
}

// parseDiagnostic scans checker stdout for a JSON diagnostic line.
func parseDiagnostic(output string) (*CheckError, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var diag CheckError
		if err := json.Unmarshal([]byte(line), &diag); err != nil {
			continue
		}
		if diag.Message != "" {
			return &diag, true
		}
	}
	return nil, false
}
