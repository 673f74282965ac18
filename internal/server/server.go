// Package server exposes the engine's command surface as newline-delimited
// JSON over a byte stream; the host picks the transport (stdio, a serial
// line, a socket). Plain-text command lines in the legacy grammar are
// accepted alongside JSON requests.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/crosslight-io/crosslight/engine/internal/command"
	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

const maxLineBytes = 1024 * 1024

// Handler processes one command's params and returns its result.
type Handler func(params json.RawMessage) (any, *types.Error)

// Server reads command lines, dispatches them to registered handlers and
// writes one response line per command. It also carries the notification
// stream: every phase transition and session event is emitted as an
// unsolicited NDJSON line so observers stay synchronized.
type Server struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	handlers map[string]Handler
	writeMu  sync.Mutex // responses and notifications interleave on out
}

// New creates a Server reading commands from in and writing responses to out.
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	return &Server{
		in:       in,
		out:      out,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler registers fn for method. Not safe to call after Run.
func (s *Server) RegisterHandler(method string, fn Handler) {
	s.handlers[method] = fn
}

// Run processes commands until ctx is cancelled or the input stream closes.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("read commands: %w", err)
			}
			return nil
		case line := <-lines:
			s.handleLine(line)
		}
	}
}

func (s *Server) handleLine(line string) {
	trimmed := []byte(line)
	if len(trimmed) == 0 {
		return
	}

	var req types.Request
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &req); err != nil {
			s.writeResponse(&types.Response{
				JSONRPC: "2.0",
				Error: types.NewError(types.ErrParse, fmt.Sprintf("malformed request: %v", err),
					types.ErrTypeParse, false, "requests must be one JSON object per line"),
			})
			return
		}
	} else {
		cmd, err := command.Parse(line)
		if err != nil {
			s.writeError(0, err)
			return
		}
		req = requestFor(cmd)
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.writeResponse(&types.Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: types.NewError(types.ErrMethodNotFound,
				fmt.Sprintf("unknown method %q", req.Method), types.ErrTypeMethodNotFound,
				false, "supported methods: start, stop, status, update, health"),
		})
		return
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		s.writeResponse(&types.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("marshal result", "method", req.Method, "err", err)
		return
	}
	s.writeResponse(&types.Response{JSONRPC: "2.0", ID: req.ID, Result: raw})
}

// requestFor converts a parsed textual command into the equivalent JSON
// request so both forms share one dispatch path.
func requestFor(cmd command.Command) types.Request {
	req := types.Request{JSONRPC: "2.0"}
	switch cmd.Kind {
	case command.KindStart:
		req.Method = "start"
	case command.KindStop:
		req.Method = "stop"
	case command.KindStatus:
		req.Method = "status"
	case command.KindHealth:
		req.Method = "health"
	case command.KindUpdate:
		req.Method = "update"
		raw, _ := json.Marshal(cmd.Update)
		req.Params = raw
	}
	return req
}

func (s *Server) writeError(id int64, err error) {
	var typed *types.Error
	if !errors.As(err, &typed) {
		typed = types.NewError(types.ErrInvalidCommand, err.Error(),
			types.ErrTypeInvalidCommand, false, "")
	}
	s.writeResponse(&types.Response{JSONRPC: "2.0", ID: id, Error: typed})
}

func (s *Server) writeResponse(resp *types.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", "err", err)
		return
	}
	s.writeLine(data)
}

// Notify emits an unsolicited notification line.
func (s *Server) Notify(method string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal notification", "method", method, "err", err)
		return
	}
	data, err := json.Marshal(&types.Notification{JSONRPC: "2.0", Method: method, Params: raw})
	if err != nil {
		s.logger.Error("marshal notification", "method", method, "err", err)
		return
	}
	s.writeLine(data)
}

func (s *Server) writeLine(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("write line", "err", err)
	}
}

// OnPhaseChange implements sequencer.Observer by emitting a phase_change
// notification for every committed transition.
func (s *Server) OnPhaseChange(_, to sequencer.State) {
	ev := types.PhaseEvent{
		Phase:   to.Phase.String(),
		Road:    to.Road,
		EventID: uuid.NewString(),
	}
	if !to.Until.IsZero() {
		ev.DeadlineMS = to.Until.UnixMilli()
	}
	s.Notify("phase_change", ev)
}

var _ sequencer.Observer = (*Server)(nil)
