package archiveserver

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Request is a submitted request as seen by the node.
type Request struct {
	ID          int
	Verb        string
	Params      []string
	Lines       []string
	User        string
	Institution string
}

// Script decides how the node answers one request.
type Script struct {
	// Reject answers END with ERROR instead of a request id.
	Reject bool
	// Statuses are replayed one per STATUS command; the last one repeats.
	// Empty means a single ready document with content.
	Statuses []string
	// Payload is the DOWNLOAD body.
	Payload []byte
	// Trailer replaces the END line after the body.
	Trailer string
	// Truncate sends half the body and then drops the connection.
	Truncate bool
}

// Responder produces the script for a submitted request.
type Responder interface {
	Respond(req *Request) *Script
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(req *Request) *Script

// Respond implements Responder.
func (f ResponderFunc) Respond(req *Request) *Script {
	return f(req)
}

// Static answers every request with the same script.
func Static(script *Script) Responder {
	return ResponderFunc(func(*Request) *Script { return script })
}

type requestState struct {
	req    *Request
	script *Script
	rounds int
	purged bool
}

// CommandHandler handles protocol lines.
type CommandHandler struct {
	srv       *Server
	responder Responder
	logger    *slog.Logger

	mu       sync.Mutex
	nextID   int
	requests map[int]*requestState
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(srv *Server, responder Responder, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if responder == nil {
		responder = Static(&Script{})
	}
	return &CommandHandler{
		srv:       srv,
		responder: responder,
		logger:    logger,
		nextID:    1,
		requests:  make(map[int]*requestState),
	}
}

// Handle processes one line. It returns false when the connection should
// be closed.
func (h *CommandHandler) Handle(conn *Conn, line string) bool {
	if p := conn.state.pending; p != nil {
		if strings.TrimSpace(line) != "END" {
			p.Lines = append(p.Lines, line)
			return true
		}
		conn.state.pending = nil
		return h.handleSubmit(conn, p)
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		_ = writeLine(conn.bw, "ERROR")
		return true
	}
	cmd, args := strings.ToUpper(fields[0]), fields[1:]

	switch cmd {
	case "HELLO":
		conn.state.Hello = true
		_ = writeLine(conn.bw, h.srv.cfg.Version)
		_ = writeLine(conn.bw, h.srv.cfg.NodeID)
	case "USER":
		if len(args) == 0 {
			_ = writeLine(conn.bw, "ERROR")
			return true
		}
		conn.state.User = args[0]
		reply := h.srv.cfg.UserReply
		if reply == "" {
			reply = "OK"
		}
		_ = writeLine(conn.bw, reply)
	case "INSTITUTION":
		conn.state.Institution = strings.Join(args, " ")
		_ = writeLine(conn.bw, "OK")
	case "REQUEST":
		if len(args) == 0 {
			_ = writeLine(conn.bw, "ERROR")
			return true
		}
		conn.state.pending = &Request{
			Verb:        strings.ToUpper(args[0]),
			Params:      append([]string(nil), args[1:]...),
			User:        conn.state.User,
			Institution: conn.state.Institution,
		}
	case "STATUS":
		h.handleStatus(conn, args)
	case "DOWNLOAD":
		return h.handleDownload(conn, args)
	case "PURGE":
		h.handlePurge(conn, args)
	case "BYE":
		return false
	default:
		h.logger.Debug("unknown command", "command", cmd)
		_ = writeLine(conn.bw, "ERROR")
	}
	return true
}

func (h *CommandHandler) handleSubmit(conn *Conn, req *Request) bool {
	script := h.responder.Respond(req)
	if script == nil {
		script = &Script{}
	}

	_ = writeLine(conn.bw, "OK")
	if script.Reject {
		_ = writeLine(conn.bw, "ERROR")
		return true
	}

	h.mu.Lock()
	req.ID = h.nextID
	h.nextID++
	h.requests[req.ID] = &requestState{req: req, script: script}
	h.mu.Unlock()

	_ = writeLine(conn.bw, strconv.Itoa(req.ID))
	return true
}

func (h *CommandHandler) lookup(args []string) *requestState {
	id, ok := parseID(args)
	if !ok {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[id]
}

func (h *CommandHandler) handleStatus(conn *Conn, args []string) {
	st := h.lookup(args)
	if st == nil {
		_ = writeLine(conn.bw, "ERROR")
		return
	}

	h.mu.Lock()
	statuses := st.script.Statuses
	round := st.rounds
	st.rounds++
	h.mu.Unlock()

	if len(statuses) == 0 {
		_ = writeDocument(conn.bw, ReadyDocument(st.req.ID))
		return
	}
	_ = writeDocument(conn.bw, statuses[min(round, len(statuses)-1)])
}

func (h *CommandHandler) handleDownload(conn *Conn, args []string) bool {
	st := h.lookup(args)
	if st == nil {
		_ = writeLine(conn.bw, "ERROR")
		return true
	}

	data := st.script.Payload
	if st.script.Truncate {
		_ = writeLine(conn.bw, strconv.Itoa(len(data)))
		_, _ = conn.bw.Write(data[:len(data)/2])
		return false
	}

	trailer := st.script.Trailer
	if trailer == "" {
		trailer = "END"
	}
	_ = writeFrame(conn.bw, len(data), data, trailer)
	return true
}

func (h *CommandHandler) handlePurge(conn *Conn, args []string) {
	st := h.lookup(args)
	if st == nil {
		_ = writeLine(conn.bw, "ERROR")
		return
	}
	h.mu.Lock()
	st.purged = true
	h.mu.Unlock()
	_ = writeLine(conn.bw, "OK")
}

// Requests returns the submitted requests in submission order.
func (h *CommandHandler) Requests() []Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Request, 0, len(h.requests))
	for id := 1; id < h.nextID; id++ {
		if st, ok := h.requests[id]; ok {
			out = append(out, *st.req)
		}
	}
	return out
}

// Purged reports whether request id has been released.
func (h *CommandHandler) Purged(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.requests[id]
	return ok && st.purged
}

// Requests returns the requests submitted to the node.
func (s *Server) Requests() []Request {
	return s.handler.Requests()
}

// Purged reports whether request id has been released.
func (s *Server) Purged(id int) bool {
	return s.handler.Purged(id)
}
