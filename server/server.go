package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-appsel/internal/catalog"
	"github.com/0xADE/ade-appsel/internal/selector"
	"github.com/0xADE/ade-appsel/parser"
)

// OpenFunc starts a selector session for one connection. Notices raised by
// the session must go to notifier.
type OpenFunc func(ctx context.Context, req selector.Request, notifier selector.Notifier) *selector.Controller

// Server handles Unix socket connections, one selector session each
type Server struct {
	listener  net.Listener
	open      OpenFunc
	listLimit func() int
	running   bool
	mu        sync.RWMutex
}

// session is the per-connection state
type session struct {
	ctx     context.Context
	ctrl    *selector.Controller
	next    int    // Offset of the next list-next page
	version string // Protocol version from the request header

	mu      sync.Mutex
	notices []selector.Notice
}

func (s *session) Notify(n selector.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *session) drain() []selector.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

// NewServer listens on socketPath. listLimit supplies the default page size
// of list responses.
func NewServer(socketPath string, open OpenFunc, listLimit func() int) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, err
	}

	// Stale socket from a previous run
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener:  listener,
		open:      open,
		listLimit: listLimit,
	}, nil
}

// Start accepts connections until ctx is done or Stop is called
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.listener.Close()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log.Printf("[DEBUG] New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		log.Printf("[ERROR] Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	sess := &session{ctx: ctx, version: p.Version()}
	defer func() {
		// A client that hangs up mid-session cancels it
		if sess.ctrl != nil {
			if err := sess.ctrl.Dismiss(); err == nil {
				log.Printf("[DEBUG] Session dismissed on disconnect")
			}
		}
	}()

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			log.Printf("[DEBUG] Connection closed by client")
			break
		}
		if err != nil {
			log.Printf("[ERROR] Parse error: %v", err)
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}

		log.Printf("[DEBUG] Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, sess, cmd)
	}
}

func (s *Server) executeCommand(conn net.Conn, sess *session, cmd *parser.Command) {
	if cmd.Name == "open" {
		s.handleOpen(conn, sess, cmd)
		return
	}
	if sess.ctrl == nil {
		s.writeError(conn, cmd.Name, "no session", "open a selector first")
		return
	}

	switch cmd.Name {
	case "query":
		s.handleQuery(conn, sess, cmd)
	case "submit":
		s.reply(conn, sess, cmd.Name, nil, nil, sess.ctrl.Submit())
	case "list":
		s.handleList(conn, sess, cmd, 0)
	case "list-next":
		s.handleList(conn, sess, cmd, sess.next)
	case "select":
		s.withRecord(conn, sess, cmd, sess.ctrl.Select)
	case "hold":
		s.handleHold(conn, sess, cmd)
	case "close-menu":
		s.reply(conn, sess, cmd.Name, nil, nil, sess.ctrl.CloseMenu())
	case "hide":
		s.withRecord(conn, sess, cmd, sess.ctrl.Hide)
	case "delete":
		s.withRecord(conn, sess, cmd, sess.ctrl.Delete)
	case "info":
		s.withRecord(conn, sess, cmd, sess.ctrl.Info)
	case "rename":
		s.handleRename(conn, sess, cmd)
	case "rename-reset":
		s.withRecord(conn, sess, cmd, sess.ctrl.ResetRename)
	case "refresh":
		err := sess.ctrl.Refresh()
		sess.ctrl.Wait()
		s.reply(conn, sess, cmd.Name, nil, nil, err)
	case "dismiss":
		s.reply(conn, sess, cmd.Name, nil, nil, sess.ctrl.Dismiss())
	case "result", "state":
		s.reply(conn, sess, cmd.Name, nil, nil, nil)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

func (s *Server) handleOpen(conn net.Conn, sess *session, cmd *parser.Command) {
	if sess.ctrl != nil {
		s.writeError(conn, "open", "session open", "a selector is already open on this connection")
		return
	}

	extras := make(map[string]string)
	for _, arg := range cmd.Strings() {
		key, value, ok := strings.Cut(arg, ":")
		if !ok {
			continue
		}
		extras[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	req, err := selector.ParseRequest(extras)
	if err != nil {
		log.Printf("[ERROR] Refusing to open selector: %v", err)
		s.writeError(conn, "open", errorType(err), err.Error())
		return
	}

	sess.ctrl = s.open(sess.ctx, req, sess)
	sess.ctrl.Wait()
	log.Printf("[DEBUG] Opened selector (hidden=%v rename=%v)", req.ShowHidden, req.CanRename)

	s.reply(conn, sess, "open", []string{
		"version: " + sess.version,
		"hidden: " + flag(req.ShowHidden),
		"can-rename: " + flag(req.CanRename),
		"hint: " + req.SearchHint,
	}, nil, nil)
}

func (s *Server) handleQuery(conn net.Conn, sess *session, cmd *parser.Command) {
	args := cmd.Strings()
	if len(args) == 0 {
		s.writeError(conn, "query", "missing parameter", "query requires a string parameter")
		return
	}

	err := sess.ctrl.Query(args[len(args)-1])
	sess.ctrl.Wait()
	sess.next = 0
	s.reply(conn, sess, "query", []string{
		fmt.Sprintf("matches: %d", sess.ctrl.View().Real()),
	}, nil, err)
}

func (s *Server) handleList(conn net.Conn, sess *session, cmd *parser.Command, offset int) {
	limit := 64
	if s.listLimit != nil {
		limit = s.listLimit()
	}
	// list takes [offset] [limit], list-next takes [limit]
	ints := cmd.Ints()
	if cmd.Name == "list" && len(ints) > 0 {
		offset = int(ints[0])
		ints = ints[1:]
	}
	if len(ints) > 0 && ints[0] > 0 {
		limit = int(ints[0])
	}

	sess.ctrl.Wait()
	view := sess.ctrl.View()

	var records []catalog.AppRecord
	for _, r := range view.Records {
		if !r.IsSentinel() {
			records = append(records, r)
		}
	}

	offset = min(max(offset, 0), len(records))
	end := min(offset+limit, len(records))
	page := records[offset:end]
	sess.next = end

	current := sess.ctrl.Current()
	body := make([]string, 0, len(page))
	for _, r := range page {
		body = append(body, formatRecord(r, current))
	}

	log.Printf("[DEBUG] Listing %d of %d records from %d", len(page), len(records), offset)
	s.reply(conn, sess, cmd.Name, []string{
		fmt.Sprintf("list-len: %d", len(records)),
		fmt.Sprintf("offset: %d", offset),
		fmt.Sprintf("count: %d", len(page)),
	}, body, nil)
}

func (s *Server) handleHold(conn net.Conn, sess *session, cmd *parser.Command) {
	rec, ok := s.record(conn, sess, cmd)
	if !ok {
		return
	}

	menu, err := sess.ctrl.Hold(rec)
	if err != nil {
		s.reply(conn, sess, "hold", nil, nil, err)
		return
	}
	s.reply(conn, sess, "hold", []string{
		"key: " + menu.Record.HiddenKey(),
		"label: " + menu.Record.Label,
		"hide-label: " + menu.HideLabel,
		"can-rename: " + flag(menu.CanRename),
		"can-delete: " + flag(menu.CanDelete),
	}, nil, nil)
}

func (s *Server) handleRename(conn net.Conn, sess *session, cmd *parser.Command) {
	args := cmd.Strings()
	if len(args) < 2 {
		s.writeError(conn, "rename", "missing parameter", "rename requires a key and a label")
		return
	}
	rec, ok := sess.ctrl.Lookup(args[0])
	if !ok {
		s.writeError(conn, "rename", "unknown app", args[0])
		return
	}

	err := sess.ctrl.Rename(rec, args[1])
	sess.ctrl.Wait()
	s.reply(conn, sess, "rename", nil, nil, err)
}

func (s *Server) withRecord(conn net.Conn, sess *session, cmd *parser.Command, fn func(catalog.AppRecord) error) {
	rec, ok := s.record(conn, sess, cmd)
	if !ok {
		return
	}
	err := fn(rec)
	sess.ctrl.Wait()
	s.reply(conn, sess, cmd.Name, nil, nil, err)
}

func (s *Server) record(conn net.Conn, sess *session, cmd *parser.Command) (catalog.AppRecord, bool) {
	args := cmd.Strings()
	if len(args) == 0 {
		s.writeError(conn, cmd.Name, "missing parameter", cmd.Name+" requires an app key")
		return catalog.AppRecord{}, false
	}
	rec, ok := sess.ctrl.Lookup(args[0])
	if !ok {
		s.writeError(conn, cmd.Name, "unknown app", args[0])
		return catalog.AppRecord{}, false
	}
	return rec, true
}

// reply writes a response carrying the session state, any pending notices
// and the result once the session is over.
func (s *Server) reply(conn net.Conn, sess *session, cmd string, attrs, body []string, err error) {
	if err != nil {
		log.Printf("[WARN] Command %s failed: %v", cmd, err)
		s.writeError(conn, cmd, errorType(err), err.Error())
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cmd: %s\nstatus: 0\n", cmd)
	for _, a := range attrs {
		b.WriteString(a + "\n")
	}

	fmt.Fprintf(&b, "state: %s\n", sess.ctrl.State())
	for _, n := range sess.drain() {
		fmt.Fprintf(&b, "notice: %s\n", n)
	}
	if res, done := sess.ctrl.Result(); done {
		fmt.Fprintf(&b, "result: %s\n", res.Kind)
		if res.Kind == selector.Selected {
			fmt.Fprintf(&b, "package: %s\ncomponent: %s\nprofile: %s\n", res.Package, res.Component, res.Profile)
		}
	}

	if len(body) > 0 {
		b.WriteString("body:\n")
		for _, line := range body {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n")

	s.writeResponse(conn, b.String())
}

// formatRecord renders a list row. Labels carry a trailing ⧉ for apps of
// another profile and ✨ for recent installs.
func formatRecord(r catalog.AppRecord, current catalog.ProfileID) string {
	label := r.Label
	if r.OtherProfile(current) {
		label += " ⧉"
	}
	if r.RecentlyInstalled {
		label += " ✨"
	}
	return r.HiddenKey() + "\t" + label
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func errorType(err error) string {
	switch {
	case errors.Is(err, selector.ErrMissingParams):
		return "missing launch parameters"
	case errors.Is(err, selector.ErrTerminated):
		return "terminated"
	case errors.Is(err, selector.ErrUnknownApp):
		return "unknown app"
	case errors.Is(err, selector.ErrRenameDisabled):
		return "rename disabled"
	case errors.Is(err, selector.ErrRenaming):
		return "renaming"
	case errors.Is(err, errors.ErrUnsupported):
		return "unsupported"
	}
	return "failed"
}

// writeResponse writes a response with TXT01 header
func (s *Server) writeResponse(conn net.Conn, response string) {
	log.Printf("[DEBUG] Writing response (length: %d bytes)", len(response))
	header := []byte("TXT01")
	n, err := conn.Write(header)
	if err != nil {
		log.Printf("[ERROR] Failed to write header: %v", err)
		return
	}
	if n != len(header) {
		log.Printf("[ERROR] Partial header write: %d/%d bytes", n, len(header))
		return
	}

	if _, err = conn.Write([]byte(response)); err != nil {
		log.Printf("[ERROR] Failed to write response body: %v", err)
	}
}

func (s *Server) writeError(conn net.Conn, cmd, errType, desc string) {
	log.Printf("[ERROR] Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	errorMsg := fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, desc)
	s.writeResponse(conn, errorMsg)
}
