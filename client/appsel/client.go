// Package appsel is a client for the ade-appsel-ctld selector daemon.
package appsel

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

const protoVer = "TXT01" // cmdlist protocol, text format, v01

// App is one row of a list response
type App struct {
	Key   string // Hidden key, pkg|UserHandle{N}
	Label string
	New   bool // Installed within the last hour
	Other bool // Belongs to another profile
}

// Menu describes the item actions offered for an app
type Menu struct {
	Key       string
	Label     string
	HideLabel string
	CanRename bool
	CanDelete bool
}

// Response is a parsed daemon response
type Response struct {
	Attrs   map[string]string
	Notices []string
	Body    []string
}

// Done reports whether the session has a result
func (r *Response) Done() bool {
	_, ok := r.Attrs["result"]
	return ok
}

// Selected returns the selected package and component, if any
func (r *Response) Selected() (pkg, component string, ok bool) {
	if r.Attrs["result"] != "selected" {
		return "", "", false
	}
	return r.Attrs["package"], r.Attrs["component"], true
}

// ServerError is an error response from the daemon
type ServerError struct {
	Cmd  string
	Type string
	Desc string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s: %s (%s)", e.Cmd, e.Type, e.Desc)
}

// Client holds one connection and therefore one selector session
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewClient connects to the daemon socket
func NewClient() (*Client, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}
	return NewClientConn(conn)
}

// NewClientConn speaks the protocol over an established connection
func NewClientConn(conn net.Conn) (*Client, error) {
	if _, err := conn.Write([]byte(protoVer)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send header: %w", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// Close closes the connection, cancelling an unfinished session
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FormatArgument formats an argument according to its type
func FormatArgument(arg string) string {
	if strings.HasPrefix(arg, `"`) {
		return arg
	}
	if arg == "t" || arg == "f" {
		return arg
	}
	if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return arg
	}
	return `"` + arg
}

// Do sends a command with raw arguments and reads the response
func (c *Client) Do(cmdName string, args ...string) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	for _, arg := range args {
		b.WriteString(arg + "\n")
	}
	b.WriteString(cmdName + "\n")
	if _, err := io.WriteString(c.conn, b.String()); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmdName, err)
	}

	resp, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if errType, ok := resp.Attrs["error"]; ok {
		return resp, &ServerError{Cmd: resp.Attrs["error-cmd"], Type: errType, Desc: resp.Attrs["desc"]}
	}
	return resp, nil
}

func str(s string) string {
	return `"` + s
}

// Open starts a selector session
func (c *Client) Open(showHidden, canRename bool, hint string) (*Response, error) {
	return c.Do("open",
		str("SHOW_HIDDEN_APPS: "+strconv.FormatBool(showHidden)),
		str("CAN_RENAME: "+strconv.FormatBool(canRename)),
		str("SEARCH_HINT: "+hint),
	)
}

// Query replaces the search text. A leading space disables auto launch.
func (c *Client) Query(text string) (*Response, error) {
	return c.Do("query", str(text))
}

// Submit selects the first visible app
func (c *Client) Submit() (*Response, error) {
	return c.Do("submit")
}

// List returns a page of the visible apps; limit 0 uses the daemon default
func (c *Client) List(offset, limit int) ([]App, *Response, error) {
	resp, err := c.Do("list", strconv.Itoa(offset), strconv.Itoa(limit))
	if err != nil {
		return nil, resp, err
	}
	return parseApps(resp.Body), resp, nil
}

// ListNext returns the page following the previous list call
func (c *Client) ListNext(limit int) ([]App, *Response, error) {
	resp, err := c.Do("list-next", strconv.Itoa(limit))
	if err != nil {
		return nil, resp, err
	}
	return parseApps(resp.Body), resp, nil
}

// Select picks an app by key
func (c *Client) Select(key string) (*Response, error) {
	return c.Do("select", str(key))
}

// Hold opens the item menu of an app
func (c *Client) Hold(key string) (Menu, error) {
	resp, err := c.Do("hold", str(key))
	if err != nil {
		return Menu{}, err
	}
	return Menu{
		Key:       resp.Attrs["key"],
		Label:     resp.Attrs["label"],
		HideLabel: resp.Attrs["hide-label"],
		CanRename: resp.Attrs["can-rename"] == "t",
		CanDelete: resp.Attrs["can-delete"] == "t",
	}, nil
}

// CloseMenu leaves the item menu
func (c *Client) CloseMenu() (*Response, error) {
	return c.Do("close-menu")
}

// Hide toggles an app in or out of the hidden set
func (c *Client) Hide(key string) (*Response, error) {
	return c.Do("hide", str(key))
}

// Delete asks the device to uninstall an app
func (c *Client) Delete(key string) (*Response, error) {
	return c.Do("delete", str(key))
}

// Info opens the system details screen of an app
func (c *Client) Info(key string) (*Response, error) {
	return c.Do("info", str(key))
}

// Rename sets a custom label
func (c *Client) Rename(key, label string) (*Response, error) {
	return c.Do("rename", str(key), str(label))
}

// ResetRename restores the platform label
func (c *Client) ResetRename(key string) (*Response, error) {
	return c.Do("rename-reset", str(key))
}

// Refresh rebuilds the catalog
func (c *Client) Refresh() (*Response, error) {
	return c.Do("refresh")
}

// Dismiss cancels the session
func (c *Client) Dismiss() (*Response, error) {
	return c.Do("dismiss")
}

// Result reports the session state and result
func (c *Client) Result() (*Response, error) {
	return c.Do("result")
}

func parseApps(body []string) []App {
	apps := make([]App, 0, len(body))
	for _, line := range body {
		key, label, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		app := App{Key: key}
		label, app.New = strings.CutSuffix(label, " ✨")
		label, app.Other = strings.CutSuffix(label, " ⧉")
		app.Label = label
		apps = append(apps, app)
	}
	return apps
}

// readResponse reads one response: header, attribute lines, an optional
// body: section, and a terminating blank line.
func (c *Client) readResponse() (*Response, error) {
	header := make([]byte, len(protoVer))
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	if string(header) != protoVer {
		return nil, fmt.Errorf("unexpected response header %q", header)
	}

	resp := &Response{Attrs: make(map[string]string)}
	inBody := false
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		line = strings.TrimSuffix(line, "\n")

		switch {
		case line == "":
			return resp, nil
		case !inBody && line == "body:":
			inBody = true
		case inBody:
			resp.Body = append(resp.Body, line)
		default:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if key == "notice" {
				resp.Notices = append(resp.Notices, value)
			}
			resp.Attrs[key] = value
		}
	}
}
