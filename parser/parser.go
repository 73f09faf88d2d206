package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ValueType represents the type of a value on the stack
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeBool
)

// Value represents a value on the stack
type Value struct {
	Type ValueType
	Str  string
	Int  int64
	Bool bool
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []Value
}

// Parser reads TXT01 requests: values pushed one per line, closed by a
// command word that consumes them.
type Parser struct {
	reader  *bufio.Reader
	header  string
	version string
}

// NewParser creates a new parser
func NewParser(reader io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(reader),
	}

	// Read header
	headerBytes := make([]byte, 5)
	if n, err := io.ReadFull(p.reader, headerBytes); err != nil || n != 5 {
		return nil, fmt.Errorf("invalid header")
	}

	p.header = string(headerBytes[:3])
	p.version = string(headerBytes[3:5])

	if p.header != "TXT" {
		return nil, fmt.Errorf("unsupported format: %s", p.header)
	}

	return p, nil
}

// Version returns the protocol version from the header
func (p *Parser) Version() string {
	return p.version
}

// ParseCommand parses the next command from input
func (p *Parser) ParseCommand() (*Command, error) {
	stack := make([]Value, 0)

	for {
		line, err := p.reader.ReadString('\n')
		if err == io.EOF {
			if len(stack) == 0 {
				return nil, io.EOF
			}
			// Return command if stack is not empty
			break
		}
		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if cmd := parseCommand(trimmed); cmd != "" {
			return &Command{
				Name: cmd,
				Args: stack,
			}, nil
		}

		value, err := parseValue(line)
		if err != nil {
			return nil, fmt.Errorf("parse error: %v", err)
		}
		stack = append(stack, value)
	}

	return nil, io.EOF
}

// commands are the words that end a command; anything else is a value
var commands = map[string]bool{
	"open":         true,
	"query":        true,
	"submit":       true,
	"list":         true,
	"list-next":    true,
	"select":       true,
	"hold":         true,
	"close-menu":   true,
	"hide":         true,
	"delete":       true,
	"info":         true,
	"rename":       true,
	"rename-reset": true,
	"refresh":      true,
	"dismiss":      true,
	"result":       true,
	"state":        true,
}

func parseCommand(line string) string {
	line = strings.TrimSpace(line)
	if commands[line] {
		return line
	}
	return ""
}

func parseValue(line string) (Value, error) {
	// Strings keep their spaces: a leading space in a query is meaningful
	if after, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), `"`); ok {
		return Value{Type: TypeString, Str: after}, nil
	}

	line = strings.TrimSpace(line)
	switch line {
	case "t":
		return Value{Type: TypeBool, Bool: true}, nil
	case "f":
		return Value{Type: TypeBool, Bool: false}, nil
	}

	if intVal, err := strconv.ParseInt(line, 10, 64); err == nil {
		return Value{Type: TypeInt, Int: intVal}, nil
	}

	return Value{}, fmt.Errorf("cannot parse value: %s", line)
}

// Strings returns the string arguments in push order
func (c *Command) Strings() []string {
	var out []string
	for _, v := range c.Args {
		if v.Type == TypeString {
			out = append(out, v.Str)
		}
	}
	return out
}

// Ints returns the integer arguments in push order
func (c *Command) Ints() []int64 {
	var out []int64
	for _, v := range c.Args {
		if v.Type == TypeInt {
			out = append(out, v.Int)
		}
	}
	return out
}

// ReadAllCommands reads all commands from the parser
func (p *Parser) ReadAllCommands() ([]*Command, error) {
	var commands []*Command

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}

	return commands, nil
}
