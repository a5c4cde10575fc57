/*
2026 © Postgres.ai
*/

// Package s3270 provides a terminal driving the s3270 emulator over its scripting protocol.
//
// Every command is a line written to the emulator. The reply is a sequence of "data: " lines,
// a status line and a final "ok" or "error" line.
package s3270

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	dataPrefix   = "data:"
	resultOK     = "ok"
	resultError  = "error"
	statusFields = 12
)

// Keyboard states reported in the status line.
const (
	keyboardUnlocked = 'U'
	keyboardLocked   = 'L'
)

// errWaitTimedOut reports that a Wait command gave up.
var errWaitTimedOut = errors.New("wait timed out")

// status defines the emulator state reported after every command.
type status struct {
	keyboard  byte
	formatted bool
	connected bool
	rows      int
	cols      int
	cursorRow int
	cursorCol int
}

// response defines a reply to a command.
type response struct {
	data   []string
	status status
	ok     bool
}

// message joins data lines of a failed command.
func (r response) message() string {
	return strings.TrimSpace(strings.Join(r.data, " "))
}

// client exchanges commands with an emulator process.
type client struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
}

func newClient(r io.Reader, w io.Writer) *client {
	return &client{w: w, r: bufio.NewReader(r)}
}

// do runs a command and reads its reply.
func (c *client) do(command string) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, command+"\n"); err != nil {
		return response{}, errors.Wrapf(err, "failed to send %s", command)
	}

	var resp response

	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return response{}, errors.Wrapf(err, "failed to read a reply to %s", command)
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(line, dataPrefix):
			resp.data = append(resp.data, strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " "))

		case line == resultOK:
			resp.ok = true
			return resp, nil

		case line == resultError:
			return resp, nil

		default:
			st, err := parseStatus(line)
			if err != nil {
				return response{}, errors.Wrapf(err, "unexpected reply to %s", command)
			}

			resp.status = st
		}
	}
}

// run runs a command and converts a failed reply into an error.
func (c *client) run(command string) (response, error) {
	resp, err := c.do(command)
	if err != nil {
		return resp, err
	}

	if !resp.ok {
		msg := resp.message()

		if strings.Contains(strings.ToLower(msg), "timed out") {
			return resp, errors.Wrapf(errWaitTimedOut, "%s: %s", command, msg)
		}

		return resp, errors.Errorf("%s failed: %s", command, msg)
	}

	return resp, nil
}

// parseStatus reads the status line, e.g. "U F U C(host) I 2 24 80 0 0 0x0 0.001".
// Cursor coordinates are 0-based in the protocol and 1-based in the result.
func parseStatus(line string) (status, error) {
	fields := strings.Fields(line)
	if len(fields) != statusFields {
		return status{}, errors.Errorf("status line %q has %d fields", line, len(fields))
	}

	ints := make([]int, 4)

	for i, raw := range fields[6:10] {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return status{}, errors.Wrapf(err, "invalid status line %q", line)
		}

		ints[i] = n
	}

	return status{
		keyboard:  fields[0][0],
		formatted: fields[1] == "F",
		connected: strings.HasPrefix(fields[3], "C("),
		rows:      ints[0],
		cols:      ints[1],
		cursorRow: ints[2] + 1,
		cursorCol: ints[3] + 1,
	}, nil
}

// quote escapes a String() argument.
func quote(value string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value) + `"`
}
