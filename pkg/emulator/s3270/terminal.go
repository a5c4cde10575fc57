/*
2026 © Postgres.ai
*/

package s3270

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator"
)

const tlsPrefix = "L:"

var _ emulator.Terminal = (*Terminal)(nil)

// Terminal defines a terminal driven by an s3270 process.
type Terminal struct {
	cfg    config.Emulator
	client *client
	stop   func() error

	mu      sync.Mutex
	screen  *Screen
	changes uint64
	closed  bool
}

func newTerminal(cfg config.Emulator, c *client, stop func() error) *Terminal {
	return &Terminal{
		cfg:    cfg,
		client: c,
		stop:   stop,
		screen: &Screen{},
	}
}

// Connect implements emulator.Terminal.
func (t *Terminal) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	address := net.JoinHostPort(t.cfg.Host, strconv.FormatUint(uint64(t.cfg.Port), 10))
	if t.cfg.TLS {
		address = tlsPrefix + address
	}

	if _, err := t.client.run(fmt.Sprintf("Connect(%s)", address)); err != nil {
		return errors.Wrapf(err, "failed to connect to %s", address)
	}

	waitCmd := fmt.Sprintf("Wait(%d,InputField)", waitSeconds(ctx, t.cfg.ConnectTimeout))

	if _, err := t.client.run(waitCmd); err != nil {
		return errors.Wrapf(err, "host %s did not present an input field", address)
	}

	log.Dbg("Connected to", address)

	return t.capture()
}

// SendKey implements emulator.Terminal. An AID key waits for the keyboard to unlock,
// false is returned if it stays locked for the timeout.
func (t *Terminal) SendKey(ctx context.Context, key emulator.Key, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, err := t.client.run(keyCommand(key)); err != nil {
		return false, errors.Wrapf(err, "failed to send %s", key)
	}

	if key.IsAID() {
		_, err := t.client.run(fmt.Sprintf("Wait(%d,Unlock)", waitSeconds(ctx, timeout)))

		switch {
		case errors.Is(err, errWaitTimedOut):
			return false, nil
		case err != nil:
			return false, errors.Wrapf(err, "failed to wait after %s", key)
		}
	}

	if err := t.capture(); err != nil {
		return false, err
	}

	return true, nil
}

// SetField implements emulator.Terminal.
func (t *Terminal) SetField(fieldNumber int, value string) error {
	field, ok := emulator.FieldByNumber(t.Screen(), fieldNumber)
	if !ok {
		return errors.Errorf("field %d not found", fieldNumber)
	}

	if field.Protected {
		return errors.Errorf("field %d is protected", fieldNumber)
	}

	for _, command := range []string{
		fmt.Sprintf("MoveCursor(%d,%d)", field.Row-1, field.Col-1),
		"EraseEOF()",
		fmt.Sprintf("String(%s)", quote(value)),
	} {
		if _, err := t.client.run(command); err != nil {
			return errors.Wrapf(err, "failed to fill field %d", fieldNumber)
		}
	}

	return t.capture()
}

// SetCursor implements emulator.Terminal.
func (t *Terminal) SetCursor(row, col int) error {
	screen := t.Screen()

	if row < 1 || col < 1 || row > screen.Height() || col > screen.Width() {
		return errors.Errorf("cursor position (%d,%d) is out of screen", row, col)
	}

	if _, err := t.client.run(fmt.Sprintf("MoveCursor(%d,%d)", row-1, col-1)); err != nil {
		return errors.Wrap(err, "failed to move the cursor")
	}

	return nil
}

// SendText implements emulator.Terminal.
func (t *Terminal) SendText(value string) error {
	if _, err := t.client.run(fmt.Sprintf("String(%s)", quote(value))); err != nil {
		return errors.Wrap(err, "failed to type text")
	}

	return t.capture()
}

// Refresh implements emulator.Terminal. It pauses for the shorter of wait and timeout
// and reports whether the host changed the screen meanwhile.
func (t *Terminal) Refresh(ctx context.Context, wait, timeout time.Duration) (bool, error) {
	before := t.Screen().ChangeID()

	pause := wait
	if timeout > 0 && (pause <= 0 || timeout < pause) {
		pause = timeout
	}

	if pause > 0 {
		timer := time.NewTimer(pause)

		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	if err := t.capture(); err != nil {
		return false, err
	}

	return t.Screen().ChangeID() != before, nil
}

// Screen implements emulator.Terminal.
func (t *Terminal) Screen() emulator.Screen {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen
}

// Close implements emulator.Terminal.
func (t *Terminal) Close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return nil
	}

	t.closed = true
	t.mu.Unlock()

	if _, err := t.client.run("Disconnect()"); err != nil {
		log.Dbg("Failed to disconnect:", err)
	}

	if _, err := t.client.do("Quit()"); err != nil && !errors.Is(err, io.EOF) {
		log.Dbg("Failed to quit the emulator:", err)
	}

	if t.stop == nil {
		return nil
	}

	return t.stop()
}

// capture reads the buffer and bumps the change identifier when the image differs.
func (t *Terminal) capture() error {
	resp, err := t.client.run("ReadBuffer(Ascii)")
	if err != nil {
		return errors.Wrap(err, "failed to read the screen")
	}

	screen, err := parseBuffer(resp.data)
	if err != nil {
		return errors.Wrap(err, "failed to parse the screen")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !screen.sameImage(t.screen) {
		t.changes++
	}

	screen.changeID = t.changes
	t.screen = screen

	return nil
}

// keyCommand converts a key to an s3270 action.
func keyCommand(key emulator.Key) string {
	name, n := key.Function()
	if n > 0 {
		return fmt.Sprintf("%s(%d)", name, n)
	}

	return name + "()"
}

// waitSeconds converts a timeout to whole seconds of a Wait command, bounded by the context deadline.
func waitSeconds(ctx context.Context, timeout time.Duration) int {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	if secs := int(math.Ceil(timeout.Seconds())); secs > 1 {
		return secs
	}

	return 1
}

// Dialer starts s3270 processes.
type Dialer struct {
	cfg config.Emulator
}

var _ emulator.Dialer = (*Dialer)(nil)

// NewDialer creates a new dialer.
func NewDialer(cfg config.Emulator) *Dialer {
	return &Dialer{cfg: cfg}
}

// Dial implements emulator.Dialer. The process outlives the context and is stopped by Close.
func (d *Dialer) Dial(ctx context.Context) (emulator.Terminal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(d.cfg.Binary, "-model", d.cfg.Model, "-utf8")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the emulator input")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the emulator output")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", d.cfg.Binary)
	}

	stop := func() error {
		_ = stdin.Close()

		if err := cmd.Wait(); err != nil {
			return errors.Wrap(err, "emulator exited with an error")
		}

		return nil
	}

	return newTerminal(d.cfg, newClient(stdout, stdin), stop), nil
}
