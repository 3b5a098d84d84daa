package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

var (
	// ErrBridgeClosed reports a command submitted after Close.
	ErrBridgeClosed = errors.New("browser: command bridge is closed")

	// ErrCommandTimeout reports a command whose caller stopped waiting. The
	// command itself keeps running on the worker; it is abandoned, not
	// cancelled, and later commands queue behind it.
	ErrCommandTimeout = errors.New("browser: command timed out")
)

type commandResult struct {
	value interface{}
	err   error
}

type command struct {
	name string
	run  func() (interface{}, error)
	// done is buffered so the worker can always deliver and move on, even
	// when the submitting caller already timed out.
	done chan commandResult
}

// Bridge serializes commands onto a single worker goroutine. Browser drivers
// are not safe for concurrent page access; every operation that touches the
// page must go through a bridge.
type Bridge struct {
	commands  chan *command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	log       *oplog.Logger
}

// NewBridge starts the worker goroutine and returns a ready bridge.
func NewBridge(log *oplog.Logger) *Bridge {
	if log == nil {
		log = oplog.Nop()
	}
	b := &Bridge{
		commands: make(chan *command, 16),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      log,
	}
	go b.worker()
	return b
}

func (b *Bridge) worker() {
	defer close(b.done)
	for {
		select {
		case cmd := <-b.commands:
			b.execute(cmd)
		case <-b.quit:
			return
		}
	}
}

func (b *Bridge) execute(cmd *command) {
	start := time.Now()
	value, err := b.recoverRun(cmd)
	elapsed := time.Since(start)
	if err != nil {
		b.log.Error("명령 실패",
			zap.String("command", cmd.name), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		b.log.Detail(fmt.Sprintf("명령 완료: %s (%s)", cmd.name, elapsed.Round(time.Millisecond)))
	}
	cmd.done <- commandResult{value: value, err: err}
}

// recoverRun shields the worker from panics inside driver callbacks; a
// panicking command fails, the worker survives.
func (b *Bridge) recoverRun(cmd *command) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.name, r)
		}
	}()
	return cmd.run()
}

// Do submits fn and blocks until it completes or timeout elapses. On timeout
// the command is abandoned: it finishes on the worker but its result is
// dropped. timeout <= 0 waits indefinitely.
func (b *Bridge) Do(name string, timeout time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	cmd := &command{
		name: name,
		run:  fn,
		done: make(chan commandResult, 1),
	}

	select {
	case b.commands <- cmd:
	case <-b.quit:
		return nil, ErrBridgeClosed
	}

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case res := <-cmd.done:
		return res.value, res.err
	case <-timeoutC:
		b.log.Warn("명령 시간 초과",
			zap.String("command", name), zap.Duration("timeout", timeout))
		return nil, fmt.Errorf("%w: %s after %s", ErrCommandTimeout, name, timeout)
	case <-b.done:
		// The worker may have delivered just before shutting down.
		select {
		case res := <-cmd.done:
			return res.value, res.err
		default:
			return nil, ErrBridgeClosed
		}
	}
}

// Close stops the worker after its in-flight command finishes. Commands still
// queued fail with ErrBridgeClosed. Safe to call more than once.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
	})
	<-b.done
}
