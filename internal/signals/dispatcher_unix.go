// POSIX implementation of the signal dispatch subsystem.
//
// This file is compiled on all non-Windows platforms. The asynchronous
// edge is the Go runtime's signal delivery into a buffered channel; a
// dedicated forwarding goroutine (the trampoline) reduces each delivery
// to one 4-byte non-blocking write of the signal number into a
// close-on-exec self-pipe. Registration, dispatch, and disposition
// bookkeeping all run in ordinary synchronous code.

//go:build !windows

package signals

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// deliverBufSize is the capacity of the runtime delivery channel. The
// self-pipe holds kilobytes of queued signal numbers, so the channel only
// needs to absorb the realistic burst of concurrent distinct signals
// between forwarder wakeups.
const deliverBufSize = 64

// uncatchable signals are never captured or quiesced: the fatal hardware
// faults and the two signals the kernel refuses to let a process handle.
var uncatchable = map[syscall.Signal]bool{
	syscall.SIGILL:  true,
	syscall.SIGFPE:  true,
	syscall.SIGSEGV: true,
	syscall.SIGBUS:  true,
	syscall.SIGKILL: true,
	syscall.SIGSTOP: true,
}

// reserved signals belong to the Go runtime or libc and must keep their
// dispositions: SIGURG drives goroutine preemption, and signals 32/33
// are reserved by the threading implementation.
var reserved = map[syscall.Signal]bool{
	syscall.SIGURG:     true,
	syscall.Signal(32): true,
	syscall.Signal(33): true,
}

// capturable reports whether sig participates in disposition capture.
func capturable(sig syscall.Signal) bool {
	return !uncatchable[sig] && !reserved[sig]
}

// ///////////////////////////////////////////////
// Signal Sets
// ///////////////////////////////////////////////

// sigset is a bitmask over signal numbers 1..MaxSignal, bit (n-1) for
// signal n. MaxSignal is 64, so a uint64 holds the full range.
type sigset uint64

func (s *sigset) add(sig syscall.Signal) { *s |= 1 << (uint(sig) - 1) }

func (s sigset) has(sig syscall.Signal) bool { return s&(1<<(uint(sig)-1)) != 0 }

// sigbit returns the mask bit for sig, usable with the atomic routing
// mask as well as sigset values.
func sigbit(sig syscall.Signal) uint64 { return 1 << (uint(sig) - 1) }

// ///////////////////////////////////////////////
// Dispatcher
// ///////////////////////////////////////////////

// slot is one registration table entry. fn is non-nil exactly when the
// signal's OS-level delivery is routed through the trampoline.
type slot struct {
	fn   Handler
	ctx  any
	disp Disposition
}

// Dispatcher is the process-scoped signal dispatch state. Create one
// with [New], initialize it with [Dispatcher.Init], and integrate
// [Dispatcher.ReadFD] / [Dispatcher.Dispatch] into the event loop.
//
// The registration table is shared between the synchronous API and the
// dispatch path only; mu plays the role the original design gives to
// per-signal masking: a slot is always written completely before
// delivery for that signal is enabled, and dispatch reads slots under
// the same lock.
type Dispatcher struct {
	mu    sync.Mutex
	slots [MaxSignal]slot

	// pipe is the self-pipe bridge: index 0 read end, index 1 write end,
	// both non-blocking and close-on-exec, -1 when closed.
	pipe [2]int

	// ign and dfl record the original process dispositions captured at
	// Init: originally-ignored and originally-default-forced-to-ignored.
	// Immutable after Init except by a fresh Init.
	ign sigset
	dfl sigset

	// parent accumulates the signals this process installed handlers
	// for, so a freshly spawned worker can revert exactly those.
	parent sigset

	// deliver receives runtime signal notifications for the forwarder.
	deliver chan os.Signal

	// swallow receives deliveries of quiesced signals. Nothing reads it;
	// the runtime drops notifications once its one-slot buffer is full.
	// Quiescing must not go through signal.Ignore for originally-default
	// signals: Ignore overwrites the runtime's saved disposition, after
	// which signal.Reset can no longer reach SIG_DFL.
	swallow chan os.Signal

	// routed is the bitmask of signals currently routed into the pipe,
	// bit (n-1) for signal n. The forwarder consults it without taking
	// mu, so deliveries of de-registered signals are dropped instead of
	// written.
	routed atomic.Uint64

	// stop/done manage the forwarder goroutine lifetime.
	stop chan struct{}
	done chan struct{}
}

// New returns an uninitialized Dispatcher. Init must be called before
// any registration.
func New() *Dispatcher {
	return &Dispatcher{pipe: [2]int{-1, -1}}
}

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

// Init performs the process-wide one-time setup: it opens the self-pipe,
// clears the registration table, captures the original disposition of
// every catchable signal, and quiesces the process so that no signal
// terminates it before the host registers its handlers. The ignored set
// is read from the kernel ([kernelIgnored]) rather than signal.Ignored,
// which misses ignores inherited across exec that os/signal never
// observed. Originally-ignored signals keep their kernel SIG_IGN;
// originally-default signals are quiesced by parking their deliveries
// in the swallow channel, leaving the runtime's saved SIG_DFL intact
// for [Dispatcher.RestoreForExec].
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pipe[0] >= 0 {
		return fmt.Errorf("signal dispatcher already initialized")
	}
	if err := d.openPipe(); err != nil {
		return err
	}

	d.slots = [MaxSignal]slot{}
	d.ign, d.dfl, d.parent = 0, 0, 0
	d.routed.Store(0)
	if d.swallow == nil {
		d.swallow = make(chan os.Signal, 1)
	}

	ignored, err := kernelIgnored()
	if err != nil {
		slog.Warn("kernel signal state unavailable, using runtime view", "error", err)
		for n := 1; n <= MaxSignal; n++ {
			if sig := syscall.Signal(n); capturable(sig) && signal.Ignored(sig) {
				ignored.add(sig)
			}
		}
	}

	for n := 1; n <= MaxSignal; n++ {
		sig := syscall.Signal(n)
		if !capturable(sig) {
			continue
		}
		if ignored.has(sig) {
			d.ign.add(sig)
		} else {
			signal.Notify(d.swallow, sig)
			d.dfl.add(sig)
		}
		d.slots[n-1].disp = DispositionIgnored
	}

	d.startForwarder()
	return nil
}

// ChildReset gives a freshly spawned worker process a clean slate: every
// signal the parent installed a handler for is reverted to ignore, the
// inherited self-pipe is replaced with a fresh one, and the registration
// table is emptied. The worker then registers only the signals relevant
// to its own role. The captured disposition sets are kept; they describe
// the process start state, which the worker shares.
func (d *Dispatcher) ChildReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for n := 1; n <= MaxSignal; n++ {
		sig := syscall.Signal(n)
		if d.parent.has(sig) {
			d.quiesce(sig)
		}
	}
	// Every parent signal now has a quiesced route, so dropping the old
	// delivery channel's registrations opens no default-action window.
	if d.deliver != nil {
		signal.Stop(d.deliver)
	}
	d.routed.Store(0)

	d.stopForwarder()
	d.closePipeLocked()
	if err := d.openPipe(); err != nil {
		return err
	}

	for i := range d.slots {
		d.slots[i].fn = nil
		d.slots[i].ctx = nil
		if d.slots[i].disp == DispositionHandled {
			d.slots[i].disp = DispositionIgnored
		}
	}

	d.startForwarder()
	return nil
}

// Destroy clears the handlers for the fixed application signal set by
// routing each to ignore, stops the forwarder, and closes the self-pipe.
// It is idempotent with respect to descriptor state: a second call finds
// the descriptors already marked closed and does nothing to them.
func (d *Dispatcher) Destroy() {
	for _, sig := range appSignals() {
		// Best effort: the table may never have held these.
		_, _ = d.SetIgnore(sig)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deliver != nil {
		signal.Stop(d.deliver)
	}
	d.stopForwarder()
	d.closePipeLocked()
}

// RestoreForExec restores the exact OS-visible dispositions captured at
// Init, regardless of intervening registrations: every originally-ignored
// signal is set to ignore and every originally-default signal back to
// default. Called immediately before spawning a child so it inherits the
// dispositions an unmodified process would expect. Pair with
// [Dispatcher.Rearm] when the current process keeps running afterward.
//
// The bracket is belt and braces for os/exec children: execve resets
// caught signals to default on its own, and kernel-level ignores
// survive it, so a child started while the dispatcher is armed already
// sees the startup dispositions. What RestoreForExec guarantees is the
// parent's own kernel state during the window, and correctness for
// exec paths that replace this process image directly.
func (d *Dispatcher) RestoreForExec() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for n := 1; n <= MaxSignal; n++ {
		sig := syscall.Signal(n)
		switch {
		case d.ign.has(sig):
			signal.Ignore(sig)
		case d.dfl.has(sig):
			signal.Reset(sig)
		}
	}
}

// Rearm re-establishes the dispatcher's own routing after a
// RestoreForExec window. Go cannot run code between fork and exec the
// way the classic daemon does, so the host restores dispositions in the
// parent, starts the child, and then rearms: handled signals are routed
// back through the trampoline and everything else returns to the
// quiesced or explicitly configured state recorded in the table.
func (d *Dispatcher) Rearm() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for n := 1; n <= MaxSignal; n++ {
		sig := syscall.Signal(n)
		switch d.slots[n-1].disp {
		case DispositionHandled:
			signal.Notify(d.deliver, sig)
		case DispositionIgnored:
			d.quiesce(sig)
		case DispositionDefaulted:
			signal.Reset(sig)
		}
	}
}

// quiesce makes deliveries of sig disappear without disturbing the
// captured startup state. Originally-ignored signals go back to the
// kernel's SIG_IGN; everything else is parked on the swallow channel,
// because signal.Ignore on an originally-default signal would overwrite
// the runtime's saved SIG_DFL and make a later signal.Reset restore
// SIG_IGN instead. Callers hold d.mu.
func (d *Dispatcher) quiesce(sig syscall.Signal) {
	if d.ign.has(sig) {
		signal.Ignore(sig)
		return
	}
	signal.Notify(d.swallow, sig)
}

// ///////////////////////////////////////////////
// Registration
// ///////////////////////////////////////////////

// Set installs fn as the callback for sig and routes OS-level delivery
// of sig through the trampoline. ctx is stored alongside and handed back
// to fn on every invocation. The previous disposition is returned,
// mirroring classic signal-installation semantics.
//
// The slot is fully written before delivery is enabled, and the
// dispatch path reads slots under the same lock, so a signal arriving
// mid-update can never observe a half-written entry.
func (d *Dispatcher) Set(sig syscall.Signal, fn Handler, ctx any) (Disposition, error) {
	if err := d.checkSignal(sig); err != nil {
		return DispositionNone, err
	}
	if fn == nil {
		return d.SetIgnore(sig)
	}
	if uncatchable[sig] {
		return DispositionNone, fmt.Errorf("signal %d cannot be handled: %w", int(sig), unix.EINVAL)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipe[1] < 0 {
		return DispositionNone, ErrNotInitialized
	}

	prev := d.slots[sig-1].disp
	d.slots[sig-1] = slot{fn: fn, ctx: ctx, disp: DispositionHandled}
	d.parent.add(sig)
	d.routed.Or(sigbit(sig))
	signal.Notify(d.deliver, sig)
	return prev, nil
}

// SetIgnore discards subsequent deliveries of sig and clears its table
// slot: the routing mask stops the forwarder writing it to the pipe,
// and the quiesced route keeps the delivery from reaching the process
// default action.
func (d *Dispatcher) SetIgnore(sig syscall.Signal) (Disposition, error) {
	if err := d.checkSignal(sig); err != nil {
		return DispositionNone, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.swallow == nil {
		return DispositionNone, ErrNotInitialized
	}
	prev := d.slots[sig-1].disp
	d.routed.And(^sigbit(sig))
	d.quiesce(sig)
	d.slots[sig-1] = slot{disp: DispositionIgnored}
	return prev, nil
}

// SetDefault restores the disposition the process started with for sig
// and clears its table slot. For a signal inherited ignored from the
// parent process the startup disposition is SIG_IGN, not SIG_DFL; Go's
// runtime offers no way to force SIG_DFL below that. Exec'd children
// are unaffected either way, since execve resets caught signals to
// default.
func (d *Dispatcher) SetDefault(sig syscall.Signal) (Disposition, error) {
	if err := d.checkSignal(sig); err != nil {
		return DispositionNone, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.slots[sig-1].disp
	d.routed.And(^sigbit(sig))
	signal.Reset(sig)
	d.slots[sig-1] = slot{disp: DispositionDefaulted}
	return prev, nil
}

// checkSignal validates the signal number range. Out-of-range numbers
// are reported and rejected without touching the table or the OS.
func (d *Dispatcher) checkSignal(sig syscall.Signal) error {
	if sig < 1 || sig > MaxSignal {
		slog.Warn("rejecting out-of-range signal number",
			"signal", int(sig), "max", MaxSignal)
		return fmt.Errorf("%w: %d (valid range 1..%d)", ErrInvalidSignal, int(sig), MaxSignal)
	}
	return nil
}

// Disposition returns the table's current routing for sig.
func (d *Dispatcher) Disposition(sig syscall.Signal) Disposition {
	if sig < 1 || sig > MaxSignal {
		return DispositionNone
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slots[sig-1].disp
}

// ///////////////////////////////////////////////
// Trampoline
// ///////////////////////////////////////////////

// startForwarder launches the trampoline goroutine. Callers hold d.mu.
func (d *Dispatcher) startForwarder() {
	d.deliver = make(chan os.Signal, deliverBufSize)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go forward(d.pipe[1], &d.routed, d.deliver, d.stop, d.done)
}

// stopForwarder stops the trampoline goroutine and waits for it to
// drain. Callers hold d.mu; the forwarder never takes the lock, so
// waiting here cannot deadlock.
func (d *Dispatcher) stopForwarder() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop, d.done = nil, nil
}

// forward is the trampoline: it converts each runtime signal delivery
// into exactly one 4-byte native-endian write of the signal number into
// the pipe's write end. It never allocates per signal, never blocks (the
// write end is non-blocking), and never touches the registration table;
// the atomic routing mask is its only coordination with registration.
// Deliveries of signals whose routing bit is clear (registered once and
// later ignored or defaulted, so still relayed to the channel) are
// dropped. A failed or short write means the pipe buffer was exhausted,
// which the sizing makes effectively impossible; the signal is dropped
// with a best-effort log line and execution continues degraded.
func forward(wfd int, routed *atomic.Uint64, deliver <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	var buf [4]byte
	for {
		select {
		case s := <-deliver:
			sig, ok := s.(syscall.Signal)
			if !ok || sig < 1 || sig > MaxSignal {
				continue
			}
			if routed.Load()&sigbit(sig) == 0 {
				continue
			}
			binary.NativeEndian.PutUint32(buf[:], uint32(sig))
			if n, err := unix.Write(wfd, buf[:]); err != nil || n != len(buf) {
				slog.Error("signal pipe write failed, signal lost",
					"signal", int(sig), "written", n, "error", err)
			}
		case <-stop:
			return
		}
	}
}

// ///////////////////////////////////////////////
// Dispatch
// ///////////////////////////////////////////////

// Dispatch drains the self-pipe and invokes the registered callbacks.
// The event loop calls this when [Dispatcher.ReadFD] becomes readable.
// Records are consumed one at a time until the non-blocking read reports
// no more complete records; callbacks run in pipe (FIFO) order and
// repeated deliveries of the same signal are not coalesced.
func (d *Dispatcher) Dispatch() {
	d.mu.Lock()
	rfd := d.pipe[0]
	d.mu.Unlock()
	if rfd < 0 {
		return
	}

	var buf [4]byte
	for {
		n, err := unix.Read(rfd, buf[:])
		if err != nil || n != len(buf) {
			return
		}
		sig := syscall.Signal(binary.NativeEndian.Uint32(buf[:]))
		if sig < 1 || sig > MaxSignal {
			continue
		}

		d.mu.Lock()
		fn, ctx := d.slots[sig-1].fn, d.slots[sig-1].ctx
		d.mu.Unlock()
		if fn != nil {
			fn(ctx, sig)
		}
	}
}

// ///////////////////////////////////////////////
// Pipe Management
// ///////////////////////////////////////////////

// openPipe creates the self-pipe with both ends non-blocking and
// close-on-exec. Callers hold d.mu. The pipe must exist before any
// signal is installed.
func (d *Dispatcher) openPipe() error {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fmt.Errorf("open signal pipe: %w", err)
	}
	d.pipe = p
	return nil
}

// closePipeLocked closes any open pipe ends and marks them closed.
// Callers hold d.mu.
func (d *Dispatcher) closePipeLocked() {
	for i := range d.pipe {
		if d.pipe[i] >= 0 {
			unix.Close(d.pipe[i])
			d.pipe[i] = -1
		}
	}
}

// ReadFD returns the read end of the self-pipe for the event loop to
// poll, or -1 when the dispatcher is not initialized.
func (d *Dispatcher) ReadFD() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipe[0]
}

// CloseAbove closes whichever pipe descriptors have numeric value at or
// above minFD. Used during descriptor cleanup before exec in paths that
// close everything above the standard descriptors.
func (d *Dispatcher) CloseAbove(minFD int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The forwarder must stop before its descriptor number can be reused
	// by an unrelated file, or a late signal would write 4 raw bytes into
	// whatever inherits the number.
	if d.pipe[1] >= 0 && d.pipe[1] >= minFD {
		d.stopForwarder()
	}
	for i := range d.pipe {
		if d.pipe[i] >= 0 && d.pipe[i] >= minFD {
			unix.Close(d.pipe[i])
			d.pipe[i] = -1
		}
	}
}
