package elevate

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// session owns one pseudo-terminal pair and one child for the duration
// of a single handshake. Both descriptors and the child handle are
// released by close on every exit path.
type session struct {
	ptmx *os.File
	tty  *os.File
	proc *exec.Cmd

	// prompt accumulates the bytes discarded before each password
	// write. Kept for the session's lifetime only and never logged.
	prompt bytes.Buffer

	waitCh  chan error
	waitErr error
	reaped  bool
	closed  bool
}

// startSession allocates a pty pair and spawns argv with all three
// standard streams attached to the follower side, which becomes the
// child's controlling terminal.
func startSession(argv []string) (*session, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, errors.Wrap(err, "error trying to open pty")
	}

	proc := exec.Command(argv[0], argv[1:]...)
	proc.Stdin = tty
	proc.Stdout = tty
	proc.Stderr = tty
	proc.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := proc.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, errors.Wrap(err, "error opening process to pty")
	}

	s := &session{
		ptmx:   ptmx,
		tty:    tty,
		proc:   proc,
		waitCh: make(chan error, 1),
	}
	go func() {
		s.waitCh <- proc.Wait()
	}()
	return s, nil
}

// pid returns the child's process id.
func (s *session) pid() int {
	return s.proc.Process.Pid
}

// echoEnabled reports the terminal's echo attribute. Children that are
// about to read a secret set it false, which is the only liveness
// signal a prompt gives us.
func (s *session) echoEnabled() (bool, error) {
	termios, err := unix.IoctlGetTermios(int(s.ptmx.Fd()), ioctlReadTermios)
	if err != nil {
		return false, errors.Wrap(err, "failed to read terminal attributes")
	}
	return termios.Lflag&unix.ECHO != 0, nil
}

// waitNoEcho polls the echo attribute every interval until it goes off
// or timeout elapses. Exhausting the bound is a hard failure: a silent
// child cannot be told apart from one that needed no password, and
// continuing would risk writing the secret into a non-prompt stream.
func (s *session) waitNoEcho(timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		echo, err := s.echoEnabled()
		if err != nil {
			return err
		}
		if !echo {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrPromptTimeout
		}
		time.Sleep(interval)
	}
}

// discardPending reads whatever the controller has buffered, up to
// readSize bytes, into the prompt buffer. Used to swallow the prompt
// text before a secret is written.
func (s *session) discardPending(interval time.Duration, readSize int) {
	ready, err := waitReadable(int(s.ptmx.Fd()), interval)
	if err != nil || !ready {
		return
	}
	buf := make([]byte, readSize)
	n, _ := s.ptmx.Read(buf)
	if n > 0 {
		s.prompt.Write(buf[:n])
	}
}

// writeSecret writes the secret followed by a newline to the controller
// side. The secret never appears in any log call.
func (s *session) writeSecret(secret string) error {
	if _, err := s.ptmx.Write([]byte(secret + "\n")); err != nil {
		return errors.Wrap(err, "failed to write secret to terminal")
	}
	return nil
}

// drain accumulates everything the child writes until it has exited and
// no more data is ready. Each readiness wait is bounded by interval so
// the loop never spins.
func (s *session) drain(interval time.Duration, readSize int) ([]byte, error) {
	var output bytes.Buffer
	buf := make([]byte, readSize)
	for {
		ready, err := waitReadable(int(s.ptmx.Fd()), interval)
		if err != nil {
			return output.Bytes(), err
		}
		if ready {
			n, readErr := s.ptmx.Read(buf)
			if n > 0 {
				output.Write(buf[:n])
			}
			if readErr != nil {
				if isChildGone(readErr) {
					break
				}
				return output.Bytes(), errors.Wrap(readErr, "error reading terminal output")
			}
			continue
		}
		if s.exited() {
			break
		}
	}
	return output.Bytes(), nil
}

// exited reports whether the child has terminated, without blocking.
func (s *session) exited() bool {
	if s.reaped {
		return true
	}
	select {
	case err := <-s.waitCh:
		s.waitErr = err
		s.reaped = true
		return true
	default:
		return false
	}
}

// reap blocks until the child has exited and returns its exit status.
func (s *session) reap() (int, error) {
	if !s.reaped {
		s.waitErr = <-s.waitCh
		s.reaped = true
	}
	return exitStatus(s.waitErr)
}

// close releases both terminal descriptors and reaps the child. A child
// still running is killed first so the session never leaks a zombie.
// Safe to call more than once.
func (s *session) close(log *logrus.Entry) {
	if s.closed {
		return
	}
	s.closed = true

	if !s.reaped {
		if err := s.proc.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Debugf("Kill during session close: %v", err)
		}
	}
	_ = s.ptmx.Close()
	_ = s.tty.Close()
	if _, err := s.reap(); err != nil {
		log.Debugf("Reap during session close: %v", err)
	}
}

// waitReadable waits up to timeout for fd to become readable.
func waitReadable(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, errors.Wrap(err, "poll on terminal descriptor failed")
	}
	return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0, nil
}

// isChildGone reports whether a terminal read error just means the
// other side of the pty is closed.
func isChildGone(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, unix.EIO) || errors.Is(err, os.ErrClosed)
}

// exitStatus extracts the child's exit code from a wait error.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}
		return 1, nil
	}
	return -1, errors.Wrap(err, "failed to wait for child")
}
