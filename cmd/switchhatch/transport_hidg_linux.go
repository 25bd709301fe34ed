//go:build linux

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"switchhatch/internal/sequencer"
)

// hidgTransport drives a USB gadget HID function device (/dev/hidgN).
//
// The host polls the gadget's IN endpoint; the device becomes writable when
// the previous report was collected. One goroutine waits on epoll:
//   - EPOLLOUT: a polling slot is open, signal Ready and wait for Send
//   - EPOLLIN:  the host sent an OUT report (rumble, LEDs), read and discard
//   - EPOLLERR/EPOLLHUP: the gadget was unbound, fatal
type hidgTransport struct {
	path   string
	fd     int
	epfd   int
	logger *slog.Logger

	ready chan struct{}
	sent  chan struct{}
	errc  chan error
	done  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func openHIDG(path string, logger *slog.Logger) (Transport, error) {
	if path == "" {
		return nil, errors.New("hidg: device path is empty")
	}

	// Raw fd: the Go runtime poller must not own it, epoll below does.
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	event := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		unix.Close(epfd)
		unix.Close(fd)
		return nil, fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
	}

	t := &hidgTransport{
		path:   path,
		fd:     fd,
		epfd:   epfd,
		logger: logger,
		ready:  make(chan struct{}),
		sent:   make(chan struct{}, 1),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.loop()

	logger.Info("hidg transport opened", "device", path)
	return t, nil
}

func (t *hidgTransport) loop() {
	defer t.wg.Done()

	const maxEvents = 4
	epollEvents := make([]unix.EpollEvent, maxEvents)
	discard := make([]byte, 64)
	timeoutMS := int(epollWaitTimeout.Milliseconds())

	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, err := unix.EpollWait(t.epfd, epollEvents, timeoutMS)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			t.fail(fmt.Errorf("epoll_wait: %w", err))
			return
		}

		writable := false
		for i := 0; i < n; i++ {
			ev := epollEvents[i].Events

			if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				t.fail(fmt.Errorf("device error/hangup: %s", t.path))
				return
			}
			if ev&unix.EPOLLIN != 0 {
				if _, err := unix.Read(t.fd, discard); err != nil && err != unix.EAGAIN {
					t.fail(fmt.Errorf("read from %s: %w", t.path, err))
					return
				}
			}
			if ev&unix.EPOLLOUT != 0 {
				writable = true
			}
		}
		if !writable {
			continue
		}

		select {
		case t.ready <- struct{}{}:
		case <-t.done:
			return
		}

		// EPOLLOUT is level-triggered; wait for the write before polling again.
		select {
		case <-t.sent:
		case <-t.done:
			return
		}
	}
}

func (t *hidgTransport) fail(err error) {
	t.logger.Error("hidg transport failed", "device", t.path, "error", err)
	select {
	case t.errc <- err:
	default:
	}
}

func (t *hidgTransport) Ready() <-chan struct{} { return t.ready }
func (t *hidgTransport) Err() <-chan error      { return t.errc }

func (t *hidgTransport) Send(report []byte) error {
	defer func() {
		select {
		case t.sent <- struct{}{}:
		default:
		}
	}()

	if len(report) != sequencer.ReportSize {
		return fmt.Errorf("hidg: report is %d bytes, want %d", len(report), sequencer.ReportSize)
	}
	n, err := unix.Write(t.fd, report)
	if err != nil {
		return fmt.Errorf("write to %s: %w", t.path, err)
	}
	if n != len(report) {
		return fmt.Errorf("write to %s: short write (%d of %d bytes)", t.path, n, len(report))
	}
	return nil
}

func (t *hidgTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		err = errors.Join(unix.Close(t.epfd), unix.Close(t.fd))
		t.logger.Info("hidg transport closed", "device", t.path)
	})
	return err
}
