//go:build linux

package signal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// watchDirectory starts an inotify watcher on dir that calls notify with
// the name of every file closed after writing or moved into dir. The
// returned function stops the watcher, waits for its goroutine to exit and
// is safe to call more than once.
func watchDirectory(dir string, o options, notify func(name string)) (func(), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify_init1: %w", err)
	}

	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify_add_watch on %s: %w", dir, err)
	}

	w := &inotifyWatcher{
		fd:           fd,
		pollInterval: o.pollInterval,
		debounce:     o.debounce,
		notify:       notify,
		logger:       o.logger.With("signal_dir", dir),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go w.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(w.stop)
			<-w.done
		})
	}, nil
}

type inotifyWatcher struct {
	fd           int
	pollInterval time.Duration
	debounce     time.Duration
	notify       func(name string)
	logger       *slog.Logger
	stop         chan struct{}
	done         chan struct{}
}

// run polls the inotify descriptor until stopped. After the first event it
// keeps reading for the debounce window so a burst of raises is delivered
// once per channel.
//
// A poll or read failure ends the watcher; no further signals are
// delivered in this process.
func (w *inotifyWatcher) run() {
	defer close(w.done)
	defer unix.Close(w.fd)

	buffer := make([]byte, 16*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		ready, err := w.wait(w.pollInterval)
		if err != nil {
			w.fail("poll", err)
			return
		}
		if !ready {
			continue
		}

		names := make(map[string]struct{})
		if err := w.readInto(buffer, names); err != nil {
			w.fail("read", err)
			return
		}

		deadline := time.Now().Add(w.debounce)
		for remaining := time.Until(deadline); remaining > 0; remaining = time.Until(deadline) {
			ready, err := w.wait(remaining)
			if err != nil {
				w.fail("poll", err)
				return
			}
			if !ready {
				break
			}
			if err := w.readInto(buffer, names); err != nil {
				w.fail("read", err)
				return
			}
		}

		for name := range names {
			w.notify(name)
		}
	}
}

// wait blocks in poll(2) for up to timeout. EINTR is reported as a timeout.
func (w *inotifyWatcher) wait(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

func (w *inotifyWatcher) fail(op string, err error) {
	w.logger.Error("signal watcher stopped",
		"operation", op,
		"error", err.Error(),
	)
}

// readInto drains available events into names.
func (w *inotifyWatcher) readInto(buffer []byte, names map[string]struct{}) error {
	for {
		n, err := unix.Read(w.fd, buffer)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if n <= 0 {
			return nil
		}
		for _, name := range inotifyEventNames(buffer[:n]) {
			names[name] = struct{}{}
		}
	}
}

// inotifyEventNames extracts the file names from a buffer of raw inotify
// events.
//
// Inotify event layout (from inotify(7)):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, padded to alignment
//	};
func inotifyEventNames(buffer []byte) []string {
	var names []string
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		if nameLength > 0 {
			name := nullTerminated(buffer[offset+unix.SizeofInotifyEvent : offset+eventSize])
			if name != "" {
				names = append(names, name)
			}
		}
		offset += eventSize
	}
	return names
}

func nullTerminated(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
