// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// WaitForEntry blocks until directory contains at least one entry or
// ctx is done. The directory need not exist yet, but its parent must.
//
// Arrivals are observed through inotify; the directory is re-listed
// only when something has been created.
func WaitForEntry(ctx context.Context, directory string) error {
	for {
		watched := directory
		match := func(string) bool { return true }
		if _, err := os.Stat(directory); errors.Is(err, fs.ErrNotExist) {
			watched = filepath.Dir(directory)
			base := filepath.Base(directory)
			match = func(name string) bool { return name == base }
		}

		changed, stop, err := watchDirectory(watched, match)
		if err != nil {
			return err
		}

		// Check after installing the watch so an entry created in
		// between is not missed.
		if hasEntries(directory) {
			stop()
			return nil
		}

		select {
		case <-changed:
			stop()
			if hasEntries(directory) {
				return nil
			}
		case <-ctx.Done():
			stop()
			return ctx.Err()
		}
	}
}

func hasEntries(directory string) bool {
	file, err := os.Open(directory)
	if err != nil {
		return false
	}
	defer file.Close()
	names, _ := file.Readdirnames(1)
	return len(names) > 0
}

// watchDirectory installs an inotify watch for entries created in or
// moved into directory. The returned channel closes on the first event
// whose name satisfies match, or when the watch fails. stop releases
// the inotify descriptor and must always be called; it is safe to call
// more than once.
func watchDirectory(directory string, match func(name string) bool) (<-chan struct{}, func(), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, directory, unix.IN_CREATE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("inotify_add_watch on %s: %w", directory, err)
	}

	changed := make(chan struct{})
	stopChannel := make(chan struct{})
	go inotifyReadLoop(fd, match, changed, stopChannel)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(stopChannel)
	}
	return changed, stop, nil
}

// inotifyReadLoop polls fd with a 100ms timeout so it notices the stop
// signal, and closes changed when a matching event arrives or reading
// fails. It closes fd on exit.
func inotifyReadLoop(fd int, match func(string) bool, changed chan<- struct{}, stopChannel <-chan struct{}) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-stopChannel:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			close(changed)
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			close(changed)
			return
		}

		for _, name := range inotifyEventNames(buffer[:bytesRead]) {
			if match(name) {
				close(changed)
				return
			}
		}
	}
}

// inotifyEventNames returns the names carried by a buffer of raw
// inotify events.
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null padded
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
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			names = append(names, nullTerminated(nameBytes))
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
