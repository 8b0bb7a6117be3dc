//go:build linux

package adapters

import (
	"io"

	"golang.org/x/sys/unix"
)

// discardBuffers drops anything still queued in either direction so a stale
// response cannot be mistaken for the answer to the next request.
func discardBuffers(port io.ReadWriteCloser) error {
	f, ok := port.(interface{ Fd() uintptr })
	if !ok {
		return nil
	}
	return unix.IoctlSetInt(int(f.Fd()), unix.TCFLSH, unix.TCIOFLUSH)
}
