//go:build !windows

package multipart

import (
	"os"
	"syscall"
)

// dupFD duplicates physicalFD so the upload path can seek/read
// independently of the handle's own physical descriptor, per spec.md §5
// ("workers must never share the file offset of the handle's own fd").
func dupFD(physicalFD int) (*os.File, error) {
	newFD, err := syscall.Dup(physicalFD)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(newFD), ""), nil
}
