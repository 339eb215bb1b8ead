//go:build windows

package multipart

import (
	"fmt"
	"os"
)

// dupFD is unsupported on Windows builds of this package: the host
// filesystem layer this package binds to is Unix-only (spec.md explicitly
// scopes out the file-system request dispatch surface).
func dupFD(physicalFD int) (*os.File, error) {
	return nil, fmt.Errorf("%w: fd duplication unsupported on this platform", ErrIO)
}
