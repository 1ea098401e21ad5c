//go:build windows

package mmfile

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Anonymous reserves and commits size bytes of zeroed read-write memory.
func Anonymous(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return []byte{}, func() error { return nil }, nil
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: map %d bytes: %w", size, err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	cleanup := func() error {
		if addr == 0 {
			return nil
		}
		err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		addr = 0
		return err
	}
	return data, cleanup, nil
}

// Release decommits and recommits the pages of data so they read back as zeroes.
func Release(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&data[0]))
	if err := windows.VirtualFree(addr, uintptr(len(data)), windows.MEM_DECOMMIT); err != nil {
		return err
	}
	_, err := windows.VirtualAlloc(addr, uintptr(len(data)), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}
