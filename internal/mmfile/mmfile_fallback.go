//go:build !unix && !windows

package mmfile

// Anonymous allocates size zeroed bytes on the Go heap when mmap is not available.
func Anonymous(size int) ([]byte, func() error, error) {
	data := make([]byte, max(size, 0))
	return data, func() error { return nil }, nil
}

// Release zeroes data.
func Release(data []byte) error {
	clear(data)
	return nil
}
