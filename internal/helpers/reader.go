package helpers

import "io"

// ReadAllAndClose drains and closes r.
func ReadAllAndClose(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}

// DrainAndClose discards what is left of r so the connection can be reused.
func DrainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
