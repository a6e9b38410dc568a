// Package netio provides the gap-proof write primitive used everywhere the
// gateway writes to a client socket (§4.D.1): loop until every byte is
// accepted by the OS, and treat any non-positive write (including a
// broken-pipe error) as a single terminal condition for the caller to map
// to its own exit status.
package netio

import "io"

// WriteAll writes the full buffer to w, looping on partial writes. It
// returns the first error encountered, or io.ErrShortWrite when a Write
// accepts no bytes without reporting an error.
func WriteAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if n <= 0 && err == nil {
			return io.ErrShortWrite
		}
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
