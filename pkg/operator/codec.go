package operator

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/aerobridge/groundctl/pkg/bufpool"
)

// maxFrameSize bounds a single inbound frame so a malformed or hostile
// client can't force an unbounded allocation (§6.2 length-prefixed framing).
const maxFrameSize = 4 << 20 // 4MB

// writeFrame writes one length-prefixed JSON frame: a 4-byte big-endian
// length followed by payload.
func writeFrame(conn net.Conn, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(header[:]); err != nil {
		return fmt.Errorf("operator: write frame header: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("operator: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame, using the shared buffer pool
// for the body to reduce per-frame allocation under sustained operator
// traffic.
func readFrame(conn net.Conn) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, nil
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("operator: frame of %d bytes exceeds %d byte limit", n, maxFrameSize)
	}

	buf := bufpool.Get(int(n))
	if _, err := io.ReadFull(conn, buf); err != nil {
		bufpool.Put(buf)
		return nil, err
	}

	out := make([]byte, n)
	copy(out, buf)
	bufpool.Put(buf)
	return out, nil
}
