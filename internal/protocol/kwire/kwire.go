// Package kwire implements the request/response protocol spoken between
// keywarden clients and the daemon over an authenticated IPC session.
//
// Messages are XDR-encoded and framed with a 4-byte big-endian length
// prefix. The framing and encoding start only after the session cookie has
// been consumed by the discovery layer; this package never sees cookies.
package kwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Procedure numbers.
const (
	OpPing int32 = iota
	OpPut
	OpGet
	OpList
	OpDelete
)

// Response status codes.
const (
	StatusOK int32 = iota
	StatusNotFound
	StatusInvalid
	StatusError
)

// maxMessageSize bounds a single framed message. Key material is small;
// anything larger is a protocol violation, not a big key.
const maxMessageSize = 16 << 20

// Request is the client-to-server message.
type Request struct {
	// Op selects the procedure.
	Op int32

	// Name is the key name for PUT, GET, and DELETE.
	Name string

	// Algorithm labels the material for PUT.
	Algorithm string

	// Material is the key bytes for PUT.
	Material []byte
}

// KeyInfo describes one stored key in a response.
type KeyInfo struct {
	ID        string
	Name      string
	Algorithm string
	Material  []byte
	CreatedAt int64 // Unix seconds, UTC
}

// Response is the server-to-client message.
type Response struct {
	// Status is one of the Status constants.
	Status int32

	// Message carries human-readable error detail when Status != StatusOK.
	Message string

	// Keys holds the result records: one entry for GET and PUT, all
	// entries for LIST, none otherwise.
	Keys []KeyInfo
}

// WriteMessage XDR-encodes v and writes it as one length-prefixed frame.
func WriteMessage(w io.Writer, v any) error {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, v); err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(body.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("writing frame body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed frame and XDR-decodes it into v.
func ReadMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxMessageSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum %d", size, maxMessageSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("reading frame body: %w", err)
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(body), v); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}
