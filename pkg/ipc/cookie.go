package ipc

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

// CookieLen is the size of an authentication cookie in bytes.
const CookieLen = 32

// Cookie is the random token used to authenticate local connections. It is
// not a session key: it only proves the peer could read the rendezvous file
// or took part in the bootstrap.
type Cookie [CookieLen]byte

// NewCookie samples a fresh cookie from the system CSPRNG.
func NewCookie() (Cookie, error) {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		return Cookie{}, fmt.Errorf("generating cookie: %w", err)
	}
	return c, nil
}

// Send writes the cookie to w.
func (c Cookie) Send(w io.Writer) error {
	if _, err := w.Write(c[:]); err != nil {
		return fmt.Errorf("sending cookie: %w", err)
	}
	return nil
}

// Equal compares two cookies in constant time. The length is fixed and
// public; only the byte contents are secret.
func (c Cookie) Equal(other Cookie) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// ReceiveCookie reads exactly CookieLen bytes from r. A short read is
// reported as ErrConnectionClosed.
func ReceiveCookie(r io.Reader) (Cookie, error) {
	var c Cookie
	if _, err := io.ReadFull(r, c[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Cookie{}, fmt.Errorf("receiving cookie: %w", ErrConnectionClosed)
		}
		return Cookie{}, fmt.Errorf("receiving cookie: %w", err)
	}
	return c, nil
}

// ExtractCookie splits buf into a leading cookie and the remaining bytes.
// ok is false if buf is too short to contain a cookie.
func ExtractCookie(buf []byte) (cookie Cookie, rest []byte, ok bool) {
	if len(buf) < CookieLen {
		return Cookie{}, nil, false
	}
	copy(cookie[:], buf[:CookieLen])
	return cookie, buf[CookieLen:], true
}
