package ipc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCookie(t *testing.T) {
	t.Run("HasFixedLength", func(t *testing.T) {
		c, err := NewCookie()
		require.NoError(t, err)
		assert.Len(t, c[:], CookieLen)
	})

	t.Run("IsRandom", func(t *testing.T) {
		a, err := NewCookie()
		require.NoError(t, err)
		b, err := NewCookie()
		require.NoError(t, err)
		assert.False(t, a.Equal(b), "two fresh cookies must differ")
	})
}

func TestCookieSendReceive(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		c, err := NewCookie()
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, c.Send(&buf))
		assert.Equal(t, CookieLen, buf.Len())

		got, err := ReceiveCookie(&buf)
		require.NoError(t, err)
		assert.True(t, got.Equal(c))
	})

	t.Run("ShortReadIsConnectionClosed", func(t *testing.T) {
		_, err := ReceiveCookie(strings.NewReader("too short"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConnectionClosed)
	})

	t.Run("EmptyReadIsConnectionClosed", func(t *testing.T) {
		_, err := ReceiveCookie(strings.NewReader(""))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConnectionClosed)
	})
}

func TestExtractCookie(t *testing.T) {
	t.Run("SplitsCookieAndRest", func(t *testing.T) {
		c, err := NewCookie()
		require.NoError(t, err)

		buf := append(append([]byte{}, c[:]...), []byte("127.0.0.1:49221")...)
		got, rest, ok := ExtractCookie(buf)
		require.True(t, ok)
		assert.True(t, got.Equal(c))
		assert.Equal(t, "127.0.0.1:49221", string(rest))
	})

	t.Run("ExactLengthLeavesEmptyRest", func(t *testing.T) {
		c, err := NewCookie()
		require.NoError(t, err)

		got, rest, ok := ExtractCookie(c[:])
		require.True(t, ok)
		assert.True(t, got.Equal(c))
		assert.Empty(t, rest)
	})

	t.Run("ShortBufferFails", func(t *testing.T) {
		for _, n := range []int{0, 1, CookieLen - 1} {
			_, _, ok := ExtractCookie(make([]byte, n))
			assert.False(t, ok, "buffer of %d bytes must not contain a cookie", n)
		}
	})
}

func TestCookieEqual(t *testing.T) {
	t.Run("EqualBytesAreEqual", func(t *testing.T) {
		var a, b Cookie
		copy(a[:], bytes.Repeat([]byte{0xAB}, CookieLen))
		copy(b[:], bytes.Repeat([]byte{0xAB}, CookieLen))
		assert.True(t, a.Equal(b))
	})

	t.Run("AnySingleBitFlipDiffers", func(t *testing.T) {
		a, err := NewCookie()
		require.NoError(t, err)

		for i := 0; i < CookieLen; i++ {
			b := a
			b[i] ^= 0x01
			assert.False(t, a.Equal(b), "flip at byte %d must not compare equal", i)
		}
	})
}
