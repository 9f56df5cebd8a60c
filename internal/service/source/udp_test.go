package source

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"net"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcam/internal/logger"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 40, G: 160, B: 60, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func sendChunked(t *testing.T, conn net.Conn, data []byte, size int) {
	t.Helper()
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		_, err := conn.Write(data[:n])
		require.NoError(t, err)
		data = data[n:]
	}
}

func newUDPSource(t *testing.T) (*UDPSource, net.Conn) {
	t.Helper()
	src, err := ListenUDP("127.0.0.1:0", logger.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	conn, err := net.Dial("udp", src.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return src, conn
}

func TestUDPSource_ReassemblesFrame(t *testing.T) {
	src, conn := newUDPSource(t)

	sendChunked(t, conn, encodeJPEG(t, 64, 48), 512)

	frame, err := src.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.False(t, frame.Timestamp.IsZero())
	assert.Equal(t, image.Rect(0, 0, 64, 48), frame.Image.Bounds())
}

func TestUDPSource_SkipsGarbageAndOrphanTails(t *testing.T) {
	src, conn := newUDPSource(t)

	// A header-framed payload that is not a JPEG, then a tail with no header.
	_, err := conn.Write([]byte{0xFF, 0xD8, 0x00, 0x01, 0xFF, 0xD9})
	require.NoError(t, err)
	_, err = conn.Write([]byte{0x10, 0x20, 0xFF, 0xD9})
	require.NoError(t, err)
	sendChunked(t, conn, encodeJPEG(t, 16, 16), 1024)

	frame, err := src.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, 16, frame.Image.Bounds().Dx())
}

func TestUDPSource_CloseUnblocksWithEOF(t *testing.T) {
	src, _ := newUDPSource(t)

	done := make(chan error, 1)
	go func() {
		_, err := src.NextFrame()
		done <- err
	}()

	require.NoError(t, src.Close())
	assert.ErrorIs(t, <-done, io.EOF)
	assert.NoError(t, src.Close())
}

func TestAssemble_PerSenderBuffers(t *testing.T) {
	src := &UDPSource{buffers: make(map[string]*bytes.Buffer), logger: logger.New(io.Discard)}

	_, ok := src.assemble("a", []byte{0xFF, 0xD8, 1})
	assert.False(t, ok)
	_, ok = src.assemble("b", []byte{0xFF, 0xD8, 2})
	assert.False(t, ok)

	frame, ok := src.assemble("a", []byte{3, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 1, 3, 0xFF, 0xD9}, frame)

	frame, ok = src.assemble("b", []byte{4, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 2, 4, 0xFF, 0xD9}, frame)
}
