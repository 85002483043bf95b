package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufowatch/internal/logging"
)

func encodeTestJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	first := encodeTestJPEG(t, 8, 8, color.RGBA{R: 255, A: 255})
	second := encodeTestJPEG(t, 8, 8, color.RGBA{B: 255, A: 255})

	stream := append([]byte{0x00, 0x01}, first...)
	stream = append(stream, second[:10]...)

	frame, rest := splitJPEG(stream)
	assert.Equal(t, first, frame)
	assert.Equal(t, second[:10], rest)

	// 後半が届くまでは取り出せない
	frame, rest = splitJPEG(rest)
	assert.Nil(t, frame)
	assert.Equal(t, second[:10], rest)

	frame, rest = splitJPEG(append(rest, second[10:]...))
	assert.Equal(t, second, frame)
	assert.Empty(t, rest)
}

func TestSplitJPEG_NoMarker(t *testing.T) {
	frame, rest := splitJPEG([]byte{0x01, 0x02, 0x03})
	assert.Nil(t, frame)
	assert.Empty(t, rest)

	// 開始マーカーの1バイト目は残す
	frame, rest = splitJPEG([]byte{0x01, 0xFF})
	assert.Nil(t, frame)
	assert.Equal(t, []byte{0xFF}, rest)
}

// chunkReader は小さな単位でデータを返すReader
type chunkReader struct {
	data  []byte
	chunk int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestFFmpegDevice_PumpFrames(t *testing.T) {
	red := encodeTestJPEG(t, 16, 8, color.RGBA{R: 255, A: 255})
	blue := encodeTestJPEG(t, 16, 8, color.RGBA{B: 255, A: 255})

	d := NewFFmpegDevice("/dev/video0", "", logging.Discard())
	stream := append(append([]byte{}, red...), blue...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.pumpFrames(context.Background(), &chunkReader{data: stream, chunk: 7})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pumpFrames did not finish")
	}

	img, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	assert.Greater(t, img.RGBAAt(4, 4).R, uint8(200))

	img, err = d.Read()
	require.NoError(t, err)
	assert.Greater(t, img.RGBAAt(4, 4).B, uint8(200))
}

func TestFFmpegDevice_CloseWithoutOpen(t *testing.T) {
	d := NewFFmpegDevice("/dev/video0", "", logging.Discard())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFFmpegDevice_OpenFailsWithoutEncoder(t *testing.T) {
	d := NewFFmpegDevice("/dev/video0", "/nonexistent/ffmpeg", logging.Discard())
	_, err := Open(context.Background(), d, 640, 480, logging.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceOpen)
}

func TestDeviceFactory(t *testing.T) {
	factory := NewDeviceFactory()
	assert.Equal(t, []string{BackendFFmpeg, BackendX11}, factory.Backends())

	device, err := factory.Create(DeviceConfig{Backend: BackendFFmpeg, Index: 2}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "/dev/video2", device.Name())

	factory.Register("mock", func(DeviceConfig, *logrus.Entry) (Device, error) {
		return NewMockDevice(8, 8), nil
	})
	assert.Equal(t, []string{BackendFFmpeg, "mock", BackendX11}, factory.Backends())

	_, err = factory.Create(DeviceConfig{Backend: "gstreamer"}, logging.Discard())
	assert.Error(t, err)
}

func TestX11Device(t *testing.T) {
	t.Setenv("DISPLAY", "")

	device, err := NewDeviceFactory().Create(DeviceConfig{Backend: BackendX11}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, ":0", device.Name())

	d := NewX11Device(":1", "", logging.Discard())
	assert.Equal(t, ":1", d.Name())
	assert.Equal(t, "x11grab", d.inputFormat)
	assert.Equal(t, "ffmpeg", d.command)
}
