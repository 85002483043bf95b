package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

// MockDevice はテスト用のモックDevice実装
// 読み取るたびに連番を左上の画素の赤成分に書き込んだ新しいフレームを返す。
// SetReuseBuffer を有効にすると同じバッファの全画素を連番で塗り直して返す。
type MockDevice struct {
	mu         sync.Mutex
	name       string
	resolution Resolution
	openErr    error
	delay      time.Duration
	opened     bool
	closed     bool
	reads      int
	reuse      bool
	buf        *image.RGBA
	closeCh    chan struct{}
}

// NewMockDevice は指定した解像度を設定するMockDeviceを作成する
func NewMockDevice(width, height int) *MockDevice {
	return &MockDevice{
		name:       "mock",
		resolution: Resolution{Width: width, Height: height},
		closeCh:    make(chan struct{}),
	}
}

// SetOpenError はOpenが返すエラーを設定する
func (m *MockDevice) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// SetDelay は1回の読み取りにかかる時間を設定する
func (m *MockDevice) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetReuseBuffer は読み取りごとに同じバッファを返すかを設定する
func (m *MockDevice) SetReuseBuffer(reuse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reuse = reuse
}

// Name はデバイス名を返す
func (m *MockDevice) Name() string {
	return m.name
}

// Open は要求に関係なく設定済みの解像度を返す
func (m *MockDevice) Open(_ context.Context, _, _ int) (Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return Resolution{}, m.openErr
	}
	m.opened = true
	return m.resolution, nil
}

// Read は次のフレームを返す
func (m *MockDevice) Read() (*image.RGBA, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-m.closeCh:
			return nil, ErrClosed
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.reads++

	if m.reuse {
		if m.buf == nil {
			m.buf = image.NewRGBA(image.Rect(0, 0, m.resolution.Width, m.resolution.Height))
		}
		// 前回返したバッファをそのまま書き換える
		for i := 0; i < len(m.buf.Pix); i += 4 {
			m.buf.Pix[i] = uint8(m.reads)
			m.buf.Pix[i+3] = 255
		}
		return m.buf, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, m.resolution.Width, m.resolution.Height))
	img.SetRGBA(0, 0, color.RGBA{R: uint8(m.reads), A: 255})
	return img, nil
}

// Close はデバイスを閉じる
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
	return nil
}

// Reads はこれまでの読み取り回数を返す
func (m *MockDevice) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Closed はCloseが呼ばれたかを返す
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
