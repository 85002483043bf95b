package recorder

import (
	"errors"
	"image"
	"os"
	"strings"
	"sync"
)

// MockContainerBackend はテスト用のContainerBackend実装
// 作成したファイルには書き込んだフレームごとに左上の画素の赤成分を1バイト書き込む。
type MockContainerBackend struct {
	mu         sync.Mutex
	native     map[string]bool
	openErr    error
	containers []*MockContainer
}

// NewMockContainerBackend は native のコーデックを直接書けるバックエンドを作成する
func NewMockContainerBackend(native ...string) *MockContainerBackend {
	m := &MockContainerBackend{native: make(map[string]bool)}
	for _, fourcc := range native {
		m.native[strings.ToUpper(fourcc)] = true
	}
	return m
}

// SetOpenError はOpenContainerが返すエラーを設定する
func (m *MockContainerBackend) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// SupportsCodec は直接書けるコーデックかを返す
func (m *MockContainerBackend) SupportsCodec(fourcc string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native[strings.ToUpper(fourcc)]
}

// OpenContainer は空のファイルを作成してMockContainerを返す
func (m *MockContainerBackend) OpenContainer(path, fourcc string, fps float64, size image.Point) (Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	c := &MockContainer{Path: path, FourCC: fourcc, FPS: fps, Size: size, file: f}
	m.containers = append(m.containers, c)
	return c, nil
}

// Containers は作成したコンテナを返す
func (m *MockContainerBackend) Containers() []*MockContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockContainer, len(m.containers))
	copy(out, m.containers)
	return out
}

// Last は最後に作成したコンテナを返す
func (m *MockContainerBackend) Last() *MockContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.containers) == 0 {
		return nil
	}
	return m.containers[len(m.containers)-1]
}

// MockContainer はテスト用のContainer実装
type MockContainer struct {
	Path   string
	FourCC string
	FPS    float64
	Size   image.Point

	mu      sync.Mutex
	file    *os.File
	markers []uint8
	sizes   []image.Point
	closed  bool
}

// Write はフレームの目印を記録する
func (c *MockContainer) Write(img *image.RGBA) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("container closed")
	}
	marker := img.RGBAAt(img.Rect.Min.X, img.Rect.Min.Y).R
	c.markers = append(c.markers, marker)
	c.sizes = append(c.sizes, img.Bounds().Size())
	_, err := c.file.Write([]byte{marker})
	return err
}

// Close はファイルを閉じる
func (c *MockContainer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}

// Markers は書き込まれたフレームの目印を順に返す
func (c *MockContainer) Markers() []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint8, len(c.markers))
	copy(out, c.markers)
	return out
}

// Sizes は書き込まれたフレームの大きさを順に返す
func (c *MockContainer) Sizes() []image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]image.Point, len(c.sizes))
	copy(out, c.sizes)
	return out
}

// Closed はCloseが呼ばれたかを返す
func (c *MockContainer) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
