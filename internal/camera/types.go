package camera

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"time"
)

var (
	// ErrDeviceOpen はデバイスを開けなかったときに返される
	ErrDeviceOpen = errors.New("camera device open failed")

	// ErrNoFrame は読み取りでフレームが得られなかったときに返される
	ErrNoFrame = errors.New("no frame available")

	// ErrClosed は閉じたデバイスから読み取ろうとしたときに返される
	ErrClosed = errors.New("camera device closed")
)

// Status はカメラの動作状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // カメラは停止中
	StatusActive   Status = "active"   // カメラは動作中
)

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int `json:"width"`  // 幅
	Height int `json:"height"` // 高さ
}

// Size はimage.Pointとして解像度を返す
func (r Resolution) Size() image.Point {
	return image.Pt(r.Width, r.Height)
}

// Frame は1枚の画像とその撮影時刻
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// NewFrame は画像を複製して現在時刻のフレームにする
func NewFrame(img image.Image) Frame {
	if img == nil {
		return Frame{}
	}
	return Frame{Image: CloneImage(img), Timestamp: time.Now()}
}

// Empty はフレームが画像を持たない場合にtrueを返す
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Rect.Empty()
}

// Clone は画素バッファを複製したフレームを返す
func (f Frame) Clone() Frame {
	if f.Empty() {
		return Frame{Timestamp: f.Timestamp}
	}
	return Frame{Image: CloneImage(f.Image), Timestamp: f.Timestamp}
}

// copyImage は src を dst に上書きコピーする
// 大きさが異なる場合や dst が nil の場合は新しいバッファを確保する。
func copyImage(dst, src *image.RGBA) *image.RGBA {
	if dst == nil || dst.Rect.Size() != src.Rect.Size() {
		return CloneImage(src)
	}
	draw.Draw(dst, dst.Bounds(), src, src.Rect.Min, draw.Src)
	return dst
}

// CloneImage は画像を新しいRGBAバッファに複製する
func CloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == dst.Stride {
		copy(dst.Pix, rgba.Pix)
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Device はフレームを読み取れるキャプチャデバイス
type Device interface {
	// Open はデバイスを開き、実際に設定された解像度を返す
	Open(ctx context.Context, width, height int) (Resolution, error)

	// Read は次のフレームを読み取る。取得できなければ ErrNoFrame を返す
	// 返す画像は次の Read まで有効で、デバイスはそのバッファを使い回してよい。
	Read() (*image.RGBA, error)

	// Close はデバイスを解放する
	Close() error

	// Name はログ表示用のデバイス名を返す
	Name() string
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device string `json:"device"` // デバイスパス
	Name   string `json:"name"`   // デバイス名
	Driver string `json:"driver"` // ドライバー名
}
