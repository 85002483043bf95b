package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"ufowatch/internal/camera"
)

// Backend はOpenCVでカメラを読むバックエンド名
const Backend = "opencv"

// VideoCaptureDevice はOpenCVのVideoCaptureでカメラを読むcamera.Device実装
type VideoCaptureDevice struct {
	index  int
	logger *logrus.Entry

	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
}

// NewVideoCaptureDevice はカメラ番号 index のデバイスを作成する
func NewVideoCaptureDevice(index int, logger *logrus.Entry) *VideoCaptureDevice {
	return &VideoCaptureDevice{
		index:  index,
		logger: logger,
	}
}

// Register はファクトリーにOpenCVバックエンドを登録する
func Register(factory *camera.DeviceFactory) {
	factory.Register(Backend, func(config camera.DeviceConfig, logger *logrus.Entry) (camera.Device, error) {
		return NewVideoCaptureDevice(config.Index, logger), nil
	})
}

// Name はログ表示用のデバイス名を返す
func (d *VideoCaptureDevice) Name() string {
	return fmt.Sprintf("opencv:%d", d.index)
}

// Open はカメラを開いて解像度を設定する
// カメラが対応していない解像度の場合は実際に設定された解像度を返す。
func (d *VideoCaptureDevice) Open(ctx context.Context, width, height int) (camera.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.Resolution{}, camera.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return camera.Resolution{}, err
	}

	capture, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return camera.Resolution{}, fmt.Errorf("カメラ%dを開けません: %w", d.index, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return camera.Resolution{}, fmt.Errorf("カメラ%dを開けません", d.index)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	// 古いフレームを溜めない
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	res := camera.Resolution{
		Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}

	d.capture = capture
	d.mat = gocv.NewMat()

	d.logger.WithFields(logrus.Fields{
		"index": d.index,
		"fps":   capture.Get(gocv.VideoCaptureFPS),
	}).Debug("OpenCVでカメラを開きました")

	return res, nil
}

// Read は次のフレームを読み取る
func (d *VideoCaptureDevice) Read() (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.capture == nil {
		return nil, camera.ErrClosed
	}
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, camera.ErrNoFrame
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("フレームの変換に失敗: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	return camera.CloneImage(img), nil
}

// Close はカメラを解放する
// 読み取り中の場合はその読み取りが終わるまで待つ。
func (d *VideoCaptureDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.capture == nil {
		return nil
	}
	_ = d.mat.Close()
	err := d.capture.Close()
	d.capture = nil
	return err
}
