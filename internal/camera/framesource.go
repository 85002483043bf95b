package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// readInterval はフレーム読み取りの間に他のゴルーチンへ譲る時間
const readInterval = time.Millisecond

// FrameSource はデバイスから読み取り続けた最新フレームを保持する
type FrameSource struct {
	device     Device
	resolution Resolution
	logger     *logrus.Entry

	// 制御用
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	status Status

	// 最新フレーム保持用
	// latest の画素バッファは FrameSource 専用で、読み書きは latestMutex の内側で行う
	latest      Frame
	latestMutex sync.RWMutex

	framesRead atomic.Uint64
}

// Open はデバイスを開いて読み取りゴルーチンを開始する
// デバイスが要求と異なる解像度を設定した場合は警告を出してそのまま使う。
func Open(ctx context.Context, device Device, width, height int, logger *logrus.Entry) (*FrameSource, error) {
	logger = logger.WithField("device", device.Name())

	res, err := device.Open(ctx, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDeviceOpen, device.Name(), err)
	}

	if res.Width != width || res.Height != height {
		logger.WithFields(logrus.Fields{
			"requested": fmt.Sprintf("%dx%d", width, height),
			"actual":    fmt.Sprintf("%dx%d", res.Width, res.Height),
		}).Warn("要求した解像度と異なる解像度でカメラが開かれました")
	}

	s := &FrameSource{
		device:     device,
		resolution: res,
		logger:     logger,
		stopCh:     make(chan struct{}),
		status:     StatusActive,
	}

	s.wg.Add(1)
	go s.readFrames()

	logger.WithField("resolution", fmt.Sprintf("%dx%d", res.Width, res.Height)).Info("カメラを開きました")
	return s, nil
}

// readFrames はデバイスから読み取ったフレームで最新フレームを更新し続ける
func (s *FrameSource) readFrames() {
	defer s.wg.Done()

	timer := time.NewTimer(readInterval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		img, err := s.device.Read()
		switch {
		case err == nil:
			// デバイスは次の Read でバッファを使い回すので保持用のバッファへ移す
			s.latestMutex.Lock()
			s.latest = Frame{Image: copyImage(s.latest.Image, img), Timestamp: time.Now()}
			s.latestMutex.Unlock()
			s.framesRead.Add(1)
		case errors.Is(err, ErrClosed):
			return
		case !errors.Is(err, ErrNoFrame):
			s.logger.WithError(err).Debug("フレームの読み取りに失敗")
		}

		timer.Reset(readInterval)
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
		}
	}
}

// Snapshot は最新フレームの複製を返す
// まだフレームが無い場合は空のフレームを返す。読み取りゴルーチンを待つことはない。
func (s *FrameSource) Snapshot() Frame {
	s.latestMutex.RLock()
	defer s.latestMutex.RUnlock()

	// 保持用のバッファは読み取りゴルーチンが上書きするので、複製はロックの内側で行う
	return s.latest.Clone()
}

// Resolution はデバイスが実際に設定した解像度を返す
func (s *FrameSource) Resolution() Resolution {
	return s.resolution
}

// FramesRead はこれまでに読み取ったフレーム数を返す
func (s *FrameSource) FramesRead() uint64 {
	return s.framesRead.Load()
}

// IsOpen はデバイスが開いているかを返す
func (s *FrameSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusActive
}

// Close は読み取りを停止してデバイスを解放する
// 複数回呼んでも安全。
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusInactive {
		return nil // 既に停止済み
	}

	// 停止シグナルを送信
	close(s.stopCh)

	// ブロック中の読み取りを解除するため先にデバイスを閉じる
	err := s.device.Close()

	// ゴルーチンの終了を待機
	s.wg.Wait()

	s.status = StatusInactive
	s.logger.Info("カメラを閉じました")

	if err != nil {
		return fmt.Errorf("デバイスの解放に失敗: %w", err)
	}
	return nil
}
