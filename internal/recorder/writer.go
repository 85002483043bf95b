package recorder

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// write は動画ファイルを開き、トリガーフレームとキューのフレームを書き込む
func (s *Session) write(rec *recording) {
	defer close(rec.writerDone)

	start := time.Now()
	logger := s.logger.WithField("session_id", rec.id)

	container, err := s.backend.OpenContainer(rec.tempPath, rec.plan.RecordFourCC, s.opts.FPS, rec.size)
	if err != nil {
		rec.err = fmt.Errorf("%w (%s): %w", ErrContainerOpen, rec.tempPath, err)
		logger.WithError(rec.err).Error("動画ファイルを開けませんでした。録画を中止します")
		_ = os.Remove(rec.tempPath)
		rec.abort()
		return
	}

	if !rec.trigger.Empty() {
		rec.firstFrame = rec.trigger
		s.writeFrame(rec, container, rec.trigger.Image, 0)
	}

	for {
		item, ok := rec.queue.WaitNext()
		if !ok {
			break
		}
		if rec.firstFrame.Empty() {
			rec.firstFrame = item.Frame
		}
		rec.stats.FramesCaptured++
		s.writeFrame(rec, container, item.Frame.Image, item.Duplicates)
	}

	if err := container.Close(); err != nil {
		logger.WithError(err).Warn("動画ファイルのクローズに失敗")
	}
	rec.elapsed = time.Since(start)

	logger.WithFields(logrus.Fields{
		"captured":   rec.stats.FramesCaptured,
		"written":    rec.stats.FramesWritten,
		"duplicates": rec.stats.Duplicates,
		"elapsed":    rec.elapsed.Round(time.Millisecond),
	}).Info("動画ファイルへの書き込みを終了")
}

// writeFrame はフレームを duplicates+1 回書き込む
// 動画と大きさが異なるフレームは動画の大きさに合わせる。
func (s *Session) writeFrame(rec *recording, container Container, img *image.RGBA, duplicates int) {
	if img.Bounds().Size() != rec.size {
		img = fitImage(img, rec.size)
	}

	for i := 0; i <= duplicates; i++ {
		if err := container.Write(img); err != nil {
			rec.stats.WriteErrors++
			s.logger.WithError(err).Debug("フレームの書き込みに失敗")
			continue
		}
		rec.stats.FramesWritten++
		if i > 0 {
			rec.stats.Duplicates++
		}
	}
}

// fitImage はimgをsizeに拡大縮小した画像を返す
func fitImage(img image.Image, size image.Point) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
