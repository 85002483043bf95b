package recorder

import (
	"image"
	"time"
)

// advanceDeadline は次の撮影時刻を1周期進め、now を過ぎてしまった周期の数を数える
// 過ぎた周期の分だけ直前のフレームを複製して書き込むことで録画の長さを実時間に合わせる。
func advanceDeadline(next, now time.Time, period time.Duration) (time.Time, int) {
	next = next.Add(period)
	skipped := 0
	for next.Before(now) {
		skipped++
		next = next.Add(period)
	}
	return next, skipped
}

// produce は一定周期で最新フレームを取得してキューに積む
func (s *Session) produce(rec *recording) {
	defer close(rec.producerDone)

	period := s.period
	next := time.Now().Add(period)
	var lastDrawn image.Rectangle
	// 空のフレームで書けなかった周期数。次に取得できたフレームで埋める
	carried := 0

	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-rec.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		frame := s.source.Snapshot()

		var skipped int
		next, skipped = advanceDeadline(next, time.Now(), period)

		if frame.Empty() {
			// カメラからまだフレームが届いていない
			rec.emptySnapshots++
			carried += skipped + 1
			continue
		}

		if s.opts.DrawRectangles {
			det := s.Detection()
			if det.Rect != lastDrawn {
				drawRectangle(frame.Image, det.Rect, det.Color())
				lastDrawn = det.Rect
			}
		}

		rec.queue.Push(frame, skipped+carried)
		carried = 0
	}
}
