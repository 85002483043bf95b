package recorder

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufowatch/internal/camera"
	"ufowatch/internal/logging"
)

// markedFrame は左上の画素の赤成分に目印を入れたフレームを作る
func markedFrame(marker uint8, w, h int) camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Pix[0] = marker
	return camera.Frame{Image: img, Timestamp: time.Now()}
}

func TestFrameQueue_FIFO(t *testing.T) {
	q := NewFrameQueue(10, logging.Discard())

	for i := 1; i <= 5; i++ {
		require.True(t, q.Push(markedFrame(uint8(i), 2, 2), i-1))
	}
	assert.Equal(t, 5, q.Len())

	for i := 1; i <= 5; i++ {
		item, ok := q.WaitNext()
		require.True(t, ok)
		assert.Equal(t, uint8(i), item.Frame.Image.Pix[0])
		assert.Equal(t, i-1, item.Duplicates)
	}
	assert.Equal(t, 0, q.Len())
}

func TestFrameQueue_DrainsAfterStop(t *testing.T) {
	q := NewFrameQueue(10, logging.Discard())
	q.Push(markedFrame(1, 2, 2), 0)
	q.Push(markedFrame(2, 2, 2), 0)
	q.StopWait()

	// 停止後に積まれたフレームは受け付けない
	assert.False(t, q.Push(markedFrame(3, 2, 2), 0))

	var got []uint8
	for {
		item, ok := q.WaitNext()
		if !ok {
			break
		}
		got = append(got, item.Frame.Image.Pix[0])
	}
	assert.Equal(t, []uint8{1, 2}, got)

	_, ok := q.WaitNext()
	assert.False(t, ok)
}

func TestFrameQueue_OverCapacityKeepsFrames(t *testing.T) {
	q := NewFrameQueue(3, logging.Discard())

	for i := 0; i < 10; i++ {
		require.True(t, q.Push(markedFrame(uint8(i), 1, 1), 0))
	}

	assert.Equal(t, 10, q.Len())
	assert.Equal(t, 3, q.Capacity())
	assert.Equal(t, 7, q.BackpressureWarnings())
}

func TestFrameQueue_WaitNextBlocksUntilPush(t *testing.T) {
	q := NewFrameQueue(4, logging.Discard())

	got := make(chan QueuedFrame, 1)
	go func() {
		item, ok := q.WaitNext()
		if ok {
			got <- item
		}
	}()

	select {
	case <-got:
		t.Fatal("空のキューから取り出せてしまった")
	case <-time.After(30 * time.Millisecond):
	}

	q.Push(markedFrame(9, 1, 1), 2)

	select {
	case item := <-got:
		assert.Equal(t, uint8(9), item.Frame.Image.Pix[0])
		assert.Equal(t, 2, item.Duplicates)
	case <-time.After(time.Second):
		t.Fatal("WaitNextが起きなかった")
	}
}

func TestFrameQueue_StopWakesWaiter(t *testing.T) {
	q := NewFrameQueue(4, logging.Discard())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.WaitNext()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.StopWait()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("StopWaitで待機が解除されなかった")
	}
}

func TestFrameQueue_ConcurrentProducerConsumer(t *testing.T) {
	q := NewFrameQueue(8, logging.Discard())
	const n = 500

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(markedFrame(uint8(i%256), 1, 1), 0)
		}
		q.StopWait()
	}()

	count := 0
	for {
		item, ok := q.WaitNext()
		if !ok {
			break
		}
		assert.Equal(t, uint8(count%256), item.Frame.Image.Pix[0])
		count++
	}
	wg.Wait()
	assert.Equal(t, n, count)
}
