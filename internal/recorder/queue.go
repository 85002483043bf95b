package recorder

import (
	"sync"

	"github.com/sirupsen/logrus"

	"ufowatch/internal/camera"
)

// QueuedFrame はキューに積まれた1フレーム
// Duplicates はこのフレームを追加で何回書き込むかを表す。
type QueuedFrame struct {
	Frame      camera.Frame
	Duplicates int
}

// FrameQueue はプロデューサーからライターへフレームを渡すFIFO
// 容量は目安で、超えても警告を出すだけで破棄もブロックもしない。
type FrameQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []QueuedFrame
	head     int
	stopped  bool
	capacity int

	backpressure int
	logger       *logrus.Entry
}

// NewFrameQueue は新しいFrameQueueを作成する
func NewFrameQueue(capacity int, logger *logrus.Entry) *FrameQueue {
	q := &FrameQueue{
		items:    make([]QueuedFrame, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push はフレームを末尾に追加する
// StopWait の後はフレームを受け付けず false を返す。
func (q *FrameQueue) Push(frame camera.Frame, duplicates int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	if n := len(q.items) - q.head; n >= q.capacity {
		q.backpressure++
		q.logger.WithFields(logrus.Fields{
			"length":   n,
			"capacity": q.capacity,
		}).Warn("フレームキューが容量に達しました。フレームレートを下げてください")
	}

	q.items = append(q.items, QueuedFrame{Frame: frame, Duplicates: duplicates})
	q.cond.Signal()
	return true
}

// WaitNext は先頭のフレームを取り出す。空なら追加か停止まで待つ
// 停止後もキューが空になるまではフレームを返し、空になったら false を返す。
func (q *FrameQueue) WaitNext() (QueuedFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.stopped {
		q.cond.Wait()
	}

	if q.head == len(q.items) {
		return QueuedFrame{}, false
	}

	item := q.items[q.head]
	q.items[q.head] = QueuedFrame{}
	q.head++

	// 取り出し済みの領域を詰める
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}

// StopWait は終端を通知して待機中のWaitNextを起こす
func (q *FrameQueue) StopWait() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}

// Len は取り出されていないフレーム数を返す
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Capacity は警告を出すキュー長を返す
func (q *FrameQueue) Capacity() int {
	return q.capacity
}

// BackpressureWarnings は容量超過の警告を出した回数を返す
func (q *FrameQueue) BackpressureWarnings() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.backpressure
}
