package recorder

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ufowatch/internal/camera"
)

// State は録画セッションの状態
type State int

const (
	StateIdle      State = iota // 録画していない
	StateRecording              // 録画中
	StateStopping               // 停止処理中
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source は最新フレームを提供する
type Source interface {
	Snapshot() camera.Frame
	Resolution() camera.Resolution
}

// ResultRecorder は保存した録画の情報を記録する
type ResultRecorder interface {
	SaveResultData(dateTime, videoLength string) error
}

// Listener は録画の開始と終了の通知を受け取る
type Listener interface {
	RecordingStarted(id string)
	RecordingFinished(result Result)
}

type nopListener struct{}

func (nopListener) RecordingStarted(string)  {}
func (nopListener) RecordingFinished(Result) {}

// Stats は1回の録画の統計
type Stats struct {
	FramesCaptured int `json:"frames_captured"` // キューから受け取ったフレーム数
	FramesWritten  int `json:"frames_written"`  // 複製を含めて書き込んだフレーム数
	Duplicates     int `json:"duplicates"`      // 遅れを埋めるために複製したフレーム数
	WriteErrors    int `json:"write_errors"`
	EmptySnapshots int `json:"empty_snapshots"`
}

// Result は1回の録画の結果
type Result struct {
	ID            string        `json:"id"`
	Stamp         string        `json:"stamp"`
	StartedAt     time.Time     `json:"started_at"`
	VideoPath     string        `json:"video_path,omitempty"`
	ThumbnailPath string        `json:"thumbnail_path,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	DurationLabel string        `json:"duration"`
	Codec         string        `json:"codec"`
	Saved         bool          `json:"saved"`
	Encoded       bool          `json:"encoded"`
	Stats         Stats         `json:"stats"`
	Error         string        `json:"error,omitempty"`
	Err           error         `json:"-"`
}

func (r *Result) setErr(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// Status はセッションの現在状態
type Status struct {
	State         string      `json:"state"`
	SessionID     string      `json:"session_id,omitempty"`
	QueueLength   int         `json:"queue_length"`
	QueueCapacity int         `json:"queue_capacity"`
	EncodingJobs  int         `json:"encoding_jobs"`
	Plan          *CodecPlan  `json:"plan,omitempty"`
	LastResult    *Result     `json:"last_result,omitempty"`
	Jobs          []EncodeJob `json:"jobs,omitempty"`
}

// Options は録画セッションの設定
type Options struct {
	ResultDir      string
	Extension      string
	FPS            float64
	QueueCapacity  int
	DrawRectangles bool
	Codec          string       // 希望するFourCC
	Support        CodecSupport // コーデックの対応状況

	Results  ResultRecorder // nilなら記録しない
	Listener Listener       // nilなら通知しない
}

// recording は1回の録画の状態
// writerDone が閉じるまでの間、統計と結果のフィールドはライターだけが書き込む。
type recording struct {
	id        string
	stamp     string
	tempPath  string
	finalPath string
	plan      CodecPlan
	size      image.Point
	startedAt time.Time

	trigger camera.Frame
	queue   *FrameQueue

	stopCh       chan struct{}
	stopOnce     sync.Once
	producerDone chan struct{}
	writerDone   chan struct{}

	firstFrame     camera.Frame
	stats          Stats
	emptySnapshots int
	elapsed        time.Duration
	err            error
}

// abort はプロデューサーに停止を通知する
func (r *recording) abort() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Session はトリガーを受けて動画を録画する
type Session struct {
	opts        Options
	period      time.Duration
	source      Source
	backend     ContainerBackend
	coordinator *Coordinator
	logger      *logrus.Entry

	mu         sync.Mutex
	state      State
	rec        *recording
	lastResult *Result

	detMu     sync.Mutex
	detection Detection

	// エンコード完了待ちの結果
	pendingMu    sync.Mutex
	pending      map[string]*Result
	pendingOrder []string
}

// NewSession は新しいSessionを作成する
// 結果ディレクトリとサムネイルディレクトリはここで作成する。
func NewSession(opts Options, source Source, backend ContainerBackend, coordinator *Coordinator, logger *logrus.Entry) (*Session, error) {
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("無効なフレームレート: %v", opts.FPS)
	}
	if opts.QueueCapacity <= 0 {
		return nil, fmt.Errorf("無効なキュー容量: %d", opts.QueueCapacity)
	}
	if opts.Extension == "" {
		opts.Extension = ".avi"
	}
	if opts.Listener == nil {
		opts.Listener = nopListener{}
	}

	if err := os.MkdirAll(filepath.Join(opts.ResultDir, ThumbnailDir), 0755); err != nil {
		return nil, fmt.Errorf("結果ディレクトリの作成に失敗: %w", err)
	}

	s := &Session{
		opts:        opts,
		period:      time.Duration(float64(time.Second) / opts.FPS),
		source:      source,
		backend:     backend,
		coordinator: coordinator,
		logger:      logger,
		state:       StateIdle,
		pending:     make(map[string]*Result),
	}

	if coordinator != nil {
		coordinator.setHooks(s.onEncodeDone, s.onEncodeIdle)
	}

	return s, nil
}

// Start はトリガーフレームを先頭にして録画を開始する
// 録画していない場合だけ開始し、それ以外は何もせず false を返す。
func (s *Session) Start(trigger camera.Frame) bool {
	s.mu.Lock()

	if s.state != StateIdle {
		s.mu.Unlock()
		return false
	}

	now := time.Now()
	stamp := uniqueStamp(s.opts.ResultDir, s.opts.Extension, now)
	tempPath, finalPath := videoPaths(s.opts.ResultDir, stamp, s.opts.Extension)

	rec := &recording{
		id:           uuid.NewString(),
		stamp:        stamp,
		tempPath:     tempPath,
		finalPath:    finalPath,
		plan:         SelectCodec(s.opts.Codec, s.opts.Support),
		size:         s.source.Resolution().Size(),
		startedAt:    now,
		trigger:      trigger,
		queue:        NewFrameQueue(s.opts.QueueCapacity, s.logger),
		stopCh:       make(chan struct{}),
		producerDone: make(chan struct{}),
		writerDone:   make(chan struct{}),
	}

	s.rec = rec
	s.state = StateRecording

	go s.produce(rec)
	go s.write(rec)

	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"session_id": rec.id,
		"file":       rec.tempPath,
		"codec":      rec.plan.RecordFourCC,
		"encode":     rec.plan.EncoderCodec,
	}).Info("録画を開始")

	s.opts.Listener.RecordingStarted(rec.id)
	return true
}

// Stop は録画を停止する
// キューに残ったフレームを全て書き込んでから、保存するなら後処理を行う。
// 録画中でなければ何もせず false を返す。
func (s *Session) Stop(save bool) bool {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return false
	}
	s.state = StateStopping
	rec := s.rec
	s.mu.Unlock()

	// プロデューサーを止めてから終端を通知するので、終端の後に積まれるフレームはない
	rec.abort()
	<-rec.producerDone
	rec.queue.StopWait()
	<-rec.writerDone

	rec.stats.EmptySnapshots = rec.emptySnapshots
	result, deferred := s.finish(rec, save)

	s.mu.Lock()
	s.state = StateIdle
	s.rec = nil
	if !deferred {
		s.lastResult = &result
	}
	s.mu.Unlock()

	if !deferred {
		s.opts.Listener.RecordingFinished(result)
	}
	return true
}

// finish は書き込みが終わった録画の後処理を行う
// 外部エンコードに回した場合は deferred が true になり、終了通知はエンコード完了後に行う。
func (s *Session) finish(rec *recording, save bool) (result Result, deferred bool) {
	logger := s.logger.WithField("session_id", rec.id)

	result = Result{
		ID:            rec.id,
		Stamp:         rec.stamp,
		StartedAt:     rec.startedAt,
		Duration:      rec.elapsed,
		DurationLabel: DurationLabel(rec.elapsed),
		Codec:         rec.plan.RecordFourCC,
		Stats:         rec.stats,
	}

	if rec.err != nil {
		result.setErr(rec.err)
		return result, false
	}

	if !save {
		if err := os.Remove(rec.tempPath); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Warn("一時ファイルの削除に失敗")
		}
		logger.Info("録画を破棄しました")
		return result, false
	}

	result.Saved = true

	if img := s.thumbnailSource(rec); img != nil {
		path := thumbnailPath(s.opts.ResultDir, rec.stamp)
		if err := WriteThumbnail(path, img); err != nil {
			logger.WithError(err).Warn("サムネイルの保存に失敗")
		} else {
			result.ThumbnailPath = path
		}
	}

	if s.opts.Results != nil {
		if err := s.opts.Results.SaveResultData(rec.stamp, result.DurationLabel); err != nil {
			logger.WithError(err).Warn("録画情報の記録に失敗")
		}
	}

	if !rec.plan.Final() && s.coordinator != nil {
		if s.requestEncode(rec, &result) {
			return result, true
		}
	}

	// 一時ファイルをそのまま最終ファイルにする
	if err := os.Rename(rec.tempPath, rec.finalPath); err != nil {
		result.setErr(fmt.Errorf("録画ファイルの名前変更に失敗: %w", err))
		logger.WithError(err).Error("録画ファイルの名前変更に失敗")
		return result, false
	}
	result.VideoPath = rec.finalPath

	logger.WithFields(logrus.Fields{
		"file":     rec.finalPath,
		"duration": result.DurationLabel,
	}).Info("録画を保存しました")
	return result, false
}

// requestEncode は外部エンコードを依頼し、完了待ちの結果として登録する
// 起動に失敗した場合は false を返し、非圧縮のファイルが最終結果になる。
func (s *Session) requestEncode(rec *recording, result *Result) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	job, err := s.coordinator.RequestEncode(rec.tempPath, rec.finalPath, rec.plan.EncoderCodec)
	if err != nil {
		result.setErr(err)
		s.logger.WithField("session_id", rec.id).WithError(err).Error("エンコードを開始できません。非圧縮のまま保存します")
		return false
	}

	result.Encoded = true
	result.Codec = s.opts.Codec
	result.VideoPath = rec.finalPath
	pending := *result
	s.pending[job.ID] = &pending
	s.pendingOrder = append(s.pendingOrder, job.ID)
	return true
}

// onEncodeDone はジョブごとの結果を完了待ちの結果に反映する
func (s *Session) onEncodeDone(job EncodeJob, err error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if r, ok := s.pending[job.ID]; ok && err != nil {
		r.setErr(err)
		r.VideoPath = ""
	}
}

// onEncodeIdle は全てのエンコードが終わったときに完了待ちの結果を通知する
func (s *Session) onEncodeIdle() {
	s.pendingMu.Lock()
	if s.coordinator.InFlight() > 0 {
		// 通知の間に新しいジョブが始まった
		s.pendingMu.Unlock()
		return
	}
	results := make([]Result, 0, len(s.pendingOrder))
	for _, id := range s.pendingOrder {
		results = append(results, *s.pending[id])
	}
	s.pending = make(map[string]*Result)
	s.pendingOrder = nil
	s.pendingMu.Unlock()

	for i := range results {
		s.mu.Lock()
		s.lastResult = &results[i]
		s.mu.Unlock()
		s.opts.Listener.RecordingFinished(results[i])
	}
}

// thumbnailSource はサムネイルにする画像を返す
func (s *Session) thumbnailSource(rec *recording) image.Image {
	if !rec.trigger.Empty() {
		return rec.trigger.Image
	}
	if !rec.firstFrame.Empty() {
		return rec.firstFrame.Image
	}
	return nil
}

// SetRectangle は次に描画する注目領域を設定する
func (s *Session) SetRectangle(rect image.Rectangle, positive bool) {
	s.detMu.Lock()
	defer s.detMu.Unlock()
	s.detection = Detection{Rect: rect, Positive: positive}
}

// Detection は現在の注目領域を返す
func (s *Session) Detection() Detection {
	s.detMu.Lock()
	defer s.detMu.Unlock()
	return s.detection
}

// State は現在の状態を返す
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status は現在の状態の概要を返す
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		State:      s.state.String(),
		LastResult: s.lastResult,
	}
	if s.rec != nil {
		plan := s.rec.plan
		st.SessionID = s.rec.id
		st.Plan = &plan
		st.QueueLength = s.rec.queue.Len()
		st.QueueCapacity = s.rec.queue.Capacity()
	}
	s.mu.Unlock()

	if s.coordinator != nil {
		st.Jobs = s.coordinator.Jobs()
		st.EncodingJobs = len(st.Jobs)
	}
	return st
}

// Shutdown は録画中なら保存して停止し、エンコードの完了を待つ
func (s *Session) Shutdown(ctx context.Context) error {
	if s.Stop(true) {
		s.logger.Info("終了のため録画を停止しました")
	}
	if s.coordinator == nil {
		return nil
	}
	return s.coordinator.Wait(ctx)
}
