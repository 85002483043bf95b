package recorder

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ufowatch/internal/camera"
	"ufowatch/internal/logging"
)

const triggerMarker = 200

// scriptedSource は呼ばれた順番を目印にしたフレームを返す
type scriptedSource struct {
	mu      sync.Mutex
	calls   int
	size    image.Point
	frame   image.Point // 0ならsizeと同じ
	delayAt int
	delay   time.Duration
	empty   int // 最初のempty回は空のフレームを返す
}

func (s *scriptedSource) Snapshot() camera.Frame {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == s.delayAt {
		time.Sleep(s.delay)
	}
	if n <= s.empty {
		return camera.Frame{}
	}
	size := s.size
	if s.frame != (image.Point{}) {
		size = s.frame
	}
	return markedFrame(uint8(n-s.empty), size.X, size.Y)
}

func (s *scriptedSource) Resolution() camera.Resolution {
	return camera.Resolution{Width: s.size.X, Height: s.size.Y}
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordListener struct {
	mu       sync.Mutex
	started  []string
	finished []Result
}

func (l *recordListener) RecordingStarted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, id)
}

func (l *recordListener) RecordingFinished(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, r)
}

func (l *recordListener) Finished() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Result(nil), l.finished...)
}

type resultCall struct {
	dateTime string
	length   string
}

type fakeResults struct {
	mu    sync.Mutex
	calls []resultCall
	err   error
}

func (f *fakeResults) SaveResultData(dateTime, videoLength string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, resultCall{dateTime, videoLength})
	return f.err
}

func (f *fakeResults) Calls() []resultCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resultCall(nil), f.calls...)
}

type sessionFixture struct {
	session  *Session
	source   *scriptedSource
	backend  *MockContainerBackend
	listener *recordListener
	results  *fakeResults
	dir      string
}

func newFixture(t *testing.T, coordinator *Coordinator, configure func(*Options, *scriptedSource, *MockContainerBackend)) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		source:   &scriptedSource{size: image.Pt(8, 6)},
		backend:  NewMockContainerBackend("FFV1"),
		listener: &recordListener{},
		results:  &fakeResults{},
		dir:      t.TempDir(),
	}
	opts := Options{
		ResultDir:     f.dir,
		Extension:     ".avi",
		FPS:           50,
		QueueCapacity: 50,
		Codec:         "FFV1",
		Support:       CodecSupport{Native: map[string]bool{"FFV1": true}},
		Results:       f.results,
		Listener:      f.listener,
	}
	if configure != nil {
		configure(&opts, f.source, f.backend)
	}

	s, err := NewSession(opts, f.source, f.backend, coordinator, logging.Discard())
	require.NoError(t, err)
	f.session = s
	t.Cleanup(func() { f.session.Stop(false) })
	return f
}

func (f *sessionFixture) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.source.Calls() >= n }, 5*time.Second, 5*time.Millisecond)
}

func triggerFrame(size image.Point) camera.Frame {
	return markedFrame(triggerMarker, size.X, size.Y)
}

func TestNewSession_InvalidOptions(t *testing.T) {
	src := &scriptedSource{size: image.Pt(8, 6)}

	_, err := NewSession(Options{ResultDir: t.TempDir(), FPS: 0, QueueCapacity: 1}, src, NewMockContainerBackend(), nil, logging.Discard())
	assert.Error(t, err)

	_, err = NewSession(Options{ResultDir: t.TempDir(), FPS: 10, QueueCapacity: 0}, src, NewMockContainerBackend(), nil, logging.Discard())
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = NewSession(Options{ResultDir: dir, FPS: 10, QueueCapacity: 1}, src, NewMockContainerBackend(), nil, logging.Discard())
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, ThumbnailDir))
}

func TestSession_StartStopIdempotent(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.False(t, f.session.Stop(true), "録画していないときの停止")
	assert.Equal(t, StateIdle, f.session.State())

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	assert.Equal(t, StateRecording, f.session.State())
	assert.False(t, f.session.Start(triggerFrame(f.source.size)), "録画中の開始")

	f.waitCalls(t, 2)
	assert.True(t, f.session.Stop(true))
	assert.False(t, f.session.Stop(true))
	assert.Equal(t, StateIdle, f.session.State())

	assert.Len(t, f.backend.Containers(), 1)
	assert.Len(t, f.listener.Finished(), 1)
	assert.Len(t, f.listener.started, 1)
}

func TestSession_TriggerWrittenFirst(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 4)
	require.True(t, f.session.Stop(true))

	markers := slices.Compact(f.backend.Last().Markers())
	require.GreaterOrEqual(t, len(markers), 4)
	assert.Equal(t, []uint8{triggerMarker, 1, 2, 3}, markers[:4])
	assert.True(t, f.backend.Last().Closed())
	assert.Equal(t, "FFV1", f.backend.Last().FourCC)
	assert.Equal(t, float64(50), f.backend.Last().FPS)
}

func TestSession_SlowCaptureIsDuplicated(t *testing.T) {
	f := newFixture(t, nil, func(o *Options, src *scriptedSource, _ *MockContainerBackend) {
		o.FPS = 20
		src.delayAt = 3
		src.delay = 125 * time.Millisecond
	})

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 6)
	require.True(t, f.session.Stop(true))

	markers := f.backend.Last().Markers()
	count := 0
	for _, m := range markers {
		if m == 3 {
			count++
		}
	}
	// 50ms周期で125ms遅れたので2周期分を複製する
	assert.Equal(t, 3, count, "markers: %v", markers)

	result := f.listener.Finished()[0]
	assert.GreaterOrEqual(t, result.Stats.Duplicates, 2)
	assert.Equal(t, len(markers), result.Stats.FramesWritten)
	assert.Equal(t, result.Stats.FramesWritten, result.Stats.FramesCaptured+1+result.Stats.Duplicates)
}

func TestSession_SaveRenamesAndRecords(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	finished := f.listener.Finished()
	require.Len(t, finished, 1)
	result := finished[0]
	require.NoError(t, result.Err)

	temp, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.True(t, result.Saved)
	assert.False(t, result.Encoded)
	assert.Equal(t, final, result.VideoPath)
	assert.FileExists(t, final)
	assert.NoFileExists(t, temp)
	assert.Equal(t, thumbnailPath(f.dir, result.Stamp), result.ThumbnailPath)
	assert.FileExists(t, result.ThumbnailPath)

	calls := f.results.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, result.Stamp, calls[0].dateTime)
	assert.Equal(t, result.DurationLabel, calls[0].length)

	status := f.session.Status()
	assert.Equal(t, "idle", status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, result.ID, status.LastResult.ID)
}

func TestSession_DiscardRemovesFile(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(false))

	result := f.listener.Finished()[0]
	assert.False(t, result.Saved)
	assert.Empty(t, result.VideoPath)
	assert.Empty(t, result.ThumbnailPath)

	temp, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.NoFileExists(t, temp)
	assert.NoFileExists(t, final)
	assert.NoFileExists(t, thumbnailPath(f.dir, result.Stamp))
	assert.Empty(t, f.results.Calls())
}

func TestSession_ThumbnailFromFirstFrameWithoutTrigger(t *testing.T) {
	f := newFixture(t, nil, func(_ *Options, src *scriptedSource, _ *MockContainerBackend) {
		src.empty = 2
	})

	require.True(t, f.session.Start(camera.Frame{}))
	f.waitCalls(t, 5)
	require.True(t, f.session.Stop(true))

	result := f.listener.Finished()[0]
	assert.FileExists(t, result.ThumbnailPath)
	assert.Equal(t, 2, result.Stats.EmptySnapshots)
	assert.Equal(t, uint8(1), f.backend.Last().Markers()[0])
}

func TestSession_EmptySnapshotsKeepRecordingLength(t *testing.T) {
	f := newFixture(t, nil, func(_ *Options, src *scriptedSource, _ *MockContainerBackend) {
		src.empty = 2
	})

	require.True(t, f.session.Start(camera.Frame{}))
	f.waitCalls(t, 6)
	require.True(t, f.session.Stop(true))

	markers := f.backend.Last().Markers()
	require.GreaterOrEqual(t, len(markers), 3)
	// 空だった2周期分は最初に取得できたフレームで埋める
	assert.Equal(t, []uint8{1, 1, 1}, markers[:3], "markers: %v", markers)

	result := f.listener.Finished()[0]
	assert.Equal(t, 2, result.Stats.EmptySnapshots)
	assert.GreaterOrEqual(t, result.Stats.Duplicates, 2)
	assert.Equal(t, len(markers), result.Stats.FramesWritten)
	assert.Equal(t, result.Stats.FramesWritten, result.Stats.FramesCaptured+result.Stats.Duplicates)
}

func TestSession_StopBeforeFirstFrame(t *testing.T) {
	f := newFixture(t, nil, func(o *Options, _ *scriptedSource, _ *MockContainerBackend) {
		o.FPS = 1
	})

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	require.True(t, f.session.Stop(true))

	assert.Zero(t, f.source.Calls())
	assert.Equal(t, []uint8{triggerMarker}, f.backend.Last().Markers())

	finished := f.listener.Finished()
	require.Len(t, finished, 1)
	result := finished[0]
	require.NoError(t, result.Err)
	assert.Equal(t, 1, result.Stats.FramesWritten)
	_, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.Equal(t, final, result.VideoPath)
	assert.FileExists(t, final)
}

func TestSession_ResizesMismatchedFrames(t *testing.T) {
	f := newFixture(t, nil, func(_ *Options, src *scriptedSource, _ *MockContainerBackend) {
		src.frame = image.Pt(4, 3)
	})

	require.True(t, f.session.Start(triggerFrame(image.Pt(16, 12))))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	container := f.backend.Last()
	assert.Equal(t, image.Pt(8, 6), container.Size)
	for _, size := range container.Sizes() {
		assert.Equal(t, image.Pt(8, 6), size)
	}
}

func TestSession_ContainerOpenFailure(t *testing.T) {
	f := newFixture(t, nil, func(_ *Options, _ *scriptedSource, backend *MockContainerBackend) {
		backend.SetOpenError(errors.New("codec unavailable"))
	})

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	time.Sleep(50 * time.Millisecond)
	require.True(t, f.session.Stop(true))

	result := f.listener.Finished()[0]
	assert.ErrorIs(t, result.Err, ErrContainerOpen)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.VideoPath)
	assert.Empty(t, f.results.Calls())

	temp, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.NoFileExists(t, temp)
	assert.NoFileExists(t, final)
	assert.Equal(t, StateIdle, f.session.State())

	// 失敗の後も次の録画を開始できる
	f.backend.SetOpenError(nil)
	assert.True(t, f.session.Start(triggerFrame(f.source.size)))
}

func TestSession_RectangleDrawnOnlyWhenChanged(t *testing.T) {
	f := newFixture(t, nil, func(o *Options, _ *scriptedSource, _ *MockContainerBackend) {
		o.DrawRectangles = true
	})
	// 左上を含む枠なので、描かれたフレームの目印は枠の色になる
	f.session.SetRectangle(image.Rect(0, 0, 4, 4), false)
	assert.Equal(t, Detection{Rect: image.Rect(0, 0, 4, 4)}, f.session.Detection())

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 4)
	require.True(t, f.session.Stop(true))

	markers := slices.Compact(f.backend.Last().Markers())
	require.GreaterOrEqual(t, len(markers), 4)
	assert.Equal(t, []uint8{triggerMarker, NegativeColor.R, 2, 3}, markers[:4])
}

func TestSession_RectangleDisabled(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.session.SetRectangle(image.Rect(0, 0, 4, 4), false)

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	markers := slices.Compact(f.backend.Last().Markers())
	assert.Equal(t, []uint8{triggerMarker, 1, 2}, markers[:3])
}

func TestSession_StatusWhileRecording(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	status := f.session.Status()
	assert.Equal(t, "recording", status.State)
	assert.NotEmpty(t, status.SessionID)
	assert.Equal(t, 50, status.QueueCapacity)
	require.NotNil(t, status.Plan)
	assert.Equal(t, "FFV1", status.Plan.RecordFourCC)
	assert.Zero(t, status.EncodingJobs)
}

func encodeFixture(t *testing.T, script string) (*sessionFixture, *Coordinator) {
	t.Helper()
	coordinator := NewCoordinator(script, logging.Discard())
	f := newFixture(t, coordinator, func(o *Options, _ *scriptedSource, _ *MockContainerBackend) {
		o.Support = CodecSupport{Encoder: map[string]bool{"FFV1": true}}
	})
	return f, coordinator
}

func TestSession_EncodeSuccess(t *testing.T) {
	f, coordinator := encodeFixture(t, writeEncoder(t, encodeOKScript))

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	assert.Equal(t, RawFourCC, f.backend.Last().FourCC)
	// 完了の通知はエンコードが終わってから
	assert.Empty(t, f.listener.Finished())
	assert.Equal(t, 1, f.session.Status().EncodingJobs)

	require.NoError(t, coordinator.Wait(context.Background()))

	finished := f.listener.Finished()
	require.Len(t, finished, 1)
	result := finished[0]
	require.NoError(t, result.Err)
	assert.True(t, result.Encoded)
	assert.Equal(t, "FFV1", result.Codec)

	temp, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.Equal(t, final, result.VideoPath)
	assert.FileExists(t, final)
	assert.NoFileExists(t, temp)
	assert.FileExists(t, result.ThumbnailPath)
	assert.Len(t, f.results.Calls(), 1)
	require.NotNil(t, f.session.Status().LastResult)
}

func TestSession_EncodeFailure(t *testing.T) {
	f, coordinator := encodeFixture(t, writeEncoder(t, encodeFailScript))

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))
	require.NoError(t, coordinator.Wait(context.Background()))

	result := f.listener.Finished()[0]
	assert.ErrorIs(t, result.Err, ErrEncodeProcess)
	assert.Empty(t, result.VideoPath)

	temp, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.NoFileExists(t, temp)
	assert.NoFileExists(t, final)
}

func TestSession_TempKeptUntilEncodeCompletes(t *testing.T) {
	f, coordinator := encodeFixture(t, writeEncoder(t, encodeSlowScript))

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	jobs := coordinator.Jobs()
	require.Len(t, jobs, 1)
	temp := jobs[0].TempPath
	// エンコード中は非圧縮の一時ファイルが残っている
	assert.FileExists(t, temp)
	assert.NoFileExists(t, jobs[0].FinalPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, coordinator.Wait(ctx))

	assert.NoFileExists(t, temp)
	assert.FileExists(t, jobs[0].FinalPath)
}

// 1回目の呼び出しだけ即座に失敗する
const encodeFailOnceScript = "#!/bin/sh\nif [ ! -e \"$0.failed\" ]; then\n  touch \"$0.failed\"\n  exit 3\nfi\nsleep 0.1\ncp \"$2\" \"$5\"\n"

func TestSession_EncodeFailureReportedWithLaterSuccess(t *testing.T) {
	f, coordinator := encodeFixture(t, writeEncoder(t, encodeFailOnceScript))
	// 失敗したジョブの結果の反映が後のジョブの完了より遅れる場合
	coordinator.setHooks(func(job EncodeJob, err error) {
		if err != nil {
			time.Sleep(400 * time.Millisecond)
		}
		f.session.onEncodeDone(job, err)
	}, f.session.onEncodeIdle)

	for i := 0; i < 2; i++ {
		require.True(t, f.session.Start(triggerFrame(f.source.size)))
		calls := f.source.Calls()
		f.waitCalls(t, calls+3)
		require.True(t, f.session.Stop(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, coordinator.Wait(ctx))

	finished := f.listener.Finished()
	require.Len(t, finished, 2)

	failed := finished[0]
	assert.ErrorIs(t, failed.Err, ErrEncodeProcess)
	assert.Empty(t, failed.VideoPath)

	ok := finished[1]
	require.NoError(t, ok.Err)
	assert.True(t, ok.Encoded)
	assert.FileExists(t, ok.VideoPath)
}

func TestSession_EncodeSpawnFailureKeepsRawVideo(t *testing.T) {
	f, _ := encodeFixture(t, filepath.Join(t.TempDir(), "no-such-encoder"))

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)
	require.True(t, f.session.Stop(true))

	finished := f.listener.Finished()
	require.Len(t, finished, 1)
	result := finished[0]
	assert.ErrorIs(t, result.Err, ErrEncodeProcess)
	assert.False(t, result.Encoded)

	_, final := videoPaths(f.dir, result.Stamp, ".avi")
	assert.Equal(t, final, result.VideoPath)
	assert.FileExists(t, final)
}

func TestSession_ShutdownSavesAndWaits(t *testing.T) {
	f, _ := encodeFixture(t, writeEncoder(t, encodeOKScript))

	require.True(t, f.session.Start(triggerFrame(f.source.size)))
	f.waitCalls(t, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.session.Shutdown(ctx))

	assert.Equal(t, StateIdle, f.session.State())
	finished := f.listener.Finished()
	require.Len(t, finished, 1)
	assert.True(t, finished[0].Saved)
	assert.FileExists(t, finished[0].VideoPath)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "temp")
	}
}
