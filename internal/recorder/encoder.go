package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrEncodeProcess は外部エンコーダーの起動や終了が異常だったときに返される
var ErrEncodeProcess = errors.New("encode process failed")

// stderrTailSize はエラーログに残すエンコーダー出力の長さ
const stderrTailSize = 2048

// EncodeJob は実行中の外部エンコード
type EncodeJob struct {
	ID        string    `json:"id"`
	TempPath  string    `json:"temp_path"`
	FinalPath string    `json:"final_path"`
	Codec     string    `json:"codec"`
	StartedAt time.Time `json:"started_at"`
}

// Coordinator は外部エンコーダーのプロセスを管理する
// 各ジョブの終了は専用のゴルーチンで待ち、全ジョブが終わったら onIdle を呼ぶ。
type Coordinator struct {
	encoder string
	logger  *logrus.Entry

	mu      sync.Mutex
	jobs    map[string]*EncodeJob
	running int           // 通知が終わっていないジョブ数
	drained chan struct{} // running が0になったら閉じる

	hookMu    sync.Mutex
	onJobDone func(job EncodeJob, err error)
	onIdle    func()
}

// NewCoordinator は新しいCoordinatorを作成する
func NewCoordinator(encoderLocation string, logger *logrus.Entry) *Coordinator {
	return &Coordinator{
		encoder: encoderLocation,
		logger:  logger,
		jobs:    make(map[string]*EncodeJob),
	}
}

// setHooks はジョブ終了時と全ジョブ終了時の通知先を設定する
func (c *Coordinator) setHooks(onJobDone func(job EncodeJob, err error), onIdle func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onJobDone = onJobDone
	c.onIdle = onIdle
}

// RequestEncode は tempPath を codec で finalPath へ変換するプロセスを起動する
func (c *Coordinator) RequestEncode(tempPath, finalPath, codec string) (EncodeJob, error) {
	// ffmpeg と avconv で共通の引数
	cmd := exec.Command(c.encoder, "-i", tempPath, "-vcodec", codec, finalPath)
	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return EncodeJob{}, fmt.Errorf("%w: エンコーダーの起動に失敗: %w", ErrEncodeProcess, err)
	}

	job := &EncodeJob{
		ID:        uuid.NewString(),
		TempPath:  tempPath,
		FinalPath: finalPath,
		Codec:     codec,
		StartedAt: time.Now(),
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	if c.running == 0 {
		c.drained = make(chan struct{})
	}
	c.running++
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"codec":  codec,
		"output": finalPath,
	}).Info("動画のエンコードを開始")

	go c.wait(job, cmd, stderr)

	return *job, nil
}

// wait はプロセスの終了を待って後始末をする
func (c *Coordinator) wait(job *EncodeJob, cmd *exec.Cmd, stderr *tailBuffer) {
	err := cmd.Wait()
	logger := c.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"elapsed": time.Since(job.StartedAt).Round(time.Millisecond),
	})

	// 一時ファイルは結果に関わらず削除する
	if rmErr := os.Remove(job.TempPath); rmErr != nil && !os.IsNotExist(rmErr) {
		logger.WithError(rmErr).Warn("一時ファイルの削除に失敗")
	}

	if err != nil {
		// 途中まで書かれた出力は残さない
		_ = os.Remove(job.FinalPath)
		err = fmt.Errorf("%w: %w", ErrEncodeProcess, err)
		logger.WithError(err).WithField("stderr", stderr.String()).Error("動画のエンコードに失敗")
	} else {
		logger.Info("動画のエンコードが完了")
	}

	c.hookMu.Lock()
	onJobDone, onIdle := c.onJobDone, c.onIdle
	c.hookMu.Unlock()

	// 登録を外す前に結果を反映する。onIdle が呼ばれる時点で終了済みの全ジョブの結果は反映済み
	if onJobDone != nil {
		onJobDone(*job, err)
	}

	c.mu.Lock()
	delete(c.jobs, job.ID)
	idle := len(c.jobs) == 0
	c.mu.Unlock()

	if idle {
		logger.Debug("全てのエンコードが完了")
		if onIdle != nil {
			onIdle()
		}
	}

	c.mu.Lock()
	c.running--
	if c.running == 0 {
		close(c.drained)
	}
	c.mu.Unlock()
}

// InFlight は実行中のジョブ数を返す
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Jobs は実行中のジョブ一覧を返す
func (c *Coordinator) Jobs() []EncodeJob {
	c.mu.Lock()
	defer c.mu.Unlock()

	jobs := make([]EncodeJob, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Wait は全てのジョブの終了と通知が済むかctxが終了するまで待つ
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.running == 0 {
		c.mu.Unlock()
		return nil
	}
	drained := c.drained
	c.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("エンコードの完了待ちを中断 (残り%d件): %w", c.InFlight(), ctx.Err())
	}
}

// tailBuffer は書き込まれた内容の末尾だけを保持する
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
