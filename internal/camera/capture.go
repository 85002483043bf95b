package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

const (
	// probeTimeout はデバイス確認用キャプチャの待ち時間
	probeTimeout = 10 * time.Second

	// frameWaitTimeout を過ぎてもフレームが来なければ ErrNoFrame を返す
	frameWaitTimeout = time.Second
)

// FFmpegDevice はffmpegで入力デバイスからMJPEGストリームを読み取るDevice
type FFmpegDevice struct {
	devicePath  string
	inputFormat string // ffmpegの -f に渡す入力形式
	command     string
	logger      *logrus.Entry

	frames chan []byte
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewFFmpegDevice は新しいFFmpegDeviceを作成する
func NewFFmpegDevice(devicePath, command string, logger *logrus.Entry) *FFmpegDevice {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegDevice{
		devicePath:  devicePath,
		inputFormat: "v4l2",
		command:     command,
		logger:      logger.WithField("device", devicePath),
		frames:      make(chan []byte, 2),
		done:        make(chan struct{}),
	}
}

// Name はデバイスパスを返す
func (d *FFmpegDevice) Name() string {
	return d.devicePath
}

// Open は1フレームをテストキャプチャして解像度を確認し、ストリーミングを開始する
func (d *FFmpegDevice) Open(ctx context.Context, width, height int) (Resolution, error) {
	data, err := d.captureJPEG(ctx, width, height)
	if err != nil {
		return Resolution{}, err
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Resolution{}, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}

	// ストリームはOpenのコンテキストではなくCloseで止める
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	if err := d.startStream(streamCtx, width, height); err != nil {
		cancel()
		d.cancel = nil
		return Resolution{}, err
	}

	return Resolution{Width: cfg.Width, Height: cfg.Height}, nil
}

// captureJPEG は1フレームをキャプチャしてJPEGバイト列として返す
func (d *FFmpegDevice) captureJPEG(ctx context.Context, width, height int) ([]byte, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx,
		d.command,
		"-f", d.inputFormat,
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", d.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("フレームキャプチャに失敗: %w (stderr: %s)", err, lastLine(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// startStream は連続キャプチャ用のffmpegを起動する
func (d *FFmpegDevice) startStream(ctx context.Context, width, height int) error {
	cmd := exec.CommandContext(ctx,
		d.command,
		"-f", d.inputFormat,
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", d.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderrパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	// stderrはデバッグログに流す
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			d.logger.Debug(scanner.Text())
		}
	}()

	go func() {
		defer close(d.done)
		defer close(d.frames)
		defer func() {
			_ = cmd.Wait() // キャンセル時のエラーは無視
		}()

		d.pumpFrames(ctx, stdout)
	}()

	return nil
}

// pumpFrames はMJPEGストリームをJPEG単位に分割して送る
// 読み取り側が遅れている場合は古いフレームを捨てる。
func (d *FFmpegDevice) pumpFrames(ctx context.Context, r io.Reader) {
	buf := make([]byte, 64*1024)
	var pending []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				frame, rest := splitJPEG(pending)
				if frame == nil {
					pending = append(pending[:0], rest...)
					break
				}

				out := make([]byte, len(frame))
				copy(out, frame)
				pending = append(pending[:0], rest...)

				select {
				case d.frames <- out:
				case <-ctx.Done():
					return
				default:
					select {
					case <-d.frames:
					default:
					}
					d.frames <- out
				}
			}
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				d.logger.WithError(err).Warn("フレーム読み取りエラー")
			}
			return
		}
	}
}

// Read は次のJPEGフレームをデコードして返す
func (d *FFmpegDevice) Read() (*image.RGBA, error) {
	select {
	case data, ok := <-d.frames:
		if !ok {
			return nil, ErrClosed
		}
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
		}
		return CloneImage(img), nil
	case <-time.After(frameWaitTimeout):
		return nil, ErrNoFrame
	}
}

// Close はストリーミングを停止する
func (d *FFmpegDevice) Close() error {
	d.once.Do(func() {
		if d.cancel == nil {
			close(d.frames)
			return
		}
		d.cancel()
		<-d.done
	})
	return nil
}

// splitJPEG はdataの先頭にある完全なJPEGを取り出し、残りを返す
// 完全なJPEGがまだ無い場合はframeがnilで、続きの受信に必要な部分をrestに返す。
func splitJPEG(data []byte) (frame, rest []byte) {
	start := bytes.Index(data, jpegStart)
	if start == -1 {
		// マーカーの1バイト目だけ届いている可能性がある
		if len(data) > 0 && data[len(data)-1] == 0xFF {
			return nil, data[len(data)-1:]
		}
		return nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEnd)
	if end == -1 {
		return nil, data[start:]
	}

	end += start + 2 + 2 // マーカーのサイズを含める
	return data[start:end], data[end:]
}

// lastLine は複数行の出力から最後の空でない行を返す
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
