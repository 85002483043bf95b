package opencv

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"ufowatch/internal/recorder"
)

// probeSize はコーデックの確認に使う動画の大きさ
const probeSize = 16

// ContainerBackend はOpenCVのVideoWriterで動画ファイルを書くrecorder.ContainerBackend実装
type ContainerBackend struct {
	probeDir string
	ext      string
	logger   *logrus.Entry

	mu    sync.Mutex
	cache map[string]bool
}

// NewContainerBackend は新しいContainerBackendを作成する
// probeDir はコーデック確認用の一時ファイルを作る場所で、空ならOSの一時ディレクトリを使う。
func NewContainerBackend(probeDir, ext string, logger *logrus.Entry) *ContainerBackend {
	if probeDir == "" {
		probeDir = os.TempDir()
	}
	return &ContainerBackend{
		probeDir: probeDir,
		ext:      ext,
		logger:   logger,
		cache:    make(map[string]bool),
	}
}

// SupportsCodec は小さな動画ファイルを実際に作成してコーデックが使えるか確認する
func (b *ContainerBackend) SupportsCodec(fourcc string) bool {
	fourcc = strings.ToUpper(fourcc)

	b.mu.Lock()
	defer b.mu.Unlock()

	if ok, cached := b.cache[fourcc]; cached {
		return ok
	}

	if err := os.MkdirAll(b.probeDir, 0755); err != nil {
		b.logger.WithError(err).Warn("コーデック確認用ディレクトリを作成できません")
		return false
	}

	path := filepath.Join(b.probeDir, "codec-probe-"+fourcc+b.ext)
	defer os.Remove(path)

	ok := false
	writer, err := gocv.VideoWriterFile(path, fourcc, 25, probeSize, probeSize, true)
	if err == nil {
		ok = writer.IsOpened()
		_ = writer.Close()
	}

	b.logger.WithFields(logrus.Fields{
		"fourcc":    fourcc,
		"supported": ok,
	}).Debug("コーデックの対応を確認")

	b.cache[fourcc] = ok
	return ok
}

// OpenContainer は動画ファイルを作成する
func (b *ContainerBackend) OpenContainer(path, fourcc string, fps float64, size image.Point) (recorder.Container, error) {
	writer, err := gocv.VideoWriterFile(path, fourcc, fps, size.X, size.Y, true)
	if err != nil {
		return nil, err
	}
	if !writer.IsOpened() {
		_ = writer.Close()
		return nil, fmt.Errorf("%s で動画ファイルを開けません", fourcc)
	}
	return &videoContainer{writer: writer}, nil
}

type videoContainer struct {
	writer *gocv.VideoWriter
}

// Write はRGBA画像をOpenCVの画素順に変換して書き込む
func (c *videoContainer) Write(img *image.RGBA) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("フレームの変換に失敗: %w", err)
	}
	defer mat.Close()

	return c.writer.Write(mat)
}

func (c *videoContainer) Close() error {
	return c.writer.Close()
}
