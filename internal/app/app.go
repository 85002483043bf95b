package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"ufowatch/internal/camera"
	"ufowatch/internal/config"
	"ufowatch/internal/logging"
	"ufowatch/internal/opencv"
	"ufowatch/internal/recorder"
	"ufowatch/internal/results"
	"ufowatch/internal/server"
)

// App はカメラ、録画セッション、HTTPサーバーをまとめたもの
type App struct {
	config  *config.Config
	logger  *logrus.Logger
	source  *camera.FrameSource
	session *recorder.Session
	encoder *recorder.Coordinator
	results *results.FileStore
	server  *server.Server
}

// New は設定からデバイスと動画ファイルのバックエンドを作成してAppを組み立てる
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	factory := camera.NewDeviceFactory()
	opencv.Register(factory)

	device, err := factory.Create(camera.DeviceConfig{
		Backend: cfg.Camera.Backend,
		Index:   cfg.Camera.Index,
		Path:    cfg.DevicePath(),
	}, logging.Component(logger, "camera"))
	if err != nil {
		return nil, fmt.Errorf("カメラデバイスの作成に失敗: %w", err)
	}

	backend := opencv.NewContainerBackend(cfg.Recorder.ResultDir, cfg.Recorder.Extension, logging.Component(logger, "container"))

	return Build(ctx, cfg, logger, device, backend)
}

// Build は指定したデバイスとバックエンドでAppを組み立てる
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger, device camera.Device, backend recorder.ContainerBackend) (*App, error) {
	a := &App{config: cfg, logger: logger}

	source, err := camera.Open(ctx, device, cfg.Camera.Width, cfg.Camera.Height, logging.Component(logger, "camera"))
	if err != nil {
		return nil, err
	}
	a.source = source

	support := recorder.ProbeCodecSupport(ctx, backend, cfg.Recorder.EncoderLocation)
	logger.WithFields(logrus.Fields{
		"codec":   cfg.Recorder.Codec,
		"native":  support.IsNativeSupported(cfg.Recorder.Codec),
		"encoder": support.IsEncoderSupported(cfg.Recorder.Codec),
	}).Info("コーデックの対応を確認しました")

	store, err := results.NewFileStore(filepath.Join(cfg.Recorder.ResultDir, results.DefaultFileName), logging.Component(logger, "results"))
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	a.results = store

	if cfg.Recorder.EncoderLocation != "" {
		a.encoder = recorder.NewCoordinator(cfg.Recorder.EncoderLocation, logging.Component(logger, "encoder"))
	}

	session, err := recorder.NewSession(recorder.Options{
		ResultDir:      cfg.Recorder.ResultDir,
		Extension:      cfg.Recorder.Extension,
		FPS:            cfg.Recorder.FPS,
		QueueCapacity:  cfg.Recorder.QueueCapacity,
		DrawRectangles: cfg.Recorder.DrawRectangles,
		Codec:          cfg.Recorder.Codec,
		Support:        support,
		Results:        store,
		Listener:       &logListener{logger: logging.Component(logger, "recorder")},
	}, source, backend, a.encoder, logging.Component(logger, "recorder"))
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("録画セッションの作成に失敗: %w", err)
	}
	a.session = session

	srv, err := server.NewGin(cfg, server.Deps{
		Recorder:  session,
		Camera:    source,
		Results:   store,
		Discovery: camera.NewLinuxDiscovery(),
		Codecs:    support,
		Logger:    logging.Component(logger, "server"),
	})
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("HTTPサーバーの作成に失敗: %w", err)
	}
	a.server = srv

	return a, nil
}

// Server はHTTPサーバーを返す
func (a *App) Server() *server.Server {
	return a.server
}

// Session は録画セッションを返す
func (a *App) Session() *recorder.Session {
	return a.session
}

// Results は録画の記録を返す
func (a *App) Results() *results.FileStore {
	return a.results
}

// Run はHTTPサーバーを起動し、停止後に録画とカメラを終了する
func (a *App) Run(ctx context.Context) error {
	serveErr := a.server.Start(ctx)
	return errors.Join(serveErr, a.Close())
}

// Close は録画中なら保存して停止し、エンコードの完了を待ってカメラを閉じる
func (a *App) Close() error {
	ctx := context.Background()
	if timeout := a.config.Recorder.EncodeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var errs []error
	if err := a.session.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("録画の終了処理に失敗: %w", err))
	}
	if err := a.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("カメラのクローズに失敗: %w", err))
	}

	a.logger.Info("終了しました")
	return errors.Join(errs...)
}

// logListener は録画の開始と終了をログに出す
type logListener struct {
	logger *logrus.Entry
}

func (l *logListener) RecordingStarted(id string) {
	l.logger.WithField("session_id", id).Debug("録画開始の通知")
}

func (l *logListener) RecordingFinished(r recorder.Result) {
	entry := l.logger.WithFields(logrus.Fields{
		"session_id": r.ID,
		"saved":      r.Saved,
		"file":       r.VideoPath,
		"duration":   r.DurationLabel,
		"frames":     r.Stats.FramesWritten,
		"duplicates": r.Stats.Duplicates,
	})
	if r.Err != nil {
		entry.WithError(r.Err).Error("録画が失敗しました")
		return
	}
	entry.Info("録画が完了しました")
}
