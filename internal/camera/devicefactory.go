package camera

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// BackendFFmpeg はffmpeg経由でV4L2デバイスを読むバックエンド名
const BackendFFmpeg = "ffmpeg"

// DeviceConfig はデバイス作成設定
type DeviceConfig struct {
	Backend string // バックエンド名
	Index   int    // カメラ番号
	Path    string // デバイスパス
	Command string // 外部コマンドを使うバックエンドの実行ファイル
}

// DeviceCreator はデバイス作成関数の型
type DeviceCreator func(config DeviceConfig, logger *logrus.Entry) (Device, error)

// DeviceFactory はバックエンド名からデバイスを作成する
type DeviceFactory struct {
	creators map[string]DeviceCreator
}

// NewDeviceFactory はffmpegとx11のバックエンドを登録したファクトリーを作成する
func NewDeviceFactory() *DeviceFactory {
	factory := &DeviceFactory{
		creators: make(map[string]DeviceCreator),
	}

	factory.Register(BackendFFmpeg, NewFFmpegDeviceFromConfig)
	factory.Register(BackendX11, NewX11DeviceFromConfig)

	return factory
}

// Register はデバイス作成関数を登録する
func (f *DeviceFactory) Register(backend string, creator DeviceCreator) {
	f.creators[backend] = creator
}

// Create はデバイスを作成する
func (f *DeviceFactory) Create(config DeviceConfig, logger *logrus.Entry) (Device, error) {
	creator, exists := f.creators[config.Backend]
	if !exists {
		return nil, fmt.Errorf("サポートされていないバックエンド: %s", config.Backend)
	}

	return creator(config, logger)
}

// Backends は登録済みのバックエンド名を返す
func (f *DeviceFactory) Backends() []string {
	backends := make([]string, 0, len(f.creators))
	for backend := range f.creators {
		backends = append(backends, backend)
	}
	sort.Strings(backends)
	return backends
}

// NewFFmpegDeviceFromConfig は設定からFFmpegDeviceを作成する
func NewFFmpegDeviceFromConfig(config DeviceConfig, logger *logrus.Entry) (Device, error) {
	path := config.Path
	if path == "" {
		path = DevicePathForIndex(config.Index)
	}
	return NewFFmpegDevice(path, config.Command, logger), nil
}
