package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid は設定値が不正なときに返される
var ErrInvalid = errors.New("invalid config")

// appName は設定ファイルとデータディレクトリの名前に使う
const appName = "ufowatch"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Camera   CameraConfig   `yaml:"camera"`
	Recorder RecorderConfig `yaml:"recorder"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`        // リッスンするホスト
	Port int    `yaml:"port" validate:"gte=0,lte=65535"` // リッスンするポート番号 (0は自動割り当て)

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"` // 書き込みタイムアウト

	// AuthSecret が空の場合は認証を行わない
	AuthSecret string `yaml:"auth_secret"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Backend string `yaml:"backend" validate:"oneof=ffmpeg opencv x11"` // キャプチャバックエンド
	Index   int    `yaml:"index" validate:"gte=0"`                     // カメラ番号
	Device  string `yaml:"device"`                                     // デバイスパスかX11ディスプレイ (空ならIndexから決定)
	Width   int    `yaml:"width" validate:"gt=0"`                      // 要求する画像幅
	Height  int    `yaml:"height" validate:"gt=0"`                     // 要求する画像高さ
}

// RecorderConfig は録画関連の設定
type RecorderConfig struct {
	ResultDir       string        `yaml:"result_dir" validate:"required"`
	DrawRectangles  bool          `yaml:"draw_rectangles"`
	Codec           string        `yaml:"codec" validate:"len=4"`         // FourCC
	FPS             float64       `yaml:"fps" validate:"gt=0,lte=120"`    // 出力フレームレート
	QueueCapacity   int           `yaml:"queue_capacity" validate:"gt=0"` // 警告を出すキュー長
	EncoderLocation string        `yaml:"encoder_location"`               // 空なら外部エンコードを行わない
	Extension       string        `yaml:"extension" validate:"required,startswith=."`
	EncodeTimeout   time.Duration `yaml:"encode_timeout" validate:"gte=0"` // 終了時のエンコード待ち上限
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Camera: CameraConfig{
			Backend: "ffmpeg",
			Index:   0,
			Width:   640,
			Height:  480,
		},
		Recorder: RecorderConfig{
			ResultDir:       filepath.Join(xdg.DataHome, appName, "results"),
			DrawRectangles:  true,
			Codec:           "FFV1",
			FPS:             25,
			QueueCapacity:   50,
			EncoderLocation: "ffmpeg",
			Extension:       ".avi",
			EncodeTimeout:   2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load は設定を読み込む
// path が空の場合はXDG設定ディレクトリの config.yaml を探し、無ければデフォルト値を使う。
// 最後に環境変数で上書きする。
func Load(path string) (*Config, error) {
	// .env があれば環境変数に読み込む
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		if found, err := xdg.SearchConfigFile(filepath.Join(appName, "config.yaml")); err == nil {
			path = found
		}
	}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// readFile はYAMLファイルの内容で設定を上書きする
func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗 (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗 (%s): %w", path, err)
	}
	return nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Server.AuthSecret = getEnvOrDefault("AUTH_SECRET", c.Server.AuthSecret)

	c.Camera.Backend = getEnvOrDefault("CAMERA_BACKEND", c.Camera.Backend)
	c.Camera.Index = getEnvAsIntOrDefault("CAMERA_INDEX", c.Camera.Index)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Width = getEnvAsIntOrDefault("CAMERA_WIDTH", c.Camera.Width)
	c.Camera.Height = getEnvAsIntOrDefault("CAMERA_HEIGHT", c.Camera.Height)

	c.Recorder.ResultDir = getEnvOrDefault("RESULT_DIR", c.Recorder.ResultDir)
	c.Recorder.Codec = getEnvOrDefault("VIDEO_CODEC", c.Recorder.Codec)
	c.Recorder.EncoderLocation = getEnvOrDefault("VIDEO_ENCODER", c.Recorder.EncoderLocation)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// カメラの要求解像度は偶数でないとエンコーダーが受け付けない
	if c.Camera.Width%2 != 0 || c.Camera.Height%2 != 0 {
		return fmt.Errorf("%w: 解像度は偶数である必要があります: %dx%d", ErrInvalid, c.Camera.Width, c.Camera.Height)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DevicePath はキャプチャに使うデバイスパスを返す
// x11 バックエンドで未指定の場合は空を返し、DISPLAYを使わせる。
func (c *Config) DevicePath() string {
	if c.Camera.Device != "" {
		return c.Camera.Device
	}
	if c.Camera.Backend == "x11" {
		return ""
	}
	return fmt.Sprintf("/dev/video%d", c.Camera.Index)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
