package camera

import (
	"context"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// BackendX11 はffmpegのx11grabで画面を読むバックエンド名
const BackendX11 = "x11"

// defaultDisplay はDISPLAYが設定されていない場合に使うディスプレイ
const defaultDisplay = ":0"

// NewX11Device はX11ディスプレイを入力にするFFmpegDeviceを作成する
// カメラのないマシンで録画の動作を確認するために使う。
func NewX11Device(display, command string, logger *logrus.Entry) *FFmpegDevice {
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = defaultDisplay
	}
	d := NewFFmpegDevice(display, command, logger)
	d.inputFormat = "x11grab"
	return d
}

// NewX11DeviceFromConfig は設定からX11Deviceを作成する
func NewX11DeviceFromConfig(config DeviceConfig, logger *logrus.Entry) (Device, error) {
	return NewX11Device(config.Path, config.Command, logger), nil
}

// IsDisplayAvailable はX11ディスプレイが利用可能かチェックする
func IsDisplayAvailable(ctx context.Context, display string) bool {
	// xdpyinfoコマンドでX11ディスプレイの利用可能性をチェック
	cmd := exec.CommandContext(ctx, "xdpyinfo", "-display", display)
	return cmd.Run() == nil
}
