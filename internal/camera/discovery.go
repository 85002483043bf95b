package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var deviceNumberPattern = regexp.MustCompile(`^/dev/video(\d+)$`)

// DevicePathForIndex はカメラ番号からデバイスパスを返す
func DevicePathForIndex(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct {
	// v4l2-ctl の実行ファイル
	ctlCommand string
}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{ctlCommand: "v4l2-ctl"}
}

// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
// 同じカメラが複数のノードを持つ場合は番号の小さいカラー対応ノードだけを返す。
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	seen := make(map[string]bool)

	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.IsDeviceAvailable(ctx, match) || !d.hasColorFormat(ctx, match) {
			continue
		}

		name := d.cardName(ctx, match)
		if name != "" && seen[name] {
			continue
		}
		seen[name] = true
		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが読み取り可能なV4L2デバイスかチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	if !deviceNumberPattern.MatchString(device) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	_ = file.Close()
	return true
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	info := &DeviceInfo{
		Device: device,
		Name:   d.cardName(ctx, device),
		Driver: d.ctlField(ctx, device, "Driver name"),
	}
	if info.Name == "" {
		info.Name = fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
	}

	return info, nil
}

// hasColorFormat はデバイスがカラーフォーマットに対応しているかチェックする
// メタデータ用ノードやグレースケール専用のIRカメラを除外するために使う。
func (d *LinuxDiscovery) hasColorFormat(ctx context.Context, device string) bool {
	output, err := d.ctl(ctx, device, "--list-formats-ext")
	if err != nil {
		return false
	}
	return strings.Contains(output, "YUYV") || strings.Contains(output, "MJPG")
}

// cardName はv4l2-ctlから実際のカメラ名を取得する
func (d *LinuxDiscovery) cardName(ctx context.Context, device string) string {
	return d.ctlField(ctx, device, "Card type")
}

// ctlField は v4l2-ctl --info の出力から指定した項目の値を取り出す
func (d *LinuxDiscovery) ctlField(ctx context.Context, device, field string) string {
	output, err := d.ctl(ctx, device, "--info")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, field) {
			continue
		}
		if parts := strings.SplitN(line, ":", 2); len(parts) == 2 {
			return strings.TrimSpace(parts[1])
		}
	}

	return ""
}

func (d *LinuxDiscovery) ctl(ctx context.Context, device string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.ctlCommand, append([]string{"--device", device}, args...)...)
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := deviceNumberPattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return -1
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return -1
	}

	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices []string
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	return &MockDiscovery{devices: devices}
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	return m.devices, nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(_ context.Context, device string) bool {
	for _, d := range m.devices {
		if d == device {
			return true
		}
	}
	return false
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !m.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}
	return &DeviceInfo{
		Device: device,
		Name:   fmt.Sprintf("テストカメラ %d", extractDeviceNumber(device)),
		Driver: "mock",
	}, nil
}
