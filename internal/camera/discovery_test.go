package camera

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinuxDiscovery_ScanDevices(t *testing.T) {
	devices, err := NewLinuxDiscovery().ScanDevices(context.Background())
	require.NoError(t, err)

	// カメラのない環境では空になる
	for _, device := range devices {
		assert.GreaterOrEqual(t, extractDeviceNumber(device), 0, device)
	}
}

func TestLinuxDiscovery_ScanDevicesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	devices, err := NewLinuxDiscovery().ScanDevices(ctx)
	if len(devices) == 0 && err == nil {
		// /dev/video* が一つもなければキャンセルを確認する前に終わる
		return
	}
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinuxDiscovery_IsDeviceAvailable(t *testing.T) {
	ctx := context.Background()
	discovery := NewLinuxDiscovery()

	assert.False(t, discovery.IsDeviceAvailable(ctx, "/dev/video999"))
	assert.False(t, discovery.IsDeviceAvailable(ctx, "/dev/null"), "video以外のパスは対象外")
}

func TestExtractDeviceNumber(t *testing.T) {
	tests := map[string]int{
		"/dev/video0":  0,
		"/dev/video12": 12,
		"/dev/videoX":  -1,
		"/dev/null":    -1,
		"video3":       -1,
	}
	for device, want := range tests {
		assert.Equal(t, want, extractDeviceNumber(device), device)
	}

	assert.Equal(t, "/dev/video3", DevicePathForIndex(3))
	assert.Equal(t, 3, extractDeviceNumber(DevicePathForIndex(3)))
}

func TestMockDiscovery(t *testing.T) {
	ctx := context.Background()
	var discovery Discovery = NewMockDiscovery([]string{"/dev/video0", "/dev/video1"})

	devices, err := discovery.ScanDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/video0", "/dev/video1"}, devices)

	assert.True(t, discovery.IsDeviceAvailable(ctx, "/dev/video0"))
	assert.False(t, discovery.IsDeviceAvailable(ctx, "/dev/video2"))

	info, err := discovery.GetDeviceInfo(ctx, "/dev/video1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/video1", info.Device)
	assert.Equal(t, "mock", info.Driver)
	assert.Contains(t, info.Name, "1")

	_, err = discovery.GetDeviceInfo(ctx, "/dev/video99")
	assert.Error(t, err)
}
