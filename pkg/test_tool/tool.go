package testtool

import (
	"context"
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// SetupContainer 通用函式來啟動測試容器
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", "", err
	}

	// 轉換 ExposedPorts[0] 為 nat.Port
	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	if err != nil {
		return nil, "", "", err
	}

	port, err := container.MappedPort(ctx, natPort)
	if err != nil {
		return nil, "", "", err
	}

	return container, host, port.Port(), nil
}

// providerCheck 找不到 docker host 時 testcontainers 會直接 panic
var providerCheck = testcontainers.SkipIfProviderIsNotHealthy

// dockerAvailable provider 檢查 panic 時回傳 false
func dockerAvailable(t *testing.T) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("docker provider unavailable: %v", r)
			ok = false
		}
	}()
	providerCheck(t)
	return true
}

// RequireContainer 啟動容器，docker 不可用或 -short 時 skip
func RequireContainer(t *testing.T, req testcontainers.ContainerRequest) (string, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skip container test in -short mode")
	}
	if !dockerAvailable(t) {
		t.Skip("docker is not available")
	}

	ctx := context.Background()
	container, host, port, err := SetupContainer(ctx, req)
	if err != nil {
		t.Skipf("container %s unavailable: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return host, port
}
