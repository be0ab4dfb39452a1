//go:build integration

// Package testutil provides test helpers for integration tests against a
// real Redis server and SSH target.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/newtcli/pkg/session"
)

// RedisAddr returns the address of the test Redis container (IP:port).
// It first checks NEWTCLI_TEST_REDIS_ADDR, then discovers the Docker container IP.
func RedisAddr() string {
	if addr := os.Getenv("NEWTCLI_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"newtcli-test-redis").Output()
	if err != nil {
		return ""
	}
	ip := strings.TrimSpace(string(out))
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

// SkipIfNoRedis skips the test if the test Redis container is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: docker run -d --name newtcli-test-redis redis:7")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// RedisClient returns a client on a flushed scratch database. The database
// is flushed again and the client closed on cleanup.
func RedisClient(t *testing.T, db int) *redis.Client {
	t.Helper()
	SkipIfNoRedis(t)

	client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: db})
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// LockEntry reads the lock hash for a session; nil when unlocked.
func LockEntry(t *testing.T, client *redis.Client, name string) map[string]string {
	t.Helper()

	vals, err := client.HGetAll(context.Background(), session.LockKey(name)).Result()
	if err != nil {
		t.Fatalf("reading lock for %s: %v", name, err)
	}
	if len(vals) == 0 {
		return nil
	}
	return vals
}

// SSHConfig returns the SSH target from NEWTCLI_TEST_SSH_HOST (host[:port]),
// NEWTCLI_TEST_SSH_USER and NEWTCLI_TEST_SSH_KEY or NEWTCLI_TEST_SSH_PASSWORD,
// skipping the test when no host is set.
func SSHConfig(t *testing.T) session.SSHConfig {
	t.Helper()

	host := os.Getenv("NEWTCLI_TEST_SSH_HOST")
	if host == "" {
		t.Skip("NEWTCLI_TEST_SSH_HOST not set")
	}
	cfg := session.SSHConfig{
		Host:     host,
		User:     MustEnv(t, "NEWTCLI_TEST_SSH_USER"),
		KeyFile:  os.Getenv("NEWTCLI_TEST_SSH_KEY"),
		Password: os.Getenv("NEWTCLI_TEST_SSH_PASSWORD"),
		Timeout:  10 * time.Second,
	}
	if i := strings.LastIndex(host, ":"); i > 0 {
		if port, err := strconv.Atoi(host[i+1:]); err == nil {
			cfg.Host, cfg.Port = host[:i], port
		}
	}
	return cfg
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MustEnv returns the value of an environment variable or fails the test.
func MustEnv(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Fatalf("required environment variable %s not set", key)
	}
	return v
}
