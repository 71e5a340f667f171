package main

import (
	"bytes"
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/config"
	"github.com/haukened/localdns/internal/dns/domain"
	"github.com/haukened/localdns/internal/dns/repos/records"
)

type testApp struct {
	app     *Application
	signals chan os.Signal
	errCh   chan error
	cancel  context.CancelFunc
}

// testEnv points the daemon at a fresh records file on an ephemeral port.
func testEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DNS_ENV", "dev")
	t.Setenv("DNS_LOG_LEVEL", "error")
	t.Setenv("DNS_SERVER_PORT", "0")
	t.Setenv("DNS_RECORDS_FILE", path)
	t.Setenv("DNS_RECORDS_SUFFIX", ".loc")
	return path
}

func startApp(t *testing.T) *testApp {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ta := &testApp{app: app, signals: make(chan os.Signal, 1), errCh: make(chan error, 1), cancel: cancel}
	go func() { ta.errCh <- app.Run(ctx, ta.signals) }()

	select {
	case <-app.server.Ready():
	case err := <-ta.errCh:
		cancel()
		t.Fatalf("application exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("application not ready")
	}
	t.Cleanup(cancel)
	return ta
}

func (ta *testApp) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-ta.errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("application did not stop")
	}
	return nil
}

func (ta *testApp) lookup(host string) netip.Addr {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, _ := ta.app.server.Controller().Lookup(ctx, host)
	return addr
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "localdnsd 0.1.0-dev\n", out)
}

func TestCheckCmd(t *testing.T) {
	path := testEnv(t, "# hosts\nb.loc:10.0.0.2\na.loc:10.0.0.1\nelsewhere.com:10.0.0.3\n")

	out, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Equal(t, "a.loc\t10.0.0.1\nb.loc\t10.0.0.2\n2 records OK\n", out)
}

func TestCheckCmd_Errors(t *testing.T) {
	testEnv(t, "")

	_, err := execute(t, "check")
	assert.Error(t, err, "file argument is required")

	bad := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(bad, []byte("a.loc:10.0.0.1\na.loc:10.0.0.2\n"), 0o600))
	_, err = execute(t, "check", bad)
	assert.ErrorIs(t, err, records.ErrDuplicateHost)

	_, err = execute(t, "check", filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheckCmd_ConfigError(t *testing.T) {
	t.Setenv("DNS_RECORDS_SUFFIX", "nodot")
	_, err := execute(t, "check", "whatever")
	assert.ErrorContains(t, err, "configuration error")
}

func TestConfigFlag(t *testing.T) {
	path := testEnv(t, "a.yml:10.0.0.1\n")
	t.Setenv("DNS_RECORDS_SUFFIX", "")
	os.Unsetenv("DNS_RECORDS_SUFFIX")

	cfgPath := filepath.Join(t.TempDir(), "localdns.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("records:\n  suffix: .yml\n"), 0o600))

	out, err := execute(t, "--config", cfgPath, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "a.yml\t10.0.0.1")
}

func TestApplication_SignalShutdown(t *testing.T) {
	testEnv(t, "registered.loc:192.168.0.1\n")
	ta := startApp(t)

	ta.signals <- syscall.SIGTERM
	assert.NoError(t, ta.wait(t))
}

func TestApplication_ContextCancel(t *testing.T) {
	testEnv(t, "")
	ta := startApp(t)

	ta.cancel()
	assert.NoError(t, ta.wait(t))
}

func TestApplication_SignalReload(t *testing.T) {
	path := testEnv(t, "registered.loc:192.168.0.1\n")
	ta := startApp(t)
	assert.Equal(t, netip.MustParseAddr("192.168.0.1"), ta.lookup("registered.loc"))

	require.NoError(t, os.WriteFile(path, []byte("registered.loc:10.0.0.1\n"), 0o600))
	ta.signals <- syscall.SIGHUP

	assert.Eventually(t, func() bool {
		return ta.lookup("registered.loc") == netip.MustParseAddr("10.0.0.1")
	}, 5*time.Second, 20*time.Millisecond)

	ta.signals <- syscall.SIGINT
	assert.NoError(t, ta.wait(t))
}

func TestApplication_WatchReloads(t *testing.T) {
	path := testEnv(t, "registered.loc:192.168.0.1\n")
	t.Setenv("DNS_RECORDS_WATCH", "true")
	ta := startApp(t)
	require.NotNil(t, ta.app.watcher)

	select {
	case <-ta.app.watcher.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}

	require.NoError(t, os.WriteFile(path, []byte("registered.loc:10.0.0.7\n"), 0o600))
	assert.Eventually(t, func() bool {
		return ta.lookup("registered.loc") == netip.MustParseAddr("10.0.0.7")
	}, 5*time.Second, 20*time.Millisecond)

	ta.signals <- syscall.SIGTERM
	assert.NoError(t, ta.wait(t))
}

func TestApplication_StateDBFallback(t *testing.T) {
	path := testEnv(t, "registered.loc:192.168.0.1\n")
	t.Setenv("DNS_RECORDS_STATE_DB", filepath.Join(t.TempDir(), "state.db"))

	ta := startApp(t)
	ta.signals <- syscall.SIGTERM
	require.NoError(t, ta.wait(t))
	assert.Nil(t, ta.app.snapshots, "snapshot store is closed on exit")

	require.NoError(t, os.WriteFile(path, []byte("not a records file\n"), 0o600))
	ta = startApp(t)
	assert.Equal(t, netip.MustParseAddr("192.168.0.1"), ta.lookup("registered.loc"))
}

func TestBuildApplication_InvalidRecords(t *testing.T) {
	testEnv(t, "registered.loc\n")
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = buildApplication(cfg, log.NewNoopLogger())
	assert.ErrorIs(t, err, records.ErrInvalidLine)
}

func TestBuildApplication_BadStateDB(t *testing.T) {
	testEnv(t, "")
	t.Setenv("DNS_RECORDS_STATE_DB", filepath.Join(t.TempDir(), "missing", "state.db"))
	cfg, err := config.Load("")
	require.NoError(t, err)

	_, err = buildApplication(cfg, log.NewNoopLogger())
	assert.Error(t, err)
}

func TestApplication_BindFailure(t *testing.T) {
	busy, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	testEnv(t, "")
	_, port, err := net.SplitHostPort(busy.LocalAddr().String())
	require.NoError(t, err)
	t.Setenv("DNS_SERVER_PORT", port)

	cfg, err := config.Load("")
	require.NoError(t, err)
	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)

	assert.Error(t, app.Run(context.Background(), make(chan os.Signal)))
}

func TestLookupCmd(t *testing.T) {
	testEnv(t, "registered.loc:192.168.0.1\n")
	ta := startApp(t)
	addr := ta.app.server.Addr()

	out, err := execute(t, "lookup", "sub.registered.loc", "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "status: NOERROR, answers: 1")
	assert.Contains(t, out, "sub.registered.loc 0 IN A 192.168.0.1")

	out, err = execute(t, "lookup", "registered.com.", "--server", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "status: SERVFAIL, answers: 0")

	_, err = execute(t, "lookup", "registered.loc", "--server", addr, "--type", "TXT")
	assert.ErrorContains(t, err, "unsupported query type")
}

func TestQuery_Timeout(t *testing.T) {
	silent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer silent.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = query(ctx, silent.LocalAddr().String(), "a.loc", domain.RRTypeA)
	assert.ErrorContains(t, err, "failed to read response")
}
