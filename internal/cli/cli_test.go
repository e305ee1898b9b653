package cli

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/HrushiBorhade/pingme/internal/config"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "sessions", "call", "name", "config", "doctor", "daemon"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
	if NewRootCmd("").Version != "dev" {
		t.Error("empty version should default to dev")
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	if root.PersistentFlags().Lookup("home") == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()
	out, _, err := run(t, "--home", home, "config", "init", "--phone", "+15550100")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote ") {
		t.Errorf("output: %s", out)
	}
	cfg, err := config.Load(home)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !regexp.MustCompile(`^[a-f0-9]{64}$`).MatchString(cfg.DaemonToken) {
		t.Errorf("daemon_token: %q", cfg.DaemonToken)
	}
	if cfg.Phone != "+15550100" {
		t.Errorf("phone: %q", cfg.Phone)
	}
	if fi, err := os.Stat(config.ConfigPath(home)); err != nil || fi.Mode().Perm() != 0o600 {
		t.Errorf("config file mode: %v %v", fi, err)
	}

	if _, _, err := run(t, "--home", home, "config", "init"); err == nil {
		t.Fatal("second init without --force should fail")
	}
	if _, _, err := run(t, "--home", home, "config", "init", "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigShow_redactsSecrets(t *testing.T) {
	home := t.TempDir()
	cfg := config.Default(home)
	cfg.DaemonToken = "supersecrettoken"
	cfg.Bolna.APIKey = "bolna-key"
	if err := config.Save(home, cfg); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "--home", home, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "supersecrettoken") || strings.Contains(out, "bolna-key") {
		t.Errorf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "daemon_token: '********'") && !strings.Contains(out, `daemon_token: "********"`) {
		t.Errorf("expected redacted token:\n%s", out)
	}
}

func TestStatus_notRunning(t *testing.T) {
	out, _, err := run(t, "--home", t.TempDir(), "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if strings.TrimSpace(out) != "pingme not running" {
		t.Errorf("status output: %q", out)
	}
}

func TestStop_notRunning(t *testing.T) {
	out, _, err := run(t, "--home", t.TempDir(), "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if strings.TrimSpace(out) != "pingme is not running" {
		t.Errorf("stop output: %q", out)
	}
}

// homeForServer writes a config pointing the CLI at srv.
func homeForServer(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	home := t.TempDir()
	cfg := config.Default(home)
	cfg.Daemon.Port = port
	cfg.DaemonToken = "tok"
	if err := config.Save(home, cfg); err != nil {
		t.Fatal(err)
	}
	return home
}

func TestSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/sessions" || r.URL.Query().Get("session_name") != "api" {
			t.Errorf("request: %s", r.URL)
		}
		w.Write([]byte(`{"sessions":[{"name":"my-api","project":"api","status":"waiting","tmux_pane":"%1","last_activity":"2m ago"}],"total":1}`))
	}))
	defer srv.Close()

	out, _, err := run(t, "--home", homeForServer(t, srv), "sessions", "--filter", "api")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "my-api") || !strings.Contains(out, "waiting") {
		t.Errorf("sessions output:\n%s", out)
	}
}

func TestCall_reportsRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"A call is already active"}`))
	}))
	defer srv.Close()

	_, _, err := run(t, "--home", homeForServer(t, srv), "call", "check", "in")
	if err == nil || err.Error() != "A call is already active" {
		t.Fatalf("call: %v", err)
	}
}

func TestName_requiresArgs(t *testing.T) {
	if _, _, err := run(t, "--home", t.TempDir(), "name", "%1"); err == nil {
		t.Fatal("name with one arg should fail")
	}
}
