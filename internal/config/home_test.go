package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWithHome_HomeFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := HomeFrom(ctx); ok {
		t.Fatal("expected no home in empty context")
	}
	ctx = WithHome(ctx, "/foo/bar")
	got, ok := HomeFrom(ctx)
	if !ok || got != "/foo/bar" {
		t.Fatalf("HomeFrom: got %q, ok=%v; want /foo/bar, true", got, ok)
	}
}

func TestMustHomeFrom_panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when home missing")
		}
	}()
	MustHomeFrom(context.Background())
}

func TestResolveHome(t *testing.T) {
	got, err := ResolveHome("/custom/home")
	if err != nil || got != filepath.Clean("/custom/home") {
		t.Fatalf("override: got %q, %v", got, err)
	}

	t.Setenv("PINGME_HOME", "/env/home")
	got, err = ResolveHome("")
	if err != nil || got != "/env/home" {
		t.Fatalf("from env: got %q, %v", got, err)
	}

	t.Setenv("PINGME_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	got, err = ResolveHome("")
	if err != nil {
		t.Fatalf("ResolveHome: %v", err)
	}
	if want := filepath.Join(home, ".pingme"); got != want {
		t.Fatalf("default: got %q, want %q", got, want)
	}
}
