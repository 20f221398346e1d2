package logger

import (
	"strings"
	"testing"
)

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	if got := DetectEnv(); got != EnvDev {
		t.Fatalf("default should be dev, got %q", got)
	}

	t.Setenv("APP_ENV", "staging")
	if got := DetectEnv(); got != EnvStage {
		t.Fatalf("expected stage, got %q", got)
	}

	t.Setenv("APP_ENV", "production")
	if got := DetectEnv(); got != EnvProd {
		t.Fatalf("expected prod, got %q", got)
	}
}

func TestEnsureInstanceID(t *testing.T) {
	if got := ensureInstanceID("fixed"); got != "fixed" {
		t.Fatalf("explicit id must win, got %q", got)
	}

	generated := ensureInstanceID("")
	if generated == "" || !strings.Contains(generated, "-") {
		t.Fatalf("generated id = %q", generated)
	}
	if ensureInstanceID("") == generated {
		t.Fatal("generated ids must differ")
	}
}

func TestLInitializesLazily(t *testing.T) {
	def = nil
	if L() == nil {
		t.Fatal("L must self-initialize")
	}
}
