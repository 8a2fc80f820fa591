package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a", want: []string{"a"}},
		{in: " a , ,b ", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := ParseCSV(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ParseCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTrimQuotes(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`"quoted"`: "quoted",
		`'single'`: "single",
		`"open`:    `"open`,
		`x`:        "x",
		`""`:       "",
	}
	for in, want := range tests {
		if got := trimQuotes(in); got != want {
			t.Fatalf("trimQuotes(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEnvFile(t *testing.T) {
	t.Setenv("STOCKLEDGER_TEST_KEEP", "original")
	t.Setenv("STOCKLEDGER_TEST_A", "")
	os.Unsetenv("STOCKLEDGER_TEST_A")
	t.Setenv("STOCKLEDGER_TEST_B", "")
	os.Unsetenv("STOCKLEDGER_TEST_B")

	input := "\ufeff# comment\n" +
		"STOCKLEDGER_TEST_A=\"hello world\"\n" +
		"export STOCKLEDGER_TEST_B = 'b'\n" +
		"STOCKLEDGER_TEST_KEEP=override\n" +
		"not a pair\n"
	if err := parseEnvFile(strings.NewReader(input)); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := os.Getenv("STOCKLEDGER_TEST_A"); got != "hello world" {
		t.Fatalf("expected A=hello world, got %q", got)
	}
	if got := os.Getenv("STOCKLEDGER_TEST_B"); got != "b" {
		t.Fatalf("expected B=b, got %q", got)
	}
	if got := os.Getenv("STOCKLEDGER_TEST_KEEP"); got != "original" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}

func TestLoadEnvFile_FindsParent(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("STOCKLEDGER_TEST_PARENT=yes\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("STOCKLEDGER_TEST_PARENT", "")
	os.Unsetenv("STOCKLEDGER_TEST_PARENT")
	t.Chdir(nested)

	path, err := LoadEnvFile()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Base(path) != ".env" {
		t.Fatalf("expected .env path, got %q", path)
	}
	if got := os.Getenv("STOCKLEDGER_TEST_PARENT"); got != "yes" {
		t.Fatalf("expected value from parent .env, got %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PORT", "STORE_DRIVER", "DATABASE_URL", "CORS_ORIGINS", "KAFKA_TOPIC"} {
			t.Setenv(key, "")
		}
		cfg, err := Load(zap.NewNop())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Port != DefaultPort || cfg.StoreDriver != StorePostgres || cfg.DatabaseURL != DefaultDatabaseURL {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
		if cfg.KafkaTopic != DefaultKafkaTopic || len(cfg.CORSOrigins) != 2 {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", StoreSQLite)
		t.Setenv("SQLITE_PATH", "/tmp/x.db")
		cfg, err := Load(zap.NewNop())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.SQLitePath != "/tmp/x.db" || cfg.DatabaseURL != "" {
			t.Fatalf("unexpected config %+v", cfg)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "dynamo")
		if _, err := Load(zap.NewNop()); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestSetStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("SQLITE_PATH", "")
	cfg, err := Load(zap.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.SetStoreDriver(zap.NewNop(), StoreSQLite); err != nil {
		t.Fatalf("set driver: %v", err)
	}
	if cfg.StoreDriver != StoreSQLite || cfg.SQLitePath != DefaultSQLitePath {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if err := cfg.SetStoreDriver(zap.NewNop(), "dynamo"); err == nil {
		t.Fatalf("expected error")
	}
	if cfg.StoreDriver != StoreSQLite {
		t.Fatalf("failed switch changed driver to %q", cfg.StoreDriver)
	}
}
