package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const sampleINI = `[DEFAULT]
xml_directory = /data/xml
database_path = postgres://localhost/sct
transitive_closure_db_path = postgres://localhost/scttc
history_db_path = postgres://localhost/scthist
output_dir = /data/out
`

func writeINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.ini"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreDriver != DriverPGX {
		t.Errorf("expected default driver pgx, got %s", cfg.StoreDriver)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("expected default max conns 10, got %d", cfg.DBMaxConns)
	}
	if cfg.RequestTimeout != 5*time.Minute {
		t.Errorf("expected default timeout 5m, got %s", cfg.RequestTimeout)
	}
	if !cfg.IsDev() {
		t.Error("expected development by default")
	}
}

func TestLoad_FromINI(t *testing.T) {
	cfg, err := Load(writeINI(t, sampleINI), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.XMLDirectory != "/data/xml" || cfg.OutputDir != "/data/out" {
		t.Errorf("unexpected paths: %+v", cfg)
	}
	if cfg.TransitiveClosureDBPath != "postgres://localhost/scttc" {
		t.Errorf("unexpected closure db: %s", cfg.TransitiveClosureDBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_EnvOverridesINI(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/env/out")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_MAX_CONNS", "3")

	cfg, err := Load(writeINI(t, sampleINI), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "/env/out" {
		t.Errorf("expected env to win, got %s", cfg.OutputDir)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("expected normalised driver postgres, got %s", cfg.StoreDriver)
	}
	if cfg.DBMaxConns != 3 {
		t.Errorf("expected 3 max conns, got %d", cfg.DBMaxConns)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("XML_DIRECTORY", "/env/xml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("xml-dir", "", "")
	flags.String("output-dir", "", "")
	if err := flags.Parse([]string{"--xml-dir", "/flag/xml"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeINI(t, sampleINI), flags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.XMLDirectory != "/flag/xml" {
		t.Errorf("expected flag to win, got %s", cfg.XMLDirectory)
	}
	if cfg.OutputDir != "/data/out" {
		t.Errorf("expected unset flag to leave INI value, got %s", cfg.OutputDir)
	}
}

func TestValidate_MissingPaths(t *testing.T) {
	cfg := &Config{XMLDirectory: "/x", DatabasePath: "db", StoreDriver: DriverPGX}
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
	for _, name := range []string{"transitive_closure_db_path", "history_db_path", "output_dir"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("expected %s in %q", name, err.Error())
		}
	}
	if strings.Contains(err.Error(), "xml_directory") {
		t.Errorf("did not expect xml_directory in %q", err.Error())
	}
}

func TestValidateStores(t *testing.T) {
	cfg := &Config{DatabasePath: "a", TransitiveClosureDBPath: "b", HistoryDBPath: "c", StoreDriver: "sqlite"}
	if err := cfg.ValidateStores(); err == nil || errors.Is(err, ErrMissingPath) {
		t.Errorf("expected unknown driver error, got %v", err)
	}
	cfg.StoreDriver = DriverPostgres
	if err := cfg.ValidateStores(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSaveAndClear(t *testing.T) {
	path := writeINI(t, "[DEFAULT]\nextra = keep\n")

	want := &Config{
		XMLDirectory:            "/in",
		DatabasePath:            "postgres://h/sct",
		TransitiveClosureDBPath: "postgres://h/scttc",
		HistoryDBPath:           "postgres://h/scthist",
		OutputDir:               "/out",
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for k, v := range want.Paths() {
		if got.Paths()[k] != v {
			t.Errorf("%s = %q, want %q", k, got.Paths()[k], v)
		}
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "extra") {
		t.Errorf("expected other keys kept, got %s", data)
	}

	if err := Clear(path); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cleared, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for k, v := range cleared.Paths() {
		if v != "" {
			t.Errorf("expected %s cleared, got %q", k, v)
		}
	}
}
