package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// chdir switches the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPort != "8080" || cfg.StoreCountry != "US" {
		t.Fatalf("unexpected defaults: port=%q country=%q", cfg.AppPort, cfg.StoreCountry)
	}
	if cfg.ConnectTimeout != 30*time.Second || cfg.CollectTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeouts: connect=%v collect=%v", cfg.ConnectTimeout, cfg.CollectTimeout)
	}
	if cfg.ConnectMaxRetries != 3 {
		t.Fatalf("expected 3 connect retries, got %d", cfg.ConnectMaxRetries)
	}
	if len(cfg.Brokers()) != 0 {
		t.Fatalf("expected no kafka brokers by default, got %v", cfg.Brokers())
	}
}

func TestLoad_Environment(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	t.Setenv("STORE_COUNTRY", " ca ")
	t.Setenv("CANADA_ENABLED", "true")
	t.Setenv("READER_CONNECT_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreCountry != "CA" || !cfg.CanadaEnabled {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("expected 5s connect timeout, got %v", cfg.ConnectTimeout)
	}
	if brokers := cfg.Brokers(); len(brokers) != 2 || brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", brokers)
	}
}

func TestLoad_RejectsNonPositiveTimeouts(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	t.Setenv("COLLECT_TIMEOUT", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a zero collect timeout")
	}
}
