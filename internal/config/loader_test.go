package config

import (
	"testing"
	"time"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")
	t.Setenv("TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"env set", "host: ${TEST_DB_HOST}", "host: db.internal"},
		{"env set ignores default", "host: ${TEST_DB_HOST:localhost}", "host: db.internal"},
		{"default used", "host: ${TEST_UNSET_VAR:localhost}", "host: localhost"},
		{"empty default", "key: ${TEST_UNSET_VAR:}", "key: "},
		{"unset without default kept", "key: ${TEST_UNSET_VAR}", "key: ${TEST_UNSET_VAR}"},
		{"empty env wins over default", "key: ${TEST_EMPTY:fallback}", "key: "},
		{"multiple placeholders", "${TEST_DB_HOST}:${TEST_UNSET_PORT:5432}", "db.internal:5432"},
		{"no placeholder", "plain text", "plain text"},
	}

	for _, tt := range tests {
		if got := expandEnv(tt.input); got != tt.want {
			t.Errorf("%s: expandEnv(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestProviderTimeout(t *testing.T) {
	cfg := LLMConfig{
		Providers: map[string]ProviderConfig{
			"openai": {Timeout: 90 * time.Second},
			"quick":  {},
		},
	}

	if got := cfg.ProviderTimeout("openai"); got != 90*time.Second {
		t.Errorf("configured timeout = %v", got)
	}
	if got := cfg.ProviderTimeout("quick"); got != 60*time.Second {
		t.Errorf("zero timeout should fall back to default, got %v", got)
	}
	if got := cfg.ProviderTimeout("unknown"); got != 60*time.Second {
		t.Errorf("unknown provider timeout = %v", got)
	}
}
