package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hrmquery/hrmquery/internal/cli/hrmctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("HRMQUERY_CLI_TIMEOUT")), 60*time.Second)
	options := hrmctl.Options{
		BaseURL:      envOr("HRMQUERY_API_URL", "http://localhost:8000"),
		APIKey:       strings.TrimSpace(os.Getenv("HRMQUERY_API_KEY")),
		Role:         strings.TrimSpace(os.Getenv("HRMQUERY_CLI_ROLE")),
		UserID:       envInt64("HRMQUERY_CLI_USER_ID"),
		DepartmentID: envInt64("HRMQUERY_CLI_DEPARTMENT_ID"),
		Timeout:      timeout,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}

	code := hrmctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt64(key string) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid %s %q; ignoring\n", key, raw)
		return 0
	}
	return value
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid HRMQUERY_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
