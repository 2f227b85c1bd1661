package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	auditpostgres "github.com/hrmquery/hrmquery/internal/audit/postgres"
	"github.com/hrmquery/hrmquery/internal/auth"
	"github.com/hrmquery/hrmquery/internal/config"
	"github.com/hrmquery/hrmquery/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	issueKey := flag.String("issue-key", "", "issue an API key for role:user_id[:phong_ban_id] after migrating")
	revokeKey := flag.String("revoke-key", "", "revoke the API key with this key id after migrating")
	flag.Parse()

	cfg, err := config.LoadFromEnv("hrmquery-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Audit.Enabled() {
		fmt.Fprintln(os.Stderr, "HRMQUERY_AUDIT_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := auditpostgres.Open(ctx, cfg.Audit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	case "status":
		status, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied: %v\npending: %v\n", status.Applied, status.Pending)
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}

	repo := auditpostgres.NewRepository(db)
	if spec := strings.TrimSpace(*issueKey); spec != "" {
		caller, err := parseCaller(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -issue-key: %v\n", err)
			os.Exit(1)
		}
		issued, err := repo.IssueAPIKey(ctx, caller)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue api key failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("issued key %s for %s\nsecret: %s\n", issued.KeyID, caller.Key(), issued.Secret)
	}
	if keyID := strings.TrimSpace(*revokeKey); keyID != "" {
		if err := repo.RevokeAPIKey(ctx, keyID); err != nil {
			fmt.Fprintf(os.Stderr, "revoke api key failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("revoked key %s\n", keyID)
	}
}

func parseCaller(spec string) (auth.Caller, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 1 || len(parts) > 3 {
		return auth.Caller{}, fmt.Errorf("expected role:user_id[:phong_ban_id], got %q", spec)
	}
	role, err := auth.ParseRole(parts[0])
	if err != nil {
		return auth.Caller{}, err
	}
	caller := auth.Caller{Role: role}
	ids := []*int64{&caller.UserID, &caller.DepartmentID}
	for i, raw := range parts[1:] {
		value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return auth.Caller{}, fmt.Errorf("invalid id %q", raw)
		}
		*ids[i] = value
	}
	return caller, caller.Validate()
}
