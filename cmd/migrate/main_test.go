package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
)

type fakeMigrator struct {
	upSteps   []int
	downSteps []int
	upErr     error
	statusErr error
	infos     []postgres.MigrationInfo
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	return f.upErr
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.downSteps = append(f.downSteps, steps)
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, int, error) {
	if f.statusErr != nil {
		return 0, 0, f.statusErr
	}
	return 2, 2, nil
}

func (f *fakeMigrator) Migrations(context.Context) ([]postgres.MigrationInfo, error) {
	return f.infos, nil
}

func TestRunMigration_Up(t *testing.T) {
	m := &fakeMigrator{}
	var out bytes.Buffer

	if err := runMigration(context.Background(), m, " UP ", 0, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.upSteps) != 1 || m.upSteps[0] != 0 {
		t.Fatalf("unexpected up steps: %v", m.upSteps)
	}
	if got := out.String(); got != "migrate up ok: version=2 applied=2\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRunMigration_DownDefaultsToOneStep(t *testing.T) {
	m := &fakeMigrator{}
	var out bytes.Buffer

	if err := runMigration(context.Background(), m, "down", 0, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.downSteps) != 1 || m.downSteps[0] != 1 {
		t.Fatalf("expected one step down, got %v", m.downSteps)
	}
}

func TestRunMigration_StatusListsMigrations(t *testing.T) {
	m := &fakeMigrator{infos: []postgres.MigrationInfo{
		{Version: 1, Name: "catalog_and_sales", Applied: true, AppliedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Version: 2, Name: "outbox_and_idempotency"},
	}}
	var out bytes.Buffer

	if err := runMigration(context.Background(), m, "status", 0, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"migration status: version=2 applied=2",
		"0001",
		"catalog_and_sales",
		"2026-01-02T03:04:05Z",
		"0002",
		"outbox_and_idempotency",
		"pending",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q does not contain %q", got, want)
		}
	}
}

func TestRunMigration_Errors(t *testing.T) {
	if err := runMigration(context.Background(), &fakeMigrator{}, "sideways", 0, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unsupported direction")
	}

	upErr := errors.New("lock timeout")
	err := runMigration(context.Background(), &fakeMigrator{upErr: upErr}, "up", 0, &bytes.Buffer{})
	if !errors.Is(err, upErr) {
		t.Fatalf("expected wrapped up error, got %v", err)
	}

	statusErr := errors.New("no table")
	err = runMigration(context.Background(), &fakeMigrator{statusErr: statusErr}, "status", 0, &bytes.Buffer{})
	if !errors.Is(err, statusErr) {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
}

func TestMainMissingDSNExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_EXIT") == "1" {
		os.Args = []string{"migrate", "-direction=status", "-dsn="}
		_ = os.Unsetenv("POS_POSTGRES_DSN")
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMainMissingDSNExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
