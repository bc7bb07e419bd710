package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Flags are package globals; reset the ones tests set.
	cfgFile, connection, dialect, logLevel, logFormat = "", "", "", "", ""
	statementsFormat, statementsPhase = "sql", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "pgedge-songdwh ") {
		t.Errorf("Unexpected version output: %s", out)
	}
}

func TestDialectsCommand(t *testing.T) {
	out, err := execute(t, "dialects")
	if err != nil {
		t.Fatalf("dialects failed: %v", err)
	}
	for _, name := range warehouse.List() {
		if !strings.Contains(out, name) {
			t.Errorf("dialects output missing %s:\n%s", name, out)
		}
	}
}

func TestStatementsSQL(t *testing.T) {
	out, err := execute(t, "statements", "--dialect", "redshift", "--log-level", "error")
	if err != nil {
		t.Fatalf("statements failed: %v", err)
	}
	for _, want := range []string{
		"-- drop (redshift)",
		"-- create_songplays",
		"IDENTITY(0, 1)",
		"FROM '<s3.log_data>'",
		"aws_iam_role=****",
		"-- insert_time",
		"-- count_time",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("statements output missing %q", want)
		}
	}
	if strings.Contains(out, "<iam_role.arn>") {
		t.Error("IAM role should be masked")
	}
}

func TestStatementsYAMLPhase(t *testing.T) {
	out, err := execute(t, "statements", "--dialect", "postgres", "--format", "yaml", "--phase", "insert",
		"--log-level", "error")
	if err != nil {
		t.Fatalf("statements failed: %v", err)
	}
	var plan warehouse.Plan
	if err := yaml.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("Output is not YAML: %v\n%s", err, out)
	}
	if plan.Dialect != "postgres" {
		t.Errorf("Expected postgres plan, got %s", plan.Dialect)
	}
	if len(plan.Insert) != 5 || len(plan.Create) != 0 || len(plan.Copy) != 0 {
		t.Errorf("Expected only the 5 insert statements, got %+v", plan)
	}
	if plan.Insert[0].Name != "insert_songplays" || !strings.Contains(plan.Insert[4].SQL, "EXTRACT(dow") {
		t.Errorf("Unexpected insert statements: %+v", plan.Insert)
	}
}

func TestStatementsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown dialect", []string{"statements", "--dialect", "oracle"}},
		{"unknown format", []string{"statements", "--format", "xml"}},
		{"unknown phase", []string{"statements", "--phase", "vacuum"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, append(tt.args, "--log-level", "error")...); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dwh.yaml")
	if err := os.WriteFile(path, []byte("dialect: postgres\nlog_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "dialects", "--config", path); err != nil {
		t.Fatalf("dialects failed: %v", err)
	}
	if cfg.Dialect != "postgres" || cfg.LogLevel != "warn" {
		t.Errorf("Config file not applied: %+v", cfg)
	}

	if _, err := execute(t, "dialects", "--config", path, "--dialect", "redshift"); err != nil {
		t.Fatalf("dialects failed: %v", err)
	}
	if cfg.Dialect != "redshift" {
		t.Errorf("--dialect should override the config file, got %s", cfg.Dialect)
	}
}

func TestPipelineCommandsValidate(t *testing.T) {
	// No connection configured
	for _, cmd := range []string{"create-tables", "etl", "run", "verify"} {
		t.Run(cmd, func(t *testing.T) {
			_, err := execute(t, cmd, "--log-level", "error")
			if err == nil || !strings.Contains(err.Error(), "connection") {
				t.Errorf("Expected connection error, got %v", err)
			}
		})
	}

	// Copy settings are required for etl
	_, err := execute(t, "etl", "--connection", "postgres://localhost/dwh", "--dialect", "postgres",
		"--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "s3.log_data") {
		t.Errorf("Expected s3.log_data error, got %v", err)
	}
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", dir, "--songs", "5", "--artists", "2", "--users", "2",
		"--days", "1", "--events-per-day", "10", "--log-level", "error")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, filepath.Join(dir, "log_data")) {
		t.Errorf("Expected config hint for log_data:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "log_json_path.json")); err != nil {
		t.Errorf("jsonpaths file not written: %v", err)
	}
	logs, err := filepath.Glob(filepath.Join(dir, "log_data", "*", "*", "*-events.json"))
	if err != nil || len(logs) != 1 {
		t.Errorf("Expected 1 log file, got %v (%v)", logs, err)
	}

	if _, err := execute(t, "generate", dir, "--start", "yesterday"); err == nil {
		t.Error("Expected error for invalid start date")
	}
}
