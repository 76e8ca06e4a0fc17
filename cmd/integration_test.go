package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cfgpkg "github.com/KaramelBytes/granola-mcp/internal/config"
	"github.com/KaramelBytes/granola-mcp/internal/query"
)

// resetFlags clears values and Changed state that persist across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if !strings.HasSuffix(fl.Value.Type(), "Slice") {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	listParticipants, getInclude, exportSections = nil, nil, nil
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

// writeFixture writes a double-encoded local cache plus a config file
// pointing at it, and returns the config path.
func writeFixture(t *testing.T) (cfgPath, cachePath string) {
	t.Helper()
	dir := t.TempDir()
	state := map[string]any{
		"documents": map[string]any{
			"e1": map[string]any{
				"id": "e1", "title": "Test Meeting", "created_at": "2025-08-29T10:00:00Z",
				"people":      []any{map[string]any{"name": "Alice"}, map[string]any{"name": "Bob"}},
				"notes_plain": "Notes here", "type": "meeting",
			},
			"e2": map[string]any{
				"id": "e2", "title": "Interview with Dana", "created_at": "2025-08-30T10:00:00Z",
			},
		},
	}
	inner, err := json.Marshal(map[string]any{"state": state})
	if err != nil {
		t.Fatal(err)
	}
	outer, err := json.Marshal(map[string]any{"cache": string(inner)})
	if err != nil {
		t.Fatal(err)
	}
	cachePath = filepath.Join(dir, "cache-v3.json")
	if err := os.WriteFile(cachePath, outer, 0o644); err != nil {
		t.Fatalf("write cache: %v", err)
	}
	c := cfgpkg.Defaults()
	c.Source = cfgpkg.SourceLocal
	c.CachePath = cachePath
	c.LogDir = filepath.Join(dir, "logs")
	c.RemoteCacheDir = filepath.Join(dir, "remote")
	cfgPath = filepath.Join(dir, "config.yaml")
	if err := cfgpkg.Save(c, cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return cfgPath, cachePath
}

func TestCLI_ListSearchGetExport(t *testing.T) {
	t.Setenv("GRANOLA_API_TOKEN", "")
	cfgPath, _ := writeFixture(t)

	out := mustRun(t, "--config", cfgPath, "list", "--json")
	var page query.ListOutput
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if page.Total != 2 || page.Items[0].ID != "e2" || page.Items[1].ID != "e1" {
		t.Fatalf("unexpected list page: %+v", page)
	}

	out = mustRun(t, "--config", cfgPath, "list")
	if !strings.Contains(out, "Test Meeting") || !strings.Contains(out, "2 of 2 meetings") {
		t.Fatalf("human list output missing fields:\n%s", out)
	}

	out = mustRun(t, "--config", cfgPath, "search", "interview", "--json")
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "e2" {
		t.Fatalf("search returned %+v", page.Items)
	}

	out = mustRun(t, "--config", cfgPath, "get", "e1", "--include", "notes")
	if !strings.Contains(out, `"notes": "Notes here"`) {
		t.Fatalf("get output missing notes:\n%s", out)
	}

	out = mustRun(t, "--config", cfgPath, "export", "e1")
	if !strings.HasPrefix(out, "# Test Meeting\n") {
		t.Fatalf("export should start with the title heading:\n%s", out)
	}
}

func TestCLI_StatsFormats(t *testing.T) {
	t.Setenv("GRANOLA_API_TOKEN", "")
	cfgPath, _ := writeFixture(t)

	out := mustRun(t, "--config", cfgPath, "stats", "--group-by", "month", "--json")
	var stats query.StatsOutput
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v", err)
	}
	if stats.Total != 2 || stats.Counts.ByPeriod["2025-08"] != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	out = mustRun(t, "--config", cfgPath, "stats", "--toon")
	if json.Valid([]byte(out)) || !strings.Contains(strings.ToLower(out), "total") {
		t.Fatalf("unexpected toon output:\n%s", out)
	}

	if _, err := runCmd(t, "--config", cfgPath, "stats", "--json", "--toon"); err == nil {
		t.Fatal("expected error for --json with --toon")
	}
	if _, err := runCmd(t, "--config", cfgPath, "stats", "--group-by", "year"); err == nil {
		t.Fatal("expected validation error for group-by year")
	}
}

func TestCLI_CacheStatusAndBrokenCache(t *testing.T) {
	t.Setenv("GRANOLA_API_TOKEN", "")
	cfgPath, cachePath := writeFixture(t)

	out := mustRun(t, "--config", cfgPath, "cache", "status", "--json")
	var st map[string]any
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatal(err)
	}
	if st["valid_structure"] != true || st["location"] != cachePath {
		t.Fatalf("unexpected status: %v", st)
	}

	if err := os.WriteFile(cachePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	out = mustRun(t, "--config", cfgPath, "cache", "status")
	if !strings.Contains(out, "invalid") {
		t.Fatalf("status should report invalid structure:\n%s", out)
	}
	if _, err := runCmd(t, "--config", cfgPath, "list"); err == nil {
		t.Fatal("expected list to fail on a broken cache")
	}
}

func TestCLI_CachePathFlagOverridesConfig(t *testing.T) {
	t.Setenv("GRANOLA_API_TOKEN", "")
	cfgPath, _ := writeFixture(t)
	_, otherCache := writeFixture(t)
	if err := os.Remove(otherCache); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "--config", cfgPath, "--cache-path", otherCache, "list"); err == nil {
		t.Fatal("expected error reading the flag-provided missing cache")
	}
}

func TestCLI_ConfigSet(t *testing.T) {
	t.Setenv("GRANOLA_API_TOKEN", "")
	cfgPath, _ := writeFixture(t)

	mustRun(t, "--config", cfgPath, "config", "set", "default_limit", "7")
	c, err := cfgpkg.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if c.DefaultLimit != 7 {
		t.Fatalf("default_limit = %d, want 7", c.DefaultLimit)
	}

	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "source", "ftp"); err == nil {
		t.Fatal("expected error for invalid source")
	}
	if _, err := runCmd(t, "--config", cfgPath, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}

	mustRun(t, "--config", cfgPath, "config", "set", "api_token", "secret-token-value")
	out := mustRun(t, "--config", cfgPath, "config", "show")
	if strings.Contains(out, "secret-token-value") || !strings.Contains(out, "sec****lue") {
		t.Fatalf("config show should mask the token:\n%s", out)
	}
	if !strings.Contains(out, "# resolved source: local") {
		t.Fatalf("config show missing resolved source:\n%s", out)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	defer func() {
		flagSource, flagCachePath, flagRetryMaxAttempts = "", "", 0
	}()
	flagSource = "remote"
	flagCachePath = "/tmp/other.json"
	flagRetryMaxAttempts = 5

	c := cfgpkg.Defaults()
	applyFlagOverrides(c, func(name string) bool { return name == "cache-path" || name == "retry-max" })
	if c.Source != cfgpkg.SourceAuto {
		t.Fatalf("source changed without its flag: %q", c.Source)
	}
	if c.CachePath != "/tmp/other.json" || c.RetryMaxAttempts != 5 {
		t.Fatalf("overrides not applied: %+v", c)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{"": "", "abc": "******", "abcdefghij": "abc****hij"}
	for in, want := range cases {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}
