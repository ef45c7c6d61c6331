package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"countercraft.ai/internal/counters/rules"
)

type run struct {
	t   *testing.T
	out bytes.Buffer
}

func newRun(t *testing.T) *run {
	t.Helper()
	t.Setenv("COUNTERCRAFT_DATA_DIR", t.TempDir())
	return &run{t: t}
}

func (r *run) do(stdin string, args ...string) (string, error) {
	r.out.Reset()
	c := &cli{in: strings.NewReader(stdin), out: &r.out, errOut: &bytes.Buffer{}, now: func() time.Time { return time.Unix(1700000000, 0) }}
	err := c.run(args)
	return r.out.String(), err
}

func (r *run) ok(stdin string, args ...string) string {
	r.t.Helper()
	out, err := r.do(stdin, args...)
	if err != nil {
		r.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestRulesLifecycle(t *testing.T) {
	r := newRun(t)

	out := r.ok(`{"incrementScore":{"amount":"2"},"objectives":[{"id":"zk","displayName":"Zombie Kills"}]}`, "rules", "save", "kill", "bonus")
	if out != "saved killCounter:bonus\n" {
		t.Fatalf("save: %q", out)
	}

	out = r.ok("", "rules", "list", "-kind", "kill")
	if !strings.Contains(out, `"name":"bonus"`) || !strings.Contains(out, `"amount":"2"`) || !strings.Contains(out, `"objectives":["zk"]`) {
		t.Fatalf("list: %s", out)
	}
	if out := r.ok("", "rules", "list", "-kind", "death"); out != "" {
		t.Fatalf("list death: %q", out)
	}

	out = r.ok("", "rules", "show", "kill", "bonus")
	if !strings.Contains(out, `"displayName": "Zombie Kills"`) || !strings.Contains(out, `"kind": "kill"`) {
		t.Fatalf("show: %s", out)
	}

	if out := r.ok("", "rules", "delete", "kill", "bonus"); out != "deleted killCounter:bonus\n" {
		t.Fatalf("delete: %q", out)
	}
	if _, err := r.do("", "rules", "delete", "kill", "bonus"); !errors.Is(err, rules.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := r.do("", "rules", "show", "kill", "bonus"); !errors.Is(err, rules.ErrNotFound) {
		t.Fatalf("show deleted: %v", err)
	}
}

func TestRulesSaveFromFileAndCheck(t *testing.T) {
	r := newRun(t)
	path := filepath.Join(t.TempDir(), "rule.json")
	if err := os.WriteFile(path, []byte(`{"blocks":["minecraft:diamond_ore"],"blockAction":"both"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r.ok("", "rules", "save", "-file", path, "block", "ores")
	if out := r.ok("", "rules", "list"); !strings.Contains(out, `"kind":"block","name":"ores"`) {
		t.Fatalf("list: %s", out)
	}

	out := r.ok(`{"progress":{"every":50}}`, "rules", "check", "distance")
	if !strings.Contains(out, `"every": 50`) || !strings.Contains(out, `"maxStep": 64`) {
		t.Fatalf("check should merge onto the default: %s", out)
	}
	if _, err := r.do(`{"enabled":"yes"}`, "rules", "check", "kill"); err == nil {
		t.Fatalf("check should reject wrong types")
	}
}

func TestUsageErrors(t *testing.T) {
	r := newRun(t)
	cases := [][]string{
		{"rules"},
		{"rules", "save", "fishing", "x"},
		{"rules", "show", "kill"},
		{"scores", "top"},
		{"scores", "add", "-mode", "double", "o", "p"},
		{"range", "check", "1..2"},
		{"nope", "x"},
	}
	for _, args := range cases {
		_, err := r.do("", args...)
		var ue usageError
		if !errors.As(err, &ue) {
			t.Fatalf("%v: want usage error, got %v", args, err)
		}
	}
}

func TestScores(t *testing.T) {
	r := newRun(t)
	out := r.ok("", "scores", "add", "-amount", "5", "gold", "p1")
	if !strings.Contains(out, `"old":0`) || !strings.Contains(out, `"new":5`) {
		t.Fatalf("add: %s", out)
	}
	r.ok("", "scores", "add", "-amount", "9", "-mode", "remove", "gold", "p1")
	r.ok("", "scores", "add", "-amount", "3", "gold", "p2")

	if out := r.ok("", "scores", "get", "gold", "p1"); out != "0\n" {
		t.Fatalf("remove should clamp at zero: %q", out)
	}
	out = r.ok("", "scores", "top", "-limit", "1", "gold")
	if strings.TrimSpace(out) != `{"rank":1,"actor_id":"p2","value":3}` {
		t.Fatalf("top: %s", out)
	}
	if out := r.ok("", "scores", "objectives"); !strings.Contains(out, `"id":"gold"`) {
		t.Fatalf("objectives: %s", out)
	}
	if out := r.ok("", "scores", "get", "gold", "nobody"); out != "0\n" {
		t.Fatalf("missing score: %q", out)
	}
}

func TestRangeCommands(t *testing.T) {
	r := newRun(t)
	out := r.ok("", "range", "parse", "!2..4", "abc")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"exclude":true`) || !strings.Contains(lines[0], `"format":"!2..4"`) || !strings.Contains(lines[1], `"ok":false`) {
		t.Fatalf("parse: %s", out)
	}
	if out := r.ok("", "range", "check", "!2..4", "3"); out != "!2..4 3: false\n" {
		t.Fatalf("check: %q", out)
	}
}

func TestEventsCheck(t *testing.T) {
	r := newRun(t)
	path := filepath.Join(t.TempDir(), "events.jsonl")
	body := `{"type":"player_tick","tick":1,"subject":{"id":"p","type_id":"minecraft:player","pos":[0,0,0]}}
{"type":"player_tick","subject":{"id":"p"}}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := r.do("", "events", "check", path)
	if err == nil || !strings.Contains(out, "events=2 bad=1") || !strings.Contains(out, ":2:") {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestSnapshotExportImport(t *testing.T) {
	r := newRun(t)
	r.ok(`{"incrementScore":{"amount":"3"}}`, "rules", "save", "kill", "triple")
	r.ok("", "scores", "add", "-amount", "4", "kills", "p1")

	out := r.ok("", "snapshot", "export")
	if !strings.Contains(out, "exported rules=1 scores=1") || !strings.Contains(out, "1700000000.snap.zst") {
		t.Fatalf("export: %s", out)
	}
	path := strings.TrimSpace(out[strings.LastIndex(out, " to ")+4:])
	if out := r.ok("", "snapshot", "info", path); !strings.Contains(out, `"rules":1`) {
		t.Fatalf("info: %s", out)
	}

	t.Setenv("COUNTERCRAFT_DATA_DIR", t.TempDir())
	if out := r.ok("", "rules", "list"); out != "" {
		t.Fatalf("fresh data dir should be empty: %s", out)
	}
	if out := r.ok("", "snapshot", "import", path); out != "imported rules=1 scores=1\n" {
		t.Fatalf("import: %q", out)
	}
	if out := r.ok("", "rules", "list"); !strings.Contains(out, `"name":"triple"`) || !strings.Contains(out, `"amount":"3"`) {
		t.Fatalf("list after import: %s", out)
	}
	if out := r.ok("", "scores", "get", "kills", "p1"); out != "4\n" {
		t.Fatalf("score after import: %q", out)
	}
}
