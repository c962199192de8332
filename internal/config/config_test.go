package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mkEngine(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "flutter"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_FromEngineRoot(t *testing.T) {
	dir := mkEngine(t)
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("version: 1\ntimeout: 10m\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != dir {
		t.Errorf("Root = %q, want %q", res.Root, dir)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if res.Config.Timeout() != 10*time.Minute {
		t.Errorf("Config.Timeout() = %s, want 10m", res.Config.Timeout())
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := mkEngine(t)
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("version: 2\nsync:\n  dir: src/other\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "src", "flutter", "shell")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != root {
		t.Errorf("Root = %q, want %q", res.Root, root)
	}
	if res.Config.SyncDir() != "src/other" {
		t.Errorf("SyncDir() = %q, want src/other", res.Config.SyncDir())
	}
}

func TestLoad_NoEngineCheckout(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != dir {
		t.Errorf("Root = %q, want %q (fallback to workspace)", res.Root, dir)
	}
	if res.Config.RawTimeout != "" {
		t.Errorf("expected default config, got RawTimeout = %q", res.Config.RawTimeout)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := mkEngine(t)
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("timeout: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaults(t *testing.T) {
	c := &Config{}
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, want %s", c.Timeout(), DefaultTimeout)
	}
	if c.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes() = %d, want %d", c.MaxOutputBytes(), DefaultMaxOutput)
	}
	if c.LogLevel() != "info" {
		t.Errorf("LogLevel() = %q, want info", c.LogLevel())
	}
	if c.TasksFile() != filepath.Join(DefaultAttachment, "scripts", "config.json") {
		t.Errorf("TasksFile() = %q", c.TasksFile())
	}
	if c.ReposDir() != filepath.Join(DefaultAttachment, "repos") {
		t.Errorf("ReposDir() = %q", c.ReposDir())
	}
	if c.GclientCommand() != DefaultGclient {
		t.Errorf("GclientCommand() = %q", c.GclientCommand())
	}
}

func TestTimeout_InvalidFallsBack(t *testing.T) {
	c := &Config{RawTimeout: "soon"}
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, want default", c.Timeout())
	}
}

func TestLoadTasks_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := "[\n\t{\"name\": \"0001-skia\", \"type\": \"patch\", \"target\": \"src/third_party/skia\", \"file_path\": \"../patches/skia.patch\"},\n\t{\"name\": \"bootstrap\", \"type\": \"dir\", \"target\": \"src/bootstrap\"}\n]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].Type != TaskPatch || tasks[0].FilePath != "../patches/skia.patch" {
		t.Errorf("tasks[0] = %+v", tasks[0])
	}
	if tasks[1].Name != "bootstrap" || tasks[1].Type != TaskDir {
		t.Errorf("tasks[1] = %+v", tasks[1])
	}
}

func TestLoadTasks_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	data := "- name: ohos.py\n  type: file\n  target: ohos.py\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != TaskFile {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestLoadTasks_Missing(t *testing.T) {
	_, err := LoadTasks(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing task list")
	}
}

func TestTask_Valid(t *testing.T) {
	tests := []struct {
		task Task
		want string // substring of the error, "" for valid
	}{
		{Task{Name: "a", Type: TaskDir, Target: "x"}, ""},
		{Task{Name: "p", Type: TaskPatch, Target: "x", FilePath: "p.patch"}, ""},
		{Task{Name: "p", Type: TaskPatch, Target: "x"}, "without file_path"},
		{Task{Name: "a", Type: TaskFile}, "without target"},
		{Task{Type: TaskFiles, Target: "x"}, "without name"},
		{Task{Name: "z", Type: "zip", Target: "x"}, "unknown type"},
	}
	for _, tt := range tests {
		err := tt.task.Valid()
		switch {
		case tt.want == "" && err != nil:
			t.Errorf("%+v: unexpected error %v", tt.task, err)
		case tt.want != "" && (err == nil || !strings.Contains(err.Error(), tt.want)):
			t.Errorf("%+v: error = %v, want %q", tt.task, err, tt.want)
		}
	}
}
