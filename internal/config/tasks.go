package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskType selects what a task does.
type TaskType string

const (
	TaskDir   TaskType = "dir"   // copy a directory tree unless the target exists
	TaskFiles TaskType = "files" // copy every entry of a directory into the target
	TaskFile  TaskType = "file"  // copy a single file, replacing the target
	TaskPatch TaskType = "patch" // apply a git patch in the target repository
)

// Task is one entry of the attachment task list.
type Task struct {
	Name     string   `yaml:"name" json:"name"`
	Type     TaskType `yaml:"type" json:"type"`
	Target   string   `yaml:"target" json:"target"`
	FilePath string   `yaml:"file_path" json:"file_path,omitempty"`
}

// Valid reports whether t has a known type and the fields that type needs.
func (t Task) Valid() error {
	switch t.Type {
	case TaskDir, TaskFiles, TaskFile:
		if t.Name == "" {
			return fmt.Errorf("%s task without name", t.Type)
		}
	case TaskPatch:
		if t.FilePath == "" {
			return fmt.Errorf("patch task %q without file_path", t.Name)
		}
	default:
		return fmt.Errorf("task %q has unknown type %q", t.Name, t.Type)
	}
	if t.Target == "" {
		return fmt.Errorf("task %q without target", t.Name)
	}
	return nil
}

// LoadTasks reads the task list at path. A .json file is decoded as JSON,
// anything else as YAML. Entries are returned in file order; validation is
// left to the caller so that one bad entry does not hide the others.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task list: %w", err)
	}

	var tasks []Task
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &tasks)
	} else {
		err = yaml.Unmarshal(data, &tasks)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing task list %s: %w", path, err)
	}
	return tasks, nil
}
