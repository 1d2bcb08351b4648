// Package task holds the static task and workflow-step configuration: which
// prompt a task uses, what schema its output must satisfy, how it chunks, and
// which model tier serves it.
package task

import (
	_ "embed"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tripforge/placescout/internal/model"
)

//go:embed tasks.yaml
var tasksYAML []byte

// Tier selects a model quality/speed class.
type Tier string

const (
	TierFast Tier = "fast"
	TierDeep Tier = "deep"
)

// Kind determines how chunked results merge.
type Kind string

const (
	// KindSchedule output carries a "days" list; chunk results concatenate it.
	KindSchedule Kind = "schedule"
	// KindFreeform output merges by top-level key: arrays concatenate,
	// objects shallow-merge, scalars take the latest.
	KindFreeform Kind = "freeform"
)

// Descriptor is the immutable configuration for one task.
type Descriptor struct {
	Key                   string   `yaml:"key"`
	Prompt                string   `yaml:"prompt"`
	Tier                  Tier     `yaml:"tier"`
	ChunkLimit            int      `yaml:"chunk_limit"`
	Kind                  Kind     `yaml:"kind"`
	AllowStringCandidates bool     `yaml:"allow_string_candidates"`
	Ingest                bool     `yaml:"ingest"`
	DefaultListFields     []string `yaml:"default_list_fields"`
	Schema                string   `yaml:"schema"`
	// Phases, when set, makes the task a fixed multi-phase sequence.
	Phases []string `yaml:"phases"`
}

// MultiPhase reports whether the task is a fixed sequence of sub-tasks.
func (d *Descriptor) MultiPhase() bool {
	return len(d.Phases) > 0
}

// Registry resolves task keys to descriptors and exposes the workflow step
// graph.
type Registry struct {
	tasks map[string]*Descriptor
	steps []model.WorkflowStep
}

type registryFile struct {
	Tasks []Descriptor         `yaml:"tasks"`
	Steps []model.WorkflowStep `yaml:"steps"`
}

// Load parses the embedded task configuration.
func Load() (*Registry, error) {
	return parse(tasksYAML)
}

func parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "task: parse registry")
	}

	r := &Registry{
		tasks: make(map[string]*Descriptor, len(file.Tasks)),
		steps: file.Steps,
	}
	for i := range file.Tasks {
		d := &file.Tasks[i]
		if d.Key == "" {
			return nil, eris.New("task: descriptor missing key")
		}
		if d.Tier == "" {
			d.Tier = TierFast
		}
		if d.Kind == "" {
			d.Kind = KindFreeform
		}
		if _, dup := r.tasks[d.Key]; dup {
			return nil, eris.Errorf("task: duplicate key %s", d.Key)
		}
		r.tasks[d.Key] = d
	}
	return r, nil
}

// Get returns the descriptor for key.
func (r *Registry) Get(key string) (*Descriptor, error) {
	d, ok := r.tasks[key]
	if !ok {
		return nil, eris.Errorf("task: unknown task %s", key)
	}
	return d, nil
}

// Keys returns all task keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.tasks))
	for k := range r.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Steps returns the static workflow step graph.
func (r *Registry) Steps() []model.WorkflowStep {
	return r.steps
}
