package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

// JobDefinition names a job and says how often the trigger submits it
type JobDefinition struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// JobRegistry holds every job the process knows how to run. It is built
// explicitly in main; which jobs actually run is decided by EnabledJobs.
type JobRegistry struct {
	jobs map[string]JobDefinition
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]JobDefinition)}
}

// Register adds a job. Names are unique.
func (r *JobRegistry) Register(def JobDefinition) error {
	if def.Name == "" || def.Run == nil || def.Interval <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidJob, def.Name)
	}
	if _, exists := r.jobs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, def.Name)
	}
	r.jobs[def.Name] = def
	return nil
}

func (r *JobRegistry) Get(name string) (JobDefinition, bool) {
	def, ok := r.jobs[name]
	return def, ok
}

// Names returns the registered job names in sorted order
func (r *JobRegistry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledJobs selects the registered jobs named in active, sorted by name.
// Unknown and repeated names are ignored. It reads nothing but its arguments.
func EnabledJobs(registry *JobRegistry, active []string) []JobDefinition {
	seen := make(map[string]bool, len(active))
	enabled := make([]JobDefinition, 0, len(active))
	for _, name := range active {
		if seen[name] {
			continue
		}
		seen[name] = true
		if def, ok := registry.Get(name); ok {
			enabled = append(enabled, def)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })
	return enabled
}

// UnknownJobs lists names in active that the registry does not know, so
// main can warn about typos in scheduler.jobs
func UnknownJobs(registry *JobRegistry, active []string) []string {
	var unknown []string
	for _, name := range active {
		if _, ok := registry.Get(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
