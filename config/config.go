/*
Package config loads and validates the run-level configuration of a grid
run from a YAML file.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/evalgrid/evalgrid"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML satisfies yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation of the duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Run is the run-level configuration of one grid run.
type Run struct {
	// Strategy selects the scheduling model.
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=concurrent pool"`
	// Workers is the pool size of the pool strategy.
	Workers int `yaml:"workers" validate:"omitempty,min=1"`
	// AdmissionCeiling bounds the tasks simultaneously in flight.
	AdmissionCeiling int `yaml:"admission_ceiling" validate:"omitempty,min=1"`

	Budget  Budget  `yaml:"budget"`
	Retry   Retry   `yaml:"retry"`
	Engine  Engine  `yaml:"engine"`
	Dataset Dataset `yaml:"dataset" validate:"required"`

	// TaskTimeout is the optional per-task deadline. Zero disables it.
	TaskTimeout Duration `yaml:"task_timeout"`

	VariationSet []VariationSpec `yaml:"variations" validate:"required,min=1,dive"`
}

// Budget configures the shared rate budget of the run.
type Budget struct {
	// Kind selects the budget policy: "paced" (pure elapsed-time pacing)
	// or "adaptive" (feedback-replenished token bucket).
	Kind string `yaml:"kind" validate:"omitempty,oneof=paced adaptive"`
	// Capacity is the max burst of the budget in units.
	Capacity float64 `yaml:"capacity" validate:"omitempty,gt=0"`
	// RefillPerSecond is the passive accrual rate in units per second.
	RefillPerSecond float64 `yaml:"refill_per_second" validate:"omitempty,gte=0"`
	// Feedback replenishes the task's reported cost on success
	// (adaptive kind only).
	Feedback bool `yaml:"feedback"`
}

// Retry configures the retry/backoff policy.
type Retry struct {
	WaitBase       Duration `yaml:"wait_base"`
	Times          int      `yaml:"times" validate:"omitempty,min=1"`
	DisableBackoff bool     `yaml:"disable_backoff"`
}

// Engine configures the evaluation engine.
type Engine struct {
	Model          string `yaml:"model"`
	PromptTemplate string `yaml:"prompt_template"`
}

// Dataset configures the data source.
type Dataset struct {
	// Path points to a JSONL file with one datum per line.
	Path string `yaml:"path" validate:"required"`
	// BatchSize is the datum batch size of the source.
	BatchSize int `yaml:"batch_size" validate:"omitempty,min=1"`
}

// VariationSpec is one variation of the grid.
type VariationSpec struct {
	ID     string            `yaml:"id" validate:"required"`
	Params map[string]string `yaml:"params"`
}

const (
	defaultStrategy         = "concurrent"
	defaultWorkers          = 8
	defaultAdmissionCeiling = 20
	defaultBudgetKind       = "adaptive"
	defaultBudgetCapacity   = 100
)

func (r *Run) defaults() {
	if r.Strategy == "" {
		r.Strategy = defaultStrategy
	}

	if r.Workers <= 0 {
		r.Workers = defaultWorkers
	}

	if r.AdmissionCeiling <= 0 {
		r.AdmissionCeiling = defaultAdmissionCeiling
	}

	if r.Budget.Kind == "" {
		r.Budget.Kind = defaultBudgetKind
	}

	if r.Budget.Capacity <= 0 {
		r.Budget.Capacity = defaultBudgetCapacity
	}
}

// Load reads, defaults and validates the run configuration at path.
func Load(path string) (*Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(raw)
}

// Parse defaults and validates a raw YAML run configuration.
func Parse(raw []byte) (*Run, error) {
	var run Run
	if err := yaml.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	run.defaults()

	if err := validator.New().Struct(run); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &run, nil
}

// Variations returns the variation set of the run.
func (r *Run) Variations() []evalgrid.Variation {
	vs := make([]evalgrid.Variation, 0, len(r.VariationSet))
	for _, v := range r.VariationSet {
		vs = append(vs, evalgrid.Variation{
			ID:     v.ID,
			Params: v.Params,
		})
	}

	return vs
}
