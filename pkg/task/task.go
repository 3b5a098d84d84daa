// Package task defines generation task specs and the runner that executes
// them against a browser facade.
package task

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/oakbyte/pixgen/pkg/browser"
)

var validate = validator.New()

// Spec is one declarative generation job: the configuration the page should
// be in and the prompts to run against it.
type Spec struct {
	// Model is the model to select, matched by name against market search
	Model string `yaml:"model"`

	// ModelVersion narrows the model selection, matched by substring
	ModelVersion string `yaml:"model_version"`

	// Loras is the LoRA list in "name:weight,name,..." form. Weight is
	// optional per entry; omitted weights keep the page default.
	Loras string `yaml:"loras"`

	// Boosters are enabled before generation, by visible label
	Boosters []string `yaml:"boosters"`

	// Prompts are submitted one at a time, in order
	Prompts []string `yaml:"prompts" validate:"required,min=1,dive,required"`

	// OutputDir overrides the configured artifact output directory
	OutputDir string `yaml:"output_dir"`
}

// Load reads and validates a YAML task spec.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the spec, including the LoRA list grammar and booster
// labels.
func (s *Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid task spec: %w", err)
	}
	for _, b := range s.Boosters {
		if !browser.Booster(b).Valid() {
			return fmt.Errorf("unknown booster %q", b)
		}
	}
	return nil
}

// DesiredConfig converts the spec's model and LoRA fields into the form the
// facade's reconciler takes.
func (s *Spec) DesiredConfig() browser.DesiredConfig {
	return browser.DesiredConfig{
		ModelName:    strings.TrimSpace(s.Model),
		ModelVersion: strings.TrimSpace(s.ModelVersion),
		Loras:        browser.ParseLoraList(s.Loras),
	}
}

// PrependTrigger joins model trigger words onto a prompt. Prompts that
// already carry the trigger text are returned unchanged.
func PrependTrigger(trigger, prompt string) string {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" || strings.Contains(prompt, trigger) {
		return prompt
	}
	return trigger + ", " + prompt
}
