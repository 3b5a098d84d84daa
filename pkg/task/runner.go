package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/browser"
	"github.com/oakbyte/pixgen/pkg/oplog"
)

// PromptResult records the outcome of one prompt within a run.
type PromptResult struct {
	Prompt    string             `json:"prompt"`
	Artifacts []browser.Artifact `json:"artifacts,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Report summarizes one full run for machine consumption.
type Report struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Model        string         `json:"model,omitempty"`
	TriggerWords string         `json:"trigger_words,omitempty"`
	Results      []PromptResult `json:"results"`
}

// Succeeded reports whether every prompt produced artifacts without error.
func (r *Report) Succeeded() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return false
		}
	}
	return len(r.Results) > 0
}

// Runner executes task specs against one facade. Prompts run strictly in
// order; one failed prompt does not abort the rest of the run.
type Runner struct {
	facade *browser.Facade
	log    *oplog.Logger
}

// NewRunner binds a runner to a facade.
func NewRunner(facade *browser.Facade, log *oplog.Logger) *Runner {
	if log == nil {
		log = oplog.Nop()
	}
	return &Runner{facade: facade, log: log}
}

// Run executes one spec end to end: session, boosters, reconciliation, then
// every prompt. Artifacts land under outputDir/<run-id>/.
func (r *Runner) Run(spec *Spec, outputDir string) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Model:     spec.Model,
	}
	log := r.log.Scope(fmt.Sprintf("작업 실행: %s", report.RunID))

	if spec.OutputDir != "" {
		outputDir = spec.OutputDir
	}
	runDir := filepath.Join(outputDir, report.RunID)

	if err := r.facade.EnsureSession(); err != nil {
		return report, fmt.Errorf("session setup failed: %w", err)
	}

	for _, b := range spec.Boosters {
		if err := r.facade.AddBooster(browser.Booster(b)); err != nil {
			log.Warn(fmt.Sprintf("부스터 '%s' 추가 실패. 계속 진행합니다", b), zap.Error(err))
		}
	}

	trigger, err := r.facade.Reconcile(spec.DesiredConfig())
	if err != nil {
		return report, fmt.Errorf("configuration reconcile failed: %w", err)
	}
	report.TriggerWords = trigger

	for _, prompt := range spec.Prompts {
		result := PromptResult{Prompt: prompt}
		artifacts, err := r.facade.GenerateAndCollect(browser.GenerationTask{
			Prompt:    PrependTrigger(trigger, prompt),
			OutputDir: runDir,
		})
		if err != nil {
			result.Error = err.Error()
			log.Error("프롬프트 실행 실패", zap.String("prompt", prompt), zap.Error(err))
		} else {
			result.Artifacts = artifacts
		}
		report.Results = append(report.Results, result)
	}

	report.FinishedAt = time.Now()
	log.Success("작업 완료",
		zap.Int("prompts", len(report.Results)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// WriteReport persists the run report as indented JSON.
func WriteReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
