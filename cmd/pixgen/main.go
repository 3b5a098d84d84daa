// Package main provides the pixgen headless driver: it establishes an
// authenticated browser session, reconciles the generation page to a task
// spec, and collects every generated image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/oakbyte/pixgen/pkg/config"

	"github.com/oakbyte/pixgen/pkg/browser"
	"github.com/oakbyte/pixgen/pkg/oplog"
	"github.com/oakbyte/pixgen/pkg/task"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	TaskFile    string
	ConfigFile  string
	ProfileDir  string
	OutputDir   string
	ReportFile  string
	Headless    bool
	HeadlessSet bool
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("pixgen v%s\n", version)
		return
	}

	if err := run(cliConfig); err != nil {
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.TaskFile, "task", "", "Path to task spec (YAML, required)")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (defaults to ~/.pixgen/config.json)")
	flag.StringVar(&cliConfig.ProfileDir, "profile", "", "Browser profile directory (overrides config)")
	flag.StringVar(&cliConfig.OutputDir, "output", "", "Artifact output directory (overrides config)")
	flag.StringVar(&cliConfig.ReportFile, "report", "run-report.json", "Output file for the run report")
	flag.BoolVar(&cliConfig.Headless, "headless", false, "Run the browser headless (overrides config)")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pixgen - PixAI image generation driver\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pixgen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run a task spec\n")
		fmt.Fprintf(os.Stderr, "  pixgen -task task.yaml\n\n")
		fmt.Fprintf(os.Stderr, "  # Headless run with a dedicated profile\n")
		fmt.Fprintf(os.Stderr, "  pixgen -task task.yaml -headless -profile ./profiles/main\n\n")
	}

	flag.Parse()
	cliConfig.HeadlessSet = flagWasSet("headless")
	return cliConfig
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// run executes one task spec end to end
func run(cliConfig *CLIConfig) error {
	if cliConfig.TaskFile == "" {
		return fmt.Errorf("task file is required (-task)")
	}
	spec, err := task.Load(cliConfig.TaskFile)
	if err != nil {
		return err
	}

	if err := appconfig.Initialize(cliConfig.ConfigFile); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	browserCfg := appconfig.GetBrowser()
	generationCfg := appconfig.GetGeneration()

	// CLI args override config file values
	profileDir := browserCfg.GetProfileDir()
	if cliConfig.ProfileDir != "" {
		profileDir = cliConfig.ProfileDir
	}
	headless := browserCfg.GetHeadless()
	if cliConfig.HeadlessSet {
		headless = cliConfig.Headless
	}
	outputDir := generationCfg.GetOutputDir()
	if cliConfig.OutputDir != "" {
		outputDir = cliConfig.OutputDir
	}

	logger, err := oplog.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	facade := browser.NewFacade(browser.FacadeOptions{
		Manager: browser.ManagerOptions{
			ProfileDir: profileDir,
			Headless:   headless,
			TargetURL:  browserCfg.GetTargetURL(),
			UserAgent:  browserCfg.GetUserAgent(),
		},
		Crawler: browser.CrawlerOptions{
			Collector: browser.CollectorOptions{
				URLPattern:   generationCfg.GetArtifactURLPattern(),
				IdleWait:     generationCfg.GetIdleWait(),
				TotalTimeout: generationCfg.GetTotalTimeout(),
			},
			Reconciler: browser.ReconcilerOptions{
				FuzzyThreshold: generationCfg.GetFuzzyThreshold(),
			},
			ScreenshotDir: generationCfg.GetScreenshotDir(),
		},
	}, logger)
	defer facade.Close()

	// Close the browser on interrupt so the profile isn't left locked
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		facade.Close()
		os.Exit(1)
	}()

	runner := task.NewRunner(facade, logger)
	report, runErr := runner.Run(spec, outputDir)

	if report != nil {
		if writeErr := task.WriteReport(report, cliConfig.ReportFile); writeErr != nil {
			log.Printf("Failed to write report: %v", writeErr)
		}
	}
	if runErr != nil {
		return runErr
	}

	if err := facade.CloseSession(); err != nil {
		log.Printf("Session close failed: %v", err)
	}

	if !report.Succeeded() {
		return fmt.Errorf("one or more prompts failed, see %s", cliConfig.ReportFile)
	}
	log.Printf("Run completed successfully: %s", report.RunID)
	return nil
}
