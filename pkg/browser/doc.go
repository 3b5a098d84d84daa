// Package browser drives the PixAI image generator through Playwright.
//
// The package wraps a single persistent browser profile behind a facade and
// exposes the handful of operations the generator page supports: establish a
// session, reconcile the page's model and LoRA configuration, submit prompts,
// and harvest the generated images off the network.
//
// # Architecture
//
// The package is built around four cooperating pieces:
//
//  1. SessionManager: owns the persistent profile, validates login state via
//     auth cookies, and runs the one-time interactive login when needed
//  2. Crawler: page-level operations against one established session
//     (reconciliation, generation, boosters, scraping)
//  3. Cascade: click escalation used wherever the page's custom widgets
//     swallow ordinary locator clicks
//  4. Facade: the public entry point; serializes everything through a
//     single-worker command bridge
//
// # Session Lifecycle
//
// Sessions follow this lifecycle:
//
//  1. EnsureSession validates the profile by probing for auth cookies in a
//     throwaway headless context
//  2. A missing or logged-out profile triggers a headed browser for manual
//     login; closing that window completes the setup
//  3. The operational context then launches against the validated profile
//  4. CloseSession shuts the browser down; the profile survives for reuse
//
// A profile that fails validation is deleted so the next attempt starts
// clean.
//
// # Concurrency
//
// Browser pages are not safe for concurrent access. The facade accepts calls
// from any goroutine and executes them one at a time on a dedicated worker;
// a command that exceeds its timeout is abandoned, not cancelled, and later
// commands queue behind it.
//
// # Example Usage
//
//	facade := browser.NewFacade(browser.FacadeOptions{
//	    Manager: browser.ManagerOptions{ProfileDir: "browser_profile"},
//	}, logger)
//	defer facade.Close()
//
//	if err := facade.EnsureSession(); err != nil {
//	    return err
//	}
//	trigger, err := facade.Reconcile(browser.DesiredConfig{
//	    ModelName: "Moonbeam",
//	    Loras:     browser.ParseLoraList("ink-style:0.8"),
//	})
//	artifacts, err := facade.GenerateAndCollect(browser.GenerationTask{
//	    Prompt:    trigger + ", 1girl, silver hair",
//	    OutputDir: "output",
//	})
package browser
