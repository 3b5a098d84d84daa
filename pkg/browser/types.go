package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session represents one authenticated browser profile with one open page.
// A Session owns exactly one persistent browser context for its lifetime and
// is never shared across concurrent facades pointed at the same profile path.
type Session struct {
	// ProfileDir is the on-disk persistent profile backing this session
	ProfileDir string

	// Context is the persistent browser context launched on ProfileDir
	Context playwright.BrowserContext

	// Page is the single active page all operations run against
	Page playwright.Page

	// Headless indicates whether the browser runs without a visible window
	Headless bool

	// CreatedAt is the timestamp when the session was established
	CreatedAt time.Time

	// LastUsedAt is the timestamp of the last operation on this session
	LastUsedAt time.Time
}

// UpdateLastUsed updates the LastUsedAt timestamp to the current time.
func (s *Session) UpdateLastUsed() {
	s.LastUsedAt = time.Now()
}

// ActiveLora is one LoRA currently applied on the page.
type ActiveLora struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// ActiveConfig is a read-only snapshot of the model and LoRA set currently
// active on the live page. It is scraped on demand and never cached.
type ActiveConfig struct {
	ModelName    string       `json:"model_name"`
	ModelVersion string       `json:"model_version"`
	Loras        []ActiveLora `json:"loras"`
}

// LoraNames returns the names of the active LoRAs in page order.
func (c ActiveConfig) LoraNames() []string {
	names := make([]string, 0, len(c.Loras))
	for _, l := range c.Loras {
		names = append(names, l.Name)
	}
	return names
}

// DesiredLora is one requested LoRA. A nil Weight means "keep the remote
// UI's default weight".
type DesiredLora struct {
	Name   string
	Weight *float64
}

// DesiredConfig is the user-specified target configuration.
type DesiredConfig struct {
	ModelName    string
	ModelVersion string
	Loras        []DesiredLora
}

// LoraNames returns the names of the desired LoRAs in request order.
func (c DesiredConfig) LoraNames() []string {
	names := make([]string, 0, len(c.Loras))
	for _, l := range c.Loras {
		names = append(names, l.Name)
	}
	return names
}

// GenerationTask describes one generation request. Tasks are transient:
// created per call and discarded once artifacts are collected.
type GenerationTask struct {
	// Prompt is the full prompt text submitted to the generator
	Prompt string

	// OutputDir is where collected artifacts are written
	OutputDir string
}

// Artifact is one generated image persisted to disk.
type Artifact struct {
	// SourceURL is the network URL the body was captured from. Empty for
	// artifacts produced by the screenshot fallback.
	SourceURL string `json:"source_url"`

	// SavedPath is the file the body was written to
	SavedPath string `json:"saved_path"`

	// Fallback marks a synthetic artifact captured via element screenshot
	Fallback bool `json:"fallback,omitempty"`
}

// Booster names a remote generation booster toggle. The set is fixed by the
// target UI; values are the visible labels the page renders.
type Booster string

const (
	BoosterHighQuality Booster = "고품질"
	BoosterDetail      Booster = "디테일 업"
	BoosterUpscale     Booster = "업스케일"
)

// KnownBoosters lists every booster the remote UI currently offers.
func KnownBoosters() []Booster {
	return []Booster{BoosterHighQuality, BoosterDetail, BoosterUpscale}
}

// Valid reports whether b is a booster this build knows about.
func (b Booster) Valid() bool {
	for _, k := range KnownBoosters() {
		if b == k {
			return true
		}
	}
	return false
}

// ManagerOptions configures session establishment.
type ManagerOptions struct {
	// ProfileDir is the persistent profile directory. Its existence is the
	// primary signal that a session has been configured.
	ProfileDir string

	// Headless controls the operational context (first-time setup is always
	// headed regardless of this setting)
	Headless bool

	// TargetURL is the canonical deep link into the generation page
	TargetURL string

	// UserAgent overrides the browser user agent string
	UserAgent string
}

// CollectorOptions tunes artifact collection.
type CollectorOptions struct {
	// URLPattern is the glob matching generated-image payload URLs
	URLPattern string

	// IdleWait stops collection early once artifacts exist and none arrived
	// for this long
	IdleWait time.Duration

	// TotalTimeout is the hard ceiling on one collection run
	TotalTimeout time.Duration
}

// ReconcilerOptions tunes configuration reconciliation.
type ReconcilerOptions struct {
	// FuzzyThreshold is the minimum similarity ratio for accepting a
	// non-exact search result
	FuzzyThreshold float64
}

// Defaults for session and collection behavior. The idle wait and fuzzy
// threshold are empirical values carried from field testing against the
// target UI; both are overridable through configuration.
const (
	DefaultTargetURL      = "https://pixai.art/ko/generator/image"
	DefaultArtifactGlob   = "https://images-ng.pixai.art/gi/orig/*"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 11.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	DefaultIdleWait       = 3 * time.Second
	DefaultTotalTimeout   = 10 * time.Minute
	DefaultFuzzyThreshold = 0.6
	DefaultTimeout        = 30000.0 // milliseconds
	MaxActiveLoras        = 15
)

// Auth cookies whose joint presence defines a logged-in profile.
const (
	authCookieToken    = "user_token"
	authCookieExpireAt = "user_token_expire_at"
)

// Selectors shared across operations. All are anchored to the target
// application's current markup and expected to need maintenance.
const (
	promptTextareaSelector = `section[class*="z-10"] textarea`
	dialogSelector         = `[role="dialog"]`
	marketDialogSelector   = dialogSelector + `:has-text("마켓")`
	boosterDialogSelector  = dialogSelector + `:has-text("부스터 추가")`
	loraCardSelector       = `div.relative.flex.gap-3.bg-background-light.p-2.rounded-xl`
)
