package browser

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

// ErrNoSession reports a page operation issued before EnsureSession.
var ErrNoSession = errors.New("browser: no active session, call EnsureSession first")

// Per-command timeouts. EnsureSession may block on an interactive login and
// generation is bounded by its own collection ceiling, so both get generous
// budgets; everything else is a handful of page interactions.
const (
	ensureSessionTimeout = 15 * time.Minute
	reconcileTimeout     = 5 * time.Minute
	interactionTimeout   = 2 * time.Minute
	generateMargin       = 1 * time.Minute
)

// FacadeOptions configures a facade and everything beneath it.
type FacadeOptions struct {
	Manager ManagerOptions
	Crawler CrawlerOptions
}

// Facade is the single entry point for driving the browser. It owns the
// session lifecycle and serializes every operation through a command bridge,
// so it is safe to call from multiple goroutines.
type Facade struct {
	manager *SessionManager
	bridge  *Bridge
	opts    FacadeOptions
	log     *oplog.Logger

	// crawler is touched only on the bridge worker goroutine
	crawler *Crawler
}

// NewFacade builds a facade. The browser is not started until EnsureSession.
func NewFacade(opts FacadeOptions, log *oplog.Logger) *Facade {
	if log == nil {
		log = oplog.Nop()
	}
	return &Facade{
		manager: NewSessionManager(opts.Manager, log),
		bridge:  NewBridge(log),
		opts:    opts,
		log:     log,
	}
}

// EnsureSession establishes an authenticated session, launching the
// first-time interactive login when no valid profile exists. On success the
// page is also prepared: the daily credit modal is claimed and helper
// features that interfere with prompt entry are switched off.
func (f *Facade) EnsureSession() error {
	_, err := f.bridge.Do("ensure_session", ensureSessionTimeout, func() (interface{}, error) {
		if f.crawler != nil {
			f.crawler.Session().UpdateLastUsed()
			return nil, nil
		}
		if err := f.manager.Initialize(); err != nil {
			return nil, err
		}
		session, err := f.manager.EnsureSession()
		if err != nil {
			return nil, err
		}
		f.crawler = NewCrawler(session, f.log, f.opts.Crawler)

		// Both are cosmetic page preparation; failures don't invalidate
		// the session.
		if err := f.crawler.ClaimDailyCredit(); err != nil {
			f.log.Warn("크레딧 수령 단계 실패", zap.Error(err))
		}
		if err := f.crawler.DisableHelperFeatures(); err != nil {
			f.log.Warn("도우미 기능 비활성화 실패", zap.Error(err))
		}
		return nil, nil
	})
	return err
}

// ReadActiveConfig returns a fresh snapshot of the page's model and LoRA set.
func (f *Facade) ReadActiveConfig() (ActiveConfig, error) {
	value, err := f.bridge.Do("read_active_config", interactionTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return crawler.ReadActiveConfig()
	})
	if err != nil {
		return ActiveConfig{}, err
	}
	return value.(ActiveConfig), nil
}

// Reconcile drives the page configuration to desired and returns any trigger
// words the model selection injected into the prompt field.
func (f *Facade) Reconcile(desired DesiredConfig) (string, error) {
	value, err := f.bridge.Do("reconcile", reconcileTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return crawler.Reconcile(desired)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// GenerateAndCollect runs one generation task and returns the artifacts it
// produced. The command timeout tracks the collector's own ceiling.
func (f *Facade) GenerateAndCollect(task GenerationTask) ([]Artifact, error) {
	timeout := f.opts.Crawler.Collector.TotalTimeout
	if timeout <= 0 {
		timeout = DefaultTotalTimeout
	}
	value, err := f.bridge.Do("generate_and_collect", timeout+generateMargin, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return crawler.GenerateAndCollect(task)
	})
	if err != nil {
		return nil, err
	}
	return value.([]Artifact), nil
}

// AddBooster enables the named generation booster.
func (f *Facade) AddBooster(name Booster) error {
	if !name.Valid() {
		return fmt.Errorf("unknown booster %q", name)
	}
	_, err := f.bridge.Do("add_booster", interactionTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return nil, crawler.AddBooster(name)
	})
	return err
}

// RemoveBooster disables the named generation booster.
func (f *Facade) RemoveBooster(name Booster) error {
	if !name.Valid() {
		return fmt.Errorf("unknown booster %q", name)
	}
	_, err := f.bridge.Do("remove_booster", interactionTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return nil, crawler.RemoveBooster(name)
	})
	return err
}

// ListActiveBoosters reads the boosters currently toggled on.
func (f *Facade) ListActiveBoosters() ([]Booster, error) {
	value, err := f.bridge.Do("list_active_boosters", interactionTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return crawler.ActiveBoosters()
	})
	if err != nil {
		return nil, err
	}
	boosters, _ := value.([]Booster)
	return boosters, nil
}

// TakeScreenshot saves a full-page screenshot and returns its path.
func (f *Facade) TakeScreenshot() (string, error) {
	value, err := f.bridge.Do("take_screenshot", interactionTimeout, func() (interface{}, error) {
		crawler, err := f.requireCrawler()
		if err != nil {
			return nil, err
		}
		return crawler.Screenshot()
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// CloseSession shuts the browser down. The profile directory survives; a
// later EnsureSession on the same facade reuses it.
func (f *Facade) CloseSession() error {
	_, err := f.bridge.Do("close_session", interactionTimeout, func() (interface{}, error) {
		f.crawler = nil
		return nil, f.manager.Shutdown()
	})
	return err
}

// Close releases everything: the session, then the bridge worker. The facade
// is unusable afterwards.
func (f *Facade) Close() error {
	err := f.CloseSession()
	f.bridge.Close()
	return err
}

func (f *Facade) requireCrawler() (*Crawler, error) {
	if f.crawler == nil {
		return nil, ErrNoSession
	}
	return f.crawler, nil
}
