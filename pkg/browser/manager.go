package browser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
	"github.com/oakbyte/pixgen/pkg/security/workspace"
)

// stealthScript masks the most common automation fingerprints. Applied as an
// init script on every operational context; failures are logged, never fatal.
const stealthScript = `(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['ko-KR', 'ko', 'en-US'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
	window.chrome = window.chrome || { runtime: {} };
})();`

// compatPatchScript is evaluated once during first-time setup, after the SPA
// has booted. It normalizes the page for unattended operation: fixed zoom and
// no entrance animations that race the click cascade.
const compatPatchScript = `(() => {
	document.body.style.zoom = '1.0';
	const style = document.createElement('style');
	style.textContent = '*, *::before, *::after { transition-duration: 0s !important; animation-duration: 0s !important; }';
	document.head.appendChild(style);
})();`

const (
	profileDeleteGrace = 2 * time.Second
	setupNavTimeout    = 120000.0 // milliseconds
	verifyNavTimeout   = 60000.0
)

// SessionManager owns the persistent browser profile directory and the
// Playwright driver process. It establishes sessions per the lifecycle in
// EnsureSession and is safe for use by one facade at a time.
type SessionManager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	opts        ManagerOptions
	log         *oplog.Logger
	initialized bool
}

// NewSessionManager creates a session manager for the given profile and target.
func NewSessionManager(opts ManagerOptions, log *oplog.Logger) *SessionManager {
	if log == nil {
		log = oplog.Nop()
	}
	if opts.TargetURL == "" {
		opts.TargetURL = DefaultTargetURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &SessionManager{opts: opts, log: log}
}

// Initialize installs and starts the Playwright driver. Must be called before
// EnsureSession. Driver output is discarded so it cannot interleave with the
// caller's own output.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

// EnsureSession establishes an authenticated session on the configured
// profile directory:
//
//  1. An existing profile is probed with a throwaway headless context and
//     deleted if the auth cookies are missing or the probe fails.
//  2. A missing profile triggers interactive first-time setup, which blocks
//     until the user closes the visible browser window.
//  3. The operational context is launched and a final cookie check runs; on
//     failure the context is torn down, the profile deleted, and a
//     SessionError returned. A half-configured profile is never left on disk.
func (m *SessionManager) EnsureSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, &SessionError{Reason: "session manager not initialized"}
	}

	m.verifyAndCleanup()

	if _, err := os.Stat(m.opts.ProfileDir); os.IsNotExist(err) {
		m.log.Warn("사용자 프로필이 없습니다. 최초 설정을 시작합니다")
		if err := m.runFirstTimeSetup(); err != nil {
			m.removeProfileAfterGrace()
			return nil, &SessionError{Reason: "first-time setup failed", Err: err}
		}
	}

	return m.launchOperational()
}

// Shutdown stops the Playwright driver. Any open session must be closed by
// its owner first.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.pw == nil {
		return nil
	}
	if err := m.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	m.pw = nil
	m.initialized = false
	return nil
}

// verifyAndCleanup probes an existing profile with a throwaway headless
// context. Any error while checking is treated as "invalid": it is safer to
// force a re-login than to operate with broken auth.
func (m *SessionManager) verifyAndCleanup() {
	if _, err := os.Stat(m.opts.ProfileDir); os.IsNotExist(err) {
		return
	}

	log := m.log.Scope("기존 로그인 세션 유효성 검사")
	context, err := m.pw.Chromium.LaunchPersistentContext(m.opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(true),
		})
	if err != nil {
		log.Error("검증용 컨텍스트 실행 실패. 사용자 데이터를 삭제합니다", zap.Error(err))
		m.removeProfileAfterGrace()
		return
	}

	valid := false
	page, err := m.pickPage(context)
	if err == nil {
		_, err = page.Goto(m.opts.TargetURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(verifyNavTimeout),
		})
		if err == nil {
			valid = m.isLoggedIn(context, log)
		} else {
			log.Error("검증 페이지 이동 실패", zap.Error(err))
		}
	}

	// Close-then-delete ordering is mandatory: the browser holds file locks
	// on the profile while the context is open.
	_ = context.Close()

	if valid {
		log.Success("기존 세션이 유효합니다")
		return
	}
	log.Warn("유효하지 않은 세션을 감지했습니다. 사용자 데이터를 삭제합니다")
	m.removeProfileAfterGrace()
}

// runFirstTimeSetup launches a visible persistent context and blocks until
// the user logs in and closes the browser window. The browser engine saves
// the profile to disk implicitly on close.
func (m *SessionManager) runFirstTimeSetup() error {
	log := m.log.Scope("최초 1회 설정 모드")
	log.Info("브라우저가 열리면 수동으로 로그인하세요")
	log.Info("로그인 완료 후 브라우저를 닫으면 설정이 자동으로 저장됩니다")

	context, err := m.pw.Chromium.LaunchPersistentContext(m.opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:  playwright.Bool(false),
			UserAgent: playwright.String(m.opts.UserAgent),
		})
	if err != nil {
		return fmt.Errorf("failed to launch setup context: %w", err)
	}
	defer func() { _ = context.Close() }()

	m.applyStealth(context, log)

	closed := make(chan struct{})
	context.OnClose(func(playwright.BrowserContext) {
		close(closed)
	})

	page, err := context.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open setup page: %w", err)
	}
	if _, err := page.Goto(m.opts.TargetURL, playwright.PageGotoOptions{
		Timeout: playwright.Float(setupNavTimeout),
	}); err != nil {
		return fmt.Errorf("failed to open target page: %w", err)
	}

	log.Info("페이지 로딩 및 설정 완료를 기다립니다")
	if err := page.Locator(promptTextareaSelector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(setupNavTimeout),
	}); err != nil {
		return fmt.Errorf("generator page never became ready: %w", err)
	}

	if _, err := page.Evaluate(compatPatchScript); err != nil {
		log.Warn("호환성 패치 적용 실패", zap.Error(err))
	}

	log.Info("로그인 및 설정이 완료되었다면 브라우저를 닫아주세요")
	<-closed
	log.Success("브라우저 닫힘 감지됨. 설정이 저장되었습니다")
	return nil
}

// launchOperational starts the real persistent context and performs the final
// login verification.
func (m *SessionManager) launchOperational() (*Session, error) {
	log := m.log.Scope("크롤러 시작")

	context, err := m.pw.Chromium.LaunchPersistentContext(m.opts.ProfileDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:  playwright.Bool(m.opts.Headless),
			UserAgent: playwright.String(m.opts.UserAgent),
			Args: []string{
				"--disable-blink-features=AutomationControlled",
				"--no-sandbox",
				"--disable-infobars",
			},
		})
	if err != nil {
		return nil, &SessionError{Reason: "failed to launch browser context", Err: err}
	}

	m.applyStealth(context, log)

	page, err := m.pickPage(context)
	if err != nil {
		_ = context.Close()
		return nil, &SessionError{Reason: "failed to open page", Err: err}
	}
	page.SetDefaultTimeout(DefaultTimeout)

	if !strings.Contains(page.URL(), m.opts.TargetURL) {
		log.Info("페이지 여는 중", zap.String("url", m.opts.TargetURL))
		if _, err := page.Goto(m.opts.TargetURL); err != nil {
			_ = context.Close()
			return nil, &SessionError{Reason: "failed to navigate to target", Err: err}
		}
	}

	flog := log.Scope("최종 로그인 상태 검증")
	if !m.isLoggedIn(context, flog) {
		flog.Error("초기 설정 후에도 로그인이 확인되지 않았습니다")
		_ = context.Close()
		m.removeProfileAfterGrace()
		return nil, &SessionError{Reason: "login not confirmed after setup; restart to log in again"}
	}

	if !m.opts.Headless {
		if _, err := page.Evaluate(`document.body.style.zoom = '1.0'`); err != nil {
			log.Warn("확대 비율 설정 실패", zap.Error(err))
		}
	}

	now := time.Now()
	log.Success("크롤러 준비 완료")
	return &Session{
		ProfileDir: m.opts.ProfileDir,
		Context:    context,
		Page:       page,
		Headless:   m.opts.Headless,
		CreatedAt:  now,
		LastUsedAt: now,
	}, nil
}

// isLoggedIn tests for the two auth cookies whose presence defines a valid
// login. Errors while reading cookies count as logged out.
func (m *SessionManager) isLoggedIn(context playwright.BrowserContext, log *oplog.Logger) bool {
	cookies, err := context.Cookies()
	if err != nil {
		log.Error("쿠키 확인 중 오류 발생. 로그아웃 상태로 간주합니다", zap.Error(err))
		return false
	}

	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	if hasAuthCookies(names) {
		log.Success("로그인 쿠키를 발견했습니다")
		return true
	}
	log.Warn("로그인 쿠키가 없습니다. 로그아웃 상태로 판단합니다")
	return false
}

// hasAuthCookies reports whether both required auth cookies are present.
func hasAuthCookies(names []string) bool {
	var token, expire bool
	for _, n := range names {
		switch n {
		case authCookieToken:
			token = true
		case authCookieExpireAt:
			expire = true
		}
	}
	return token && expire
}

// applyStealth installs the anti-detection init script. Best effort.
func (m *SessionManager) applyStealth(context playwright.BrowserContext, log *oplog.Logger) {
	if err := context.AddInitScript(playwright.Script{
		Content: playwright.String(stealthScript),
	}); err != nil {
		log.Warn("스텔스 적용 실패 (계속 진행)", zap.Error(err))
		return
	}
	log.Success("스텔스 적용 완료")
}

func (m *SessionManager) pickPage(context playwright.BrowserContext) (playwright.Page, error) {
	if pages := context.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	return context.NewPage()
}

// removeProfileAfterGrace deletes the profile directory after a short delay
// that lets the browser process release file locks. Must only be called once
// every context on the profile is closed. Deletion goes through a workspace
// guard so a symlinked or misconfigured profile path can never take anything
// outside its parent directory with it.
func (m *SessionManager) removeProfileAfterGrace() {
	if _, err := os.Stat(m.opts.ProfileDir); os.IsNotExist(err) {
		return
	}
	time.Sleep(profileDeleteGrace)

	guard, err := workspace.NewGuard(filepath.Dir(m.opts.ProfileDir))
	if err != nil {
		m.log.Error("사용자 데이터 삭제 보호 장치 생성 실패", zap.Error(err))
		return
	}
	if err := guard.RemoveAll(m.opts.ProfileDir); err != nil {
		m.log.Error("사용자 데이터 삭제 실패", zap.Error(err))
		return
	}
	m.log.Success("사용자 데이터 삭제 완료")
}
