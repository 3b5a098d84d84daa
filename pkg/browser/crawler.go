package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

// CrawlerOptions bundles the tunables of a crawler instance.
type CrawlerOptions struct {
	Collector     CollectorOptions
	Reconciler    ReconcilerOptions
	ScreenshotDir string
}

// Crawler executes page-level operations against one established session.
// All methods assume they run serialized; the facade's command bridge
// guarantees that.
type Crawler struct {
	session *Session
	cascade *Cascade
	log     *oplog.Logger
	opts    CrawlerOptions
}

// NewCrawler binds a crawler to an established session.
func NewCrawler(session *Session, log *oplog.Logger, opts CrawlerOptions) *Crawler {
	if log == nil {
		log = oplog.Nop()
	}
	if opts.Collector.URLPattern == "" {
		opts.Collector.URLPattern = DefaultArtifactGlob
	}
	if opts.Collector.IdleWait <= 0 {
		opts.Collector.IdleWait = DefaultIdleWait
	}
	if opts.Collector.TotalTimeout <= 0 {
		opts.Collector.TotalTimeout = DefaultTotalTimeout
	}
	if opts.Reconciler.FuzzyThreshold <= 0 {
		opts.Reconciler.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "screenshot"
	}
	cascade := NewCascade(session, log)
	cascade.screenshotDir = opts.ScreenshotDir
	return &Crawler{
		session: session,
		cascade: cascade,
		log:     log,
		opts:    opts,
	}
}

// Session returns the underlying session.
func (c *Crawler) Session() *Session {
	return c.session
}

var claimButtonRe = regexp.MustCompile(`매일 크레딧 ([\d,]+) 받아보세요`)

// ClaimDailyCredit claims the daily credit reward modal if it is showing.
// Absence of the modal is the common case and not an error.
func (c *Crawler) ClaimDailyCredit() error {
	c.session.UpdateLastUsed()
	log := c.log.Scope("매일 크레딧 보상 확인")

	modal := c.session.Page.Locator(`div[data-ui="dialog-content"]:has-text("매일 크레딧")`)
	if err := modal.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		log.Info("매일 크레딧 보상을 이미 받았거나, 찾을 수 없습니다. 계속 진행합니다")
		return nil
	}
	log.Info("매일 크레딧 보상을 발견했습니다")

	claim := c.session.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: claimButtonRe,
	})
	text, err := claim.InnerText()
	if err != nil {
		log.Warn("크레딧 버튼을 읽지 못했습니다", zap.Error(err))
		return nil
	}

	if m := claimButtonRe.FindStringSubmatch(text); m != nil {
		log.Info("크레딧 수령을 시도합니다", zap.String("amount", m[1]))
		if err := claim.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			log.Warn("크레딧 수령 클릭 실패", zap.Error(err))
			return nil
		}
		log.Success("크레딧을 수령했습니다", zap.String("amount", m[1]))
		closeBtn := c.session.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: "닫기"})
		if err := closeBtn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			log.Warn("크레딧 모달 닫기 실패", zap.Error(err))
		}
		return nil
	}

	log.Warn("크레딧 양을 확인할 수 없습니다. 수령만 시도합니다")
	if err := claim.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
		log.Warn("크레딧 수령 클릭 실패", zap.Error(err))
	}
	return nil
}

// DisableHelperFeatures turns off the autocomplete and prompt-helper toggles.
// Both interfere with programmatic prompt entry. Missing toggles are skipped.
func (c *Crawler) DisableHelperFeatures() error {
	c.session.UpdateLastUsed()
	log := c.log.Scope("자동 완성 및 프롬프트 도우미 기능 비활성화")

	for _, feature := range []string{"자동 완성", "프롬프트 도우미"} {
		if err := c.disableToggle(feature, log); err != nil {
			log.Warn(fmt.Sprintf("'%s' 스위치를 찾지 못했습니다. 계속 진행합니다", feature), zap.Error(err))
		}
	}
	return nil
}

// disableToggle flips one data-selected labelled switch off and polls until
// the attribute reflects the change.
func (c *Crawler) disableToggle(feature string, log *oplog.Logger) error {
	label := c.session.Page.Locator(fmt.Sprintf(`label:has-text(%q)`, feature))
	if err := label.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(5000),
	}); err != nil {
		return err
	}

	selected, err := label.GetAttribute("data-selected")
	if err != nil {
		return err
	}
	if selected != "true" {
		log.Info(fmt.Sprintf("'%s' 기능이 이미 비활성화 상태입니다", feature))
		return nil
	}

	log.Info(fmt.Sprintf("'%s' 기능이 활성화되어 있어 비활성화를 시도합니다", feature))
	if err := label.Click(); err != nil {
		return err
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, err := label.GetAttribute("data-selected"); err == nil && v != "true" {
			log.Success(fmt.Sprintf("'%s' 기능이 비활성화되었습니다", feature))
			return nil
		}
		c.session.Page.WaitForTimeout(150)
	}
	return fmt.Errorf("toggle %q still selected after click", feature)
}

// AddBooster opens the booster dialog and adds the named booster.
func (c *Crawler) AddBooster(name Booster) error {
	c.session.UpdateLastUsed()
	log := c.log.Scope(fmt.Sprintf("부스터 추가: %s", name))

	dialogSel := boosterDialogSelector
	if !c.cascade.ClickByText("부스터 추가", Effect{DialogSelector: dialogSel}, 5*time.Second) {
		path := c.errorScreenshot("booster_dialog")
		log.Error("부스터 다이얼로그를 열 수 없습니다", zap.String("screenshot", path))
		return &InteractionError{Action: "open booster dialog"}
	}

	dialog := c.session.Page.Locator(dialogSel)
	closeDialog := func() {
		if visible, err := dialog.IsVisible(); err == nil && visible {
			_ = dialog.GetByRole(*playwright.AriaRoleButton).First().Click(
				playwright.LocatorClickOptions{Timeout: playwright.Float(2000)})
		}
	}

	if err := dialog.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		return &InteractionError{Action: "booster dialog visibility", Err: err}
	}

	item := dialog.Locator(fmt.Sprintf(`li:has-text(%q)`, string(name)))
	if err := item.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		closeDialog()
		return &InteractionError{Action: fmt.Sprintf("booster %q not listed", name), Err: err}
	}
	if err := item.GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{Name: "추가"}).Click(); err != nil {
		closeDialog()
		return &InteractionError{Action: fmt.Sprintf("add booster %q", name), Err: err}
	}
	log.Success("부스터 추가 완료")

	closeDialog()
	_ = dialog.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(5000),
	})
	return nil
}

// RemoveBooster removes an active booster with a 3-tier click fallback:
// plain click, forced click, then a direct DOM click via text-match scan.
func (c *Crawler) RemoveBooster(name Booster) error {
	c.session.UpdateLastUsed()
	log := c.log.Scope(fmt.Sprintf("부스터 제거: %s", name))

	container := c.session.Page.Locator(
		fmt.Sprintf(`div[style*="order"]:has(div.content:text-is(%q))`, string(name)))
	if err := container.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		return &InteractionError{Action: fmt.Sprintf("booster %q not active", name), Err: err}
	}

	removeBtn := container.GetByRole(*playwright.AriaRoleButton).Nth(1)
	if err := removeBtn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err == nil {
		log.Success("부스터 제거 완료 (일반 클릭)")
	} else {
		log.Warn("일반 클릭 실패, 강제 클릭 시도", zap.Error(err))
		if err := removeBtn.Click(playwright.LocatorClickOptions{
			Force:   playwright.Bool(true),
			Timeout: playwright.Float(2000),
		}); err == nil {
			log.Success("부스터 제거 완료 (강제 클릭)")
		} else {
			log.Warn("강제 클릭 실패, JavaScript 클릭 시도", zap.Error(err))
			raw, jsErr := c.session.Page.Evaluate(`(name) => {
				const containers = Array.from(document.querySelectorAll('div[style*="order"]'));
				const target = containers.find(container => {
					const content = container.querySelector('div.content');
					return content && content.textContent.trim() === name;
				});
				if (target) {
					const buttons = target.querySelectorAll('button');
					if (buttons.length >= 2) { buttons[1].click(); return true; }
				}
				return false;
			}`, string(name))
			if clicked, _ := raw.(bool); jsErr != nil || !clicked {
				return &InteractionError{Action: fmt.Sprintf("remove booster %q", name), Err: jsErr}
			}
			log.Success("부스터 제거 완료 (JavaScript 클릭)")
		}
	}

	c.session.Page.WaitForTimeout(500)
	return nil
}

// ActiveBoosters reads the boosters currently toggled on. The remote state is
// read fresh on every call.
func (c *Crawler) ActiveBoosters() ([]Booster, error) {
	c.session.UpdateLastUsed()
	log := c.log.Scope("활성화된 부스터 목록 가져오기")

	containers := c.session.Page.Locator(`div[style*="order"]:has(div.content)`)
	count, err := containers.Count()
	if err != nil {
		return nil, &InteractionError{Action: "count active boosters", Err: err}
	}
	if count == 0 {
		log.Info("활성화된 부스터가 없습니다")
		return nil, nil
	}

	var active []Booster
	for i := 0; i < count; i++ {
		name, err := containers.Nth(i).Locator("div.content").InnerText()
		if err != nil {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			active = append(active, Booster(name))
		}
	}
	log.Info("활성화된 부스터", zap.Int("count", len(active)))
	return active, nil
}

// ReadActiveConfig scrapes the model and LoRA set currently active on the
// page. The snapshot is never cached; callers re-read on demand.
func (c *Crawler) ReadActiveConfig() (ActiveConfig, error) {
	c.session.UpdateLastUsed()
	log := c.log.Scope("현재 설정된 모델/LoRA 확인")

	cfg := ActiveConfig{ModelName: "unknown_model", ModelVersion: "unknown_version"}

	rawModel, err := c.session.Page.Evaluate(`() => {
		const header = document.querySelector('.px-4.py-2.bg-background-light.rounded-xl');
		if (!header) return null;
		const nameLink = header.querySelector('a[href*="/ko/model/"]:first-of-type') ||
			header.querySelector('a[href*="/model/"]:first-of-type');
		const versionLink = header.querySelector('a.font-mono.text-xs');
		return {
			name: nameLink ? nameLink.textContent.trim() : '',
			version: versionLink ? versionLink.textContent.trim() : '',
		};
	}`)
	if err != nil {
		log.Error("설정 정보 크롤링 실패", zap.Error(err))
		return cfg, &InteractionError{Action: "read model header", Err: err}
	}
	if m, ok := rawModel.(map[string]interface{}); ok {
		if name := asString(m["name"]); name != "" {
			cfg.ModelName = name
		}
		cfg.ModelVersion = asString(m["version"])
	}

	rawLoras, err := c.session.Page.Evaluate(`() => {
		const sections = Array.from(document.querySelectorAll('section'));
		const loraSection = sections.find(s => {
			const h2 = s.querySelector('h2');
			return h2 && h2.textContent.trim().toLowerCase().includes('lora');
		});
		if (!loraSection) return [];

		const cards = Array.from(loraSection.querySelectorAll('div.relative.flex.gap-3.bg-background-light.p-2.rounded-xl'));
		const loras = [];
		for (const card of cards) {
			const nameEl = card.querySelector('a.font-bold.text-sm, a.font-bold, a[href*="/ko/model/"], a[href*="/model/"]');
			const name = nameEl ? nameEl.textContent.trim() : '';
			if (!name) continue;

			let weight = 0.7;
			const numberInput = card.querySelector('input[type="number"]');
			const rangeInput = card.querySelector('input[type="range"]');
			if (numberInput && numberInput.value !== '') {
				const p = parseFloat(numberInput.value);
				if (!isNaN(p)) weight = p;
			} else if (rangeInput && rangeInput.value !== '') {
				const p = parseFloat(rangeInput.value);
				if (!isNaN(p)) weight = p;
			} else {
				const ariaNode = card.querySelector('[aria-valuenow]');
				if (ariaNode) {
					const p = parseFloat(ariaNode.getAttribute('aria-valuenow'));
					if (!isNaN(p)) weight = p;
				}
			}

			loras.push({ name: name, weight: weight });
			if (loras.length >= 15) break;
		}
		return loras;
	}`)
	if err != nil {
		log.Error("LoRA 정보 크롤링 실패", zap.Error(err))
		return cfg, &InteractionError{Action: "read lora cards", Err: err}
	}
	if items, ok := rawLoras.([]interface{}); ok {
		for _, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name := asString(m["name"])
			if name == "" {
				continue
			}
			cfg.Loras = append(cfg.Loras, ActiveLora{Name: name, Weight: asFloat(m["weight"])})
			if len(cfg.Loras) >= MaxActiveLoras {
				break
			}
		}
	}

	log.Info("현재 모델", zap.String("name", cfg.ModelName), zap.String("version", cfg.ModelVersion))
	log.Info("현재 LoRA", zap.Int("count", len(cfg.Loras)))
	for _, l := range cfg.Loras {
		log.Detail(fmt.Sprintf("%s : %g", l.Name, l.Weight))
	}
	return cfg, nil
}

// Screenshot saves a full-page screenshot under the screenshot directory and
// returns its path.
func (c *Crawler) Screenshot() (string, error) {
	c.session.UpdateLastUsed()
	log := c.log.Scope("스크린샷 저장")

	if err := os.MkdirAll(c.opts.ScreenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}
	path := filepath.Join(c.opts.ScreenshotDir,
		fmt.Sprintf("manual_screenshot_%s.png", time.Now().Format("20060102_150405")))
	if _, err := c.session.Page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		log.Error("스크린샷 저장 중 오류 발생", zap.Error(err))
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	log.Success("스크린샷을 저장했습니다", zap.String("path", path))
	return path, nil
}

// ensureGeneratorPage navigates to the generation page when the session
// drifted elsewhere (model detail pages, galleries).
func (c *Crawler) ensureGeneratorPage(timeout float64) error {
	if strings.Contains(c.session.Page.URL(), "generator/image") {
		return nil
	}
	log := c.log.Scope("생성 페이지로 이동")
	if err := c.session.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: "생성",
	}).Click(); err != nil {
		return &InteractionError{Action: "open generator page", Err: err}
	}
	if err := c.session.Page.WaitForURL("**/generator/image", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(timeout),
	}); err != nil {
		return &InteractionError{Action: "wait for generator page", Err: err}
	}
	log.Success("생성 페이지 이동 완료")
	return nil
}

// errorScreenshot captures the page for post-mortem diagnostics. Best effort;
// returns the saved path or empty.
func (c *Crawler) errorScreenshot(prefix string) string {
	if err := os.MkdirAll(c.opts.ScreenshotDir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(c.opts.ScreenshotDir,
		fmt.Sprintf("%s_error_%d.png", prefix, time.Now().UnixMilli()))
	if _, err := c.session.Page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return ""
	}
	return path
}
