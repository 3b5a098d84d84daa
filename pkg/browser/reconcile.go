package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

// reconcilePlan is the minimal set of page mutations needed to move the
// active configuration to the desired one.
type reconcilePlan struct {
	// setModel selects the desired model through the market dialog
	setModel bool

	// setLoras clears and reapplies the LoRA set. A model change always
	// forces this: selecting a model resets the page's LoRA state.
	setLoras bool
}

func (p reconcilePlan) isNoop() bool {
	return !p.setModel && !p.setLoras
}

// planReconcile diffs the scraped active configuration against the desired
// one. Model comparison is by name, plus version when the desired version is
// non-empty. LoRA comparison is by name set only; ordering and weights do not
// trigger reapplication on their own.
func planReconcile(active ActiveConfig, desired DesiredConfig) reconcilePlan {
	var plan reconcilePlan
	if desired.ModelName != "" {
		if !strings.EqualFold(active.ModelName, desired.ModelName) {
			plan.setModel = true
		} else if desired.ModelVersion != "" && !strings.EqualFold(active.ModelVersion, desired.ModelVersion) {
			plan.setModel = true
		}
	}
	if plan.setModel {
		plan.setLoras = true
		return plan
	}
	if !sameLoraNameSet(active.LoraNames(), desired.LoraNames()) {
		plan.setLoras = true
	}
	return plan
}

// applyReconcilePlan runs the planned mutations in order, then reads the
// prompt field once the whole flow is done. Model and LoRA selection both
// populate trigger words into the prompt as a side effect, so the read must
// come after every mutation, not just after the model step.
func applyReconcilePlan(plan reconcilePlan, setModel, setLoras func() error, readPrompt func() string) (string, error) {
	if plan.setModel {
		if err := setModel(); err != nil {
			return "", err
		}
	}
	if plan.setLoras {
		if err := setLoras(); err != nil {
			return "", err
		}
	}
	return readPrompt(), nil
}

// Reconcile drives the active page configuration to the desired one and
// returns the trigger words the selection flow injected into the prompt
// field, if any. Already-matching configurations are left untouched.
func (c *Crawler) Reconcile(desired DesiredConfig) (string, error) {
	c.session.UpdateLastUsed()
	log := c.log.Scope("모델/LoRA 설정 동기화")

	active, err := c.ReadActiveConfig()
	if err != nil {
		return "", &ReconciliationError{Target: "active config", Err: err}
	}

	plan := planReconcile(active, desired)
	if plan.isNoop() {
		log.Success("현재 설정이 요청과 일치합니다. 변경하지 않습니다")
		return "", nil
	}

	triggerWords, err := applyReconcilePlan(plan,
		func() error {
			log.Info("모델 변경이 필요합니다",
				zap.String("from", active.ModelName), zap.String("to", desired.ModelName))
			if err := c.SetModel(desired.ModelName, desired.ModelVersion); err != nil {
				c.errorScreenshot("set_model")
				return err
			}
			return nil
		},
		func() error {
			log.Info("LoRA 재설정이 필요합니다",
				zap.Strings("from", active.LoraNames()), zap.Strings("to", desired.LoraNames()))
			if err := c.SetLoras(desired.Loras); err != nil {
				c.errorScreenshot("set_loras")
				return err
			}
			return nil
		},
		c.readPromptValue)
	if err != nil {
		return "", err
	}
	if triggerWords != "" {
		log.Info("트리거 단어 감지", zap.String("trigger", triggerWords))
	}

	log.Success("설정 동기화 완료")
	return triggerWords, nil
}

// readPromptValue reads the prompt textarea. Model and LoRA selection
// auto-insert trigger words there; callers prepend them to user prompts.
func (c *Crawler) readPromptValue() string {
	value, err := c.session.Page.Locator(promptTextareaSelector).InputValue()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// SetModel selects a model by name through the market search dialog. Version
// is matched by substring against the version listbox; empty version takes
// the first listed one.
func (c *Crawler) SetModel(name, version string) error {
	c.session.UpdateLastUsed()
	log := c.log.Scope(fmt.Sprintf("모델 선택: %s", name))

	if err := c.ensureGeneratorPage(DefaultTimeout); err != nil {
		return &ReconciliationError{Target: "model", Err: err}
	}

	marketDialog := marketDialogSelector
	if !c.cascade.ClickByText("모델 더 보기", Effect{DialogSelector: marketDialog}, 5*time.Second) {
		return &ReconciliationError{Target: "model", Err: fmt.Errorf("market dialog did not open")}
	}
	dialog := c.session.Page.Locator(marketDialog)

	if err := c.openMarketTab(dialog, log); err != nil {
		c.closeMarketDialog(dialog)
		return &ReconciliationError{Target: "model", Err: err}
	}
	if err := c.searchInDialog(dialog, `input[placeholder="모델 이름으로 검색"]`, name, log); err != nil {
		c.closeMarketDialog(dialog)
		return &ReconciliationError{Target: "model", Err: err}
	}

	// Exact card first; on miss fall back to scored selection over every
	// result title.
	result := dialog.Locator(fmt.Sprintf(`a:has-text(%q)`, name)).First()
	if err := result.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		picked, pickErr := c.pickSearchResult(dialog, `a`, name, log)
		if pickErr != nil {
			c.closeMarketDialog(dialog)
			return &ReconciliationError{Target: "model",
				Err: fmt.Errorf("no search result for %q: %w", name, pickErr)}
		}
		result = picked
	}
	if err := result.ScrollIntoViewIfNeeded(); err == nil {
		c.session.Page.WaitForTimeout(300)
	}
	if err := result.Click(); err != nil {
		c.closeMarketDialog(dialog)
		return &ReconciliationError{Target: "model", Err: fmt.Errorf("click search result: %w", err)}
	}

	if err := c.selectModelVersion(version, log); err != nil {
		log.Warn("버전 선택 실패. 기본 버전으로 진행합니다", zap.Error(err))
	}

	if !c.cascade.ClickByText("이 모델 사용", Effect{}, 5*time.Second) {
		return &ReconciliationError{Target: "model", Err: fmt.Errorf("use-model button not clickable")}
	}
	_ = dialog.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(10000),
	})
	c.session.Page.WaitForTimeout(1000)

	log.Success("모델 선택 완료")
	return nil
}

// selectModelVersion picks a version from the detail page's version listbox.
// Substring match against each option; an empty version takes the first
// listed option.
func (c *Crawler) selectModelVersion(version string, log *oplog.Logger) error {
	listbox := c.session.Page.Locator(`[role="listbox"], ul[class*="MuiList"]`).First()
	trigger := c.session.Page.Locator(`[aria-haspopup="listbox"]`).First()
	if visible, err := listbox.IsVisible(); err != nil || !visible {
		if err := trigger.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			return fmt.Errorf("open version listbox: %w", err)
		}
	}
	options := listbox.Locator(`[role="option"], li`)
	count, err := options.Count()
	if err != nil || count == 0 {
		return fmt.Errorf("version listbox empty")
	}
	if version == "" {
		if text, err := options.Nth(0).InnerText(); err == nil {
			log.Info("기본 버전 선택", zap.String("version", strings.TrimSpace(text)))
		}
		return options.Nth(0).Click()
	}
	for i := 0; i < count; i++ {
		text, err := options.Nth(i).InnerText()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), strings.ToLower(version)) {
			log.Info("버전 선택", zap.String("version", strings.TrimSpace(text)))
			return options.Nth(i).Click()
		}
	}
	return fmt.Errorf("version %q not in listbox", version)
}

// SetLoras replaces the page's active LoRA set with the desired one. The
// active set is cleared first; the desired set is then applied through the
// LoRA market dialog, weights last. Weight application failures are logged
// but not fatal.
func (c *Crawler) SetLoras(desired []DesiredLora) error {
	c.session.UpdateLastUsed()
	log := c.log.Scope(fmt.Sprintf("LoRA 설정 (%d개)", len(desired)))

	if err := c.ensureGeneratorPage(DefaultTimeout); err != nil {
		return &ReconciliationError{Target: "lora", Err: err}
	}

	active, err := c.ReadActiveConfig()
	if err != nil {
		return &ReconciliationError{Target: "lora", Err: err}
	}
	for _, l := range active.Loras {
		if err := c.removeLora(l.Name, log); err != nil {
			return &ReconciliationError{Target: "lora",
				Err: fmt.Errorf("remove active lora %q: %w", l.Name, err)}
		}
	}

	if len(desired) == 0 {
		log.Success("모든 LoRA가 제거되었습니다")
		return nil
	}
	if len(desired) > MaxActiveLoras {
		log.Warn(fmt.Sprintf("LoRA는 최대 %d개까지 적용됩니다. 초과분은 무시합니다", MaxActiveLoras))
		desired = desired[:MaxActiveLoras]
	}

	marketDialog := marketDialogSelector
	if !c.cascade.ClickByText("로라 더 보기", Effect{DialogSelector: marketDialog}, 5*time.Second) {
		return &ReconciliationError{Target: "lora", Err: fmt.Errorf("lora market dialog did not open")}
	}
	dialog := c.session.Page.Locator(marketDialog)
	defer c.closeMarketDialog(dialog)

	if err := c.openMarketTab(dialog, log); err != nil {
		return &ReconciliationError{Target: "lora", Err: err}
	}

	for _, want := range desired {
		if err := c.addLoraFromMarket(dialog, want.Name, log); err != nil {
			return &ReconciliationError{Target: "lora", Err: err}
		}
	}

	if err := c.confirmLoraDialog(dialog); err != nil {
		return &ReconciliationError{Target: "lora", Err: err}
	}

	for _, want := range desired {
		if want.Weight == nil {
			continue
		}
		if err := c.setLoraWeight(want.Name, *want.Weight); err != nil {
			log.Warn(fmt.Sprintf("'%s' 가중치 적용 실패. 기본값을 유지합니다", want.Name), zap.Error(err))
		} else {
			log.Success(fmt.Sprintf("'%s' 가중치 적용: %g", want.Name, *want.Weight))
		}
	}

	log.Success("LoRA 설정 완료")
	return nil
}

// addLoraFromMarket searches for one LoRA inside the open market dialog and
// clicks the best-matching enabled card.
func (c *Crawler) addLoraFromMarket(dialog playwright.Locator, name string, log *oplog.Logger) error {
	llog := log.Scope(fmt.Sprintf("LoRA 검색: %s", name))

	if err := c.searchInDialog(dialog, `input[placeholder="LoRA 이름으로 검색"]`, name, llog); err != nil {
		return err
	}

	// Disabled cards are already-applied LoRAs; skip them when scoring.
	cards := dialog.Locator(`div.virtuoso-grid-item:has(label:not(.Mui-disabled))`)
	if err := cards.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		return fmt.Errorf("no lora search result for %q: %w", name, err)
	}
	count, err := cards.Count()
	if err != nil || count == 0 {
		return fmt.Errorf("no lora search result for %q", name)
	}

	titles := make([]string, count)
	for i := 0; i < count; i++ {
		card := cards.Nth(i)
		if title, err := card.Locator(`[title]`).First().GetAttribute("title"); err == nil && title != "" {
			titles[i] = strings.TrimSpace(title)
			continue
		}
		if text, err := card.Locator(`p.font-semibold`).First().InnerText(); err == nil {
			titles[i] = strings.TrimSpace(text)
		}
	}

	idx, kind := chooseSearchResult(name, titles, c.opts.Reconciler.FuzzyThreshold)
	if idx < 0 {
		return fmt.Errorf("no usable lora card for %q", name)
	}
	switch kind {
	case matchExact:
		llog.Info("정확히 일치하는 결과를 선택합니다", zap.String("title", titles[idx]))
	case matchFuzzy:
		llog.Info("유사한 결과를 선택합니다", zap.String("title", titles[idx]))
	case matchFirst:
		llog.Warn("일치하는 결과가 없어 첫 번째 결과를 선택합니다", zap.String("title", titles[idx]))
	}

	picked := cards.Nth(idx)
	if err := picked.ScrollIntoViewIfNeeded(); err == nil {
		c.session.Page.WaitForTimeout(300)
	}
	if err := picked.Locator("a").First().Click(); err != nil {
		return fmt.Errorf("click lora card %q: %w", titles[idx], err)
	}
	c.session.Page.WaitForTimeout(500)
	llog.Success("LoRA 선택 완료")
	return nil
}

// removeLora removes one active LoRA card with the same 3-tier fallback used
// for boosters.
func (c *Crawler) removeLora(name string, log *oplog.Logger) error {
	log.Info(fmt.Sprintf("기존 LoRA 제거: %s", name))

	card := c.session.Page.Locator(
		fmt.Sprintf(`%s:has-text(%q)`, loraCardSelector, name)).First()
	if err := card.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(3000),
	}); err != nil {
		return fmt.Errorf("lora card %q not found: %w", name, err)
	}

	removeBtn := card.GetByRole(*playwright.AriaRoleButton).Last()
	if err := removeBtn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
		if err := removeBtn.Click(playwright.LocatorClickOptions{
			Force:   playwright.Bool(true),
			Timeout: playwright.Float(2000),
		}); err != nil {
			raw, jsErr := c.session.Page.Evaluate(`(name) => {
				const cards = Array.from(document.querySelectorAll('div.relative.flex.gap-3.bg-background-light.p-2.rounded-xl'));
				const target = cards.find(card => card.textContent.includes(name));
				if (target) {
					const buttons = target.querySelectorAll('button');
					if (buttons.length > 0) { buttons[buttons.length - 1].click(); return true; }
				}
				return false;
			}`, name)
			if clicked, _ := raw.(bool); jsErr != nil || !clicked {
				return fmt.Errorf("remove button for %q unreachable", name)
			}
		}
	}

	if err := card.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(5000),
	}); err != nil {
		return fmt.Errorf("lora card %q still present after removal", name)
	}
	return nil
}

// setLoraWeight writes a weight into the number input of an active LoRA card.
// Falls back to a full-page card scan when the card selector misses.
func (c *Crawler) setLoraWeight(name string, weight float64) error {
	weightStr := fmt.Sprintf("%g", weight)
	input := c.session.Page.Locator(
		fmt.Sprintf(`%s:has-text(%q)`, loraCardSelector, name)).First().
		Locator(`input.MuiInputBase-input.MuiInput-input[type="number"]`).First()

	if visible, err := input.IsVisible(); err != nil || !visible {
		raw, jsErr := c.session.Page.Evaluate(`({name, value}) => {
			const cards = Array.from(document.querySelectorAll('div.relative.flex.gap-3.bg-background-light.p-2.rounded-xl'));
			const target = cards.find(card => card.textContent.includes(name));
			if (!target) return false;
			const input = target.querySelector('input[type="number"]');
			if (!input) return false;
			const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
			setter.call(input, value);
			input.dispatchEvent(new Event('input', { bubbles: true }));
			input.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}`, map[string]interface{}{"name": name, "value": weightStr})
		if ok, _ := raw.(bool); jsErr != nil || !ok {
			return fmt.Errorf("weight input for %q not found", name)
		}
		return nil
	}

	if err := input.Fill(weightStr); err != nil {
		return fmt.Errorf("fill weight for %q: %w", name, err)
	}
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("commit weight for %q: %w", name, err)
	}
	c.session.Page.WaitForTimeout(300)
	return nil
}

// openMarketTab switches the open dialog to its market tab. Some dialogs land
// there already; a missing tab is treated as that case.
func (c *Crawler) openMarketTab(dialog playwright.Locator, log *oplog.Logger) error {
	tab := dialog.Locator(`button:has-text("마켓"), [role="tab"]:has-text("마켓")`).First()
	if visible, err := tab.IsVisible(); err != nil || !visible {
		return nil
	}
	if err := tab.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
		return fmt.Errorf("open market tab: %w", err)
	}
	log.Step("마켓 탭으로 전환했습니다")
	c.session.Page.WaitForTimeout(500)
	return nil
}

// searchInDialog fills the dialog's search input and submits. Some layouts
// hide the input behind a magnifier icon button; clicking it first reveals
// the field.
func (c *Crawler) searchInDialog(dialog playwright.Locator, inputSelector, query string, log *oplog.Logger) error {
	input := dialog.Locator(inputSelector).First()
	if visible, err := input.IsVisible(); err != nil || !visible {
		icon := dialog.Locator(`button:has(svg[data-testid="SearchIcon"]), button[aria-label="search"]`).First()
		if err := icon.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			return fmt.Errorf("search input unreachable: %w", err)
		}
	}
	if err := input.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	}); err != nil {
		return fmt.Errorf("search input not visible: %w", err)
	}
	if err := input.Fill(query); err != nil {
		return fmt.Errorf("fill search query: %w", err)
	}
	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("submit search query: %w", err)
	}
	log.Step(fmt.Sprintf("'%s' 검색을 실행했습니다", query))
	c.session.Page.WaitForTimeout(1500)
	return nil
}

// pickSearchResult scores every matching element's text against target and
// returns the chosen locator.
func (c *Crawler) pickSearchResult(dialog playwright.Locator, selector, target string, log *oplog.Logger) (playwright.Locator, error) {
	results := dialog.Locator(selector)
	count, err := results.Count()
	if err != nil || count == 0 {
		return nil, fmt.Errorf("no results")
	}
	titles := make([]string, count)
	for i := 0; i < count; i++ {
		if text, err := results.Nth(i).InnerText(); err == nil {
			titles[i] = strings.TrimSpace(text)
		}
	}
	idx, kind := chooseSearchResult(target, titles, c.opts.Reconciler.FuzzyThreshold)
	if idx < 0 {
		return nil, fmt.Errorf("no usable result")
	}
	if kind == matchFirst {
		log.Warn("일치하는 결과가 없어 첫 번째 결과를 선택합니다", zap.String("title", titles[idx]))
	}
	return results.Nth(idx), nil
}

// confirmLoraDialog commits the LoRA selection via the confirm button.
func (c *Crawler) confirmLoraDialog(dialog playwright.Locator) error {
	confirm := dialog.GetByRole(*playwright.AriaRoleButton, playwright.LocatorGetByRoleOptions{Name: "확인"})
	if err := confirm.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(5000)}); err != nil {
		return fmt.Errorf("confirm lora selection: %w", err)
	}
	_ = dialog.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(10000),
	})
	c.session.Page.WaitForTimeout(500)
	return nil
}

// closeMarketDialog best-effort closes a still-open market dialog so a failed
// reconciliation doesn't leave the page stuck behind a modal.
func (c *Crawler) closeMarketDialog(dialog playwright.Locator) {
	visible, err := dialog.IsVisible()
	if err != nil || !visible {
		return
	}
	if err := c.session.Page.Keyboard().Press("Escape"); err == nil {
		_ = dialog.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateHidden,
			Timeout: playwright.Float(3000),
		})
	}
}
