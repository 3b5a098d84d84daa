package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

// Effect describes the observable side effect that proves a click landed.
// The target UI is asynchronous: a dispatched click can "succeed" as an event
// while the visual result lags, so the cascade never trusts a click call's
// return value when an effect is specified.
type Effect struct {
	// DialogSelector, when set, confirms success once a matching dialog
	// becomes visible
	DialogSelector string

	// ToggleSelector, when set, confirms success once the element's
	// aria-expanded attribute flips to true
	ToggleSelector string
}

// IsZero reports whether no observable effect was specified.
func (e Effect) IsZero() bool {
	return e.DialogSelector == "" && e.ToggleSelector == ""
}

// clickCandidate is one DOM button matching a text query, with its viewport
// bounding box at scan time.
type clickCandidate struct {
	outerHTML string
	x, y      float64
	w, h      float64
	visible   bool
}

func (c clickCandidate) centerX() float64 { return c.x + c.w/2 }
func (c clickCandidate) centerY() float64 { return c.y + c.h/2 }

const (
	effectPollInterval = 150.0 // milliseconds
	effectConfirmWait  = 2 * time.Second
)

// Cascade resolves abstract interaction intents against an unstable,
// selector-fragile SPA. Click targets are sometimes unreachable by standard
// synthetic clicks (overlay intercepts, custom pointer handling), so each
// intent escalates through strategies until one produces the expected effect
// or all are exhausted. Driver errors inside a tier are swallowed and treated
// as "try the next tier".
type Cascade struct {
	page          playwright.Page
	context       playwright.BrowserContext
	log           *oplog.Logger
	screenshotDir string
}

// NewCascade builds a cascade bound to the session's page.
func NewCascade(session *Session, log *oplog.Logger) *Cascade {
	if log == nil {
		log = oplog.Nop()
	}
	return &Cascade{
		page:          session.Page,
		context:       session.Context,
		log:           log,
		screenshotDir: "screenshot",
	}
}

// ClickByText finds a button whose visible text includes text and clicks it,
// escalating through strategies until effect is observed. Returns true once
// the effect (or, with a zero effect, any successful click) is confirmed.
func (c *Cascade) ClickByText(text string, effect Effect, timeout time.Duration) bool {
	log := c.log.Scope(fmt.Sprintf("버튼 찾기 및 클릭: %q", text))

	if c.tryLocatorClick(text, effect, log) {
		return true
	}

	candidates, err := c.scanCandidates(text)
	if err != nil {
		log.Error("후보 스캔 실패", zap.Error(err))
		c.captureFailure(text, log)
		return false
	}
	log.Info("후보 스캔 완료", zap.Int("count", len(candidates)))
	for i, cand := range candidates {
		log.Detail(fmt.Sprintf("candidate[%d] visible=%t bbox=(%.0f,%.0f,%.0f,%.0f) %s",
			i, cand.visible, cand.x, cand.y, cand.w, cand.h, cleanSnippet(cand.outerHTML)))
	}
	if len(candidates) == 0 {
		log.Warn("클릭할 후보가 없습니다")
		return false
	}

	for i, cand := range candidates {
		clog := log.Scope(fmt.Sprintf("후보 %d 클릭 시도", i))
		c.scrollToPoint(cand.centerX(), cand.centerY())

		if c.tryCDPClick(cand) && c.confirm(effect) {
			clog.Success("CDP 이벤트로 클릭 성공")
			return true
		}
		if c.tryMouseClick(cand) && c.confirm(effect) {
			clog.Success("마우스 시퀀스로 클릭 성공")
			return true
		}
		if c.tryPointerDispatch(cand) && c.confirm(effect) {
			clog.Success("Pointer 이벤트 디스패치로 클릭 성공")
			return true
		}
		if c.tryJSClick(cand) && c.confirm(effect) {
			clog.Success("JavaScript 클릭으로 성공")
			return true
		}
	}

	log.Error("모든 클릭 방법 실패")
	c.captureFailure(text, log)
	return false
}

// WaitForEffect polls for the effect until it is observed or timeout elapses.
func (c *Cascade) WaitForEffect(effect Effect, timeout time.Duration) bool {
	if effect.IsZero() {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if effect.DialogSelector != "" {
			if visible, err := c.page.Locator(effect.DialogSelector).First().IsVisible(); err == nil && visible {
				return true
			}
		}
		if effect.ToggleSelector != "" {
			if ae, err := c.page.Locator(effect.ToggleSelector).First().GetAttribute("aria-expanded"); err == nil && strings.EqualFold(ae, "true") {
				return true
			}
		}
		c.page.WaitForTimeout(effectPollInterval)
	}
	return false
}

// confirm checks the click's side effect; with no effect specified the click
// call's own success is all there is to trust.
func (c *Cascade) confirm(effect Effect) bool {
	if effect.IsZero() {
		return true
	}
	return c.WaitForEffect(effect, effectConfirmWait)
}

// tryLocatorClick is the fast path: semantic locate by text, plain click,
// then a bounding-box mouse sequence if the plain click is intercepted.
func (c *Cascade) tryLocatorClick(text string, effect Effect, log *oplog.Logger) bool {
	btn := c.page.Locator(fmt.Sprintf(`button:has-text(%q)`, text)).First()
	if err := btn.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(1000),
	}); err != nil {
		return false
	}
	box, err := btn.BoundingBox()
	if err != nil || box == nil {
		return false
	}

	if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(1500)}); err == nil {
		if c.confirm(effect) {
			log.Success("로케이터로 클릭 성공")
			return true
		}
	}

	mouse := c.page.Mouse()
	if err := mouse.Move(box.X+box.Width/2, box.Y+box.Height/2); err != nil {
		return false
	}
	if err := mouse.Down(); err != nil {
		return false
	}
	c.page.WaitForTimeout(30)
	if err := mouse.Up(); err != nil {
		return false
	}
	if c.confirm(effect) {
		log.Success("마우스 시퀀스로 클릭 성공")
		return true
	}
	return false
}

// scanCandidates collects every button whose normalized text contains text,
// with bounding boxes for the point-based strategies.
func (c *Cascade) scanCandidates(text string) ([]clickCandidate, error) {
	raw, err := c.page.Evaluate(`(txt) => {
		const normalized = s => s && s.replace(/\s+/g, ' ').trim().toLowerCase();
		const hits = [];
		for (const b of Array.from(document.querySelectorAll('button'))) {
			const t = normalized(b.textContent || '');
			if (t && t.includes(normalized(txt))) {
				const r = b.getBoundingClientRect();
				hits.push({
					outer: b.outerHTML.slice(0, 800),
					x: r.x, y: r.y, w: r.width, h: r.height,
					visible: !!(r.width && r.height),
				});
			}
		}
		return hits;
	}`, text)
	if err != nil {
		return nil, err
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected candidate scan result %T", raw)
	}
	candidates := make([]clickCandidate, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		candidates = append(candidates, clickCandidate{
			outerHTML: asString(m["outer"]),
			x:         asFloat(m["x"]),
			y:         asFloat(m["y"]),
			w:         asFloat(m["w"]),
			h:         asFloat(m["h"]),
			visible:   asBool(m["visible"]),
		})
	}
	return candidates, nil
}

func (c *Cascade) scrollToPoint(x, y float64) {
	_, _ = c.page.Evaluate(`({x, y}) => {
		const el = document.elementFromPoint(x, y);
		if (el) el.scrollIntoView({block: 'center', inline: 'center', behavior: 'instant'});
	}`, map[string]interface{}{"x": x, "y": y})
	c.page.WaitForTimeout(120)
}

// tryCDPClick sends a debug-protocol mouse sequence. This bypasses JS-level
// event interception that defeats synthetic clicks.
func (c *Cascade) tryCDPClick(cand clickCandidate) bool {
	cdp, err := c.context.NewCDPSession(c.page)
	if err != nil {
		return false
	}
	defer func() { _ = cdp.Detach() }()

	x, y := cand.centerX(), cand.centerY()
	events := []map[string]interface{}{
		{"type": "mouseMoved", "x": x, "y": y},
		{"type": "mousePressed", "x": x, "y": y, "button": "left", "clickCount": 1},
		{"type": "mouseReleased", "x": x, "y": y, "button": "left", "clickCount": 1},
	}
	for _, params := range events {
		if _, err := cdp.Send("Input.dispatchMouseEvent", params); err != nil {
			return false
		}
	}
	c.page.WaitForTimeout(150)
	return true
}

// tryMouseClick sends a trusted-input mouse sequence at the candidate center.
func (c *Cascade) tryMouseClick(cand clickCandidate) bool {
	mouse := c.page.Mouse()
	if err := mouse.Move(cand.centerX(), cand.centerY()); err != nil {
		return false
	}
	if err := mouse.Down(); err != nil {
		return false
	}
	c.page.WaitForTimeout(40)
	if err := mouse.Up(); err != nil {
		return false
	}
	c.page.WaitForTimeout(150)
	return true
}

// tryPointerDispatch dispatches a synthetic PointerEvent sequence directly on
// the DOM node under the candidate center.
func (c *Cascade) tryPointerDispatch(cand clickCandidate) bool {
	raw, err := c.page.Evaluate(`({x, y}) => {
		const el = document.elementFromPoint(x, y);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const cx = Math.floor(r.left + r.width / 2);
		const cy = Math.floor(r.top + r.height / 2);
		for (const type of ['pointerover', 'pointerenter', 'pointerdown', 'pointerup', 'click']) {
			el.dispatchEvent(new PointerEvent(type, {
				bubbles: true, cancelable: true,
				clientX: cx, clientY: cy,
				pointerId: 1, pointerType: 'mouse',
			}));
		}
		return true;
	}`, map[string]interface{}{"x": cand.centerX(), "y": cand.centerY()})
	if err != nil {
		return false
	}
	ok, _ := raw.(bool)
	if ok {
		c.page.WaitForTimeout(150)
	}
	return ok
}

// tryJSClick is the last resort: a direct .click() on the element under the
// candidate center.
func (c *Cascade) tryJSClick(cand clickCandidate) bool {
	raw, err := c.page.Evaluate(`({x, y}) => {
		const el = document.elementFromPoint(x, y);
		if (el) { el.click(); return true; }
		return false;
	}`, map[string]interface{}{"x": cand.centerX(), "y": cand.centerY()})
	if err != nil {
		return false
	}
	ok, _ := raw.(bool)
	if ok {
		c.page.WaitForTimeout(150)
	}
	return ok
}

// captureFailure saves a page screenshot for diagnostics. Best effort.
func (c *Cascade) captureFailure(text string, log *oplog.Logger) {
	if err := os.MkdirAll(c.screenshotDir, 0o755); err != nil {
		return
	}
	path := filepath.Join(c.screenshotDir, fmt.Sprintf("click_failure_%d.png", time.Now().UnixMilli()))
	if _, err := c.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)}); err != nil {
		log.Detail("실패 스크린샷 저장 실패", zap.Error(err))
		return
	}
	log.Info("실패 스크린샷 저장", zap.String("path", path))
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
