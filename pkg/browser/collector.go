package browser

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oakbyte/pixgen/pkg/oplog"
)

const (
	generateNavTimeout = 30000.0 // milliseconds
	collectTick        = 500 * time.Millisecond
	emptyPromptToast   = `div.Toastify__toast--warning:has-text("프롬프트는 비워 둘 수 없습니다.")`
)

// collectState accumulates artifacts for one generation task. The response
// listener runs on the driver's event goroutine, save tasks on their own
// goroutines; all access goes through the mutex.
type collectState struct {
	mu    sync.Mutex
	seen  map[string]bool
	saved []Artifact
}

// markSeen records url and reports whether it was new. A second response with
// the same URL within one task is a no-op.
func (s *collectState) markSeen(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[url] {
		return false
	}
	s.seen[url] = true
	return true
}

func (s *collectState) add(a Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, a)
}

func (s *collectState) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *collectState) artifacts() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artifact(nil), s.saved...)
}

// GenerateAndCollect submits the prompt and harvests every generated-image
// payload observed on the network, deduplicated by URL. Completion is decided
// by an idle-time heuristic with a hard ceiling; when no network artifact is
// ever observed an element screenshot of the last rendered image is returned
// as a single synthetic artifact.
func (c *Crawler) GenerateAndCollect(task GenerationTask) ([]Artifact, error) {
	c.session.UpdateLastUsed()
	log := c.log.Scope(fmt.Sprintf("이미지 생성 실행: %.30s", task.Prompt))

	pattern, err := glob.Compile(c.opts.Collector.URLPattern)
	if err != nil {
		return nil, &GenerationError{Reason: "invalid artifact URL pattern", Err: err}
	}
	if err := os.MkdirAll(task.OutputDir, 0o755); err != nil {
		return nil, &GenerationError{Reason: "cannot create output directory", Err: err}
	}

	state := &collectState{seen: make(map[string]bool)}
	var saves errgroup.Group

	handler := func(response playwright.Response) {
		respURL := response.URL()
		if !pattern.Match(respURL) || !state.markSeen(respURL) {
			return
		}
		saves.Go(func() error {
			outPath := uniqueOutputPath(task.OutputDir, respURL)
			log.Info("다운로드 감지", zap.String("url", respURL), zap.String("path", outPath))
			body, err := response.Body()
			if err != nil {
				log.Error("응답 본문 읽기 실패", zap.Error(err))
				return nil
			}
			if err := os.WriteFile(outPath, body, 0o644); err != nil {
				log.Error("저장 실패", zap.Error(err))
				return nil
			}
			state.add(Artifact{SourceURL: respURL, SavedPath: outPath})
			log.Success("저장 완료", zap.String("path", outPath))
			return nil
		})
	}

	// Register before the submit so the first response cannot be missed,
	// and make sure the listener never outlives this call.
	c.session.Page.OnResponse(handler)
	defer c.session.Page.RemoveListener("response", handler)

	if err := c.submitPrompt(task.Prompt, log); err != nil {
		c.errorScreenshot("generation")
		c.session.Page.RemoveListener("response", handler)
		_ = saves.Wait()
		return nil, err
	}

	wlog := log.Scope("이미지 응답 대기")
	if completed := waitForQuiescence(state.count,
		c.opts.Collector.IdleWait, c.opts.Collector.TotalTimeout, collectTick); completed {
		wlog.Info("일정 시간 동안 새 이미지가 감지되지 않아 대기를 중단합니다")
	} else if state.count() == 0 {
		wlog.Warn("이미지 응답이 없습니다. 타임아웃",
			zap.Duration("waited", c.opts.Collector.TotalTimeout))
	}

	// Stop listening before joining so a late response cannot spawn a save
	// task after the join; then wait out in-flight writes.
	c.session.Page.RemoveListener("response", handler)
	_ = saves.Wait()

	artifacts := state.artifacts()
	if len(artifacts) == 0 {
		fallback, err := c.fallbackScreenshot(task.OutputDir, log)
		if err != nil {
			return nil, &GenerationError{Reason: "no artifacts and screenshot fallback failed", Err: err}
		}
		artifacts = append(artifacts, fallback)
	}

	log.Info("총 저장된 항목", zap.Int("count", len(artifacts)))
	return artifacts, nil
}

// submitPrompt fills and submits the prompt, retrying exactly once when the
// empty-prompt validation toast fires. A second occurrence is fatal.
func (c *Crawler) submitPrompt(prompt string, log *oplog.Logger) error {
	if err := c.ensureGeneratorPage(generateNavTimeout); err != nil {
		return err
	}

	textarea := c.session.Page.Locator(promptTextareaSelector)
	if err := textarea.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(generateNavTimeout),
	}); err != nil {
		return &InteractionError{Action: "generator page not ready", Err: err}
	}

	fillAndSubmit := func() error {
		log.Step("프롬프트를 입력했습니다")
		if err := textarea.Fill(prompt); err != nil {
			return &InteractionError{Action: "fill prompt", Err: err}
		}
		if err := c.session.Page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
			Name: "생성!",
		}).Click(); err != nil {
			return &InteractionError{Action: "click generate", Err: err}
		}
		return nil
	}

	if err := fillAndSubmit(); err != nil {
		return err
	}

	if !c.emptyPromptToastShowing() {
		log.Success("생성 요청 성공. 이미지 응답을 대기합니다")
		return nil
	}

	log.Warn("'프롬프트 비워둘 수 없음' 알림 감지. 재시도합니다")
	c.dismissEmptyPromptToast()
	if err := fillAndSubmit(); err != nil {
		return err
	}
	if c.emptyPromptToastShowing() {
		return &GenerationError{Reason: "prompt rejected twice by validation"}
	}
	log.Success("재시도 성공. 이미지 응답을 대기합니다")
	return nil
}

func (c *Crawler) emptyPromptToastShowing() bool {
	err := c.session.Page.Locator(emptyPromptToast).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(2000),
	})
	return err == nil
}

func (c *Crawler) dismissEmptyPromptToast() {
	toast := c.session.Page.Locator(emptyPromptToast)
	closeBtn := toast.Locator(`button[aria-label="close"]`)
	if visible, err := closeBtn.IsVisible(); err == nil && visible {
		if err := closeBtn.Click(); err == nil {
			_ = toast.WaitFor(playwright.LocatorWaitForOptions{
				State:   playwright.WaitForSelectorStateHidden,
				Timeout: playwright.Float(2000),
			})
		}
	}
}

// fallbackScreenshot captures the last visible generated-image element when
// no network payload was ever observed.
func (c *Crawler) fallbackScreenshot(outputDir string, log *oplog.Logger) (Artifact, error) {
	slog := log.Scope("대체 이미지 저장 (스크린샷)")
	slog.Warn("원본 이미지 응답을 찾지 못했습니다. UI에서 직접 이미지를 저장합니다")

	images := c.session.Page.Locator(`div[class*="relative"] img[class*="w-full"]`)
	if err := images.Last().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(10000),
	}); err != nil {
		return Artifact{}, fmt.Errorf("no generated image element: %w", err)
	}
	count, err := images.Count()
	if err != nil || count == 0 {
		return Artifact{}, fmt.Errorf("no generated image element found")
	}

	outPath, err := filepath.Abs(filepath.Join(outputDir,
		fmt.Sprintf("pixai_fallback_%d.png", time.Now().Unix())))
	if err != nil {
		return Artifact{}, err
	}
	if _, err := images.Nth(count - 1).Screenshot(playwright.LocatorScreenshotOptions{
		Path: playwright.String(outPath),
	}); err != nil {
		return Artifact{}, fmt.Errorf("element screenshot failed: %w", err)
	}
	slog.Success("요소 스크린샷 저장", zap.String("path", outPath))
	return Artifact{SavedPath: outPath, Fallback: true}, nil
}

// waitForQuiescence polls countFn every tick until total elapses or, once at
// least one artifact exists, no new one arrived for idle. Returns true when
// it stopped on the idle heuristic, false when the ceiling was hit.
func waitForQuiescence(countFn func() int, idle, total, tick time.Duration) bool {
	start := time.Now()
	lastSeen := start
	prev := 0
	for time.Since(start) < total {
		time.Sleep(tick)
		if n := countFn(); n != prev {
			prev = n
			lastSeen = time.Now()
		}
		if prev > 0 && time.Since(lastSeen) > idle {
			return true
		}
	}
	return false
}

// uniqueOutputPath derives a file path from the URL's basename, appending a
// numeric suffix while the name collides with an existing file.
func uniqueOutputPath(dir, rawURL string) string {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("pixai_%d", time.Now().UnixMilli())
	}

	outPath := filepath.Join(dir, name+".png")
	for counter := 1; ; counter++ {
		if _, err := os.Stat(outPath); os.IsNotExist(err) {
			return outPath
		}
		outPath = filepath.Join(dir, fmt.Sprintf("%s_%d.png", name, counter))
	}
}
