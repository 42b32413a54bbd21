package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// TypeVisualInspection 是页面视觉检查工具的类型标识。
const TypeVisualInspection = "visual_inspection"

// VisualInspection 通过 chromedp 打开页面，提取可见文本并截屏。
// 每次调用使用独立的浏览器上下文，调用结束即释放。
type VisualInspection struct {
	remoteURL string
	headless  bool
	timeout   time.Duration
}

// NewVisualInspection 创建视觉检查工具。
// 配置了 remote_url 时连接远程浏览器，否则本地启动。
func NewVisualInspection(opts Options, config map[string]any) (Tool, error) {
	remoteURL := opts.BrowserRemoteURL
	if raw, found := config["remote_url"]; found {
		if value, isString := raw.(string); isString {
			remoteURL = value
		}
	}
	timeout := 30 * time.Second
	if raw, found := config["timeout_seconds"]; found {
		if seconds, isNumber := raw.(float64); isNumber && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}
	}
	return &VisualInspection{
		remoteURL: remoteURL,
		headless:  opts.BrowserHeadless,
		timeout:   timeout,
	}, nil
}

func (v *VisualInspection) Type() string {
	return TypeVisualInspection
}

// Execute 打开 params 中的 URL 并检查页面。
// params: url (必填), selector (可选，限定提取范围),
// screenshot (可选), full_page (可选)。
func (v *VisualInspection) Execute(ctx context.Context, params map[string]any) *Result {
	url, _ := params["url"].(string)
	if url == "" {
		return fail("missing required parameter: url")
	}
	selector, _ := params["selector"].(string)
	wantScreenshot, _ := params["screenshot"].(bool)
	fullPage, _ := params["full_page"].(bool)

	browserCtx, cleanup := v.newBrowserContext(ctx)
	defer cleanup()

	runCtx, cancel := context.WithTimeout(browserCtx, v.timeout)
	defer cancel()

	extractTarget := "document.body"
	if selector != "" {
		extractTarget = fmt.Sprintf("document.querySelector(%q)", selector)
	}

	var title, text string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Title(&title),
		chromedp.Evaluate(fmt.Sprintf("(%s)?.innerText ?? ''", extractTarget), &text),
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fail(fmt.Sprintf("failed to inspect page: %v", err))
	}

	payload := map[string]any{
		"url":   url,
		"title": title,
		"text":  text,
	}

	if wantScreenshot {
		encoded, err := captureScreenshot(runCtx, fullPage)
		if err != nil {
			return fail(fmt.Sprintf("failed to capture screenshot: %v", err))
		}
		payload["screenshot_base64"] = encoded
	}

	return ok(payload)
}

// newBrowserContext 分配一个一次性的浏览器上下文。
func (v *VisualInspection) newBrowserContext(ctx context.Context) (context.Context, func()) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if v.remoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, v.remoteURL)
	} else {
		opts := append(append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...),
			chromedp.Flag("headless", v.headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 720),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	return browserCtx, func() {
		browserCancel()
		allocCancel()
	}
}

// captureScreenshot 以 JPEG 截取页面并返回 base64 编码。
func captureScreenshot(ctx context.Context, fullPage bool) (string, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 80)
	} else {
		action = chromedp.ActionFunc(func(actx context.Context) error {
			data, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(80).
				Do(actx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		})
	}
	if err := chromedp.Run(ctx, action); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
