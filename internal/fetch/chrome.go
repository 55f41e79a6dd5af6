package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"resume-workflow/internal/shared/telemetry"
)

// ChromeFetcher loads pages in headless Chromium so script-rendered job
// boards return their real content.
type ChromeFetcher struct {
	ExecPath  string
	Wait      time.Duration
	Timeout   time.Duration
	UserAgent string
}

// NewChromeFetcher returns a fetcher with the given browser path and
// post-load settle time.
func NewChromeFetcher(execPath string, wait time.Duration) *ChromeFetcher {
	return &ChromeFetcher{
		ExecPath:  execPath,
		Wait:      wait,
		Timeout:   60 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// Fetch navigates to rawURL and returns the document title and body text.
func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(f.UserAgent),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, f.Timeout)
	defer cancelRun()

	status := &documentStatus{}
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			status.observe(resp)
		}
	})

	var title, text, finalURL string
	start := time.Now()
	err = chromedp.Run(runCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			status.setFrame(tree.Frame.ID)
			return nil
		}),
		chromedp.Navigate(target.String()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.Wait),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		return Page{}, fmt.Errorf("%w: chrome %s: %v", ErrFetch, target, err)
	}

	code := status.get()
	if code >= 400 {
		return Page{}, &StatusError{URL: target.String(), Status: code}
	}

	page := Page{
		URL:      target.String(),
		FinalURL: finalURL,
		Status:   code,
		Title:    title,
		Text:     normalizeText(text),
	}
	telemetry.Info("fetch.page_loaded", map[string]any{
		"fetcher":     "chrome",
		"url":         page.URL,
		"final_url":   page.FinalURL,
		"status":      page.Status,
		"text_len":    len(page.Text),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return page, nil
}

// documentStatus tracks the HTTP status of the main frame's document.
// Iframe documents are ignored so an embedded 404 cannot fail the page.
type documentStatus struct {
	mu     sync.Mutex
	frame  cdp.FrameID
	status int
}

func (d *documentStatus) setFrame(id cdp.FrameID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = id
}

func (d *documentStatus) observe(resp *network.EventResponseReceived) {
	if resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frame == "" || resp.FrameID != d.frame {
		return
	}
	// Redirect chains report several documents; the last one is the page.
	d.status = int(resp.Response.Status)
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
