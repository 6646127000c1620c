// Package browserprobe drives a headless Chrome at a page that loads the
// foldscreen shim and reads back what the page sees.
package browserprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// Options configures a probe run.
type Options struct {
	URL        string
	Viewport   schema.Viewport
	ChromePath string
	Timeout    time.Duration
	// Settle is how long to wait after the page is ready, and again after an
	// update, for debounced changes to reach the page.
	Settle time.Duration
	// Update, when set, is posted to the page as an update message.
	Update *schema.StatePatch
}

// Result is what the page reported.
type Result struct {
	Viewport       schema.Viewport  `json:"viewport"`
	State          schema.State     `json:"state"`
	WindowSegments []schema.Segment `json:"windowSegments"`
	Seq            uint64           `json:"seq"`
}

const readScript = `(() => ({
  viewport: { width: window.innerWidth, height: window.innerHeight },
  state: window.foldscreen.state(),
  seq: window.foldscreen.seq,
  windowSegments: window.getWindowSegments().map(s => ({ top: s.top, left: s.left, width: s.width, height: s.height })),
}))()`

// Run navigates to opts.URL and returns the geometry seen by the page.
func Run(ctx context.Context, opts Options) (Result, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return Result{}, errors.New("probe url is required")
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		return Result{}, fmt.Errorf("%w: probe viewport must be positive", schema.ErrInvalidArgument)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	log := pslog.Ctx(ctx).With("url", opts.URL)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ChromePath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
	}))
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return Result{}, fmt.Errorf("start chrome: %w", err)
	}
	log.Debug("probe started", "width", opts.Viewport.Width, "height", opts.Viewport.Height)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.Poll(`window.foldscreen && window.foldscreen.ready`, nil, chromedp.WithPollingTimeout(opts.Timeout)),
		chromedp.Sleep(opts.Settle),
	}
	if opts.Update != nil {
		payload, err := json.Marshal(schema.UpdateMessage{Action: schema.ActionUpdate, Value: *opts.Update})
		if err != nil {
			return Result{}, err
		}
		actions = append(actions,
			chromedp.Evaluate(fmt.Sprintf(`window.postMessage(%s, "*")`, payload), nil),
			chromedp.Sleep(opts.Settle),
		)
	}
	var result Result
	actions = append(actions, chromedp.Evaluate(readScript, &result))
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", opts.URL, err)
	}
	log.Info("probe done", "segments", len(result.WindowSegments), "spanning", result.State.SpanningMode, "seq", result.Seq)
	return result, nil
}
