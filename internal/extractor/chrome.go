package extractor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mokoia/spawatch/internal/logger"
)

// ChromeOptions configures the headless-Chrome source.
type ChromeOptions struct {
	// URL is the venue's calendar page; the target date is appended as a
	// query parameter and the rendered document is treated as opaque.
	URL       string
	DateParam string
	// Headless toggles a visible session for interactive debugging; the
	// extraction behavior is identical either way.
	Headless          bool
	NavigationTimeout time.Duration
	RenderWait        time.Duration
	// Capacity converts "N available" into a booked count.
	Capacity int
}

// ChromeSource drives a real Chrome session against the booking calendar.
// The browser is a scoped resource: acquired once via Start, reused across
// fetches within a run, and released by Close on every exit path.
type ChromeSource struct {
	opts          ChromeOptions
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewChromeSource builds an unstarted source. Call Start before fetching.
func NewChromeSource(opts ChromeOptions) *ChromeSource {
	if opts.DateParam == "" {
		opts.DateParam = "date"
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = 3 * time.Second
	}
	return &ChromeSource{opts: opts}
}

// Start launches the browser session.
func (c *ChromeSource) Start(ctx context.Context) error {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Launch eagerly so a missing Chrome binary fails the run up front
	// instead of on the first fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	c.browserCtx = browserCtx
	c.allocCancel = allocCancel
	c.browserCancel = browserCancel
	logger.Info("Browser session started (headless=%v)", c.opts.Headless)
	return nil
}

// Close releases the browser session. Safe to call on an unstarted source.
func (c *ChromeSource) Close() {
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.browserCtx = nil
	logger.Debug("Browser session closed")
}

// slotDTO is the shape the in-page extraction script returns per slot.
type slotDTO struct {
	Hour int    `json:"hour"`
	Text string `json:"text"`
}

// extractScript walks the rendered widget for elements carrying an hour
// marker and returns each slot's surrounding text for Go-side parsing.
const extractScript = `(() => {
	const out = [];
	const seen = new Set();
	let pool = document.querySelectorAll('[class*="time"], [class*="slot"], [class*="hour"]');
	if (pool.length === 0) {
		pool = document.querySelectorAll('body *');
	}
	for (const el of pool) {
		const text = (el.innerText || '').trim();
		if (!text || text.length > 200) continue;
		const m = text.match(/(\d{1,2}):00/);
		if (!m) continue;
		const hour = parseInt(m[1], 10);
		if (seen.has(hour)) continue;
		seen.add(hour);
		out.push({hour: hour, text: text});
	}
	return out;
})()`

// FetchRawSlots navigates to the calendar for one date and parses the
// rendered slots. Timeouts, navigation errors, and empty renders come back
// as *TransientError; a malformed widget payload is unrecoverable.
func (c *ChromeSource) FetchRawSlots(ctx context.Context, date time.Time) ([]RawSlot, error) {
	if c.browserCtx == nil {
		return nil, errors.New("browser session not started")
	}

	fetchCtx, cancel := context.WithTimeout(c.browserCtx, c.opts.NavigationTimeout)
	defer cancel()
	// Honor run-level cancellation between navigations.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var dtos []slotDTO
	err := chromedp.Run(fetchCtx,
		chromedp.Navigate(c.urlFor(date)),
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.opts.RenderWait),
		chromedp.Evaluate(extractScript, &dtos),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransientError{Kind: KindTimeout, Err: err}
		}
		return nil, &TransientError{Kind: KindNavigation, Err: err}
	}

	slots := make([]RawSlot, 0, len(dtos))
	for _, dto := range dtos {
		if dto.Hour < 0 || dto.Hour > 23 {
			continue
		}
		booked, indeterminate := parseSlotText(dto.Text, c.opts.Capacity)
		slots = append(slots, RawSlot{
			HourOfDay:     dto.Hour,
			Booked:        booked,
			Indeterminate: indeterminate,
			Text:          dto.Text,
		})
	}
	return slots, nil
}

// CaptureScreenshot grabs the current page render for diagnostics.
func (c *ChromeSource) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	if c.browserCtx == nil {
		return nil, errors.New("browser session not started")
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	shotCtx, cancel := context.WithTimeout(c.browserCtx, timeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

func (c *ChromeSource) urlFor(date time.Time) string {
	sep := "?"
	if strings.Contains(c.opts.URL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", c.opts.URL, sep, c.opts.DateParam, date.Format("2006-01-02"))
}

var (
	availablePattern = regexp.MustCompile(`(\d+)\s*available`)
	bookedPattern    = regexp.MustCompile(`(\d+)\s*booked`)
)

// parseSlotText converts a slot's widget text into a booked count.
// "Fully booked"/"sold out" means every spa is taken; "N available" is
// inverted against capacity. Anything else is indeterminate; the
// normalizer records it as unknown rather than guessing.
func parseSlotText(text string, capacity int) (booked int, indeterminate bool) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "fully booked") || strings.Contains(lower, "sold out") {
		return capacity, false
	}
	if m := availablePattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, true
		}
		return capacity - n, false
	}
	if m := bookedPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, true
		}
		return n, false
	}
	return 0, true
}
