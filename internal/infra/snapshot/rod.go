package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config for the headless browser.
type Config struct {
	// BrowserBin is the chrome binary; empty lets rod find or download one.
	BrowserBin string
	// ControlURL connects to an already running browser instead of launching.
	ControlURL string
	// Timeout caps one capture; zero means the request context only.
	Timeout time.Duration
	Width   int
	Height  int
}

// Rod captures HTML elements with a lazily started headless Chrome.
// Safe for concurrent use; each capture gets its own incognito page.
type Rod struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewRod(cfg Config, logger *zap.Logger) *Rod {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 800
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rod{cfg: cfg, logger: logger}
}

// Capture loads html into a blank page and screenshots the selector at 2x
// scale on a white background.
func (r *Rod) Capture(ctx context.Context, html []byte, selector string) ([]byte, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	browser, err := r.start(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx)
	defer func() { _ = page.Close() }()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.cfg.Width,
		Height:            r.cfg.Height,
		DeviceScaleFactor: 2,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", selector, err)
	}
	return png, nil
}

func (r *Rod) start(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	controlURL := r.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if r.cfg.BrowserBin != "" {
			l = l.Bin(r.cfg.BrowserBin)
		}
		u, err := l.Context(context.WithoutCancel(ctx)).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		r.launcher = l
	}

	// browser outlives the request that started it
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if r.launcher != nil {
			r.launcher.Kill()
			r.launcher = nil
		}
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = b
	r.logger.Info("headless chrome ready", zap.String("control_url", controlURL))
	return b, nil
}

// Close shuts the browser down.
func (r *Rod) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}

// ErrDisabled is returned by Disabled.Capture.
var ErrDisabled = errors.New("snapshots are disabled")

// Disabled is the snapshotter used when snapshot.enabled is false.
type Disabled struct{}

func (Disabled) Capture(context.Context, []byte, string) ([]byte, error) { return nil, ErrDisabled }
