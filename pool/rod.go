package pool

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/jacostaf/tcg-ygoripper-sub000/config"
)

// RodLauncher launches Chromium through rod with stealth flags applied,
// satisfying the Launcher interface for the production pools.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher builds a launcher from browser configuration.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

func (r *RodLauncher) Launch() (Process, error) {
	l := launcher.New().
		Headless(r.cfg.Headless).
		NoSandbox(r.cfg.NoSandbox)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}

	// Storefronts fingerprint headless browsers aggressively; strip the
	// automation tells before the stealth JS takes over at page level.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}
	slog.Debug("browser launched", "control_url", controlURL)

	return &rodProcess{browser: browser, launcher: l, cfg: r.cfg}, nil
}

type rodProcess struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
}

func (p *rodProcess) NewContext() (BrowsingContext, error) {
	inc, err := p.browser.Incognito()
	if err != nil {
		return nil, err
	}
	return &rodContext{browser: inc, cfg: p.cfg}, nil
}

// Connected pings the browser over CDP. A crashed or killed Chromium stops
// answering GetVersion.
func (p *rodProcess) Connected() bool {
	_, err := proto.BrowserGetVersion{}.Call(p.browser)
	return err == nil
}

func (p *rodProcess) Close() error {
	err := p.browser.Close()
	p.launcher.Kill()
	return err
}

// rodContext wraps an incognito browser context so pages opened inside it
// share no cookies or storage with other checkouts.
type rodContext struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

func (c *rodContext) NewPage() (Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	router := setupBlocking(page, c.cfg.BlockResources, c.cfg.BlockAds)
	return &rodPage{page: page, router: router}, nil
}

func (c *rodContext) Close() error {
	// Closing the incognito context disposes every page in it.
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: c.browser.BrowserContextID,
	}.Call(c.browser)
}

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Eval(ctx context.Context, js string) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (p *rodPage) Screenshot() ([]byte, error) {
	return p.page.Screenshot(false, nil)
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Close() error {
	if p.router != nil {
		if err := p.router.Stop(); err != nil {
			slog.Warn("stopping hijack router failed", "error", err)
		}
	}
	return p.page.Close()
}
