package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

const extractJS = `() => {
	const meta = document.querySelector('meta[name="description"]');
	const hs = Array.from(document.querySelectorAll('h1, h2, h3'))
		.map((h) => (h && h.innerText ? h.innerText.trim() : ''))
		.filter(Boolean)
		.slice(0, 25);
	return {
		title: document.title || '',
		meta: meta ? meta.getAttribute('content') || '' : '',
		headings: hs,
		body: document.body ? document.body.innerText : '',
	};
}`

var _ Fetcher = (*BrowserFetcher)(nil)

// BrowserFetcher renders pages in one shared headless Chrome.
// The browser is launched on first use and relaunched when it stops answering.
type BrowserFetcher struct {
	mu      sync.Mutex
	bin     string
	browser *rod.Browser
	launch  *launcher.Launcher
	log     zerolog.Logger
}

func NewBrowserFetcher(bin string, logger *zerolog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		bin: bin,
		log: logger.With().Str("component", "BrowserFetcher").Logger(),
	}
}

func (b *BrowserFetcher) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		b.log.Warn().Msg("stale browser connection, relaunching")
		b.closeLocked()
	}

	l := launcher.New().Headless(true)
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	_ = br.IgnoreCertErrors(true)

	b.browser, b.launch = br, l
	b.log.Info().Msg("browser started")
	return br, nil
}

func (b *BrowserFetcher) closeLocked() {
	if b.browser != nil {
		_ = b.browser.Close()
		b.browser = nil
	}
	if b.launch != nil {
		b.launch.Cleanup()
		b.launch = nil
	}
}

// Close shuts the browser down; a later Fetch starts a new one.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *BrowserFetcher) Fetch(ctx context.Context, target, proxyURL string) (Page, error) {
	br, err := b.ensure()
	if err != nil {
		return Page{}, err
	}
	p, err := br.Page(proto.TargetCreateTarget{})
	if err != nil {
		return Page{}, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = p.Close() }()
	p = p.Context(ctx)

	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		return Page{}, err
	}

	client, err := proxiedClient(proxyURL, 0)
	if err != nil {
		return Page{}, err
	}
	router := p.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage, proto.NetworkResourceTypeFont, proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if client == nil {
			h.ContinueRequest(&proto.FetchContinueRequest{})
			return
		}
		// requests go through the session proxy
		if err := h.LoadResponse(client, true); err != nil {
			h.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
		}
	}); err != nil {
		return Page{}, err
	}
	go router.Run()
	defer func() { _ = router.Stop() }()

	if err := p.Navigate(target); err != nil {
		return Page{}, fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("wait load: %w", err)
	}

	obj, err := p.Eval(extractJS)
	if err != nil {
		return Page{}, fmt.Errorf("extract: %w", err)
	}
	var out struct {
		Title    string   `json:"title"`
		Meta     string   `json:"meta"`
		Headings []string `json:"headings"`
		Body     string   `json:"body"`
	}
	if err := json.Unmarshal([]byte(obj.Value.JSON("", "")), &out); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	return Page{Title: out.Title, Meta: out.Meta, Headings: out.Headings, Body: out.Body}, nil
}

// proxiedClient returns nil when no proxy is configured.
func proxiedClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if proxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy url: %w", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{Proxy: http.ProxyURL(u)},
	}, nil
}
