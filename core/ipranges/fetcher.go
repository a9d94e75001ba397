package ipranges

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/certdesk/core/logger"
)

// DefaultMaxBodySize caps a single range list download.
const DefaultMaxBodySize = 8 << 20

// Reloader applies a freshly written include to the running proxy.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Fetcher downloads the configured ranges and writes the nginx include.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	reloader Reloader
	logger   *slog.Logger
	backoff  time.Duration
	maxBody  int64

	mu    sync.Mutex
	armed bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRetryBackoff sets the base delay between download retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.backoff = d
		}
	}
}

// WithMaxBodySize caps each download. Larger responses fail the fetch.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// New creates a Fetcher. reloader may be nil, in which case the refresh
// timer only rewrites the include.
func New(cfg Config, reloader Reloader, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		reloader: reloader,
		logger:   logger.Nop(),
		backoff:  time.Second,
		maxBody:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logger.Component("ip_ranges"))
	return f
}

// Fetch downloads every source, validates the prefixes and rewrites the
// include file. A source without a URL is skipped.
func (f *Fetcher) Fetch(ctx context.Context) error {
	sources := []struct {
		url   string
		parse func([]byte) ([]netip.Prefix, error)
	}{
		{f.cfg.CloudFrontURL, ParseCloudFront},
		{f.cfg.CloudflareV4URL, ParseList},
		{f.cfg.CloudflareV6URL, ParseList},
	}

	var all []netip.Prefix
	for _, src := range sources {
		if src.url == "" {
			continue
		}
		f.logger.InfoContext(ctx, "Fetching IP Ranges from online services...", slog.String("url", src.url))

		body, err := f.download(ctx, src.url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", src.url, err)
		}
		prefixes, err := src.parse(body)
		if err != nil {
			return fmt.Errorf("parse %s: %w", src.url, err)
		}
		all = append(all, prefixes...)
	}
	if len(all) == 0 {
		return ErrNoRanges
	}

	if err := writeFile(f.cfg.OutputPath, Render(all)); err != nil {
		return errors.Join(ErrWriteConfig, err)
	}
	f.logger.InfoContext(ctx, "IP Ranges written", logger.Count("prefixes", len(all)), slog.String("path", f.cfg.OutputPath))
	return nil
}

// InitTimer starts the periodic refresh. Only the first call arms the timer;
// the goroutine stops when ctx is done.
func (f *Fetcher) InitTimer(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed || f.cfg.RefreshInterval <= 0 {
		return
	}
	f.armed = true

	f.logger.InfoContext(ctx, "IP Ranges Renewal Timer initialized", logger.Duration(f.cfg.RefreshInterval))
	go f.loop(ctx)
}

func (f *Fetcher) loop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

func (f *Fetcher) refresh(ctx context.Context) {
	if err := f.Fetch(ctx); err != nil {
		f.logger.ErrorContext(ctx, "IP Ranges refresh failed", logger.Error(err))
		return
	}
	if f.reloader == nil {
		return
	}
	if err := f.reloader.Reload(ctx); err != nil {
		f.logger.ErrorContext(ctx, "nginx reload after IP Ranges refresh failed", logger.Error(err))
	}
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	b := retry.WithMaxRetries(f.cfg.MaxRetries, retry.NewExponential(f.backoff))

	var body []byte
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return retry.RetryableError(err)
			}
			return err
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
		if err != nil {
			return retry.RetryableError(err)
		}
		if int64(len(body)) > f.maxBody {
			body = nil
			return fmt.Errorf("%w: larger than %d bytes", ErrBodyTooLarge, f.maxBody)
		}
		return nil
	})
	return body, err
}

// writeFile replaces path atomically so nginx never reads a partial include.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".ip_ranges-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
