// Package resolver obtains an invoice total for an uploaded file, either from
// the remote analysis endpoint or, when that is unavailable, from a
// deterministic placeholder derived from the file size.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"pricewatch/internal/core"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
)

const (
	// DefaultTimeout bounds a single analysis call.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Resolution is the outcome of resolving one upload. Source tells whether
// the total came from the remote call.
type Resolution struct {
	Total          float64
	Currency       string
	Vendor         string
	Date           string
	LineItems      []core.LineItem
	Source         core.Source
	FallbackReason string
}

type Config struct {
	Endpoint        string
	Timeout         time.Duration
	DefaultCurrency string
}

type Resolver struct {
	endpoint        string
	timeout         time.Duration
	defaultCurrency string
	client          *http.Client
	logger          *log.Logger
	metrics         *metrics.Metrics
}

// New builds a resolver. An empty endpoint makes every resolution a
// placeholder.
func New(cfg Config, logger *log.Logger, m *metrics.Metrics) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Resolver{
		endpoint:        strings.TrimSpace(cfg.Endpoint),
		timeout:         cfg.Timeout,
		defaultCurrency: core.NormalizeCurrency(cfg.DefaultCurrency, core.DefaultCurrency),
		client:          &http.Client{},
		logger:          logger.WithComponent(log.ComponentResolver),
		metrics:         m,
	}
}

// WithHTTPClient swaps the HTTP client, mainly for tests.
func (r *Resolver) WithHTTPClient(c *http.Client) *Resolver {
	r.client = c
	return r
}

// Placeholder is the stand-in total for a file of the given size:
// max(1, round(size/100)).
func Placeholder(sizeBytes int) float64 {
	return math.Max(1, math.Round(float64(sizeBytes)/100))
}

// Resolve never fails. Any problem with the remote call is logged and
// answered with the placeholder total in the default currency. No retry is
// attempted.
func (r *Resolver) Resolve(ctx context.Context, u Upload) Resolution {
	if r.endpoint == "" {
		return r.fallback(ctx, u, metrics.ReasonNoEndpoint, nil)
	}

	start := time.Now()
	a, reason, err := r.analyse(ctx, u)
	r.metrics.ObserveResolve(time.Since(start))
	if err != nil {
		return r.fallback(ctx, u, reason, err)
	}

	return Resolution{
		Total:     a.Total,
		Currency:  a.Currency,
		Vendor:    a.Vendor,
		Date:      a.Date,
		LineItems: a.LineItems,
		Source:    core.SourceRemote,
	}
}

func (r *Resolver) fallback(ctx context.Context, u Upload, reason string, err error) Resolution {
	r.metrics.ResolverFallback(reason)
	if err != nil {
		r.logger.WarnContext(ctx, "Analysis failed, using placeholder total",
			log.FieldOperation, log.OpResolve,
			log.FieldFilename, u.Filename,
			log.FieldReason, reason,
			log.FieldError, err)
	}
	return Resolution{
		Total:          Placeholder(u.Size()),
		Currency:       r.defaultCurrency,
		Source:         core.SourcePlaceholder,
		FallbackReason: reason,
	}
}

func (r *Resolver) analyse(ctx context.Context, u Upload) (Analysis, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, contentType, err := multipartBody(u)
	if err != nil {
		return Analysis{}, metrics.ReasonNetwork, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return Analysis{}, metrics.ReasonNetwork, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Analysis{}, metrics.ReasonTimeout, err
		}
		return Analysis{}, metrics.ReasonNetwork, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Analysis{}, metrics.ReasonTimeout, err
		}
		return Analysis{}, metrics.ReasonNetwork, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Analysis{}, metrics.ReasonStatus, fmt.Errorf("analysis endpoint returned %d", resp.StatusCode)
	}

	a, err := ParseAnalysis(raw, r.defaultCurrency)
	if errors.Is(err, ErrNoTotal) {
		return Analysis{}, metrics.ReasonNoTotal, err
	}
	if err != nil {
		return Analysis{}, metrics.ReasonDecode, err
	}
	return a, "", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(u Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	ct := u.MediaType()
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(u.Filename)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(u.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
