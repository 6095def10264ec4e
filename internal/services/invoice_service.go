package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"pricewatch/internal/cache"
	"pricewatch/internal/core"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/resolver"
)

// DefaultAccount is the partition used when a caller supplies no identity.
const DefaultAccount = "guest"

var (
	ErrInvalidAccount = errors.New("invalid account identifier")
	ErrInvalidMonth   = errors.New("invalid month, expected YYYY-MM")
	ErrNoFiles        = errors.New("no files uploaded")
)

var accountPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]{1,128}$`)

// ValidateAccount checks an identity partition name.
func ValidateAccount(account string) error {
	if !accountPattern.MatchString(account) {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	return nil
}

// TotalResolver turns an upload into a total. It never fails.
type TotalResolver interface {
	Resolve(ctx context.Context, u resolver.Upload) resolver.Resolution
}

// Publisher announces recorded invoices to the mirror worker.
type Publisher interface {
	PublishInvoiceRecorded(ctx context.Context, account, invoiceID string) error
}

type Config struct {
	MaxUploadBytes   int64
	VATRate          float64
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int
}

func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:   resolver.DefaultMaxUploadBytes,
		VATRate:          ledger.DefaultVATRate,
		SummaryCacheTTL:  5 * time.Minute,
		SummaryCacheSize: 256,
	}
}

// AnalyseRequest is one upload for one account. Supplier, when set, wins
// over every inferred name.
type AnalyseRequest struct {
	Account  string
	Upload   resolver.Upload
	Supplier string
}

// Analysed is the outcome of recording one upload.
type Analysed struct {
	Invoice        core.InvoiceRecord  `json:"invoice"`
	Supplier       core.SupplierRecord `json:"supplier"`
	FallbackReason string              `json:"fallback_reason,omitempty"`
}

// InvoiceService orchestrates upload validation, total resolution, the
// ledger read-modify-write and event publication.
type InvoiceService struct {
	repo      *ledger.Repository
	resolver  TotalResolver
	publisher Publisher
	summaries cache.Cache[ledger.Summary]
	locks     *partitionLocks
	cfg       Config
	logger    *log.Logger
	events    *log.StructuredLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewInvoiceService wires the service. publisher may be nil when event
// mirroring is disabled.
func NewInvoiceService(repo *ledger.Repository, res TotalResolver, publisher Publisher, cfg Config, logger *log.Logger, m *metrics.Metrics) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = resolver.DefaultMaxUploadBytes
	}
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = DefaultConfig().SummaryCacheSize
	}
	return &InvoiceService{
		repo:      repo,
		resolver:  res,
		publisher: publisher,
		summaries: cache.NewLRUCache[ledger.Summary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL),
		locks:     newPartitionLocks(),
		cfg:       cfg,
		logger:    logger.WithComponent(log.ComponentService),
		events:    log.NewStructuredLogger(logger),
		metrics:   m,
		now:       time.Now,
	}
}

// SummaryCache exposes the summary cache so it can be registered for
// periodic cleanup.
func (s *InvoiceService) SummaryCache() cache.Cleaner {
	c, _ := s.summaries.(cache.Cleaner)
	return c
}

// Analyse validates the upload, resolves its total and records it.
func (s *InvoiceService) Analyse(ctx context.Context, req AnalyseRequest) (Analysed, error) {
	if err := ValidateAccount(req.Account); err != nil {
		return Analysed{}, err
	}
	if err := resolver.ValidateUpload(req.Upload, s.cfg.MaxUploadBytes); err != nil {
		return Analysed{}, err
	}
	return s.record(ctx, req)
}

// AnalyseBatch records uploads strictly in order, each one fully finished
// before the next starts. Every upload is validated first, so an invalid
// file rejects the batch before the ledger is touched. On a storage error
// the invoices recorded so far are returned with the error.
func (s *InvoiceService) AnalyseBatch(ctx context.Context, account string, uploads []resolver.Upload, supplier string) ([]Analysed, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	for _, u := range uploads {
		if err := resolver.ValidateUpload(u, s.cfg.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("%s: %w", u.Filename, err)
		}
	}
	// A name override only makes sense for a single file.
	if len(uploads) > 1 {
		supplier = ""
	}

	out := make([]Analysed, 0, len(uploads))
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		a, err := s.record(ctx, AnalyseRequest{Account: account, Upload: u, Supplier: supplier})
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *InvoiceService) record(ctx context.Context, req AnalyseRequest) (Analysed, error) {
	// The remote call completes before the ledger is loaded.
	res := s.resolver.Resolve(ctx, req.Upload)

	subject := pickSubject(req.Supplier, res.Vendor, req.Upload.Filename)

	unlock := s.locks.lock(req.Account)
	inv, supplier, err := s.mutate(ctx, req.Account, ledger.Entry{
		Subject:      subject,
		Total:        res.Total,
		Currency:     res.Currency,
		Filename:     req.Upload.Filename,
		Source:       res.Source,
		LineItems:    res.LineItems,
		DocumentDate: res.Date,
	})
	unlock()
	if err != nil {
		return Analysed{}, err
	}

	s.metrics.InvoiceRecorded(string(inv.Source))
	s.events.LogInvoiceRecorded(ctx, req.Account, inv.ID, inv.Subject, inv.Total, inv.Currency, string(inv.Source))
	s.publish(ctx, req.Account, inv.ID)

	return Analysed{Invoice: inv, Supplier: supplier, FallbackReason: res.FallbackReason}, nil
}

func (s *InvoiceService) mutate(ctx context.Context, account string, e ledger.Entry) (core.InvoiceRecord, core.SupplierRecord, error) {
	l, err := s.repo.Load(ctx, account)
	if err != nil {
		return core.InvoiceRecord{}, core.SupplierRecord{}, err
	}
	e.Date = s.now().UTC().Format("2006-01-02")
	inv, err := l.RecordInvoice(e)
	if err != nil {
		return core.InvoiceRecord{}, core.SupplierRecord{}, err
	}
	if err := s.repo.Save(ctx, account, l); err != nil {
		return core.InvoiceRecord{}, core.SupplierRecord{}, err
	}
	s.invalidate(account)

	supplier, _ := l.Supplier(inv.Subject)
	return inv, supplier, nil
}

// pickSubject prefers an explicit name, then the analysed vendor, then the
// name inferred from the filename.
func pickSubject(override, vendor, filename string) string {
	if name := core.CleanSubject(override); name != "" {
		return name
	}
	if name := core.CleanSubject(vendor); name != "" {
		return name
	}
	return core.InferSubjectName(filename)
}

func (s *InvoiceService) publish(ctx context.Context, account, invoiceID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishInvoiceRecorded(ctx, account, invoiceID); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish invoice event",
			log.FieldOperation, log.OpPublish,
			log.FieldAccount, account,
			log.FieldInvoiceID, invoiceID,
			log.FieldError, err)
	}
}

// Ledger returns the account's current ledger.
func (s *InvoiceService) Ledger(ctx context.Context, account string) (*ledger.Ledger, error) {
	if err := ValidateAccount(account); err != nil {
		return nil, err
	}
	return s.repo.Load(ctx, account)
}

// Invoices lists invoices newest first, limited to month when given.
func (s *InvoiceService) Invoices(ctx context.Context, account, month string) ([]core.InvoiceRecord, error) {
	if month != "" && !ledger.ValidMonth(month) {
		return nil, ErrInvalidMonth
	}
	l, err := s.Ledger(ctx, account)
	if err != nil {
		return nil, err
	}
	return l.InvoicesIn(month), nil
}

func (s *InvoiceService) Leaderboard(ctx context.Context, account string) ([]core.SupplierRecord, error) {
	l, err := s.Ledger(ctx, account)
	if err != nil {
		return nil, err
	}
	return l.Leaderboard(), nil
}

// TopIncreaseAlert returns the biggest price increase, all-time when month
// is empty.
func (s *InvoiceService) TopIncreaseAlert(ctx context.Context, account, month string) (ledger.LeakAlert, bool, error) {
	if month != "" && !ledger.ValidMonth(month) {
		return ledger.LeakAlert{}, false, ErrInvalidMonth
	}
	l, err := s.Ledger(ctx, account)
	if err != nil {
		return ledger.LeakAlert{}, false, err
	}
	a, ok := l.TopIncreaseAlert(month)
	return a, ok, nil
}

// Summary returns the month figures, defaulting to the current month. Results
// are cached per account and month until the account is next written.
func (s *InvoiceService) Summary(ctx context.Context, account, month string) (ledger.Summary, error) {
	if month == "" {
		month = s.now().UTC().Format("2006-01")
	}
	if !ledger.ValidMonth(month) {
		return ledger.Summary{}, ErrInvalidMonth
	}
	if err := ValidateAccount(account); err != nil {
		return ledger.Summary{}, err
	}

	// Writes invalidate under the same lock; hold it across load and Set.
	unlock := s.locks.lock(account)
	defer unlock()

	key := summaryKey(account, month)
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}

	l, err := s.repo.Load(ctx, account)
	if err != nil {
		return ledger.Summary{}, err
	}
	sum := l.Summarize(month, s.cfg.VATRate)
	if s.cfg.SummaryCacheTTL > 0 {
		s.summaries.Set(key, sum)
	}
	return sum, nil
}

// Clear drops the account's whole history.
func (s *InvoiceService) Clear(ctx context.Context, account string) error {
	if err := ValidateAccount(account); err != nil {
		return err
	}
	unlock := s.locks.lock(account)
	defer unlock()

	if err := s.repo.Clear(ctx, account); err != nil {
		return err
	}
	s.invalidate(account)
	s.logger.InfoContext(ctx, "Ledger cleared", log.FieldAccount, account)
	return nil
}

// Ping checks the ledger store.
func (s *InvoiceService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close releases the publisher when it holds a connection. The record store
// is owned by whoever built the repository.
func (s *InvoiceService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

func (s *InvoiceService) invalidate(account string) {
	s.summaries.DeletePrefix(summaryKey(account, ""))
}

func summaryKey(account, month string) string {
	return strings.TrimSpace(account) + "|" + month
}
