// Package invoicing issues AFIP-compliant sales vouchers, registers
// supplier vouchers and builds the fiscal books on top of ERPNext.
package invoicing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/cache"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/lock"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// Doctypes handled here
const (
	DoctypeSalesInvoice    = "Sales Invoice"
	DoctypePurchaseInvoice = "Purchase Invoice"
	DoctypePaymentEntry    = "Payment Entry"
)

// Custom fields written on vouchers
const (
	FieldVoucherType = "custom_tipo_comprobante"
	FieldPointOfSale = "custom_punto_de_venta"
	FieldNumber      = "custom_numero_comprobante"
	FieldAliquot     = "custom_alicuota_iva"
	FieldTaxKind     = "custom_tipo_impuesto"
	FieldAliquotCode = "custom_codigo_alicuota"
	FieldCondition   = "custom_condicion_iva"
	FieldPartyScope  = "custom_company"
)

// dateLayout is the ERPNext date format
const dateLayout = "2006-01-02"

// Upstream is the part of the ERPNext client used for invoicing
type Upstream interface {
	GetList(ctx context.Context, sid, doctype string, q erpnext.ListQuery) ([]erpnext.Document, error)
	Count(ctx context.Context, sid, doctype string, filters []erpnext.Filter) (int, error)
	GetDoc(ctx context.Context, sid, doctype, name string) (erpnext.Document, error)
	InsertDoc(ctx context.Context, sid, doctype string, doc map[string]any) (erpnext.Document, error)
	SubmitDoc(ctx context.Context, sid, doctype, name string) (erpnext.Document, error)
	CancelDoc(ctx context.Context, sid, doctype, name string) error
	DownloadPDF(ctx context.Context, sid, doctype, name, printFormat string) ([]byte, error)
}

// ProfileProvider returns company fiscal profiles
type ProfileProvider interface {
	Profile(ctx context.Context, session *identity.Session, company string) (*fiscal.CompanyProfile, error)
}

// ObjectStorage stores archived PDFs
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// Config holds the invoicing settings
type Config struct {
	ElectronicPrefix string
	ManualPrefix     string
	FCEPrefix        string
	PrintFormat      string
	AccountsCacheTTL time.Duration
	LockTTL          time.Duration
	Withholding      fiscal.WithholdingRule
}

// Service implements the invoicing operations
type Service struct {
	upstream Upstream
	profiles ProfileProvider
	locker   lock.Locker
	cache    cache.Store
	storage  ObjectStorage
	metrics  *telemetry.BusinessMetrics
	config   Config
	now      func() time.Time
}

// Option configures optional collaborators
type Option func(*Service)

// WithStorage enables PDF archiving
func WithStorage(storage ObjectStorage) Option {
	return func(s *Service) {
		s.storage = storage
	}
}

// WithMetrics records business counters
func WithMetrics(metrics *telemetry.BusinessMetrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithCache caches tax account maps
func WithCache(store cache.Store) Option {
	return func(s *Service) {
		s.cache = store
	}
}

// NewService creates an invoicing service
func NewService(upstream Upstream, profiles ProfileProvider, locker lock.Locker, config Config, opts ...Option) *Service {
	if config.LockTTL <= 0 {
		config.LockTTL = 30 * time.Second
	}
	if config.AccountsCacheTTL <= 0 {
		config.AccountsCacheTTL = 10 * time.Minute
	}
	s := &Service{
		upstream: upstream,
		profiles: profiles,
		locker:   locker,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// party loads a customer or supplier of the session company
func (s *Service) party(ctx context.Context, session *identity.Session, doctype, name string) (erpnext.Document, error) {
	if name == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "%s is required", doctype)
	}
	doc, err := s.upstream.GetDoc(ctx, session.UpstreamSID, doctype, name)
	if err != nil {
		return nil, erpnext.AsDomainError(err)
	}
	if scope := doc.String(FieldPartyScope); scope != "" && scope != session.Company {
		return nil, shared.Errorf(shared.ErrNotFound, "%s %s not found", doctype, name)
	}
	return doc, nil
}

// voucher loads a document with a company field and checks it belongs to the session
func (s *Service) voucher(ctx context.Context, session *identity.Session, doctype, name string) (erpnext.Document, error) {
	if name == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "document name is required")
	}
	doc, err := s.upstream.GetDoc(ctx, session.UpstreamSID, doctype, name)
	if err != nil {
		return nil, erpnext.AsDomainError(err)
	}
	if doc.String("company") != session.Company {
		return nil, shared.Errorf(shared.ErrNotFound, "%s %s not found", doctype, name)
	}
	return doc, nil
}

// parseDate reads an ERPNext date; empty means fallback
func parseDate(field, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, shared.Errorf(shared.ErrInvalidInput, "%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func dateRange(from, to string) (time.Time, time.Time, error) {
	start, err := parseDate("from", from, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("to", to, time.Time{})
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, shared.Errorf(shared.ErrInvalidInput, "from and to are required")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, shared.Errorf(shared.ErrInvalidInput, "to must not be before from")
	}
	return start, end, nil
}

// money renders a decimal for the ERPNext JSON API
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
