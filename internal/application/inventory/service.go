// Package inventory reads ERPNext stock by physical location and turns
// physical counts into Stock Reconciliation documents.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/domain/stock"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/lock"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

const (
	DoctypeWarehouse           = "Warehouse"
	DoctypeBin                 = "Bin"
	DoctypeStockReconciliation = "Stock Reconciliation"
)

const (
	dateLayout  = "2006-01-02"
	pageSize    = 500
	filterChunk = 100
)

// Upstream is the part of the ERPNext client used for stock
type Upstream interface {
	GetList(ctx context.Context, sid, doctype string, q erpnext.ListQuery) ([]erpnext.Document, error)
	InsertDoc(ctx context.Context, sid, doctype string, doc map[string]any) (erpnext.Document, error)
	SubmitDoc(ctx context.Context, sid, doctype, name string) (erpnext.Document, error)
}

// Config holds the inventory settings
type Config struct {
	// LockTTL bounds how long one company's reconciliation blocks the next
	LockTTL time.Duration
}

// Service implements the inventory operations
type Service struct {
	upstream Upstream
	locker   lock.Locker
	metrics  *telemetry.BusinessMetrics
	config   Config
	now      func() time.Time
}

// NewService creates an inventory service. metrics may be nil.
func NewService(upstream Upstream, locker lock.Locker, metrics *telemetry.BusinessMetrics, config Config) *Service {
	if config.LockTTL <= 0 {
		config.LockTTL = 2 * time.Minute
	}
	return &Service{
		upstream: upstream,
		locker:   locker,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// ListWarehouses returns the enabled leaf warehouses of the session company by location
func (s *Service) ListWarehouses(ctx context.Context, session *identity.Session) (*WarehouseList, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "list_warehouses", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	docs, err := s.warehouses(ctx, session)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	out := &WarehouseList{Locations: []Location{}, Issues: []stock.WarehouseIssue{}}
	index := make(map[string]int)
	for _, d := range docs {
		code, err := stock.TokenizeWarehouseCode(d.Name())
		if err != nil {
			out.Issues = append(out.Issues, stock.WarehouseIssue{Warehouse: d.Name(), Reason: err.Error()})
			continue
		}
		loc := code.Location()
		i, ok := index[loc]
		if !ok {
			i = len(out.Locations)
			index[loc] = i
			out.Locations = append(out.Locations, Location{Location: loc})
		}
		out.Locations[i].Warehouses = append(out.Locations[i].Warehouses, Warehouse{
			Name:     d.Name(),
			Label:    d.String("warehouse_name"),
			Code:     code,
			Physical: code.IsPhysical(),
		})
	}

	slices.SortFunc(out.Locations, func(a, b Location) int { return strings.Compare(a.Location, b.Location) })
	for _, l := range out.Locations {
		slices.SortFunc(l.Warehouses, func(a, b Warehouse) int { return strings.Compare(a.Name, b.Name) })
	}
	return out, nil
}

// StockByLocation returns item balances grouped by physical location,
// optionally for a single item
func (s *Service) StockByLocation(ctx context.Context, session *identity.Session, itemCode string) (*StockReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "stock_by_location", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	var items []string
	if code := strings.TrimSpace(itemCode); code != "" {
		items = []string{code}
	}
	bins, err := s.bins(ctx, session, items)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	locations, issues := stock.GroupBins(bins)
	return &StockReport{ItemCode: strings.TrimSpace(itemCode), Locations: locations, Issues: issues}, nil
}

// PreviewReconciliation plans the reconciliation of counts without writing anything
func (s *Service) PreviewReconciliation(ctx context.Context, session *identity.Session, counts []stock.Count, postingDate string) (*ReconciliationPlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "preview_reconciliation", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	plan, err := s.plan(ctx, session, counts, postingDate)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	return plan, nil
}

// ApplyReconciliation creates one Stock Reconciliation per location that
// changes, submitting them when asked. Reconciliations of one company are
// serialized so two counts cannot interleave.
func (s *Service) ApplyReconciliation(ctx context.Context, session *identity.Session, req ReconciliationRequest) (*ReconciliationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "apply_reconciliation", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	result := &ReconciliationResult{Created: []string{}, Submitted: req.Submit}
	err := lock.Guard(ctx, s.locker, "stock-reconciliation|"+session.Company, s.config.LockTTL, func(ctx context.Context) error {
		plan, err := s.plan(ctx, session, req.Counts, req.PostingDate)
		if err != nil {
			return err
		}
		result.Plan = plan

		for _, doc := range plan.Documents {
			created, err := s.upstream.InsertDoc(ctx, session.UpstreamSID, DoctypeStockReconciliation, doc.Payload())
			if err != nil {
				return s.partialFailure(ctx, result, doc.Location, err)
			}
			result.Created = append(result.Created, created.Name())
			s.metrics.RecordReconciliations("created", 1)

			if req.Submit {
				if _, err := s.upstream.SubmitDoc(ctx, session.UpstreamSID, DoctypeStockReconciliation, created.Name()); err != nil {
					return s.partialFailure(ctx, result, doc.Location, err)
				}
				s.metrics.RecordReconciliations("submitted", 1)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, telemetry.RecordError(span, shared.Wrap(shared.ErrConflict, "another stock reconciliation is running for this company", err))
		}
		return nil, telemetry.RecordError(span, err)
	}

	logger.L(ctx).Info("Stock reconciliation applied",
		zap.Strings("documents", result.Created),
		zap.Bool("submitted", req.Submit))
	return result, nil
}

// partialFailure logs the documents already written before the failing location
func (s *Service) partialFailure(ctx context.Context, result *ReconciliationResult, location string, err error) error {
	logger.L(ctx).Error("Stock reconciliation stopped",
		zap.String("location", location),
		zap.Strings("created", result.Created),
		zap.Error(err))
	mapped := erpnext.AsDomainError(err)
	if len(result.Created) == 0 {
		return mapped
	}
	base := shared.ErrUpstreamUnavailable
	var de *shared.DomainError
	if errors.As(mapped, &de) {
		base = de
	}
	msg := fmt.Sprintf("reconciliation of %s failed after creating %s", location, strings.Join(result.Created, ", "))
	return shared.Wrap(base, msg, err)
}

func (s *Service) plan(ctx context.Context, session *identity.Session, counts []stock.Count, postingDate string) (*ReconciliationPlan, error) {
	if len(counts) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "at least one count row is required")
	}
	date := s.now().Format(dateLayout)
	if postingDate != "" {
		if _, err := time.Parse(dateLayout, postingDate); err != nil {
			return nil, shared.Errorf(shared.ErrInvalidInput, "posting_date must be YYYY-MM-DD")
		}
		date = postingDate
	}

	items := make([]string, 0, len(counts))
	for _, c := range counts {
		if code := strings.TrimSpace(c.ItemCode); code != "" && !slices.Contains(items, code) {
			items = append(items, code)
		}
	}
	bins, err := s.bins(ctx, session, items)
	if err != nil {
		return nil, err
	}

	groups, issues, err := stock.GroupForReconciliation(bins, counts)
	if err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, err.Error(), err)
	}
	docs := stock.ToStockReconciliations(session.Company, date, groups)
	if docs == nil {
		docs = []stock.StockReconciliation{}
	}
	return &ReconciliationPlan{PostingDate: date, Groups: groups, Documents: docs, Issues: issues}, nil
}

func (s *Service) warehouses(ctx context.Context, session *identity.Session) ([]erpnext.Document, error) {
	var out []erpnext.Document
	for start := 0; ; start += pageSize {
		docs, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypeWarehouse, erpnext.ListQuery{
			Fields: []string{"name", "warehouse_name"},
			Filters: []erpnext.Filter{
				erpnext.Eq("company", session.Company),
				erpnext.Eq("is_group", 0),
				erpnext.Eq("disabled", 0),
			},
			OrderBy:    "name asc",
			Start:      start,
			PageLength: pageSize,
		})
		if err != nil {
			return nil, erpnext.AsDomainError(err)
		}
		out = append(out, docs...)
		if len(docs) < pageSize {
			return out, nil
		}
	}
}

// bins loads the stock balances in the company warehouses, optionally
// restricted to items. The "in" filters are split into chunks of
// filterChunk values so each list request keeps a short URL.
func (s *Service) bins(ctx context.Context, session *identity.Session, items []string) ([]stock.Bin, error) {
	warehouses, err := s.warehouses(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(warehouses) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(warehouses))
	for _, w := range warehouses {
		names = append(names, w.Name())
	}

	itemChunks := [][]string{nil}
	if len(items) > 0 {
		itemChunks = slices.Collect(slices.Chunk(items, filterChunk))
	}

	var bins []stock.Bin
	for chunk := range slices.Chunk(names, filterChunk) {
		for _, itemChunk := range itemChunks {
			filters := []erpnext.Filter{{Field: "warehouse", Operator: erpnext.OpIn, Value: chunk}}
			if len(itemChunk) > 0 {
				filters = append(filters, erpnext.Filter{Field: "item_code", Operator: erpnext.OpIn, Value: itemChunk})
			}
			found, err := s.binPages(ctx, session, filters)
			if err != nil {
				return nil, err
			}
			bins = append(bins, found...)
		}
	}
	if len(itemChunks) > 1 || len(names) > filterChunk {
		slices.SortStableFunc(bins, func(a, b stock.Bin) int {
			if c := strings.Compare(a.Warehouse, b.Warehouse); c != 0 {
				return c
			}
			return strings.Compare(a.ItemCode, b.ItemCode)
		})
	}
	return bins, nil
}

func (s *Service) binPages(ctx context.Context, session *identity.Session, filters []erpnext.Filter) ([]stock.Bin, error) {
	var bins []stock.Bin
	for start := 0; ; start += pageSize {
		docs, err := s.upstream.GetList(ctx, session.UpstreamSID, DoctypeBin, erpnext.ListQuery{
			Fields:     []string{"name", "warehouse", "item_code", "actual_qty", "valuation_rate"},
			Filters:    filters,
			OrderBy:    "warehouse asc, item_code asc",
			Start:      start,
			PageLength: pageSize,
		})
		if err != nil {
			return nil, erpnext.AsDomainError(err)
		}
		for _, d := range docs {
			bins = append(bins, stock.Bin{
				Warehouse:     d.String("warehouse"),
				ItemCode:      d.String("item_code"),
				ActualQty:     d.Decimal("actual_qty"),
				ValuationRate: d.Decimal("valuation_rate"),
			})
		}
		if len(docs) < pageSize {
			return bins, nil
		}
	}
}
