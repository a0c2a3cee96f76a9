package resource

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// Page size limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Fields the BFF never forwards from client payloads
var systemFields = []string{"doctype", "docstatus", "owner", "creation", "modified", "modified_by", "idx"}

// sortableFields may be ordered by for every resource
var sortableFields = []string{"name", "creation", "modified"}

// Upstream is the part of the ERPNext client used for generic CRUD
type Upstream interface {
	GetList(ctx context.Context, sid, doctype string, q erpnext.ListQuery) ([]erpnext.Document, error)
	CountMatching(ctx context.Context, sid, doctype string, filters, orFilters []erpnext.Filter) (int, error)
	GetDoc(ctx context.Context, sid, doctype, name string) (erpnext.Document, error)
	InsertDoc(ctx context.Context, sid, doctype string, doc map[string]any) (erpnext.Document, error)
	UpdateDoc(ctx context.Context, sid, doctype, name string, fields map[string]any) (erpnext.Document, error)
	DeleteDoc(ctx context.Context, sid, doctype, name string) error
}

// ListParams are the list query options accepted from the SPA
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	OrderBy  string
	// Filters are equality conditions on list fields
	Filters map[string]string
}

// ListResult is one page of documents
type ListResult struct {
	Items    []erpnext.Document `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// Service implements the generic resource operations
type Service struct {
	upstream Upstream
	registry *Registry
}

// NewService creates a resource service
func NewService(upstream Upstream, registry *Registry) *Service {
	return &Service{upstream: upstream, registry: registry}
}

// Registry returns the resource definitions served
func (s *Service) Registry() *Registry {
	return s.registry
}

// List returns a page of documents of resource visible to the session company
func (s *Service) List(ctx context.Context, session *identity.Session, resource string, params ListParams) (*ListResult, error) {
	def, err := s.registry.Lookup(resource)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "resource", "list",
		telemetry.SpanAttrResource, resource, telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	page, size, err := normalizePage(params.Page, params.PageSize)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(def, params.OrderBy)
	if err != nil {
		return nil, err
	}

	filters := make([]erpnext.Filter, 0, len(params.Filters)+1)
	if def.Scoped() {
		filters = append(filters, erpnext.Eq(def.ScopeField, session.Company))
	}
	for _, field := range slices.Sorted(maps.Keys(params.Filters)) {
		if !def.Listed(field) {
			return nil, shared.Errorf(shared.ErrInvalidInput, "cannot filter %s by %q", resource, field)
		}
		if field == def.ScopeField {
			continue
		}
		filters = append(filters, erpnext.Eq(field, params.Filters[field]))
	}

	var orFilters []erpnext.Filter
	if term := strings.TrimSpace(params.Search); term != "" {
		pattern := "%" + term + "%"
		for _, field := range def.SearchFields {
			orFilters = append(orFilters, erpnext.Filter{Field: field, Operator: erpnext.OpLike, Value: pattern})
		}
	}

	items, err := s.upstream.GetList(ctx, session.UpstreamSID, def.Doctype, erpnext.ListQuery{
		Fields:     append([]string{"name"}, def.ListFields...),
		Filters:    filters,
		OrFilters:  orFilters,
		OrderBy:    orderBy,
		Start:      (page - 1) * size,
		PageLength: size,
	})
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	total, err := s.upstream.CountMatching(ctx, session.UpstreamSID, def.Doctype, filters, orFilters)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	if items == nil {
		items = []erpnext.Document{}
	}
	return &ListResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func normalizePage(page, size int) (int, int, error) {
	if page < 0 {
		return 0, 0, shared.Errorf(shared.ErrInvalidInput, "page must be positive")
	}
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if size < 1 || size > MaxPageSize {
		return 0, 0, shared.Errorf(shared.ErrInvalidInput, "page_size must be between 1 and %d", MaxPageSize)
	}
	return page, size, nil
}

// orderClause validates "field [asc|desc]"
func orderClause(def Definition, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return def.DefaultOrder, nil
	}
	parts := strings.Fields(requested)
	field := parts[0]
	dir := "asc"
	if len(parts) > 1 {
		dir = strings.ToLower(parts[1])
	}
	if len(parts) > 2 || (dir != "asc" && dir != "desc") {
		return "", shared.Errorf(shared.ErrInvalidInput, "invalid order_by %q", requested)
	}
	if !def.Listed(field) && !slices.Contains(sortableFields, field) {
		return "", shared.Errorf(shared.ErrInvalidInput, "cannot order %s by %q", def.Name, field)
	}
	return field + " " + dir, nil
}

// Get returns one document; documents of other companies are reported as not found
func (s *Service) Get(ctx context.Context, session *identity.Session, resource, name string) (erpnext.Document, error) {
	def, err := s.registry.Lookup(resource)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "resource", "get",
		telemetry.SpanAttrResource, resource, telemetry.SpanAttrDocName, name)
	defer span.End()

	doc, err := s.scopedDoc(ctx, session, def, name)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	return doc, nil
}

func (s *Service) scopedDoc(ctx context.Context, session *identity.Session, def Definition, name string) (erpnext.Document, error) {
	if name == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "document name is required")
	}
	doc, err := s.upstream.GetDoc(ctx, session.UpstreamSID, def.Doctype, name)
	if err != nil {
		return nil, erpnext.AsDomainError(err)
	}
	if def.Scoped() && doc.String(def.ScopeField) != session.Company {
		logger.L(ctx).Warn("Cross-company access denied",
			zap.String("doctype", def.Doctype),
			zap.String("name", name),
			zap.String("company", session.Company))
		return nil, shared.Errorf(shared.ErrNotFound, "%s %s not found", def.Doctype, name)
	}
	return doc, nil
}

// Create inserts a document owned by the session company
func (s *Service) Create(ctx context.Context, session *identity.Session, resource string, payload map[string]any) (erpnext.Document, error) {
	def, err := s.writable(resource)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "resource", "create", telemetry.SpanAttrResource, resource)
	defer span.End()

	doc, err := sanitize(def, payload)
	if err != nil {
		return nil, err
	}
	if def.Scoped() {
		doc[def.ScopeField] = session.Company
	}

	created, err := s.upstream.InsertDoc(ctx, session.UpstreamSID, def.Doctype, doc)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	logger.L(ctx).Info("Document created", zap.String("doctype", def.Doctype), zap.String("name", created.Name()))
	return created, nil
}

// Update changes fields of a document of the session company
func (s *Service) Update(ctx context.Context, session *identity.Session, resource, name string, payload map[string]any) (erpnext.Document, error) {
	def, err := s.writable(resource)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "resource", "update",
		telemetry.SpanAttrResource, resource, telemetry.SpanAttrDocName, name)
	defer span.End()

	fields, err := sanitize(def, payload)
	if err != nil {
		return nil, err
	}
	delete(fields, "name")
	if def.Scoped() {
		if v, ok := fields[def.ScopeField]; ok {
			if fmt.Sprint(v) != session.Company {
				return nil, shared.Errorf(shared.ErrInvalidInput, "%s cannot be changed", def.ScopeField)
			}
			delete(fields, def.ScopeField)
		}
	}
	if len(fields) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "nothing to update")
	}

	if _, err := s.scopedDoc(ctx, session, def, name); err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	updated, err := s.upstream.UpdateDoc(ctx, session.UpstreamSID, def.Doctype, name, fields)
	if err != nil {
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	return updated, nil
}

// Delete removes a document of the session company
func (s *Service) Delete(ctx context.Context, session *identity.Session, resource, name string) error {
	def, err := s.writable(resource)
	if err != nil {
		return err
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "resource", "delete",
		telemetry.SpanAttrResource, resource, telemetry.SpanAttrDocName, name)
	defer span.End()

	if _, err := s.scopedDoc(ctx, session, def, name); err != nil {
		return telemetry.RecordError(span, err)
	}
	if err := s.upstream.DeleteDoc(ctx, session.UpstreamSID, def.Doctype, name); err != nil {
		return telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	logger.L(ctx).Info("Document deleted", zap.String("doctype", def.Doctype), zap.String("name", name))
	return nil
}

func (s *Service) writable(resource string) (Definition, error) {
	def, err := s.registry.Lookup(resource)
	if err != nil {
		return Definition{}, err
	}
	if def.ReadOnly {
		return Definition{}, shared.Errorf(shared.ErrForbidden, "resource %s is read-only", resource)
	}
	return def, nil
}

// sanitize copies payload without system fields and normalizes the CUIT
func sanitize(def Definition, payload map[string]any) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "payload is empty")
	}
	out := maps.Clone(payload)
	for _, f := range systemFields {
		delete(out, f)
	}
	if def.TaxIDField == "" {
		return out, nil
	}
	raw, ok := out[def.TaxIDField]
	if !ok || raw == nil {
		return out, nil
	}
	cuit, isString := raw.(string)
	if !isString {
		return nil, shared.Errorf(shared.ErrInvalidInput, "%s must be a string", def.TaxIDField)
	}
	if strings.TrimSpace(cuit) == "" {
		return out, nil
	}
	if err := fiscal.ValidateCUIT(cuit); err != nil {
		return nil, shared.Wrap(shared.ErrInvalidInput, fmt.Sprintf("invalid CUIT %q", cuit), err)
	}
	out[def.TaxIDField] = fiscal.NormalizeCUIT(cuit)
	return out, nil
}

