package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Business metric names
const (
	MetricLoginsTotal            = "bff_logins_total"
	MetricVouchersTotal          = "bff_vouchers_total"
	MetricPurchaseInvoicesTotal  = "bff_purchase_invoices_total"
	MetricReconciliationsTotal   = "bff_stock_reconciliations_total"
	MetricArchivedDocumentsTotal = "bff_archived_documents_total"
)

// BusinessMetrics counts fiscal and stock operations.
// A nil *BusinessMetrics records nothing.
type BusinessMetrics struct {
	logins          *prometheus.CounterVec
	vouchers        *prometheus.CounterVec
	purchases       *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	archived        prometheus.Counter
}

// NewBusinessMetrics creates and registers the business collectors.
func NewBusinessMetrics(reg prometheus.Registerer) (*BusinessMetrics, error) {
	bm := &BusinessMetrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLoginsTotal,
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		vouchers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVouchersTotal,
			Help: "Sales vouchers by action and AFIP letter",
		}, []string{"action", "letter"}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPurchaseInvoicesTotal,
			Help: "Purchase invoice registrations by outcome",
		}, []string{"outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricReconciliationsTotal,
			Help: "Stock reconciliation documents by action",
		}, []string{"action"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArchivedDocumentsTotal,
			Help: "PDFs archived to object storage",
		}),
	}
	for _, c := range []prometheus.Collector{bm.logins, bm.vouchers, bm.purchases, bm.reconciliations, bm.archived} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return bm, nil
}

// RecordLogin counts a login; outcome is "success" or "failure".
func (bm *BusinessMetrics) RecordLogin(outcome string) {
	if bm == nil {
		return
	}
	bm.logins.WithLabelValues(outcome).Inc()
}

// RecordVoucher counts a voucher action ("created", "submitted", "cancelled").
func (bm *BusinessMetrics) RecordVoucher(action, letter string) {
	if bm == nil {
		return
	}
	bm.vouchers.WithLabelValues(action, letter).Inc()
}

// RecordPurchaseInvoice counts a registration ("registered", "duplicate").
func (bm *BusinessMetrics) RecordPurchaseInvoice(outcome string) {
	if bm == nil {
		return
	}
	bm.purchases.WithLabelValues(outcome).Inc()
}

// RecordReconciliations adds n documents for action ("created", "submitted").
func (bm *BusinessMetrics) RecordReconciliations(action string, n int) {
	if bm == nil || n <= 0 {
		return
	}
	bm.reconciliations.WithLabelValues(action).Add(float64(n))
}

// RecordArchived counts an archived PDF.
func (bm *BusinessMetrics) RecordArchived() {
	if bm == nil {
		return
	}
	bm.archived.Inc()
}
