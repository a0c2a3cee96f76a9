package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/erpnext/erpnexttest"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

func TestService_ArchivePDF(t *testing.T) {
	ctx := context.Background()
	seed := func(f *fixture) {
		f.srv.Seed(DoctypeSalesInvoice,
			erpnext.Document{"name": "FE-FAC-A-00003-00000001", "company": "Acme SA", "docstatus": 1, "posting_date": "2025-12-30"},
			erpnext.Document{"name": "FE-FAC-A-00003-00000002", "company": "Acme SA", "docstatus": 0, "posting_date": "2026-01-02"},
			erpnext.Document{"name": "FE-FAC-C-00001-00000001", "company": "Beta SA", "docstatus": 1, "posting_date": "2026-01-02"},
		)
	}

	t.Run("stores under company and year", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		metrics, err := telemetry.NewBusinessMetrics(reg)
		require.NoError(t, err)
		f := newFixture(t, WithMetrics(metrics))
		seed(f)

		got, err := f.svc.ArchivePDF(ctx, f.session, "FE-FAC-A-00003-00000001")
		require.NoError(t, err)
		assert.Equal(t, "AS/2025/FE-FAC-A-00003-00000001.pdf", got.Key)
		assert.Equal(t, "https://files.example.com/AS/2025/FE-FAC-A-00003-00000001.pdf?sig=x", got.URL)
		assert.Equal(t, testNow.Add(15*time.Minute).Format(time.RFC3339), got.ExpiresAt)

		assert.Equal(t, erpnexttest.FakePDF, f.storage.objects[got.Key])
		assert.Equal(t, "application/pdf", f.storage.types[got.Key])
		assert.Equal(t, 1.0, counter(t, reg, telemetry.MetricArchivedDocumentsTotal, "", ""))
	})

	t.Run("rejects", func(t *testing.T) {
		f := newFixture(t)
		seed(f)

		_, err := f.svc.ArchivePDF(ctx, f.session, "FE-FAC-A-00003-00000002")
		assert.ErrorIs(t, err, shared.ErrInvalidState, "drafts are not archived")
		_, err = f.svc.ArchivePDF(ctx, f.session, "FE-FAC-C-00001-00000001")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.svc.ArchivePDF(ctx, f.session, "FE-FAC-A-00003-00000099")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Empty(t, f.storage.objects)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newFixture(t)
		seed(f)
		f.storage.failPut = errors.New("bucket gone")

		_, err := f.svc.ArchivePDF(ctx, f.session, "FE-FAC-A-00003-00000001")
		assert.ErrorIs(t, err, shared.ErrUpstreamUnavailable)
	})

	t.Run("disabled without storage", func(t *testing.T) {
		f := newFixture(t, WithStorage(nil))
		seed(f)

		_, err := f.svc.ArchivePDF(ctx, f.session, "FE-FAC-A-00003-00000001")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}
