package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/billing"
	"github.com/tradeco/backoffice/internal/domain/shared"
	"github.com/tradeco/backoffice/internal/domain/shared/valueobject"
)

// newMockInvoiceRepository creates a GormInvoiceRepository with a mocked SQL connection
func newMockInvoiceRepository(t *testing.T) (*GormInvoiceRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormInvoiceRepository(gormDB), mock, mockDB
}

func TestGormInvoiceRepository_FindByID(t *testing.T) {
	t.Run("finds existing invoice", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		invoiceID := uuid.New()
		clientID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "series", "number", "client_id", "client_name", "invoice_type",
			"currency", "issue_date", "lines", "grand_total", "paid_amount",
			"remaining_amount", "status", "efactura_status", "version",
		}).AddRow(
			invoiceID, "FCT", 17, clientID, "Client SRL", "STANDARD",
			"RON", time.Now(), "[]", decimal.RequireFromString("119"), decimal.Zero,
			decimal.RequireFromString("119"), "APPROVED", "PENDING", 2,
		)

		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(invoiceID, 1).
			WillReturnRows(rows)

		invoice, err := repo.FindByID(context.Background(), invoiceID)

		assert.NoError(t, err)
		require.NotNil(t, invoice)
		assert.Equal(t, invoiceID, invoice.ID)
		assert.Equal(t, "FCT-17", invoice.DocumentID())
		assert.Equal(t, billing.InvoiceStatusApproved, invoice.Status)
		assert.Equal(t, 2, invoice.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for non-existent invoice", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		invoiceID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(invoiceID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		invoice, err := repo.FindByID(context.Background(), invoiceID)

		assert.Error(t, err)
		assert.Nil(t, invoice)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceRepository_SaveWithLock(t *testing.T) {
	newApprovedInvoice := func(t *testing.T) *billing.Invoice {
		inv, err := billing.NewInvoice("FCT", uuid.New(), "Client SRL",
			billing.InvoiceTypeStandard, valueobject.RON, time.Now(), nil,
			decimal.RequireFromString("119"))
		require.NoError(t, err)
		require.NoError(t, inv.Approve(17, uuid.New()))
		return inv
	}

	t.Run("updates row matching the previous version", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		invoice := newApprovedInvoice(t)

		mock.ExpectExec(`UPDATE "invoices" SET .* WHERE \(id = .* AND version = .*`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), invoice)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails with concurrency conflict when the version moved on", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		invoice := newApprovedInvoice(t)

		mock.ExpectExec(`UPDATE "invoices" SET .* WHERE \(id = .* AND version = .*`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), invoice)

		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceRepository_SumOutstandingByClient(t *testing.T) {
	t.Run("sums positive remaining amounts of open invoices", func(t *testing.T) {
		repo, mock, mockDB := newMockInvoiceRepository(t)
		defer mockDB.Close()

		clientID := uuid.New()

		rows := sqlmock.NewRows([]string{"total"}).AddRow(decimal.RequireFromString("830.50"))

		mock.ExpectQuery(`SELECT COALESCE\(SUM\(remaining_amount\), 0\) as total FROM "invoices" WHERE client_id = \$1 AND status IN \(\$2,\$3\) AND remaining_amount > 0`).
			WithArgs(clientID, billing.InvoiceStatusApproved, billing.InvoiceStatusPartialPaid).
			WillReturnRows(rows)

		total, err := repo.SumOutstandingByClient(context.Background(), clientID)

		assert.NoError(t, err)
		assert.True(t, total.Equal(decimal.RequireFromString("830.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
