package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regiomarkt/regiomarkt/internal/money"
	"github.com/regiomarkt/regiomarkt/internal/platform/db"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("documents: not found")
	// ErrLocked indicates another process holds the row lock.
	ErrLocked = errors.New("documents: locked by another process")
	// ErrAlreadyPaid indicates the document was paid before the lock was taken.
	ErrAlreadyPaid = errors.New("documents: already paid")
)

// pgLockNotAvailable is the SQLSTATE raised by FOR UPDATE NOWAIT.
const pgLockNotAvailable = "55P03"

// Repository provides PostgreSQL backed persistence for documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `
	id, type, order_id, paid, payment_reference, provider_payin_id, provider_tag,
	seller_payee_id, seller_name, seller_email, seller_street, seller_zip, seller_city, seller_country,
	seller_provider_user_id, seller_wallet_id, seller_bank_account_id,
	buyer_payee_id, buyer_name, buyer_email, buyer_street, buyer_zip, buyer_city, buyer_country,
	buyer_provider_user_id, buyer_wallet_id, buyer_bank_account_id,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var paymentRef, payinID, tag pgtype.Text
	err := row.Scan(
		&doc.ID, &doc.Type, &doc.OrderID, &doc.Paid, &paymentRef, &payinID, &tag,
		&doc.Seller.PayeeID, &doc.Seller.Name, &doc.Seller.Email, &doc.Seller.Street,
		&doc.Seller.ZIP, &doc.Seller.City, &doc.Seller.Country,
		&doc.Seller.ProviderUserID, &doc.Seller.WalletID, &doc.Seller.BankAccountID,
		&doc.Buyer.PayeeID, &doc.Buyer.Name, &doc.Buyer.Email, &doc.Buyer.Street,
		&doc.Buyer.ZIP, &doc.Buyer.City, &doc.Buyer.Country,
		&doc.Buyer.ProviderUserID, &doc.Buyer.WalletID, &doc.Buyer.BankAccountID,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.PaymentReference = paymentRef.String
	doc.ProviderPayinID = payinID.String
	doc.ProviderTag = tag.String
	return &doc, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *Repository) queryDocuments(ctx context.Context, q querier, query string, args ...any) ([]*Document, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, q, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *Repository) loadLines(ctx context.Context, q querier, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	byID := make(map[int64]*Document, len(docs))
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
		ids = append(ids, doc.ID)
	}
	query := `
		SELECT document_id, unit_price, quantity, amount_per_unit, vat_rate, payee_id
		FROM document_lines
		WHERE document_id = ANY($1)
		ORDER BY document_id, id`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var docID int64
		var line money.LineItem
		if err := rows.Scan(&docID, &line.UnitPrice, &line.Quantity, &line.AmountPerUnit, &line.VATRate, &line.PayeeID); err != nil {
			return err
		}
		if doc, ok := byID[docID]; ok {
			doc.Lines = append(doc.Lines, line)
		}
	}
	return rows.Err()
}

// Get returns a single document with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (*Document, error) {
	docs, err := r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// ForOrder returns every document owned by the order.
func (r *Repository) ForOrder(ctx context.Context, orderID int64) ([]*Document, error) {
	return r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents WHERE order_id = $1 ORDER BY id`, orderID)
}

// UnpaidForOrder returns the order's unpaid documents.
func (r *Repository) UnpaidForOrder(ctx context.Context, orderID int64) ([]*Document, error) {
	return r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents WHERE order_id = $1 AND paid = FALSE ORDER BY id`, orderID)
}

// UnpaidByTypes returns the order's unpaid documents of the given types.
func (r *Repository) UnpaidByTypes(ctx context.Context, orderID int64, types ...Type) ([]*Document, error) {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents WHERE order_id = $1 AND paid = FALSE AND type = ANY($2) ORDER BY id`,
		orderID, names)
}

// CreditNotesForOrder returns the order's credit notes, paid or not.
func (r *Repository) CreditNotesForOrder(ctx context.Context, orderID int64) ([]*Document, error) {
	return r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents WHERE order_id = $1 AND type = $2 ORDER BY id`,
		orderID, TypeCreditNote)
}

// UnpaidOrderConfirmations lists a buyer's unpaid order confirmations,
// oldest first. Settlement applies funds to the oldest order before any
// newer one. The buyer is identified by provider user id because that
// is all a pay-in carries.
func (r *Repository) UnpaidOrderConfirmations(ctx context.Context, buyerProviderUserID string) ([]*Document, error) {
	return r.queryDocuments(ctx, r.pool,
		`SELECT `+documentColumns+` FROM documents
		 WHERE buyer_provider_user_id = $1 AND type = $2 AND paid = FALSE
		 ORDER BY created_at, id`,
		buyerProviderUserID, TypeOrderConfirmation)
}

// EmailForProviderUser resolves a payee's mail address from the most
// recent snapshot that mentions the provider user. Snapshots are the
// only party data settlement is allowed to read.
func (r *Repository) EmailForProviderUser(ctx context.Context, providerUserID string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx,
		`SELECT seller_email FROM documents WHERE seller_provider_user_id = $1
		 UNION ALL
		 SELECT buyer_email FROM documents WHERE buyer_provider_user_id = $1
		 LIMIT 1`,
		providerUserID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

// MarkPaid flags a document paid without locking. Only used for
// non-invoice documents (the order confirmation) where no money moves.
func (r *Repository) MarkPaid(ctx context.Context, id int64, reference string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET paid = TRUE, payment_reference = $2, updated_at = NOW() WHERE id = $1`,
		id, reference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PayLocked runs fn under an exclusive non-blocking lock on the document
// row and marks the document paid when fn returns nil. The lock is
// released when the transaction ends. A row already locked elsewhere
// yields ErrLocked, a document already paid yields ErrAlreadyPaid; in
// both cases fn is never called.
func (r *Repository) PayLocked(ctx context.Context, id int64, reference string, fn func(doc *Document) error) error {
	return r.payLocked(ctx, []int64{id}, reference, func(docs []*Document) error {
		return fn(docs[0])
	})
}

// PayAllLocked locks a set of documents and marks them paid as one
// atomic unit. Used for the platform invoices of an order, which are
// settled by a single transfer.
func (r *Repository) PayAllLocked(ctx context.Context, ids []int64, reference string, fn func(docs []*Document) error) error {
	if len(ids) == 0 {
		return nil
	}
	return r.payLocked(ctx, ids, reference, fn)
}

func (r *Repository) payLocked(ctx context.Context, ids []int64, reference string, fn func(docs []*Document) error) error {
	var docs []*Document
	now := time.Now()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		docs, err = r.queryDocuments(ctx, tx,
			`SELECT `+documentColumns+` FROM documents WHERE id = ANY($1) ORDER BY id FOR UPDATE NOWAIT`, ids)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
				return ErrLocked
			}
			return err
		}
		if len(docs) != len(ids) {
			return fmt.Errorf("%w: expected %d documents, found %d", ErrNotFound, len(ids), len(docs))
		}
		for _, doc := range docs {
			if doc.Paid {
				return fmt.Errorf("%w: document %d", ErrAlreadyPaid, doc.ID)
			}
		}

		if err := fn(docs); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE documents SET paid = TRUE, payment_reference = $2, updated_at = $3 WHERE id = ANY($1)`,
			ids, reference, now)
		return err
	})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		doc.Paid = true
		doc.PaymentReference = reference
		doc.UpdatedAt = now
	}
	return nil
}

// SetProviderPayin records the pay-in id a settlement pass applied to
// the document, for reconciliation.
func (r *Repository) SetProviderPayin(ctx context.Context, id int64, payinID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET provider_payin_id = $2, updated_at = NOW() WHERE id = $1`,
		id, payinID)
	return err
}
