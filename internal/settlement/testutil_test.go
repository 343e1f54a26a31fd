package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/regiomarkt/regiomarkt/internal/documents"
	"github.com/regiomarkt/regiomarkt/internal/mangopay"
)

type memoryDocRepo struct {
	mu    sync.Mutex
	docs  map[int64]*documents.Document
	locks map[int64]bool
}

func newMemoryDocRepo(docs ...*documents.Document) *memoryDocRepo {
	r := &memoryDocRepo{
		docs:  make(map[int64]*documents.Document),
		locks: make(map[int64]bool),
	}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *memoryDocRepo) sorted(filter func(*documents.Document) bool) []*documents.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*documents.Document
	var maxID int64
	for id := range r.docs {
		if id > maxID {
			maxID = id
		}
	}
	for id := int64(1); id <= maxID; id++ {
		doc, ok := r.docs[id]
		if ok && filter(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func (r *memoryDocRepo) UnpaidForOrder(_ context.Context, orderID int64) ([]*documents.Document, error) {
	return r.sorted(func(d *documents.Document) bool {
		return d.OrderID == orderID && !d.Paid
	}), nil
}

func (r *memoryDocRepo) UnpaidByTypes(_ context.Context, orderID int64, types ...documents.Type) ([]*documents.Document, error) {
	return r.sorted(func(d *documents.Document) bool {
		if d.OrderID != orderID || d.Paid {
			return false
		}
		for _, t := range types {
			if d.Type == t {
				return true
			}
		}
		return false
	}), nil
}

func (r *memoryDocRepo) CreditNotesForOrder(_ context.Context, orderID int64) ([]*documents.Document, error) {
	return r.sorted(func(d *documents.Document) bool {
		return d.OrderID == orderID && d.Type == documents.TypeCreditNote
	}), nil
}

func (r *memoryDocRepo) UnpaidOrderConfirmations(_ context.Context, buyerProviderUserID string) ([]*documents.Document, error) {
	confs := r.sorted(func(d *documents.Document) bool {
		return d.Buyer.ProviderUserID == buyerProviderUserID &&
			d.Type == documents.TypeOrderConfirmation && !d.Paid
	})
	// Oldest first, creation time before id.
	for i := 1; i < len(confs); i++ {
		for j := i; j > 0 && confs[j].CreatedAt.Before(confs[j-1].CreatedAt); j-- {
			confs[j], confs[j-1] = confs[j-1], confs[j]
		}
	}
	return confs, nil
}

func (r *memoryDocRepo) PayLocked(ctx context.Context, id int64, reference string, fn func(doc *documents.Document) error) error {
	return r.PayAllLocked(ctx, []int64{id}, reference, func(docs []*documents.Document) error {
		return fn(docs[0])
	})
}

func (r *memoryDocRepo) PayAllLocked(_ context.Context, ids []int64, reference string, fn func(docs []*documents.Document) error) error {
	r.mu.Lock()
	var locked []*documents.Document
	for _, id := range ids {
		doc, ok := r.docs[id]
		if !ok {
			r.mu.Unlock()
			return documents.ErrNotFound
		}
		if r.locks[id] {
			r.mu.Unlock()
			return documents.ErrLocked
		}
		locked = append(locked, doc)
	}
	for _, id := range ids {
		r.locks[id] = true
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		for _, id := range ids {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}()

	for _, doc := range locked {
		if doc.Paid {
			return fmt.Errorf("%w: document %d", documents.ErrAlreadyPaid, doc.ID)
		}
	}
	if err := fn(locked); err != nil {
		return err
	}
	r.mu.Lock()
	for _, doc := range locked {
		doc.Paid = true
		doc.PaymentReference = reference
	}
	r.mu.Unlock()
	return nil
}

func (r *memoryDocRepo) SetProviderPayin(_ context.Context, id int64, payinID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.ProviderPayinID = payinID
	}
	return nil
}

func (r *memoryDocRepo) EmailForProviderUser(_ context.Context, providerUserID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.Seller.ProviderUserID == providerUserID {
			return doc.Seller.Email, nil
		}
		if doc.Buyer.ProviderUserID == providerUserID {
			return doc.Buyer.Email, nil
		}
	}
	return "", documents.ErrNotFound
}

// fakeProvider keeps wallet balances in cents and applies transfers to
// them, so balance-driven behavior is observable end to end.
type fakeProvider struct {
	mu           sync.Mutex
	payins       map[string]*mangopay.PayIn
	payouts      map[string]*mangopay.PayOut
	wallets      map[string]*mangopay.Wallet
	transfers    []mangopay.TransferInput
	failWallets  map[string]error
	transferHold chan struct{}
	payinErr     error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		payins:      make(map[string]*mangopay.PayIn),
		payouts:     make(map[string]*mangopay.PayOut),
		wallets:     make(map[string]*mangopay.Wallet),
		failWallets: make(map[string]error),
	}
}

func (p *fakeProvider) addWallet(id, owner string, balanceCents int64) {
	p.wallets[id] = &mangopay.Wallet{
		ID:       id,
		Owners:   []string{owner},
		Currency: "EUR",
		Balance:  mangopay.Funds{Currency: "EUR", Amount: balanceCents},
	}
}

func (p *fakeProvider) addPayin(id, status, walletID string, amountCents int64) {
	p.payins[id] = &mangopay.PayIn{
		ID:               id,
		Status:           status,
		CreditedWalletID: walletID,
		CreditedFunds:    mangopay.Funds{Currency: "EUR", Amount: amountCents},
	}
}

func (p *fakeProvider) PayIn(_ context.Context, id string) (*mangopay.PayIn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payinErr != nil {
		return nil, p.payinErr
	}
	payin, ok := p.payins[id]
	if !ok {
		return nil, mangopay.ErrNotFound
	}
	return payin, nil
}

func (p *fakeProvider) PayOut(_ context.Context, id string) (*mangopay.PayOut, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	payout, ok := p.payouts[id]
	if !ok {
		return nil, mangopay.ErrNotFound
	}
	return payout, nil
}

func (p *fakeProvider) Wallet(_ context.Context, id string) (*mangopay.Wallet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wallet, ok := p.wallets[id]
	if !ok {
		return nil, mangopay.ErrNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (p *fakeProvider) Transfer(_ context.Context, input mangopay.TransferInput) (*mangopay.Transfer, error) {
	if p.transferHold != nil {
		<-p.transferHold
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failWallets[input.CreditedWalletID]; ok {
		return nil, err
	}
	source, ok := p.wallets[input.DebitedWalletID]
	if !ok {
		return nil, mangopay.ErrNotFound
	}
	amountCents := mangopay.ToCents(input.Amount)
	feeCents := mangopay.ToCents(input.Fees)
	if source.Balance.Amount < amountCents {
		return nil, &mangopay.TransferError{
			Operation:     "transfer",
			ResultCode:    "001001",
			ResultMessage: "insufficient wallet balance",
		}
	}
	source.Balance.Amount -= amountCents
	if dest, ok := p.wallets[input.CreditedWalletID]; ok {
		dest.Balance.Amount += amountCents - feeCents
	}
	p.transfers = append(p.transfers, input)
	return &mangopay.Transfer{ID: fmt.Sprintf("tr-%d", len(p.transfers)), Status: mangopay.StatusSucceeded}, nil
}

func (p *fakeProvider) transferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transfers)
}

type sentMail struct {
	Recipients []string
	Subject    string
	Template   string
	Data       map[string]any
}

type fakeNotifier struct {
	mu    sync.Mutex
	mails []sentMail
}

func (n *fakeNotifier) Notify(_ context.Context, recipients []string, subject, template string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mails = append(n.mails, sentMail{Recipients: recipients, Subject: subject, Template: template, Data: data})
	return nil
}

func (n *fakeNotifier) byTemplate(name string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.mails {
		if m.Template == name {
			out = append(out, m)
		}
	}
	return out
}

type fakePayouts struct {
	mu       sync.Mutex
	requests []PayoutRequest
}

func (p *fakePayouts) SchedulePayout(_ context.Context, req PayoutRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil
}

// fakeCompleter honors the real CompletionTracker's contract: once no
// invoice-type document of the order remains unpaid, the order's
// confirmation documents are marked paid with the reference.
type fakeCompleter struct {
	mu     sync.Mutex
	repo   *memoryDocRepo
	orders []int64
}

func (c *fakeCompleter) TryComplete(_ context.Context, orderID int64, reference string) (bool, error) {
	c.mu.Lock()
	c.orders = append(c.orders, orderID)
	c.mu.Unlock()

	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	var confirmations []*documents.Document
	for _, doc := range c.repo.docs {
		if doc.OrderID != orderID {
			continue
		}
		if doc.Type.IsInvoice() && !doc.Paid {
			return false, nil
		}
		if doc.Type == documents.TypeOrderConfirmation && !doc.Paid {
			confirmations = append(confirmations, doc)
		}
	}
	for _, doc := range confirmations {
		doc.Paid = true
		doc.PaymentReference = reference
	}
	return true, nil
}

type memoryEventStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{seen: make(map[string]bool)}
}

func (s *memoryEventStore) Processed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *memoryEventStore) MarkProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[eventID] = true
	return nil
}

func cents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func at(day int) time.Time {
	return time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC)
}
