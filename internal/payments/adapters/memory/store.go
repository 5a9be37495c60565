package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukasoft/pos/internal/payments/domain"
	"github.com/dukasoft/pos/internal/payments/ports"
)

// Store provides an in-memory implementation of every persistence port,
// useful for local development and tests. WithLockedTransaction holds
// the store mutex for the duration of the unit of work, which gives the
// same serialization a row lock provides in Postgres.
type Store struct {
	mu           sync.Mutex
	orders       map[string]domain.Order
	orderItems   map[string][]domain.OrderItem
	invoices     map[string]domain.Invoice
	invoiceItems map[string][]domain.InvoiceItem
	transactions map[string]domain.PaymentTransaction
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		orders:       make(map[string]domain.Order),
		orderItems:   make(map[string][]domain.OrderItem),
		invoices:     make(map[string]domain.Invoice),
		invoiceItems: make(map[string][]domain.InvoiceItem),
		transactions: make(map[string]domain.PaymentTransaction),
	}
}

func (s *Store) Create(_ context.Context, order domain.Order, items []domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	s.orderItems[order.ID] = append([]domain.OrderItem(nil), items...)
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrder(id)
}

func (s *Store) GetByReference(_ context.Context, reference string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.Reference == reference {
			stored := order
			return &stored, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (s *Store) ListItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrderItems(orderID), nil
}

func (s *Store) Update(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveOrder(order)
}

// UpdateLocked holds the store mutex across the read, fn and the write,
// matching the row-lock semantics of the Postgres repository.
func (s *Store) UpdateLocked(_ context.Context, id string, fn func(order *domain.Order) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.getOrder(id)
	if err != nil {
		return err
	}
	if err := fn(order); err != nil {
		return err
	}
	return s.saveOrder(*order)
}

func (s *Store) createInvoice(invoice domain.Invoice, items []domain.InvoiceItem) error {
	if _, ok := s.invoices[invoice.Number]; ok {
		return ports.ErrDuplicateInvoice
	}
	s.invoices[invoice.Number] = invoice
	s.invoiceItems[invoice.Number] = append([]domain.InvoiceItem(nil), items...)
	return nil
}

func (s *Store) getInvoice(number string) (*domain.Invoice, error) {
	invoice, ok := s.invoices[number]
	if !ok {
		return nil, ports.ErrNotFound
	}
	stored := invoice
	return &stored, nil
}

func (s *Store) saveInvoiceAmounts(invoice domain.Invoice) error {
	stored, ok := s.invoices[invoice.Number]
	if !ok {
		return ports.ErrNotFound
	}
	stored.Amount = invoice.Amount
	stored.AmountPaid = invoice.AmountPaid
	stored.AmountDue = invoice.AmountDue
	stored.Status = invoice.Status
	stored.UpdatedAt = time.Now().UTC()
	s.invoices[invoice.Number] = stored
	return nil
}

func (s *Store) getOrder(id string) (*domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	stored := order
	return &stored, nil
}

func (s *Store) saveOrder(order domain.Order) error {
	if _, ok := s.orders[order.ID]; !ok {
		return ports.ErrNotFound
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[order.ID] = order
	return nil
}

func (s *Store) listOrderItems(orderID string) []domain.OrderItem {
	return append([]domain.OrderItem(nil), s.orderItems[orderID]...)
}

func (s *Store) findTransaction(correlationID string) (*domain.PaymentTransaction, error) {
	for _, txn := range s.transactions {
		if txn.CheckoutRequestID == correlationID || txn.MerchantRequestID == correlationID {
			stored := txn
			return &stored, nil
		}
	}
	return nil, ports.ErrNotFound
}

func (s *Store) saveTransaction(txn domain.PaymentTransaction) error {
	if _, ok := s.transactions[txn.ID]; !ok {
		return ports.ErrNotFound
	}
	txn.UpdatedAt = time.Now().UTC()
	s.transactions[txn.ID] = txn
	return nil
}

// OrderStore exposes the ports.OrderRepository view of the store.
func (s *Store) OrderStore() *Store { return s }

// InvoiceStore adapts the store to ports.InvoiceRepository; a separate
// type because Create has a different shape on the order side.
type InvoiceStore struct {
	store *Store
}

func (s *Store) InvoiceStore() *InvoiceStore {
	return &InvoiceStore{store: s}
}

func (i *InvoiceStore) Create(_ context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()
	return i.store.createInvoice(invoice, items)
}

func (i *InvoiceStore) GetByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()
	return i.store.getInvoice(number)
}

func (i *InvoiceStore) UpdateAmounts(_ context.Context, invoice domain.Invoice) error {
	i.store.mu.Lock()
	defer i.store.mu.Unlock()
	return i.store.saveInvoiceAmounts(invoice)
}

// TransactionStore adapts the store to ports.TransactionRepository.
type TransactionStore struct {
	store *Store
}

func (s *Store) TransactionStore() *TransactionStore {
	return &TransactionStore{store: s}
}

func (t *TransactionStore) Create(_ context.Context, txn domain.PaymentTransaction) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.transactions[txn.ID] = txn
	return nil
}

func (t *TransactionStore) FindByCorrelation(_ context.Context, correlationID string) (*domain.PaymentTransaction, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.findTransaction(correlationID)
}

func (t *TransactionStore) ListStalePending(_ context.Context, cutoff time.Time) ([]domain.PaymentTransaction, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var stale []domain.PaymentTransaction
	for _, txn := range t.store.transactions {
		if txn.Status == domain.TransactionPending && txn.CreatedAt.Before(cutoff) {
			stale = append(stale, txn)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})
	return stale, nil
}

func (t *TransactionStore) Update(_ context.Context, txn domain.PaymentTransaction) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.saveTransaction(txn)
}

// WithLockedTransaction implements ports.TransactionRunner. The store
// mutex is held for the whole unit of work, so concurrent deliveries of
// the same callback run one after another, exactly like the row lock.
// Mutations are not rolled back on error; the handlers only mutate
// after their guards pass, which keeps the happy path equivalent.
func (s *Store) WithLockedTransaction(ctx context.Context, correlationID string, fn func(ctx context.Context, store ports.ReconciliationStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, err := s.findTransaction(correlationID)
	if err != nil {
		return err
	}

	return fn(ctx, &lockedView{store: s, txn: txn})
}

type lockedView struct {
	store *Store
	txn   *domain.PaymentTransaction
}

func (v *lockedView) Transaction() *domain.PaymentTransaction {
	return v.txn
}

func (v *lockedView) SaveTransaction(_ context.Context, txn *domain.PaymentTransaction) error {
	return v.store.saveTransaction(*txn)
}

func (v *lockedView) GetOrderForUpdate(_ context.Context, id string) (*domain.Order, error) {
	return v.store.getOrder(id)
}

func (v *lockedView) SaveOrder(_ context.Context, order *domain.Order) error {
	return v.store.saveOrder(*order)
}

func (v *lockedView) OrderItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	return v.store.listOrderItems(orderID), nil
}

func (v *lockedView) GetInvoiceByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	return v.store.getInvoice(number)
}

func (v *lockedView) CreateInvoice(_ context.Context, invoice domain.Invoice, items []domain.InvoiceItem) error {
	return v.store.createInvoice(invoice, items)
}

func (v *lockedView) SaveInvoiceAmounts(_ context.Context, invoice *domain.Invoice) error {
	return v.store.saveInvoiceAmounts(*invoice)
}
