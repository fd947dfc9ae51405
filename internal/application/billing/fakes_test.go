package billing_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	"github.com/jhoicas/Facturacion-api/internal/domain"
	"github.com/jhoicas/Facturacion-api/internal/domain/entity"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/domain/repository"
	infrafiscal "github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

const (
	companyID = "comp-1"
	userID    = "user-1"
)

var testConfig = billing.Config{
	CountryCode:     pkgfiscal.CountryCodeCaboVerde,
	DefaultSeries:   "A",
	WithholdingRate: decimal.RequireFromString("0.04"),
}

// memStore almacén en memoria con semántica transaccional mínima: las transacciones se
// serializan (equivale al bloqueo de fila) y un error en fn restaura el estado previo.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	docs     map[string]*entity.Document
	counters map[string]int64
	events   []entity.SettlementEvent

	failNextSequence    error
	failSaveReservation error
	failSaveIssued      error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*entity.Document{}, counters: map[string]int64{}}
}

func cloneDoc(d *entity.Document) *entity.Document {
	c := *d
	c.Items = append([]entity.LineItem(nil), d.Items...)
	return &c
}

func (s *memStore) RunFinalize(ctx context.Context, fn func(repository.DocumentRepository, repository.SequenceAuthority, repository.SettlementRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	docs := make(map[string]*entity.Document, len(s.docs))
	for k, v := range s.docs {
		docs[k] = cloneDoc(v)
	}
	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	events := append([]entity.SettlementEvent(nil), s.events...)
	s.mu.Unlock()

	if err := fn(memDocs{s}, memSeqs{s}, memSettlements{s}); err != nil {
		s.mu.Lock()
		s.docs, s.counters, s.events = docs, counters, events
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) doc(id string) *entity.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return cloneDoc(d)
	}
	return nil
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

var _ billing.FinalizeTxRunner = (*memStore)(nil)

type memDocs struct{ s *memStore }

var _ repository.DocumentRepository = memDocs{}

func (r memDocs) Create(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.docs[doc.ID]; ok {
		return domain.ErrConflict
	}
	r.s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r memDocs) UpdateDraft(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if !cur.IsDraft() {
		return domain.ErrImmutableDocument
	}
	if cur.IsReserved() {
		return domain.ErrFinalizeInProgress
	}
	r.s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r memDocs) GetByID(_ context.Context, id string) (*entity.Document, error) {
	return r.s.doc(id), nil
}

func (r memDocs) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.GetByID(ctx, id)
}

func (r memDocs) SaveReservation(_ context.Context, doc *entity.Document) error {
	if r.s.failSaveReservation != nil {
		return r.s.failSaveReservation
	}
	return r.put(doc)
}

func (r memDocs) SaveIssued(_ context.Context, doc *entity.Document) error {
	if r.s.failSaveIssued != nil {
		return r.s.failSaveIssued
	}
	return r.put(doc)
}

func (r memDocs) UpdateStatus(_ context.Context, doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != entity.StatusIssued {
		return domain.ErrConflict
	}
	cur.Status = doc.Status
	cur.VoidReason = doc.VoidReason
	cur.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r memDocs) UpdateFiscalStatus(_ context.Context, doc *entity.Document, prevStatus string, prevAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.docs[doc.ID]
	if !ok || cur.IsDraft() {
		return domain.ErrNotFound
	}
	if cur.FiscalStatus != prevStatus || cur.FiscalAttempts != prevAttempts {
		return domain.ErrConflict
	}
	cur.FiscalStatus = doc.FiscalStatus
	cur.FiscalError = doc.FiscalError
	cur.FiscalAttempts = doc.FiscalAttempts
	cur.FiscalDigest = doc.FiscalDigest
	cur.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r memDocs) ListByFiscalStatus(_ context.Context, fiscalStatus string, limit int) ([]*entity.Document, error) {
	return r.filter(limit, func(d *entity.Document) bool { return d.FiscalStatus == fiscalStatus }), nil
}

func (r memDocs) ListStalePending(_ context.Context, before time.Time, limit int) ([]*entity.Document, error) {
	return r.filter(limit, func(d *entity.Document) bool {
		return d.FiscalStatus == entity.FiscalStatusPending && d.UpdatedAt.Before(before)
	}), nil
}

func (r memDocs) filter(limit int, keep func(*entity.Document) bool) []*entity.Document {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.s.docs {
		if !d.IsDraft() && keep(d) && len(out) < limit {
			out = append(out, cloneDoc(d))
		}
	}
	return out
}

// hookDocs ejecuta onGet tras cada lectura; sirve para intercalar otro proceso entre la
// lectura y la escritura del caso de uso.
type hookDocs struct {
	memDocs
	onGet func(doc *entity.Document)
}

func (r hookDocs) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	doc, err := r.memDocs.GetByID(ctx, id)
	if err == nil && doc != nil && r.onGet != nil {
		r.onGet(doc)
	}
	return doc, err
}

func (s *memStore) update(id string, fn func(d *entity.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		fn(d)
	}
}

func (r memDocs) put(doc *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[doc.ID] = cloneDoc(doc)
	return nil
}

type memSeqs struct{ s *memStore }

var _ repository.SequenceAuthority = memSeqs{}

func (r memSeqs) NextSequence(_ context.Context, companyID, series string) (int64, error) {
	if r.s.failNextSequence != nil {
		return 0, r.s.failNextSequence
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := companyID + "/" + series
	r.s.counters[key]++
	return r.s.counters[key], nil
}

func (r memSeqs) Current(_ context.Context, companyID, series string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.counters[companyID+"/"+series], nil
}

type memSettlements struct{ s *memStore }

var _ repository.SettlementRepository = memSettlements{}

func (r memSettlements) Record(_ context.Context, ev entity.SettlementEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, ev)
	return nil
}

func (r memSettlements) ListByDocument(_ context.Context, documentID string) ([]entity.SettlementEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.SettlementEvent
	for _, ev := range r.s.events {
		if ev.Base().DocumentID == documentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memCompanies map[string]*entity.Company

func (m memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	if c, ok := m[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

type memClients map[string]*entity.Client

func (m memClients) GetByID(_ context.Context, id string) (*entity.Client, error) {
	if c, ok := m[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// recordingTrigger registra los documentos enviados a transmisión.
type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (t *recordingTrigger) ProcessAsync(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = append(t.ids, id)
}

func (t *recordingTrigger) calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ids...)
}

// fakeSubmitter devuelve resultados preparados en orden.
type fakeSubmitter struct {
	mu      sync.Mutex
	results []*infrafiscal.SubmitResult
	err     error
	calls   int
}

func (f *fakeSubmitter) SubmitZip(_ context.Context, _ []byte, _, _ string) (*infrafiscal.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, errors.New("sin respuesta preparada")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

// fixture agrupa el almacén y los casos de uso cableados contra él.
type fixture struct {
	store     *memStore
	trigger   *recordingTrigger
	companies memCompanies
	clients   memClients
	drafts    *billing.DraftUseCase
	finalize  *billing.FinalizeUseCase
	notes     *billing.CreditNoteUseCase
	status    *billing.StatusUseCase
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:   store,
		trigger: &recordingTrigger{},
		companies: memCompanies{
			companyID: {ID: companyID, Name: "Loja Central", NIF: "123456789", LEDCode: "00001", RepositoryCode: "1"},
			"comp-2":  {ID: "comp-2", Name: "Outra", NIF: "100000002", LEDCode: "00002", RepositoryCode: "1"},
		},
		clients: memClients{
			"cli-1":    {ID: "cli-1", CompanyID: companyID, Name: "Cliente Exemplo", TaxID: "100000002", Address: "Rua Principal 10, Praia"},
			"cli-notx": {ID: "cli-notx", CompanyID: companyID, Name: "Consumidor final"},
			"cli-2":    {ID: "cli-2", CompanyID: "comp-2", Name: "Ajeno", TaxID: "100000002", Address: "Rua 2, Mindelo"},
		},
	}
	log := logger.Nop()
	docs := memDocs{store}
	f.drafts = billing.NewDraftUseCase(docs, f.clients, testConfig, log)
	f.finalize = billing.NewFinalizeUseCase(store, docs, f.companies, pkgfiscal.Mod11Validator{}, fiscal.CryptoRandomCode, f.trigger, testConfig, log)
	f.notes = billing.NewCreditNoteUseCase(docs, testConfig, log)
	f.status = billing.NewStatusUseCase(docs, log)
	return f
}
