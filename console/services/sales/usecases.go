package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	ErrComposeClosed            = errors.New("compose surface is closed")
	ErrDiscardNeedsConfirmation = errors.New("draft has lines, discarding it requires confirmation")
	ErrSubmissionInFlight       = errors.New("a sale submission is in flight")
)

// SaleCreator é a parte da API usada no envio
type SaleCreator interface {
	CreateSale(ctx context.Context, req CreateSaleRequest) error
}

// ReferenceSource é a parte do cache usada pelo compositor
type ReferenceSource interface {
	LoadAll(ctx context.Context) error
	Snapshot() ReferenceSnapshot
}

// SubmitResult descreve o resultado de uma chamada a Submit
type SubmitResult struct {
	Ignored   bool       `json:"ignored"`
	Phase     Phase      `json:"phase"`
	Message   string     `json:"message,omitempty"`
	Rejection *Rejection `json:"-"`
}

// LineView é uma linha do rascunho com os valores derivados
type LineView struct {
	Index          int              `json:"index"`
	ProductID      int64            `json:"productId"`
	ProductName    string           `json:"productName,omitempty"`
	Quantity       int              `json:"cantidad"`
	UnitPrice      decimal.Decimal  `json:"precioUnitario"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	AvailableStock *int             `json:"stockDisponible,omitempty"`
	BasePrice      *decimal.Decimal `json:"precioBase,omitempty"`
}

// DraftView é o rascunho como exibido ao operador
type DraftView struct {
	ID        string          `json:"id"`
	StoreID   int64           `json:"localId"`
	ClientID  int64           `json:"clienteId"`
	Timestamp string          `json:"fechaVenta"`
	Lines     []LineView      `json:"detalles"`
	Total     decimal.Decimal `json:"total"`
}

// ComposerView é o estado completo da superfície de composição
type ComposerView struct {
	Open           bool      `json:"open"`
	Phase          Phase     `json:"phase"`
	Submitting     bool      `json:"submitting"`
	SuccessMessage string    `json:"successMessage"`
	ErrorMessage   string    `json:"errorMessage"`
	Draft          DraftView `json:"draft"`
}

// DefaultJournalTimeout limita cada escrita no journal
const DefaultJournalTimeout = 5 * time.Second

// ComposerOptions configura os atrasos das mensagens e o limite de escrita no journal
type ComposerOptions struct {
	SuccessDisplayDelay time.Duration
	ErrorDismissDelay   time.Duration
	JournalTimeout      time.Duration
	Now                 func() time.Time
}

// SaleComposer contém a lógica de composição e envio de vendas
type SaleComposer struct {
	api         SaleCreator
	reference   ReferenceSource
	journal     SubmissionJournal
	instruments *Instruments
	logger      *zap.Logger

	successDelay   time.Duration
	errorDelay     time.Duration
	journalTimeout time.Duration
	now            func() time.Time

	mu       sync.Mutex
	draft    Draft
	open     bool
	inFlight bool
	phase    Phase
	success  Notice
	failure  Notice
}

// NewSaleComposer cria uma nova instância de SaleComposer com um rascunho vazio
func NewSaleComposer(
	api SaleCreator,
	reference ReferenceSource,
	journal SubmissionJournal,
	instruments *Instruments,
	logger *zap.Logger,
	opts ComposerOptions,
) *SaleComposer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.JournalTimeout <= 0 {
		opts.JournalTimeout = DefaultJournalTimeout
	}
	return &SaleComposer{
		api:          api,
		reference:    reference,
		journal:      journal,
		instruments:  instruments,
		logger:       logger,
		successDelay:   opts.SuccessDisplayDelay,
		errorDelay:     opts.ErrorDismissDelay,
		journalTimeout: opts.JournalTimeout,
		now:            opts.Now,
		draft:          NewDraft(opts.Now()),
		phase:          PhaseIdle,
	}
}

// Open abre a superfície de composição mantendo o rascunho atual
func (uc *SaleComposer) Open() ComposerView {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.open = true
	return uc.viewLocked()
}

// Cancel fecha a superfície e descarta o rascunho.
// Com linhas no rascunho exige confirmed; durante um envio é recusado.
func (uc *SaleComposer) Cancel(confirmed bool) (ComposerView, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.inFlight {
		return uc.viewLocked(), ErrSubmissionInFlight
	}
	if len(uc.draft.Lines) > 0 && !confirmed {
		return uc.viewLocked(), ErrDiscardNeedsConfirmation
	}

	uc.open = false
	uc.draft = NewDraft(uc.now())
	uc.success.Clear()
	uc.failure.Clear()
	uc.phase = PhaseIdle
	return uc.viewLocked(), nil
}

func (uc *SaleComposer) SetStore(id int64) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.WithStore(id), nil })
}

func (uc *SaleComposer) SetClient(id int64) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.WithClient(id), nil })
}

func (uc *SaleComposer) SetTimestamp(value string) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.WithTimestamp(value), nil })
}

func (uc *SaleComposer) AddLine() (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.AddLine(), nil })
}

func (uc *SaleComposer) RemoveLine(index int) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.RemoveLine(index) })
}

// SetLineProduct troca o produto da linha e reaplica o preço base do cache
func (uc *SaleComposer) SetLineProduct(index int, productID int64) (ComposerView, error) {
	prices := uc.reference.Snapshot()
	return uc.mutate(func(d Draft) (Draft, error) { return d.SetLineProduct(index, productID, prices) })
}

func (uc *SaleComposer) SetLineQuantity(index int, qty int) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.SetLineQuantity(index, qty) })
}

func (uc *SaleComposer) SetLineUnitPrice(index int, price decimal.Decimal) (ComposerView, error) {
	return uc.mutate(func(d Draft) (Draft, error) { return d.SetLineUnitPrice(index, price) })
}

// Submit valida, envia, recarrega o cache e reinicia o rascunho.
// Envios concorrentes são ignorados enquanto um envio estiver em andamento.
func (uc *SaleComposer) Submit(ctx context.Context) (SubmitResult, error) {
	// In-flight submissions are never aborted by the caller going away.
	ctx = context.WithoutCancel(ctx)

	uc.mu.Lock()
	if !uc.open {
		phase := uc.phase
		uc.mu.Unlock()
		return SubmitResult{Phase: phase}, ErrComposeClosed
	}
	if uc.inFlight {
		phase := uc.phase
		uc.mu.Unlock()
		uc.logger.Info("ℹ️ [SUBMIT] already in flight, ignoring")
		uc.instruments.RecordSubmission(ctx, "ignored")
		return SubmitResult{Ignored: true, Phase: phase}, nil
	}
	uc.inFlight = true
	uc.phase = PhaseSubmitting
	uc.success.Clear()
	uc.failure.Clear()
	draft := uc.draft.clone()
	uc.mu.Unlock()

	ctx, span := StartSubmitSpan(ctx, draft)
	defer span.End()

	uc.logger.Info("➡️ [SUBMIT] sale",
		zap.String("draft_id", draft.ID.String()),
		zap.Int("lines", len(draft.Lines)),
		zap.String("total", draft.Total().StringFixed(2)),
	)

	// 1. Validação local
	if err := ValidateDraft(draft, uc.reference.Snapshot()); err != nil {
		var rejection *Rejection
		if !errors.As(err, &rejection) {
			rejection = &Rejection{Code: "invalid", Message: err.Error()}
		}
		span.SetAttributes(attribute.String("sale.rejection", rejection.Code))

		uc.mu.Lock()
		uc.phase = PhaseFailed
		uc.failure.Set(rejection.Message)
		uc.inFlight = false
		uc.mu.Unlock()

		uc.logger.Info("⚠️ [SUBMIT] rejected by validation",
			zap.String("draft_id", draft.ID.String()),
			zap.String("reason", rejection.Code),
		)
		uc.record(ctx, draft, OutcomeRejected, rejection.Message)
		return SubmitResult{Phase: PhaseFailed, Message: rejection.Message, Rejection: rejection}, nil
	}

	// 2. Criação no backend
	if err := uc.api.CreateSale(ctx, NewCreateSaleRequest(draft)); err != nil {
		message := operatorMessage(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sale creation failed")

		uc.mu.Lock()
		uc.phase = PhaseFailed
		gen := uc.failure.Set(message)
		uc.failure.Arm(time.AfterFunc(uc.errorDelay, func() { uc.expireFailure(gen) }))
		uc.inFlight = false
		uc.mu.Unlock()

		uc.logger.Error("❌ [SUBMIT] sale creation failed",
			zap.String("draft_id", draft.ID.String()),
			zap.Error(err),
		)
		uc.record(ctx, draft, OutcomeFailed, message)
		return SubmitResult{Phase: PhaseFailed, Message: message}, nil
	}

	uc.mu.Lock()
	uc.phase = PhaseSucceeded
	gen := uc.success.Set(SaleCreatedMessage)
	uc.success.Arm(time.AfterFunc(uc.successDelay, func() { uc.closeAfterSuccess(gen) }))
	uc.mu.Unlock()

	span.SetStatus(codes.Ok, "sale created")
	uc.logger.Info("✅ [SUBMIT] sale created", zap.String("draft_id", draft.ID.String()))
	uc.record(ctx, draft, OutcomeCreated, SaleCreatedMessage)

	// 3. Recarrega referências e reinicia o rascunho
	if err := uc.reference.LoadAll(ctx); err != nil {
		uc.logger.Warn("reference refresh after sale failed", zap.Error(err))
	}

	uc.mu.Lock()
	uc.draft = NewDraft(uc.now())
	uc.inFlight = false
	uc.mu.Unlock()

	return SubmitResult{Phase: PhaseSucceeded, Message: SaleCreatedMessage}, nil
}

// View retorna o estado atual da superfície de composição
func (uc *SaleComposer) View() ComposerView {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.viewLocked()
}

// Draft retorna uma cópia do rascunho atual
func (uc *SaleComposer) Draft() Draft {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.draft.clone()
}

func (uc *SaleComposer) Phase() Phase {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.phase
}

func (uc *SaleComposer) mutate(fn func(Draft) (Draft, error)) (ComposerView, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.open {
		return uc.viewLocked(), ErrComposeClosed
	}
	next, err := fn(uc.draft)
	if err != nil {
		return uc.viewLocked(), err
	}
	uc.draft = next
	return uc.viewLocked(), nil
}

func (uc *SaleComposer) expireFailure(gen uint64) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.failure.Expire(gen) && uc.phase == PhaseFailed {
		uc.phase = PhaseIdle
	}
}

func (uc *SaleComposer) closeAfterSuccess(gen uint64) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if !uc.success.Expire(gen) {
		return
	}
	uc.failure.Clear()
	uc.open = false
	if uc.phase == PhaseSucceeded {
		uc.phase = PhaseIdle
	}
}

func (uc *SaleComposer) record(ctx context.Context, d Draft, outcome, message string) {
	uc.instruments.RecordSubmission(ctx, outcome)

	// Runs inside the in-flight window; a stuck journal must not hold it open.
	ctx, cancel := context.WithTimeout(ctx, uc.journalTimeout)
	defer cancel()
	if err := uc.journal.Record(ctx, NewSubmissionEntry(d, outcome, message)); err != nil {
		uc.logger.Warn("failed to journal submission", zap.String("outcome", outcome), zap.Error(err))
	}
}

func (uc *SaleComposer) viewLocked() ComposerView {
	snapshot := uc.reference.Snapshot()

	lines := make([]LineView, 0, len(uc.draft.Lines))
	for i, line := range uc.draft.Lines {
		lv := LineView{
			Index:     i,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal(),
		}
		if product, ok := snapshot.Product(line.ProductID); ok {
			available := product.AvailableQuantity()
			base := product.PrecioBase
			lv.ProductName = product.Nombre
			lv.AvailableStock = &available
			lv.BasePrice = &base
		}
		lines = append(lines, lv)
	}

	return ComposerView{
		Open:           uc.open,
		Phase:          uc.phase,
		Submitting:     uc.inFlight,
		SuccessMessage: uc.success.Message(),
		ErrorMessage:   uc.failure.Message(),
		Draft: DraftView{
			ID:        uc.draft.ID.String(),
			StoreID:   uc.draft.StoreID,
			ClientID:  uc.draft.ClientID,
			Timestamp: uc.draft.Timestamp,
			Lines:     lines,
			Total:     uc.draft.Total(),
		},
	}
}
