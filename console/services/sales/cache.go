package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrReferenceLoad = errors.New("reference data load failed")
)

// ReferenceLoadMessage é a mensagem genérica exibida quando a carga inicial falha
const ReferenceLoadMessage = "Error cargando datos iniciales"

// ReferenceSnapshot é uma foto completa dos dados de referência
type ReferenceSnapshot struct {
	Products []Product `json:"productos"`
	Stores   []Store   `json:"locales"`
	Clients  []Client  `json:"clientes"`
	Sales    []Sale    `json:"ventas"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Product procura um produto pelo id
func (s ReferenceSnapshot) Product(id int64) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// BasePrice retorna o preço base do produto, ou zero se ele não existir
func (s ReferenceSnapshot) BasePrice(id int64) decimal.Decimal {
	if p, ok := s.Product(id); ok {
		return p.PrecioBase
	}
	return decimal.Zero
}

// AvailableQuantity lê o primeiro registro de estoque do produto (0 se ausente)
func (s ReferenceSnapshot) AvailableQuantity(id int64) int {
	if p, ok := s.Product(id); ok {
		return p.AvailableQuantity()
	}
	return 0
}

// ReferenceCache guarda o último snapshot carregado com sucesso
type ReferenceCache struct {
	api         SalesAPI
	logger      *zap.Logger
	instruments *Instruments

	mu      sync.RWMutex
	current ReferenceSnapshot
	loadErr string
}

// NewReferenceCache cria um cache vazio
func NewReferenceCache(api SalesAPI, instruments *Instruments, logger *zap.Logger) *ReferenceCache {
	return &ReferenceCache{
		api:         api,
		logger:      logger,
		instruments: instruments,
	}
}

// LoadAll busca vendas, produtos, locais e clientes em paralelo.
// O snapshot só é substituído se as quatro buscas tiverem sucesso.
func (c *ReferenceCache) LoadAll(ctx context.Context) error {
	ctx, span := StartReferenceLoadSpan(ctx)
	defer span.End()
	started := time.Now()

	var next ReferenceSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		next.Sales, err = c.api.ListSales(gctx)
		return err
	})
	g.Go(func() (err error) {
		next.Products, err = c.api.ListProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		next.Stores, err = c.api.ListStores(gctx)
		return err
	})
	g.Go(func() (err error) {
		next.Clients, err = c.api.ListClients(gctx)
		return err
	})

	err := g.Wait()
	c.instruments.RecordReferenceLoad(ctx, time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("❌ failed to load reference data", zap.Error(err))

		c.mu.Lock()
		c.loadErr = ReferenceLoadMessage
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrReferenceLoad, err)
	}

	next.LoadedAt = time.Now()

	c.mu.Lock()
	c.current = next
	c.loadErr = ""
	c.mu.Unlock()

	c.logger.Info("✅ reference data loaded",
		zap.Int("products", len(next.Products)),
		zap.Int("stores", len(next.Stores)),
		zap.Int("clients", len(next.Clients)),
		zap.Int("sales", len(next.Sales)),
	)
	return nil
}

// Snapshot retorna o snapshot atual; as fatias não devem ser alteradas pelo chamador
func (c *ReferenceCache) Snapshot() ReferenceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *ReferenceCache) LoadError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

func (c *ReferenceCache) BasePrice(id int64) decimal.Decimal {
	return c.Snapshot().BasePrice(id)
}

func (c *ReferenceCache) AvailableQuantity(id int64) int {
	return c.Snapshot().AvailableQuantity(id)
}
