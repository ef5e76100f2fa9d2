package main

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockSalesAPI simula a API remota
type MockSalesAPI struct {
	mock.Mock
}

func (m *MockSalesAPI) ListSales(ctx context.Context) ([]Sale, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Sale), args.Error(1)
}

func (m *MockSalesAPI) ListProducts(ctx context.Context) ([]Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Product), args.Error(1)
}

func (m *MockSalesAPI) ListStores(ctx context.Context) ([]Store, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Store), args.Error(1)
}

func (m *MockSalesAPI) ListClients(ctx context.Context) ([]Client, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Client), args.Error(1)
}

func (m *MockSalesAPI) CreateSale(ctx context.Context, req CreateSaleRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockSubmissionJournal para testes que não precisam de banco real
type MockSubmissionJournal struct {
	mock.Mock
}

func (m *MockSubmissionJournal) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSubmissionJournal) Record(ctx context.Context, entry *SubmissionEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSubmissionJournal) Recent(ctx context.Context, limit int) ([]SubmissionEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]SubmissionEntry), args.Error(1)
}

// recordedOutcomes lista os outcomes gravados no journal, na ordem
func (m *MockSubmissionJournal) recordedOutcomes() []string {
	var outcomes []string
	for _, call := range m.Calls {
		if call.Method != "Record" {
			continue
		}
		outcomes = append(outcomes, call.Arguments.Get(1).(*SubmissionEntry).Outcome)
	}
	return outcomes
}

// fakeReference é um ReferenceSource em memória
type fakeReference struct {
	mu       sync.Mutex
	snapshot ReferenceSnapshot
	loadErr  error
	loads    atomic.Int32
	// hold, quando definido, segura LoadAll até ser fechado
	hold chan struct{}
}

func (f *fakeReference) LoadAll(context.Context) error {
	f.loads.Add(1)
	if f.hold != nil {
		<-f.hold
	}
	return f.loadErr
}

func (f *fakeReference) Snapshot() ReferenceSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func testProducts() []Product {
	return []Product{
		{
			ID:         1,
			SKU:        "CAM-001",
			Nombre:     "Camisa",
			PrecioBase: decimal.RequireFromString("12.50"),
			Estado:     true,
			Stocks:     []StockRecord{{ID: 10, CantidadDisponible: 3}, {ID: 11, CantidadDisponible: 50}},
		},
		{
			ID:         2,
			SKU:        "PAN-002",
			Nombre:     "Pantalón",
			PrecioBase: decimal.RequireFromString("30"),
			Estado:     true,
			Stocks:     []StockRecord{{ID: 20, CantidadDisponible: 10}},
		},
		{
			ID:         3,
			SKU:        "GOR-003",
			Nombre:     "Gorra",
			PrecioBase: decimal.RequireFromString("8"),
			Estado:     true,
		},
	}
}

func testSnapshot() ReferenceSnapshot {
	return ReferenceSnapshot{
		Products: testProducts(),
		Stores:   []Store{{ID: 1, Nombre: "Centro"}, {ID: 2, Nombre: "Norte"}},
		Clients:  []Client{{ID: 7, Nombre: "Ana"}},
		Sales:    []Sale{},
	}
}
