package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mockReferenceLists(api *MockSalesAPI, snapshot ReferenceSnapshot) {
	api.On("ListSales", mock.Anything).Return(snapshot.Sales, nil)
	api.On("ListProducts", mock.Anything).Return(snapshot.Products, nil)
	api.On("ListStores", mock.Anything).Return(snapshot.Stores, nil)
	api.On("ListClients", mock.Anything).Return(snapshot.Clients, nil)
}

func TestReferenceCache_LoadAll(t *testing.T) {
	// Arrange
	api := new(MockSalesAPI)
	mockReferenceLists(api, testSnapshot())
	cache := NewReferenceCache(api, nil, zap.NewNop())

	// Act
	err := cache.LoadAll(context.Background())

	// Assert
	require.NoError(t, err)
	snapshot := cache.Snapshot()
	assert.Len(t, snapshot.Products, 3)
	assert.Len(t, snapshot.Stores, 2)
	assert.Len(t, snapshot.Clients, 1)
	assert.False(t, snapshot.LoadedAt.IsZero())
	assert.Empty(t, cache.LoadError())
	api.AssertExpectations(t)
}

func TestReferenceCache_FailureKeepsPreviousSnapshot(t *testing.T) {
	api := new(MockSalesAPI)
	mockReferenceLists(api, testSnapshot())
	cache := NewReferenceCache(api, nil, zap.NewNop())
	require.NoError(t, cache.LoadAll(context.Background()))
	before := cache.Snapshot()

	failing := new(MockSalesAPI)
	failing.On("ListSales", mock.Anything).Return([]Sale{{SaleID: 99}}, nil)
	failing.On("ListProducts", mock.Anything).Return([]Product(nil), errors.New("connection reset"))
	failing.On("ListStores", mock.Anything).Return([]Store{}, nil)
	failing.On("ListClients", mock.Anything).Return([]Client{}, nil)
	cache.api = failing

	err := cache.LoadAll(context.Background())

	assert.ErrorIs(t, err, ErrReferenceLoad)
	assert.Equal(t, ReferenceLoadMessage, cache.LoadError())
	after := cache.Snapshot()
	assert.Equal(t, before.LoadedAt, after.LoadedAt)
	assert.Len(t, after.Products, 3)
	assert.Len(t, after.Clients, 1)
	assert.Empty(t, after.Sales)
}

func TestReferenceCache_FirstLoadFailureLeavesEmptyLists(t *testing.T) {
	api := new(MockSalesAPI)
	api.On("ListSales", mock.Anything).Return([]Sale(nil), errors.New("boom"))
	api.On("ListProducts", mock.Anything).Return([]Product{}, nil)
	api.On("ListStores", mock.Anything).Return([]Store{}, nil)
	api.On("ListClients", mock.Anything).Return([]Client{}, nil)
	cache := NewReferenceCache(api, nil, zap.NewNop())

	err := cache.LoadAll(context.Background())

	require.Error(t, err)
	assert.Empty(t, cache.Snapshot().Products)
	assert.Equal(t, ReferenceLoadMessage, cache.LoadError())
}

func TestReferenceCache_SuccessClearsLoadError(t *testing.T) {
	api := new(MockSalesAPI)
	api.On("ListSales", mock.Anything).Return([]Sale(nil), errors.New("boom")).Once()
	api.On("ListSales", mock.Anything).Return([]Sale{}, nil)
	api.On("ListProducts", mock.Anything).Return(testProducts(), nil)
	api.On("ListStores", mock.Anything).Return([]Store{}, nil)
	api.On("ListClients", mock.Anything).Return([]Client{}, nil)
	cache := NewReferenceCache(api, nil, zap.NewNop())

	require.Error(t, cache.LoadAll(context.Background()))
	require.NoError(t, cache.LoadAll(context.Background()))

	assert.Empty(t, cache.LoadError())
	assert.Len(t, cache.Snapshot().Products, 3)
}

func TestReferenceCache_Lookups(t *testing.T) {
	api := new(MockSalesAPI)
	mockReferenceLists(api, testSnapshot())
	cache := NewReferenceCache(api, nil, zap.NewNop())
	require.NoError(t, cache.LoadAll(context.Background()))

	assert.True(t, decimal.RequireFromString("12.50").Equal(cache.BasePrice(1)))
	assert.True(t, cache.BasePrice(404).IsZero())
	assert.Equal(t, 3, cache.AvailableQuantity(1))
	assert.Equal(t, 0, cache.AvailableQuantity(3))
	assert.Equal(t, 0, cache.AvailableQuantity(404))

	product, ok := cache.Snapshot().Product(2)
	assert.True(t, ok)
	assert.Equal(t, "Pantalón", product.Nombre)
}

func TestReferenceCache_LoadAllFetchesConcurrently(t *testing.T) {
	// Arrange: each fetch only returns once all four have started
	var started sync.WaitGroup
	started.Add(4)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()

	var timedOut atomic.Bool
	barrier := func(mock.Arguments) {
		started.Done()
		select {
		case <-all:
		case <-time.After(500 * time.Millisecond):
			timedOut.Store(true)
		}
	}

	snapshot := testSnapshot()
	api := new(MockSalesAPI)
	api.On("ListSales", mock.Anything).Run(barrier).Return(snapshot.Sales, nil)
	api.On("ListProducts", mock.Anything).Run(barrier).Return(snapshot.Products, nil)
	api.On("ListStores", mock.Anything).Run(barrier).Return(snapshot.Stores, nil)
	api.On("ListClients", mock.Anything).Run(barrier).Return(snapshot.Clients, nil)
	cache := NewReferenceCache(api, nil, zap.NewNop())

	// Act
	err := cache.LoadAll(context.Background())

	// Assert
	require.NoError(t, err)
	assert.False(t, timedOut.Load(), "reference lists were fetched sequentially")
	assert.Len(t, cache.Snapshot().Products, 3)
	api.AssertExpectations(t)
}
