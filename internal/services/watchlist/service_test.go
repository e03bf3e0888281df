package watchlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinwatch/coinwatch/internal/common"
	"github.com/coinwatch/coinwatch/internal/localstate"
	"github.com/coinwatch/coinwatch/internal/models"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	slot, err := localstate.Open(context.Background(), newMemoryKV(), StorageKey, models.DefaultCoins, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(slot.Close)
	return NewService(slot, common.NewSilentLogger())
}

func TestCoins_StartsWithDefaults(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, models.DefaultCoins, svc.Coins())
}

func TestCoins_ReturnsCopy(t *testing.T) {
	svc := newTestService(t)
	coins := svc.Coins()
	coins[0] = "mutated"
	assert.Equal(t, models.DefaultCoins[0], svc.Coins()[0])
}

func TestAdd(t *testing.T) {
	svc := newTestService(t)

	result := svc.Add("solana")
	assert.Contains(t, result, "solana")
	assert.Len(t, result, len(models.DefaultCoins)+1)

	// Adding a present coin changes nothing.
	again := svc.Add("solana")
	assert.Equal(t, result, again)
}

func TestAdd_NormalizesInput(t *testing.T) {
	svc := newTestService(t)

	svc.Add("  Solana ")
	assert.True(t, svc.Contains("solana"))
	assert.True(t, svc.Contains("SOLANA"))
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)

	result := svc.Remove("bitcoin")
	assert.NotContains(t, result, "bitcoin")
	assert.Len(t, result, len(models.DefaultCoins)-1)

	// Removing an absent coin is a no-op.
	again := svc.Remove("bitcoin")
	assert.Equal(t, result, again)
}

func TestToggle(t *testing.T) {
	svc := newTestService(t)

	off := svc.Toggle("bitcoin")
	assert.NotContains(t, off, "bitcoin")

	on := svc.Toggle("bitcoin")
	assert.Contains(t, on, "bitcoin")
	assert.Len(t, on, len(models.DefaultCoins))
}

func TestContains(t *testing.T) {
	svc := newTestService(t)
	assert.True(t, svc.Contains("bitcoin"))
	assert.False(t, svc.Contains("dogecoin"))
}
