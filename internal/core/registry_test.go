package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rfid.attendance/internal/ports/repository"
)

type fakeIdentityRepo struct {
	findFn   func(ctx context.Context, cardID string) (string, error)
	insertFn func(ctx context.Context, cardID, employeeID string) error
}

func (f *fakeIdentityRepo) FindEmployeeByCard(ctx context.Context, cardID string) (string, error) {
	return f.findFn(ctx, cardID)
}
func (f *fakeIdentityRepo) InsertIdentity(ctx context.Context, cardID, employeeID string) error {
	return f.insertFn(ctx, cardID, employeeID)
}

func TestResolveOrCreate_NewAndExisting(t *testing.T) {
	ctx := context.Background()
	registry := NewIdentityRegistry(repository.NewMemoryRepository())

	first, err := registry.ResolveOrCreate(ctx, "AA11")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Len(t, first.EmployeeID, 36)

	second, err := registry.ResolveOrCreate(ctx, " AA11\n")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.EmployeeID, second.EmployeeID)

	other, err := registry.ResolveOrCreate(ctx, "BB22")
	require.NoError(t, err)
	assert.NotEqual(t, first.EmployeeID, other.EmployeeID)
}

func TestResolveOrCreate_EmptyCard(t *testing.T) {
	registry := NewIdentityRegistry(repository.NewMemoryRepository())
	_, err := registry.ResolveOrCreate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidCard)
}

func TestResolveOrCreate_LostInsertRace(t *testing.T) {
	reads := 0
	repo := &fakeIdentityRepo{
		findFn: func(ctx context.Context, cardID string) (string, error) {
			reads++
			if reads == 1 {
				return "", repository.ErrNotFound
			}
			return "winner", nil
		},
		insertFn: func(ctx context.Context, cardID, employeeID string) error {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateCard, cardID)
		},
	}
	registry := NewIdentityRegistry(repo)

	res, err := registry.ResolveOrCreate(context.Background(), "AA11")
	require.NoError(t, err)
	assert.Equal(t, "winner", res.EmployeeID)
	assert.False(t, res.Created)
	assert.Equal(t, 2, reads)
}

func TestResolveOrCreate_StorageErrors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("lookup fails", func(t *testing.T) {
		repo := &fakeIdentityRepo{
			findFn: func(ctx context.Context, cardID string) (string, error) { return "", boom },
		}
		_, err := NewIdentityRegistry(repo).ResolveOrCreate(context.Background(), "AA11")
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("insert fails", func(t *testing.T) {
		repo := &fakeIdentityRepo{
			findFn:   func(ctx context.Context, cardID string) (string, error) { return "", repository.ErrNotFound },
			insertFn: func(ctx context.Context, cardID, employeeID string) error { return boom },
		}
		_, err := NewIdentityRegistry(repo).ResolveOrCreate(context.Background(), "AA11")
		assert.ErrorIs(t, err, ErrStorage)
		assert.NotErrorIs(t, err, repository.ErrDuplicateCard)
	})
}

func TestResolveOrCreate_ConcurrentSameCard(t *testing.T) {
	ctx := context.Background()
	registry := NewIdentityRegistry(repository.NewMemoryRepository())

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[string]struct{})
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := registry.ResolveOrCreate(ctx, "AA11")
			assert.NoError(t, err)
			mu.Lock()
			ids[res.EmployeeID] = struct{}{}
			if res.Created {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}
