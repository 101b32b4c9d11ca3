package remote_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beesaferoot/propertyhub/internal/models"
	"github.com/beesaferoot/propertyhub/internal/remote"
	"github.com/beesaferoot/propertyhub/internal/remote/remotetest"
)

// hangingStore never answers until released
type hangingStore struct {
	remote.Store
	release chan struct{}
}

func (h *hangingStore) Insert(ctx context.Context, table string, record interface{}) error {
	<-h.release
	return nil
}

func TestWithTimeout_HungCallIsUnavailable(t *testing.T) {
	h := &hangingStore{release: make(chan struct{})}
	defer close(h.release)
	store := remote.WithTimeout(h, 20*time.Millisecond)

	start := time.Now()
	err := store.Insert(context.Background(), models.TablePayments, &models.Payment{})
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeout_PassesResultsThrough(t *testing.T) {
	store := remote.WithTimeout(remotetest.NewStore(t), time.Second)

	var tenant models.Tenant
	err := store.SelectOne(context.Background(), models.TableTenants, remote.Query{
		Where: map[string]interface{}{"clerk_user_id": "ghost"},
	}, &tenant)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.False(t, errors.Is(err, remote.ErrUnavailable))
}
