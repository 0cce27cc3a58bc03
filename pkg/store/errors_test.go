package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Prat011/free-cluely-sub000/pkg/store"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	notFound := errors.Join(errors.New("meeting not found"), store.ErrNotFound)
	assert.True(t, store.IsNotFound(notFound))
	assert.False(t, store.IsRetryable(notFound))

	conflict := fmt.Errorf("insert meeting: %w", store.ErrConflict)
	assert.True(t, store.IsConflict(conflict))

	assert.True(t, store.IsRetryable(store.Unavailable(context.DeadlineExceeded)))
	assert.True(t, store.IsRetryable(store.Unavailable(fmt.Errorf("query: %w", context.Canceled))))

	plain := errors.New("syntax error")
	assert.Equal(t, plain, store.Unavailable(plain))
	assert.NoError(t, store.Unavailable(nil))
}
