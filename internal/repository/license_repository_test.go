package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLicenseRepository_WithoutPool(t *testing.T) {
	repo := NewLicenseRepository(nil)

	license, err := repo.GetByKey(context.Background(), "3f0e9a9c-1d2b-4c1e-9a55-7f3c2b1d0e4f")
	assert.Nil(t, license)
	assert.ErrorIs(t, err, ErrStoreNotConfigured)

	assert.ErrorIs(t, repo.MarkExpired(context.Background(), "id"), ErrStoreNotConfigured)
}
