package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorevc/pkg/domain"
)

func TestCalculateSeed(t *testing.T) {
	alice := domain.MustPrincipal("2vxsx-fae")
	bob := domain.MustPrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")

	assert.Equal(t, CalculateSeed(PlaceholderSalt, alice), CalculateSeed(PlaceholderSalt, alice))
	assert.NotEqual(t, CalculateSeed(PlaceholderSalt, alice), CalculateSeed(PlaceholderSalt, bob))

	other, err := DeriveSalt([]byte("deployment secret"))
	require.NoError(t, err)
	assert.NotEqual(t, CalculateSeed(PlaceholderSalt, alice), CalculateSeed(other, alice))
}

func TestDeriveSalt(t *testing.T) {
	a, err := DeriveSalt([]byte("secret"))
	require.NoError(t, err)
	b, err := DeriveSalt([]byte("secret"))
	require.NoError(t, err)
	c, err := DeriveSalt([]byte("another"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, PlaceholderSalt, a)

	_, err = DeriveSalt(nil)
	assert.Error(t, err)
}
