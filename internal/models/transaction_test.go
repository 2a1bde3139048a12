package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreditAndDebit(t *testing.T) {
	member := uuid.New()
	amount, err := MemberAmount(25)
	require.NoError(t, err)
	service := ContributionService("contrib-1")

	credit, err := NewCredit(member, service, amount)
	require.NoError(t, err)
	assert.Equal(t, Credit, credit.Type)
	assert.Equal(t, member, credit.MemberID)
	assert.Equal(t, service, credit.Service)
	assert.NotEqual(t, uuid.Nil, credit.ID)
	assert.False(t, credit.Timestamp.IsZero())

	debit, err := NewDebit(member, service, amount)
	require.NoError(t, err)
	assert.Equal(t, Debit, debit.Type)
	assert.NotEqual(t, credit.ID, debit.ID)
}

func TestNewTransaction_MissingFields(t *testing.T) {
	amount, err := NetworkAmount(5)
	require.NoError(t, err)
	service := ContributionService("contrib-1")

	_, err = NewCredit(uuid.Nil, service, amount)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewDebit(uuid.New(), Service{}, amount)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewDebit(uuid.New(), service, Amount{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
