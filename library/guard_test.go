package library

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		current BookStatus
		target  BookStatus
		wantErr error
	}{
		{"lend available", OpLend, StatusAvailable, StatusBorrowed, nil},
		{"lend borrowed", OpLend, StatusBorrowed, StatusBorrowed, ErrBookNotAvailable},
		{"lend lost", OpLend, StatusLost, StatusBorrowed, ErrBookNotAvailable},
		{"lend removed", OpLend, StatusRemoved, StatusBorrowed, ErrBookNotAvailable},
		{"return borrowed", OpReturn, StatusBorrowed, StatusAvailable, nil},
		{"return available", OpReturn, StatusAvailable, StatusAvailable, ErrInvalidStateTransition},
		{"remove available", OpRemove, StatusAvailable, StatusRemoved, nil},
		{"remove damaged", OpRemove, StatusDamaged, StatusRemoved, nil},
		{"remove borrowed", OpRemove, StatusBorrowed, StatusRemoved, ErrInvalidStateTransition},
		{"mark lost", OpSetStatus, StatusAvailable, StatusLost, nil},
		{"restore damaged", OpSetStatus, StatusDamaged, StatusAvailable, nil},
		{"set borrowed", OpSetStatus, StatusAvailable, StatusBorrowed, ErrInvalidStateTransition},
		{"change borrowed", OpSetStatus, StatusBorrowed, StatusLost, ErrInvalidStateTransition},
		{"unknown op", Operation("burn"), StatusAvailable, StatusRemoved, ErrInvalidStateTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.op, 7, tt.current, tt.target)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, ErrInvalidState)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, int64(7), te.BookID)
			assert.Equal(t, tt.current, te.Status)
			assert.Equal(t, tt.op, te.Op)
			assert.Contains(t, te.Error(), string(tt.current))
		})
	}
}

func TestParseBookStatus(t *testing.T) {
	st, err := ParseBookStatus(" available ")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, st)

	_, err = ParseBookStatus("misplaced")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.ErrorIs(t, err, ErrValidation)

	bs, err := ParseBorrowerStatus("inactive")
	require.NoError(t, err)
	assert.Equal(t, BorrowerInactive, bs)
}
