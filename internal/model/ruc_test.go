package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRUC_Valid(t *testing.T) {
	tests := []struct {
		raw  string
		kind PersonKind
	}{
		{"20100070970", PersonJuridical},
		{"20600074114", PersonJuridical},
		{"10012345678", PersonNatural},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ruc, err := ParseRUC(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, ruc.String())
			assert.Equal(t, tt.kind, ruc.Kind())
		})
	}
}

func TestParseRUC_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"too short", "2010007097"},
		{"too long", "201000709701"},
		{"non numeric", "20100A70970"},
		{"bad leading digits", "30100070970"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRUC(tt.raw)
			require.Error(t, err)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.raw, verr.Input)
		})
	}
}

func TestJob_Done(t *testing.T) {
	j := &Job{Status: JobPending}
	assert.False(t, j.Done())
	j.Status = JobRunning
	assert.False(t, j.Done())
	j.Status = JobCompleted
	assert.True(t, j.Done())
	j.Status = JobFailed
	assert.True(t, j.Done())
}
