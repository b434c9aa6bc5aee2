package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    EnrollmentStatus
		to      EnrollmentStatus
		allowed bool
	}{
		{EnrollmentStatusSubmitted, EnrollmentStatusVerified, true},
		{EnrollmentStatusSubmitted, EnrollmentStatusRejected, true},
		{EnrollmentStatusSubmitted, EnrollmentStatusPrinted, false},
		{EnrollmentStatusSubmitted, EnrollmentStatusArchived, false},
		{EnrollmentStatusVerified, EnrollmentStatusPrinted, true},
		{EnrollmentStatusVerified, EnrollmentStatusRejected, true},
		{EnrollmentStatusVerified, EnrollmentStatusSubmitted, false},
		{EnrollmentStatusPrinted, EnrollmentStatusArchived, true},
		{EnrollmentStatusPrinted, EnrollmentStatusVerified, false},
		{EnrollmentStatusPrinted, EnrollmentStatusRejected, false},
		{EnrollmentStatusRejected, EnrollmentStatusArchived, true},
		{EnrollmentStatusRejected, EnrollmentStatusVerified, false},
		{EnrollmentStatusArchived, EnrollmentStatusSubmitted, false},
		{EnrollmentStatusArchived, EnrollmentStatusVerified, false},
		{"mailed", EnrollmentStatusVerified, false},
		{EnrollmentStatusSubmitted, "mailed", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []EnrollmentStatus{
		EnrollmentStatusSubmitted,
		EnrollmentStatusVerified,
		EnrollmentStatusPrinted,
		EnrollmentStatusRejected,
		EnrollmentStatusArchived,
	} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus("mailed"))
	assert.False(t, ValidStatus(""))
}
