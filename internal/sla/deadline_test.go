package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-desk/internal/domain"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

func TestDeadlines(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	category := &domain.Category{
		ID:                 "cat-1",
		SLAResponseHours:   8,
		SLAResolutionHours: 24,
	}

	responseDue, resolutionDue, err := Deadlines(createdAt, category)
	require.NoError(t, err)
	assert.Equal(t, createdAt.Add(8*time.Hour), responseDue)
	assert.Equal(t, createdAt.Add(24*time.Hour), resolutionDue)
}

func TestDeadlinesIsPure(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	category := &domain.Category{ID: "cat-1", SLAResponseHours: 4, SLAResolutionHours: 48}

	r1, s1, err1 := Deadlines(createdAt, category)
	r2, s2, err2 := Deadlines(createdAt, category)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1, r2)
	assert.Equal(t, s1, s2)
}

func TestDeadlinesNilCategory(t *testing.T) {
	_, _, err := Deadlines(time.Now(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFIGURATION_ERROR"))
}

func TestDeadlinesNonPositiveHours(t *testing.T) {
	cases := []domain.Category{
		{ID: "zero-response", SLAResponseHours: 0, SLAResolutionHours: 24},
		{ID: "zero-resolution", SLAResponseHours: 8, SLAResolutionHours: 0},
		{ID: "negative", SLAResponseHours: -1, SLAResolutionHours: 24},
	}
	for i := range cases {
		_, _, err := Deadlines(time.Now(), &cases[i])
		require.Error(t, err, "category %s", cases[i].ID)
		assert.True(t, apperrors.IsCode(err, "CONFIGURATION_ERROR"), "category %s", cases[i].ID)
	}
}

func TestDeadlinesInvertedWindowsAllowed(t *testing.T) {
	// a resolution window shorter than the response window is tolerated
	createdAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	category := &domain.Category{ID: "cat-1", SLAResponseHours: 24, SLAResolutionHours: 8}

	responseDue, resolutionDue, err := Deadlines(createdAt, category)
	require.NoError(t, err)
	assert.True(t, resolutionDue.Before(responseDue))
}
