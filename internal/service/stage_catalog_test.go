package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

func TestNewStageCatalogValidation(t *testing.T) {
	t.Run("rejects empty stage list", func(t *testing.T) {
		_, err := NewStageCatalog(nil, nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate stages", func(t *testing.T) {
		_, err := NewStageCatalog(
			[]models.Stage{models.StageSupervisorConsent, models.StageSupervisorConsent},
			map[models.Stage][]string{models.StageSupervisorConsent: {"PHDEE02-A"}},
		)
		assert.Error(t, err)
	})

	t.Run("rejects stage without forms", func(t *testing.T) {
		_, err := NewStageCatalog(
			[]models.Stage{models.StageSupervisorConsent, models.StageCourseRegistration},
			map[models.Stage][]string{models.StageSupervisorConsent: {"PHDEE02-A"}},
		)
		assert.Error(t, err)
	})

	t.Run("rejects requirements for unknown stage", func(t *testing.T) {
		_, err := NewStageCatalog(
			[]models.Stage{models.StageSupervisorConsent},
			map[models.Stage][]string{
				models.StageSupervisorConsent: {"PHDEE02-A"},
				models.StageGraduation:        {"PHDEE07"},
			},
		)
		assert.Error(t, err)
	})
}

func TestDefaultStageCatalog(t *testing.T) {
	catalog, err := DefaultStageCatalog()
	require.NoError(t, err)

	assert.Equal(t, models.StageSupervisorConsent, catalog.First())
	assert.Len(t, catalog.Stages(), 10)
	assert.True(t, catalog.IsTerminal(models.StageGraduation))
	assert.False(t, catalog.IsTerminal(models.StageThesisDefense))

	next, ok := catalog.Next(models.StageComprehensiveExam)
	require.True(t, ok)
	assert.Equal(t, models.StageResearchProposal, next)

	_, ok = catalog.Next(models.StageGraduation)
	assert.False(t, ok)

	_, ok = catalog.Next(models.Stage("unknown"))
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"PHDEE03", "PHDEE1"}, catalog.RequiredForms(models.StageComprehensiveExam))
	assert.Equal(t, []string{"PHDEE07"}, catalog.RequiredForms(models.StageGraduation))
}

func TestStageCatalogOrdinals(t *testing.T) {
	catalog, err := DefaultStageCatalog()
	require.NoError(t, err)

	prev := -1
	for _, stage := range catalog.Stages() {
		ord, ok := catalog.Ordinal(stage)
		require.True(t, ok)
		assert.Greater(t, ord, prev)
		prev = ord
	}

	_, ok := catalog.Ordinal(models.Stage("unknown"))
	assert.False(t, ok)
}
