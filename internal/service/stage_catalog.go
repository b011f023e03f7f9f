package service

import (
	"fmt"

	"github.com/BSSE23008/PHD-Research-Tracking-sub000/internal/models"
)

// StageCatalog is the immutable, validated mapping from each workflow stage to
// its ordinal position and required form codes. It is built once at startup
// and shared by reference; a stage without a requirements entry is a
// configuration error surfaced by NewStageCatalog, never at request time.
type StageCatalog struct {
	stages       []models.Stage
	ordinals     map[models.Stage]int
	requirements map[models.Stage][]string
}

// NewStageCatalog validates the stage list and requirement map and returns
// the catalog. Every stage must be unique and carry at least one form code.
func NewStageCatalog(stages []models.Stage, requirements map[models.Stage][]string) (*StageCatalog, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("stage catalog: no stages configured")
	}

	ordinals := make(map[models.Stage]int, len(stages))
	for i, stage := range stages {
		if _, dup := ordinals[stage]; dup {
			return nil, fmt.Errorf("stage catalog: duplicate stage %q", stage)
		}
		ordinals[stage] = i
	}

	reqs := make(map[models.Stage][]string, len(stages))
	for _, stage := range stages {
		forms, ok := requirements[stage]
		if !ok || len(forms) == 0 {
			return nil, fmt.Errorf("stage catalog: stage %q has no required forms", stage)
		}
		reqs[stage] = append([]string(nil), forms...)
	}
	for stage := range requirements {
		if _, ok := ordinals[stage]; !ok {
			return nil, fmt.Errorf("stage catalog: requirements reference unknown stage %q", stage)
		}
	}

	return &StageCatalog{
		stages:       append([]models.Stage(nil), stages...),
		ordinals:     ordinals,
		requirements: reqs,
	}, nil
}

// DefaultStageCatalog returns the catalog for the PhD progression sequence.
func DefaultStageCatalog() (*StageCatalog, error) {
	return NewStageCatalog(models.StageOrder, map[models.Stage][]string{
		models.StageSupervisorConsent:  {"PHDEE02-A"},
		models.StageCourseRegistration: {"PHDEE02-B"},
		models.StageGECFormation:       {"PHDEE02-C"},
		models.StageComprehensiveExam:  {"PHDEE03", "PHDEE1"},
		models.StageResearchProposal:   {"PHDEE2-A"},
		models.StageSynopsisDefense:    {"PHDEE2-B"},
		models.StageResearchPhase:      {"PHDEE04"},
		models.StageThesisEvaluation:   {"PHDEE05"},
		models.StageThesisDefense:      {"PHDEE06"},
		models.StageGraduation:         {"PHDEE07"},
	})
}

// First returns the initial stage assigned when workflow progress is created.
func (c *StageCatalog) First() models.Stage {
	return c.stages[0]
}

// Stages returns the ordered stage list.
func (c *StageCatalog) Stages() []models.Stage {
	return append([]models.Stage(nil), c.stages...)
}

// Contains reports whether the stage is part of the catalog.
func (c *StageCatalog) Contains(stage models.Stage) bool {
	_, ok := c.ordinals[stage]
	return ok
}

// Ordinal returns the position of the stage in the progression.
func (c *StageCatalog) Ordinal(stage models.Stage) (int, bool) {
	ord, ok := c.ordinals[stage]
	return ord, ok
}

// IsTerminal reports whether the stage is the last catalog entry.
func (c *StageCatalog) IsTerminal(stage models.Stage) bool {
	ord, ok := c.ordinals[stage]
	return ok && ord == len(c.stages)-1
}

// Next returns the stage that follows the given one. The second return is
// false when the stage is terminal or unknown.
func (c *StageCatalog) Next(stage models.Stage) (models.Stage, bool) {
	ord, ok := c.ordinals[stage]
	if !ok || ord == len(c.stages)-1 {
		return "", false
	}
	return c.stages[ord+1], true
}

// RequiredForms returns the form codes that must be approved to leave the stage.
func (c *StageCatalog) RequiredForms(stage models.Stage) []string {
	return append([]string(nil), c.requirements[stage]...)
}
