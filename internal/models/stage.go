package models

// Stage is one ordered milestone in the fixed PhD progression sequence.
type Stage string

const (
	StageSupervisorConsent  Stage = "supervisor_consent"
	StageCourseRegistration Stage = "course_registration"
	StageGECFormation       Stage = "gec_formation"
	StageComprehensiveExam  Stage = "comprehensive_exam"
	StageResearchProposal   Stage = "research_proposal"
	StageSynopsisDefense    Stage = "synopsis_defense"
	StageResearchPhase      Stage = "research_phase"
	StageThesisEvaluation   Stage = "thesis_evaluation"
	StageThesisDefense      Stage = "thesis_defense"
	StageGraduation         Stage = "graduation"
)

// StageOrder lists all stages in progression order. The workflow moves
// strictly forward through this list one step at a time.
var StageOrder = []Stage{
	StageSupervisorConsent,
	StageCourseRegistration,
	StageGECFormation,
	StageComprehensiveExam,
	StageResearchProposal,
	StageSynopsisDefense,
	StageResearchPhase,
	StageThesisEvaluation,
	StageThesisDefense,
	StageGraduation,
}
