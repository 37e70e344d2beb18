package collector

import (
	"github.com/rs/zerolog/log"

	"mktdata/internal/domain/model"
)

// Stage is a step of the collection lifecycle.
type Stage string

const (
	StageIdle                     Stage = "Idle"
	StageMigratingSchema          Stage = "MigratingSchema"
	StageRefreshingObjects        Stage = "RefreshingObjects"
	StageReconcilingReferenceData Stage = "ReconcilingReferenceData"
	StageIngestingSeries          Stage = "IngestingSeries"
	StageReported                 Stage = "Reported"
	StageFailed                   Stage = "Failed"
)

// Enter logs a lifecycle transition.
func Enter(s Stage) {
	log.Info().Str("stage", string(s)).Msg("collector stage")
}

// EnterClass logs a transition taken by one asset class only.
func EnterClass(s Stage, class model.AssetClass) {
	log.Info().Str("stage", string(s)).Str("asset_class", string(class)).Msg("collector stage")
}
