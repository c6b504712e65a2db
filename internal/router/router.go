// Package router decides which pipeline stage runs next.
//
// The pipeline is a static transition table ([Next]) evaluated by the
// orchestrator's interpreter loop. Two stages branch:
//   - review: [ReviewRoute] keeps reviewing until the score converges or the
//     round budget runs out
//   - preflight: [PreflightRoute] sends failed lyrics back through a targeted
//     fix while rounds remain
//
// Both routes read the same Round counter, so the review loop and the
// preflight loop compete for one budget of MaxRounds rounds. A fix taken on
// the last round re-enters review, so Round can end at MaxRounds+1. Routing
// is a pure function of [song.State]; nothing here mutates it.
package router

import (
	"errors"

	"songsmith/internal/song"
)

// Sentinel errors for stage routing.
var (
	// ErrUnknownStage indicates a stage with no entry in the transition table.
	ErrUnknownStage = errors.New("unknown pipeline stage")

	// ErrUnknownRoute indicates a decision that has no edge from its stage.
	ErrUnknownRoute = errors.New("no transition for route")

	// ErrPipelineComplete is returned when asked for the successor of [StageEnd].
	ErrPipelineComplete = errors.New("pipeline is complete, no stage follows")
)

// Stage names a pipeline stage.
type Stage string

// Pipeline stages in their nominal order.
const (
	StageDraft          Stage = "draft"
	StageReview         Stage = "review"
	StageCritic         Stage = "critic"
	StagePreflight      Stage = "preflight"
	StageTargetedRevise Stage = "targeted_revise"
	StageMetadata       Stage = "metadata"
	StageAlbumArt       Stage = "album_art"
	StageSave           Stage = "save"

	// StageEnd is the terminal state.
	StageEnd Stage = "END"
)

// Route labels an edge leaving a stage.
type Route string

const (
	// RouteNext is the single edge of a non-branching stage.
	RouteNext Route = "next"

	RouteKeepReviewing    Route = "keep_reviewing"
	RouteGoCritic         Route = "go_critic"
	RouteNeedsFix         Route = "needs_fix"
	RouteReadyForMetadata Route = "ready_for_metadata"
)

// ReviewRoute is the convergence decision taken after every review round.
//
// It returns [RouteKeepReviewing] while the score is below the threshold and
// rounds remain, and [RouteGoCritic] otherwise.
func ReviewRoute(s *song.State) Route {
	if s.Score < s.ScoreThreshold && s.Round < s.MaxRounds {
		return RouteKeepReviewing
	}
	return RouteGoCritic
}

// PreflightRoute is the decision taken after preflight triage.
//
// Failed lyrics go to [RouteNeedsFix] while Round is below MaxRounds.
// Everything else, including a preflight that still fails with the budget
// spent, proceeds to [RouteReadyForMetadata].
func PreflightRoute(s *song.State) Route {
	if !s.PreflightPassed && s.Round < s.MaxRounds {
		return RouteNeedsFix
	}
	return RouteReadyForMetadata
}
