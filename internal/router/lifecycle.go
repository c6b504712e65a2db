package router

import (
	"fmt"

	"songsmith/internal/song"
)

// transition is one row of the table: an optional decision and the edges it
// may pick. Rows without a decision always take [RouteNext].
type transition struct {
	decide func(*song.State) Route
	edges  map[Route]Stage
}

var table = map[Stage]transition{
	StageDraft: {edges: map[Route]Stage{RouteNext: StageReview}},
	StageReview: {
		decide: ReviewRoute,
		edges: map[Route]Stage{
			RouteKeepReviewing: StageReview,
			RouteGoCritic:      StageCritic,
		},
	},
	StageCritic: {edges: map[Route]Stage{RouteNext: StagePreflight}},
	StagePreflight: {
		decide: PreflightRoute,
		edges: map[Route]Stage{
			RouteNeedsFix:         StageTargetedRevise,
			RouteReadyForMetadata: StageMetadata,
		},
	},
	StageTargetedRevise: {edges: map[Route]Stage{RouteNext: StageReview}},
	StageMetadata:       {edges: map[Route]Stage{RouteNext: StageAlbumArt}},
	StageAlbumArt:       {edges: map[Route]Stage{RouteNext: StageSave}},
	StageSave:           {edges: map[Route]Stage{RouteNext: StageEnd}},
}

// Start is the first stage of every run.
const Start = StageDraft

// Next returns the stage that follows stage for the given state, together
// with the route taken.
//
// Returns [ErrPipelineComplete] for [StageEnd] and [ErrUnknownStage] for a
// stage not in the table.
func Next(stage Stage, s *song.State) (Stage, Route, error) {
	if stage == StageEnd {
		return "", "", ErrPipelineComplete
	}

	t, ok := table[stage]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	route := RouteNext
	if t.decide != nil {
		route = t.decide(s)
	}

	next, ok := t.edges[route]
	if !ok {
		return "", "", fmt.Errorf("%w %q from %s", ErrUnknownRoute, route, stage)
	}
	return next, route, nil
}

// Edges returns a copy of the outgoing edges of stage. It returns nil for
// [StageEnd] and unknown stages.
func Edges(stage Stage) map[Route]Stage {
	t, ok := table[stage]
	if !ok {
		return nil
	}
	edges := make(map[Route]Stage, len(t.edges))
	for r, s := range t.edges {
		edges[r] = s
	}
	return edges
}

// Stages returns every non-terminal stage in nominal pipeline order.
func Stages() []Stage {
	return []Stage{
		StageDraft, StageReview, StageCritic, StagePreflight,
		StageTargetedRevise, StageMetadata, StageAlbumArt, StageSave,
	}
}
