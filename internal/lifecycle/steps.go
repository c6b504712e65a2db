package lifecycle

import "fmt"

// PlannedSteps lists the user-facing steps of a run in order. Local runs
// label the model stages and skip artwork.
func PlannedSteps(useLocal bool, maxRounds int) []string {
	suffix := ""
	art := "Generating album artwork"
	if useLocal {
		suffix = " (local LLM)"
		art = "Skipping album artwork (local mode)"
	}
	return []string{
		"Parsing user input and persona",
		"Loading resources (styles, tags, personas, defaults)",
		"Generating initial song draft" + suffix,
		fmt.Sprintf("Reviewing and refining lyrics (%d iterations)%s", maxRounds, suffix),
		"Applying critic feedback" + suffix,
		"Running preflight checks" + suffix,
		"Generating metadata summary",
		art,
		"Formatting and saving final song",
	}
}
