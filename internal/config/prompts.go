package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

func defaultPrompts() map[string]PromptConfig {
	return map[string]PromptConfig{
		PromptDraft: {
			InstructionsFile: "song_drafter.txt",
			Instructions: "You are an award-winning songwriter. Draft an original song that answers the user's request.\n" +
				"Begin with a line \"## Song Title: <title>\", then label every section (Intro, Verse, Chorus, Bridge, Outro) in square brackets.",
			Template: `{{.Instructions}}

Data and Resources:
- Styles: {{.Styles}}
- Tags: {{.Tags}}
- Persona Styles: {{.PersonaStyles}}
- Default Song Parameters: {{.DefaultParams}}

User Input: {{.UserInput}}

Use the default song parameters as a baseline when creating the song, but adapt them based on the user's specific request.
Output your draft as a basic song structure plus lyrics.
`,
		},
		PromptReview: {
			InstructionsFile: "song_review.txt",
			Instructions: "You are a demanding song reviewer. Point out weak lines, clichés, rhythm problems and structural issues.\n" +
				"Give concrete, actionable suggestions. Do not rewrite the whole song.",
			Template: `{{.Instructions}}

Lyrics: {{.Lyrics}}
`,
		},
		PromptCritic: {
			InstructionsFile: "song_critic.txt",
			Instructions: "You are a veteran A&R critic. Assess the song as a whole: hook strength, emotional arc, coherence and replay value.\n" +
				"List the changes that would most improve it.",
			Template: `{{.Instructions}}

Lyrics: {{.Lyrics}}
`,
		},
		PromptPreflight: {
			InstructionsFile: "song_preflight.txt",
			Instructions: "You are a preflight checker preparing lyrics for a Suno render. Verify section tags are valid, the title line is present,\n" +
				"the lyrics stay under 2500 characters, and styles and tags match the catalog. Say clearly if no action is needed.",
			Template: `{{.Instructions}}

Styles: {{.Styles}}
Tags: {{.Tags}}

Lyrics: {{.Lyrics}}
`,
		},
		PromptRevise: {
			Instructions: "You are a skilled songwriter. Revise the lyrics based on the reviewer feedback.\n" +
				"- Keep the structure (sections, order, and counts) unless the feedback explicitly asks to change it.\n" +
				"- Improve clarity, imagery, and singability per the feedback.\n" +
				"- Keep the title and metadata untouched.\n" +
				"- CRITICAL: Ensure total lyrics remain under 2500 characters including spaces and punctuation. If feedback suggests additions that would exceed the limit, prioritize condensing existing content or removing less essential sections.\n" +
				"- Return only the revised lyrics, no commentary.",
			Template: `{{.Instructions}}

Lyrics:
{{.Lyrics}}

Reviewer Feedback:
{{.Feedback}}
`,
		},
		PromptScore: {
			Instructions: "You are a songwriting judge scoring the lyrics for production readiness.\n" +
				"- Score from 0-10 (float) considering structure, imagery, singability, theme coherence, and avoidance of clichés.\n" +
				"- Keep rationale to one short sentence.\n" +
				"- Return only JSON like {\"score\": 8.4, \"rationale\": \"...\"} with no extra text.",
			Template: `{{.Instructions}}

Lyrics:
{{.Lyrics}}
`,
		},
		PromptMetadata: {
			Instructions: "You are preparing concise metadata for a Suno song render.\n" +
				"- Provide a 1-2 sentence description of the song's theme and style.\n" +
				"- Suggest 3-6 Suno style tokens that best fit the song (concise, lower case).\n" +
				"- Suggest 0-3 Suno style tokens to avoid if any conflict appears.\n" +
				"- Suggest a concise target audience and a one-line commercial potential assessment.\n" +
				"- Return only JSON with keys: description (string), suno_styles (list of strings), suno_exclude_styles (list of strings), target_audience (string), commercial_potential (string).\n" +
				"- Do not include explanations or markdown.",
			Template: `{{.Instructions}}

Lyrics:
{{.Lyrics}}

User Input:
{{.UserInput}}

Default Parameters:
{{.DefaultParams}}

Persona Styles:
{{.PersonaStyles}}
`,
		},
		PromptTriage: {
			Instructions: "You are a strict validator. Given preflight feedback text, output JSON with keys:\n" +
				"- \"pass\" (boolean), true only if the text clearly signals no action needed.\n" +
				"- \"issues\" (array of short actionable strings). Empty if pass is true.\n" +
				"Be concise. No markdown, no prose. JSON only.",
			Template: `{{.Instructions}}

Preflight Feedback:
{{.PreflightOutput}}
`,
		},
	}
}

// GetPrompt returns the expanded prompt for a stage.
//
// The stage's Instructions are injected into data before expansion, so
// callers never set [PromptData.Instructions] themselves. Returns an error if
// the stage is unknown, has no template, or the template fails to expand.
func (c *Config) GetPrompt(name string, data PromptData) (string, error) {
	prompt, ok := c.Prompts[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt: %s", name)
	}
	if prompt.Template == "" {
		return "", fmt.Errorf("no prompt template configured for %s", name)
	}

	data.Instructions = prompt.Instructions
	return expandTemplate(prompt.Template, data)
}

// expandTemplate expands a Go template string with the given data.
func expandTemplate(tmplStr string, data PromptData) (string, error) {
	tmpl, err := template.New("prompt").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// resolveInstructionFiles replaces each prompt's Instructions with the
// contents of its InstructionsFile when that file exists in dir.
// Missing files keep the built-in instructions.
func (c *Config) resolveInstructionFiles(dir string) error {
	if dir == "" {
		return nil
	}
	for name, prompt := range c.Prompts {
		if prompt.InstructionsFile == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, prompt.InstructionsFile))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read instructions for %s: %w", name, err)
		}
		prompt.Instructions = string(data)
		c.Prompts[name] = prompt
	}
	return nil
}
