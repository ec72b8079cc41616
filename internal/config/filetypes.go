package config

import "github.com/gubarz/doccov/internal/coverage"

// DefaultFileTypes returns the built-in profile for Markdown annotated with
// HTML comments:
//
//	<!-- test {"file": "./specs/login.json"} -->
//	...documented steps...
//	<!-- end-test -->
func DefaultFileTypes() []coverage.FileTypeProfile {
	return []coverage.FileTypeProfile{{
		Name:                "markdown",
		Extensions:          []string{".md", ".markdown", ".mdx"},
		OpenTestStatement:   "<!-- test",
		CloseTestStatement:  "-->",
		TestIgnoreStatement: "<!-- ignore-test -->",
		TestEndStatement:    "<!-- end-test -->",
		StepStatementOpen:   "<!-- step",
		StepStatementClose:  "-->",
		Markup: []coverage.MarkupRule{
			{
				Name:                 "onscreenText",
				Regex:                []string{`\*\*[^*\n]+\*\*`},
				IncludeInCoverage:    true,
				IncludeInSuggestions: true,
			},
			{
				Name:              "image",
				Regex:             []string{`!\[[^\]\n]*\]\([^)\n]+\)`},
				IncludeInCoverage: true,
			},
			{
				Name:                 "hyperlink",
				Regex:                []string{`\[[^\]\n]+\]\([^)\n]+\)`},
				IncludeInCoverage:    true,
				IncludeInSuggestions: true,
			},
			{
				Name:  "orderedList",
				Regex: []string{`(?m)^[ \t]*\d+\.[ \t].+$`},
			},
			{
				Name:  "unorderedList",
				Regex: []string{`(?m)^[ \t]*[-*+][ \t].+$`},
			},
			{
				Name:              "codeInline",
				Regex:             []string{"`[^`\n]+`"},
				IncludeInCoverage: true,
			},
			{
				Name:                 "codeBlock",
				Regex:                []string{"(?s)```.*?```"},
				IncludeInCoverage:    true,
				IncludeInSuggestions: true,
			},
		},
	}}
}
