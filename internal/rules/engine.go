// Package rules post-processes transcripts with user-defined substitutions.
//
// A rules file holds one rule per line. Blank lines and lines starting with # are ignored.
//
//	pull request => PR          literal, case-insensitive, whole words
//	s/\bdeep\s*gram\b/Deepgram/g  sed-style regex with i, g, m and s flags
package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const defaultMaxPasses = 30

// Rule rewrites text and reports whether anything changed.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// Parser turns one line into a Rule.
type Parser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// Options configure an Engine. Rules from Path are applied before Inline rules.
type Options struct {
	Path      string
	Inline    []string
	MaxPasses int
	// Parsers are tried in order; nil uses the built-in regex and literal parsers.
	Parsers []Parser
	// Tidy collapses repeated spaces and removes spaces before punctuation after the rules run.
	Tidy bool
}

// Engine applies rules repeatedly until the text stops changing or MaxPasses is reached.
type Engine struct {
	rules     []Rule
	maxPasses int
	tidy      bool
}

// New loads rules. A missing rules file is treated as empty.
func New(opts Options) (*Engine, error) {
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = defaultMaxPasses
	}
	if len(opts.Parsers) == 0 {
		opts.Parsers = DefaultParsers()
	}
	e := &Engine{maxPasses: opts.MaxPasses, tidy: opts.Tidy}

	if path := strings.TrimSpace(opts.Path); path != "" {
		contents, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
		default:
			fileRules, err := Parse(string(contents), opts.Parsers)
			if err != nil {
				return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
			}
			e.rules = append(e.rules, fileRules...)
		}
	}

	if len(opts.Inline) > 0 {
		inline, err := Parse(strings.Join(opts.Inline, "\n"), opts.Parsers)
		if err != nil {
			return nil, fmt.Errorf("failed to parse inline rules: %w", err)
		}
		e.rules = append(e.rules, inline...)
	}
	return e, nil
}

// Len returns the number of loaded rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply transforms text deterministically.
func (e *Engine) Apply(text string) (string, error) {
	result := text
	for pass := 0; pass < e.maxPasses && len(e.rules) > 0; pass++ {
		changed := false
		for _, rule := range e.rules {
			if next, ok := rule.Apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if e.tidy {
		result = tidy(result)
	}
	return result, nil
}

var (
	repeatedSpaces   = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.;:!?])`)
)

func tidy(text string) string {
	text = repeatedSpaces.ReplaceAllString(text, " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// Parse compiles every non-comment line of contents.
func Parse(contents string, parsers []Parser) ([]Rule, error) {
	lines := strings.Split(contents, "\n")
	out := make([]Rule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var parser Parser
		for _, candidate := range parsers {
			if candidate.CanParse(line) {
				parser = candidate
				break
			}
		}
		if parser == nil {
			return nil, fmt.Errorf("line %d: unsupported rule format", index+1)
		}
		rule, err := parser.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// DefaultParsers returns the regex parser followed by the literal parser.
func DefaultParsers() []Parser {
	return []Parser{RegexParser{}, LiteralParser{}}
}
