// Package composer turns retrieved chunks into an answer string using fixed
// templates. There is no generation: the same query and retrieval result
// always produce the same answer.
package composer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/perbu/docqa/pkg/docqa"
)

// Template selects how relevant chunks are rendered.
type Template string

const (
	// TemplateSingle renders the best chunk only.
	TemplateSingle Template = "single"
	// TemplateMulti renders every relevant chunk with attribution.
	TemplateMulti Template = "multi"
)

// Variant is the rendering chosen for one answer.
type Variant int

const (
	VariantFallback Variant = iota
	VariantSingleBest
	VariantMultiChunk
)

func (v Variant) String() string {
	switch v {
	case VariantFallback:
		return "fallback"
	case VariantSingleBest:
		return "single-best-chunk"
	case VariantMultiChunk:
		return "multi-chunk"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

const (
	DefaultThreshold  = 0.2
	DefaultMaxChars   = 450
	DefaultFallback   = "Sorry, I could not find anything about that in the documentation."
	DefaultEmptyQuery = "Please ask a question."
	DefaultMoreHint   = "[See the detailed results for more]"

	maxMeaningfulLines = 5
	minLineChars       = 10
	minLineWords       = 4
)

// Config holds the product-level choices of the composer.
type Config struct {
	Threshold  float32  // Hits scoring below this are ignored
	Template   Template // Rendering for relevant hits
	MaxChars   int      // Per-chunk text limit in characters
	Fallback   string   // Answer when nothing relevant was retrieved
	EmptyQuery string   // Answer for a blank question
	MoreHint   string   // Appended after truncated text
}

// DefaultConfig returns the default composer configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		Template:   TemplateSingle,
		MaxChars:   DefaultMaxChars,
		Fallback:   DefaultFallback,
		EmptyQuery: DefaultEmptyQuery,
		MoreHint:   DefaultMoreHint,
	}
}

// Composer renders answers. It holds no mutable state.
type Composer struct {
	cfg Config
}

// New creates a composer. Empty string fields and a non-positive MaxChars
// take their defaults; a zero Threshold is kept as is.
func New(cfg Config) *Composer {
	def := DefaultConfig()
	if cfg.Template == "" {
		cfg.Template = def.Template
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.Fallback == "" {
		cfg.Fallback = def.Fallback
	}
	if cfg.EmptyQuery == "" {
		cfg.EmptyQuery = def.EmptyQuery
	}
	if cfg.MoreHint == "" {
		cfg.MoreHint = def.MoreHint
	}
	return &Composer{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Composer) Config() Config {
	return c.cfg
}

// Plan is the variant chosen for a result and the hits it renders.
type Plan struct {
	Variant Variant
	Hits    docqa.RetrievalResult
}

// Plan selects the variant for res.
func (c *Composer) Plan(res docqa.RetrievalResult) Plan {
	relevant := res.Above(c.cfg.Threshold)
	if len(relevant) == 0 {
		return Plan{Variant: VariantFallback}
	}
	if c.cfg.Template == TemplateMulti {
		return Plan{Variant: VariantMultiChunk, Hits: relevant}
	}
	return Plan{Variant: VariantSingleBest, Hits: relevant[:1]}
}

// Compose renders the answer to query from res.
func (c *Composer) Compose(query string, res docqa.RetrievalResult) string {
	plan := c.Plan(res)

	switch plan.Variant {
	case VariantSingleBest:
		return c.excerpt(plan.Hits[0].Chunk.Text)
	case VariantMultiChunk:
		var b strings.Builder
		fmt.Fprintf(&b, "Top %d passages for %q:", len(plan.Hits), strings.TrimSpace(query))
		for i, hit := range plan.Hits {
			fmt.Fprintf(&b, "\n\n[%d] (chunk %d, score %.2f) %s", i+1, hit.Chunk.ID, hit.Score, c.excerpt(hit.Chunk.Text))
		}
		return b.String()
	default:
		return c.cfg.Fallback
	}
}

// Fallback returns the answer used when nothing relevant is found.
func (c *Composer) Fallback() string {
	return c.cfg.Fallback
}

// EmptyQuery returns the answer used for a blank question.
func (c *Composer) EmptyQuery() string {
	return c.cfg.EmptyQuery
}

func (c *Composer) excerpt(text string) string {
	out, cut := truncate(MeaningfulText(text), c.cfg.MaxChars)
	if cut {
		return out + "... " + c.cfg.MoreHint
	}
	return out
}

// MeaningfulText drops decoration from chunk text: short lines, bare links,
// badge lines and lines of three words or fewer. At most five lines are
// kept. When nothing survives the cleaned text is returned whole.
func MeaningfulText(text string) string {
	clean := docqa.CleanHTML(text)

	var kept []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineChars ||
			strings.HasPrefix(line, "http") ||
			strings.Contains(strings.ToLower(line), "badge") {
			continue
		}
		if len(strings.Fields(line)) < minLineWords {
			continue
		}
		kept = append(kept, line)
		if len(kept) == maxMeaningfulLines {
			break
		}
	}

	if len(kept) == 0 {
		return strings.TrimSpace(clean)
	}
	return strings.Join(kept, " ")
}

// truncate cuts s to at most limit characters and reports whether it did.
func truncate(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace), true
}
