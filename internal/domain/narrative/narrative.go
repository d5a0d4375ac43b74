// Package narrative turns an analysis into readable findings. The pipeline
// depends only on Generator; concrete backends are interchangeable.
package narrative

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/datalens/internal/domain/quality"
	"github.com/okian/datalens/internal/domain/stats"
)

// Backend names a generator variant.
type Backend string

// Known backends. Only RuleBasedBackend is implemented in-process; the
// model-backed variants are supplied by callers through Generator.
const (
	NoneBackend       Backend = "none"
	RuleBasedBackend  Backend = "rule-based"
	LocalModelBackend Backend = "local-model"
	HostedAPIBackend  Backend = "hosted-api"
)

// ErrUnsupportedBackend is returned by New for backends not built in.
var ErrUnsupportedBackend = errors.New("unsupported narrative backend")

// Input is everything a backend may use.
type Input struct {
	Summary stats.Summary
	Report  quality.Report
	Score   float64
}

// Insight is a titled observation.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Recommendation is a suggested action with its reason.
type Recommendation struct {
	Action        string `json:"action"`
	Justification string `json:"justification"`
}

// Narrative is the generated text, structured for exporters.
type Narrative struct {
	Backend          Backend          `json:"backend"`
	ExecutiveSummary string           `json:"executive_summary"`
	KeyTrends        []string         `json:"key_trends"`
	Insights         []Insight        `json:"insights"`
	Anomalies        []string         `json:"anomalies"`
	Recommendations  []Recommendation `json:"recommendations"`
	Conclusion       string           `json:"conclusion"`
}

// Generator produces a narrative from an analysis.
type Generator interface {
	Generate(ctx context.Context, in Input) (Narrative, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, in Input) (Narrative, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, in Input) (Narrative, error) {
	return f(ctx, in)
}

// New returns the built-in generator for backend. NoneBackend yields a nil
// generator and no error.
func New(backend Backend) (Generator, error) {
	switch backend {
	case NoneBackend, "":
		return nil, nil
	case RuleBasedBackend:
		return NewRuleBased(), nil
	}
	return nil, fmt.Errorf("%s: %w", backend, ErrUnsupportedBackend)
}
