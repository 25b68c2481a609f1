/*
Package pipeline orchestrates intent resolution for one message:

  text -> rule detector -> (if low confidence) cache/model fallback
       -> validator/normalizer -> result + diagnostics

The detector and normalizer are synchronous and pure; only the fallback
classifier may block. One message is processed per call with no shared
mutable state, so concurrent Resolve calls are safe.
*/
package pipeline

import (
	"context"
	"time"

	"github.com/warp/intent-engine/classify"
	"github.com/warp/intent-engine/intent"
)

// Result is the full outcome of resolving one message.
type Result struct {
	Intent       intent.Intent
	Enhancements []string
	Diagnostics  intent.Diagnostics
}

// Resolver runs the resolution pipeline. Fallback may be nil or disabled;
// the resolver then degrades to rules-only behavior.
type Resolver struct {
	Detector   *intent.Detector
	Normalizer *intent.Normalizer
	Fallback   *classify.Classifier
}

// NewResolver wires a resolver from its stages.
func NewResolver(det *intent.Detector, norm *intent.Normalizer, fallback *classify.Classifier) *Resolver {
	return &Resolver{Detector: det, Normalizer: norm, Fallback: fallback}
}

// Resolve classifies and normalizes one message. It never returns an
// error: classification failures degrade to the rule-based result, and
// normalization only clamps or defaults.
func (r *Resolver) Resolve(ctx context.Context, userID int64, text string, ref time.Time) Result {
	detection := r.Detector.Detect(text, ref)

	resolved := detection.Intent
	diags := intent.Diagnostics{RulesFired: detection.RulesFired}

	// Empty messages never reach the model.
	isEmpty := resolved.Kind == intent.KindOther && resolved.Other != nil && resolved.Other.Reason == "Empty message"

	if !isEmpty && resolved.Confidence() == intent.ConfidenceLow && r.Fallback.Enabled() {
		if fromModel, cacheHit := r.Fallback.Classify(ctx, userID, text, ref); fromModel != nil {
			resolved = *fromModel
			diags.UsedModel = true
			diags.CacheHit = cacheHit
		}
	}

	normalized, enhancements := r.Normalizer.Normalize(resolved, text, ref)

	return Result{
		Intent:       normalized,
		Enhancements: enhancements,
		Diagnostics:  diags,
	}
}
