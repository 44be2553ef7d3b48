// Package reconcile resolves per-field disagreements within one launch group
// into a single canonical record, recording a conflict wherever sources
// genuinely diverge.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/therealsahil19/webspace/pkg/dedup"
	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/validate"
)

// Field-specific tolerances. Values this close are the same measurement
// reported sloppily, not a disagreement.
const (
	DefaultMassTolerance = 0.01 // relative
	DefaultDateTolerance = 5 * time.Minute
)

// ResolutionOrigin marks a field value that came from manual conflict
// resolution rather than a source.
const ResolutionOrigin = "resolution"

// Outcome is the reconciled result for one group: the canonical record, the
// per-field winning source, conflicts to upsert, and one provenance entry
// per contributing source.
type Outcome struct {
	Record       launches.LaunchRecord
	FieldOrigins map[string]string
	Conflicts    []launches.Conflict
	Provenance   []launches.Provenance
}

// Reconciler merges launch groups under a configured source ranking.
type Reconciler struct {
	ranking       Ranking
	massTolerance float64
	dateTolerance time.Duration
	now           func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMassTolerance sets the relative payload mass tolerance.
func WithMassTolerance(t float64) Option {
	return func(r *Reconciler) {
		if t > 0 {
			r.massTolerance = t
		}
	}
}

// WithDateTolerance sets the launch date tolerance.
func WithDateTolerance(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.dateTolerance = d
		}
	}
}

// WithNow sets the time source for conflict timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler with the given source ranking.
func New(ranking Ranking, opts ...Option) *Reconciler {
	r := &Reconciler{
		ranking:       ranking,
		massTolerance: DefaultMassTolerance,
		dateTolerance: DefaultDateTolerance,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile merges one group into a canonical record. The group must have at
// least one member. The result does not depend on member order: members are
// ranked by source priority, then quality score, then source name.
func (r *Reconciler) Reconcile(group dedup.Group) (Outcome, error) {
	if len(group.Members) == 0 {
		return Outcome{}, errors.NewValidationError("group", nil, "empty group")
	}

	members := make([]validate.Candidate, len(group.Members))
	copy(members, group.Members)
	sort.SliceStable(members, func(i, j int) bool {
		pi, pj := r.ranking.Priority(members[i].SourceName), r.ranking.Priority(members[j].SourceName)
		if pi != pj {
			return pi > pj
		}
		if members[i].QualityScore != members[j].QualityScore {
			return members[i].QualityScore > members[j].QualityScore
		}
		return members[i].SourceName < members[j].SourceName
	})

	now := r.now().UTC()
	outcome := Outcome{
		Record:       launches.LaunchRecord{Slug: members[0].Record.Slug},
		FieldOrigins: make(map[string]string),
	}

	for _, field := range launches.ReconcilableFields() {
		winner, runnerUp, origin := r.resolveField(field, members)
		if winner == nil {
			continue
		}
		outcome.Record.SetFieldValue(field, winner)
		outcome.FieldOrigins[field] = origin
		if runnerUp != nil {
			outcome.Conflicts = append(outcome.Conflicts, launches.Conflict{
				Slug:         outcome.Record.Slug,
				FieldName:    field,
				Source1Value: FormatValue(winner),
				Source2Value: FormatValue(runnerUp),
				CreatedAt:    now,
				UpdatedAt:    now,
			})
			logging.Debug().
				Str("slug", outcome.Record.Slug).
				Str("field", field).
				Str("chosen", FormatValue(winner)).
				Str("other", FormatValue(runnerUp)).
				Msg("Field conflict")
		}
	}

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.SourceName == ResolutionOrigin || seen[m.SourceName] {
			continue
		}
		seen[m.SourceName] = true
		outcome.Provenance = append(outcome.Provenance, launches.Provenance{
			SourceName:   m.SourceName,
			SourceURL:    m.SourceURL,
			ScrapedAt:    m.ScrapedAt,
			QualityScore: m.QualityScore,
		})
	}

	return outcome, nil
}

// resolveField picks the canonical value for one field from members already
// sorted by rank. It returns the winning value, the highest-ranked
// disagreeing value when the sources genuinely diverge, and the winning
// source name.
func (r *Reconciler) resolveField(field string, members []validate.Candidate) (winner, runnerUp any, origin string) {
	for _, m := range members {
		v := m.Record.FieldValue(field)
		if v == nil {
			continue
		}
		if winner == nil {
			winner, origin = v, m.SourceName
			continue
		}
		if runnerUp == nil && !r.equalWithinTolerance(field, winner, v) {
			runnerUp = v
		}
	}
	return winner, runnerUp, origin
}

// equalWithinTolerance compares two non-nil field values under the field's
// tolerance rule.
func (r *Reconciler) equalWithinTolerance(field string, a, b any) bool {
	switch field {
	case launches.FieldPayloadMass:
		ma, aok := a.(float64)
		mb, bok := b.(float64)
		if !aok || !bok {
			return false
		}
		diff := ma - mb
		if diff < 0 {
			diff = -diff
		}
		max := ma
		if mb > max {
			max = mb
		}
		if max == 0 {
			return diff == 0
		}
		return diff/max < r.massTolerance
	case launches.FieldLaunchDate:
		ta, aok := a.(time.Time)
		tb, bok := b.(time.Time)
		if !aok || !bok {
			return false
		}
		diff := ta.Sub(tb)
		if diff < 0 {
			diff = -diff
		}
		return diff < r.dateTolerance
	case launches.FieldStatus:
		return a == b
	default:
		sa, aok := a.(string)
		sb, bok := b.(string)
		if !aok || !bok {
			return a == b
		}
		return strings.EqualFold(strings.TrimSpace(sa), strings.TrimSpace(sb))
	}
}

// StoredContributions converts a previously stored record back into
// per-source candidates, one per origin source carrying just the fields that
// source won last time. Feeding these into the next run's group lets stored
// values compete at their original priority instead of being overwritten.
func StoredContributions(rec launches.LaunchRecord, origins map[string]string) []validate.Candidate {
	bySource := make(map[string]*validate.Candidate)
	names := make([]string, 0, len(origins))
	for _, field := range launches.ReconcilableFields() {
		source, tracked := origins[field]
		if !tracked {
			continue
		}
		v := rec.FieldValue(field)
		if v == nil {
			continue
		}
		c, found := bySource[source]
		if !found {
			c = &validate.Candidate{
				Record:     launches.LaunchRecord{Slug: rec.Slug},
				SourceName: source,
			}
			bySource[source] = c
			names = append(names, source)
		}
		c.Record.SetFieldValue(field, v)
	}

	sort.Strings(names)
	candidates := make([]validate.Candidate, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, *bySource[name])
	}
	return candidates
}

// FormatValue renders a field value for conflict rows and logs.
func FormatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", value)
	case launches.Status:
		return value.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}
