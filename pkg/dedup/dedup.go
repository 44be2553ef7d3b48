// Package dedup groups validated candidate records that describe the same
// physical launch, across sources that disagree on slugs.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/validate"
)

// Defaults for the grouping heuristics. Both are configurable; they are
// starting points, not laws.
const (
	DefaultDateWindow          = 24 * time.Hour
	DefaultSimilarityThreshold = 0.7
)

var (
	namePrefixPattern = regexp.MustCompile(`^(spacex\s+|mission\s+)`)
	nameSuffixPattern = regexp.MustCompile(`\s+(mission|launch)$`)
	nonWordPattern    = regexp.MustCompile(`[^a-z0-9\s]+`)
	spacePattern      = regexp.MustCompile(`\s+`)
)

// Group is a set of candidates believed to describe one launch. Members keep
// their source attribution for the reconciler.
type Group struct {
	Members []validate.Candidate
}

// EarliestDate returns the earliest launch date among members, or nil when
// no member has one.
func (g Group) EarliestDate() *time.Time {
	var earliest *time.Time
	for _, m := range g.Members {
		if m.Record.LaunchDate == nil {
			continue
		}
		if earliest == nil || m.Record.LaunchDate.Before(*earliest) {
			earliest = m.Record.LaunchDate
		}
	}
	return earliest
}

// MinSlug returns the lexicographically smallest member slug. Used as the
// sort tiebreaker so group ordering is reproducible.
func (g Group) MinSlug() string {
	min := ""
	for _, m := range g.Members {
		if min == "" || m.Record.Slug < min {
			min = m.Record.Slug
		}
	}
	return min
}

// Result is the outcome of grouping one run's candidates.
type Result struct {
	Groups            []Group
	DuplicatesRemoved int
}

// Deduplicator groups candidates. Construct with New.
type Deduplicator struct {
	window    time.Duration
	threshold float64
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithDateWindow sets the launch date proximity window for cross-slug
// grouping.
func WithDateWindow(d time.Duration) Option {
	return func(dd *Deduplicator) {
		if d > 0 {
			dd.window = d
		}
	}
}

// WithSimilarityThreshold sets the mission name similarity threshold for
// cross-slug grouping.
func WithSimilarityThreshold(t float64) Option {
	return func(dd *Deduplicator) {
		if t > 0 {
			dd.threshold = t
		}
	}
}

// New creates a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		window:    DefaultDateWindow,
		threshold: DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Group partitions candidates into launch groups. Two candidates share a
// group when their slugs match exactly, or when their mission names are
// similar above the threshold and their launch dates fall within the window.
// Groups come back sorted by earliest launch date then slug; a candidate
// matching nothing forms a singleton group.
func (d *Deduplicator) Group(candidates []validate.Candidate) Result {
	if len(candidates) == 0 {
		return Result{}
	}

	// Seed one group per distinct slug, preserving input order within a
	// group.
	index := make(map[string]int)
	var groups []Group
	for _, c := range candidates {
		i, seen := index[c.Record.Slug]
		if !seen {
			i = len(groups)
			index[c.Record.Slug] = i
			groups = append(groups, Group{})
		}
		groups[i].Members = append(groups[i].Members, c)
	}

	groups = d.mergeSimilar(groups)

	removed := 0
	for i := range groups {
		groups[i].Members, removed = collapseSameSource(groups[i].Members, removed)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		di, dj := groups[i].EarliestDate(), groups[j].EarliestDate()
		switch {
		case di == nil && dj == nil:
			return groups[i].MinSlug() < groups[j].MinSlug()
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		default:
			return groups[i].MinSlug() < groups[j].MinSlug()
		}
	})

	logging.Debug().
		Int("candidates", len(candidates)).
		Int("groups", len(groups)).
		Int("duplicates_removed", removed).
		Msg("Grouped candidates")

	return Result{Groups: groups, DuplicatesRemoved: removed}
}

// mergeSimilar joins slug-seeded groups whose members look like the same
// launch under the name similarity and date window heuristics. Repeats until
// a pass makes no merge, so transitively similar groups end up together.
func (d *Deduplicator) mergeSimilar(groups []Group) []Group {
	for {
		merged := false
	outer:
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if d.sameLaunch(groups[i], groups[j]) {
					groups[i].Members = append(groups[i].Members, groups[j].Members...)
					groups = append(groups[:j], groups[j+1:]...)
					merged = true
					break outer
				}
			}
		}
		if !merged {
			return groups
		}
	}
}

// sameLaunch reports whether any member pair across the two groups is
// similar enough to identify one launch.
func (d *Deduplicator) sameLaunch(a, b Group) bool {
	for _, ma := range a.Members {
		for _, mb := range b.Members {
			if NameSimilarity(ma.Record.MissionName, mb.Record.MissionName) >= d.threshold &&
				d.datesClose(ma.Record.LaunchDate, mb.Record.LaunchDate) {
				return true
			}
		}
	}
	return false
}

// datesClose reports whether two launch dates fall within the window. Two
// unknown dates count as close; one unknown date does not.
func (d *Deduplicator) datesClose(a, b *time.Time) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	diff := a.Sub(*b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d.window
}

// collapseSameSource keeps only the most complete record each source
// contributed to a group. A source scraping the same launch twice in one run
// is noise, not a second opinion.
func collapseSameSource(members []validate.Candidate, removed int) ([]validate.Candidate, int) {
	if len(members) <= 1 {
		return members, removed
	}
	best := make(map[string]int)
	for i, m := range members {
		prev, seen := best[m.SourceName]
		if !seen || CompletenessScore(m.Record) > CompletenessScore(members[prev].Record) {
			best[m.SourceName] = i
		}
	}
	if len(best) == len(members) {
		return members, removed
	}
	keep := make([]validate.Candidate, 0, len(best))
	for i, m := range members {
		if best[m.SourceName] == i {
			keep = append(keep, m)
		}
	}
	return keep, removed + len(members) - len(keep)
}

// CompletenessScore weighs how much of a record a source filled in. Identity
// and status fields count most.
func CompletenessScore(rec launches.LaunchRecord) float64 {
	score := 0.0
	if rec.Slug != "" {
		score += 2.0
	}
	if rec.MissionName != "" {
		score += 2.0
	}
	if rec.Status != launches.StatusUnknown {
		score += 2.0
	}
	if rec.LaunchDate != nil {
		score += 1.5
	}
	if rec.VehicleType != "" {
		score += 1.0
	}
	if rec.PayloadMass != nil {
		score += 1.0
	}
	if rec.Orbit != "" {
		score += 1.0
	}
	if rec.Details != "" {
		score += 0.5
	}
	if rec.PatchURL != "" {
		score += 0.5
	}
	if rec.WebcastURL != "" {
		score += 0.5
	}
	return score
}

// NormalizeMissionName lowers the name and strips branding prefixes,
// trailing "mission"/"launch" words, and punctuation, leaving the words that
// actually identify the flight.
func NormalizeMissionName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = namePrefixPattern.ReplaceAllString(n, "")
	n = nameSuffixPattern.ReplaceAllString(n, "")
	n = nonWordPattern.ReplaceAllString(n, " ")
	n = spacePattern.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NameSimilarity scores two mission names in [0, 1]. Exact normalized
// matches and containment score 1; otherwise the score is the word overlap
// ratio relative to the longer name.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeMissionName(a), NormalizeMissionName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 1
	}

	wordsA := strings.Fields(na)
	wordsB := strings.Fields(nb)
	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	common := 0
	seen := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		if setA[w] && !seen[w] {
			common++
			seen[w] = true
		}
	}
	max := len(setA)
	if distinctB := len(distinct(wordsB)); distinctB > max {
		max = distinctB
	}
	if max == 0 {
		return 0
	}
	return float64(common) / float64(max)
}

func distinct(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
