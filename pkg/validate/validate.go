// Package validate turns raw per-source scrape records into candidate
// launch records. Every record is validated on its own; a bad record is
// rejected and logged while the batch keeps going.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
	"github.com/therealsahil19/webspace/pkg/logging"
)

// dateLayouts are tried in order when parsing source launch dates. Sources
// disagree on formats, so the list is deliberately generous.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"2 January 2006 15:04",
	"2 January 2006",
	"Jan 2, 2006",
}

var (
	// tagPattern matches HTML/XML markup including script and style blocks.
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)\b.*?</(script|style)>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)

	// massPattern pulls the leading numeric portion out of strings like
	// "5,500 kg" or "~22800kg (expendable)".
	massPattern = regexp.MustCompile(`-?[0-9][0-9,]*(?:\.[0-9]+)?`)
)

// farFutureHorizon bounds how far ahead a plausible launch date can be.
const farFutureHorizon = 10 * 365 * 24 * time.Hour

// implausibleMassKg flags payload masses beyond any flown vehicle.
const implausibleMassKg = 100_000.0

// Candidate pairs a validated launch record with the source attribution the
// deduplicator and reconciler need downstream.
type Candidate struct {
	Record       launches.LaunchRecord
	SourceName   string
	SourceURL    string
	ScrapedAt    time.Time
	QualityScore float64
	Warnings     []string
}

// Rejection records one raw record that failed validation.
type Rejection struct {
	Record launches.RawRecord
	Err    error
}

// Result is the outcome of validating one batch.
type Result struct {
	Candidates []Candidate
	Rejected   []Rejection
	Warnings   int
}

// Validator normalizes raw records into candidates. The zero value is not
// usable; construct with New.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithNow sets the time source used for status classification and
// plausibility warnings. Tests inject a fixed clock.
func WithNow(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Batch validates a batch of raw records. Rejected records are logged and
// collected; they never abort the batch.
func (v *Validator) Batch(records []launches.RawRecord) Result {
	result := Result{}
	for _, raw := range records {
		candidate, err := v.Record(raw)
		if err != nil {
			logging.Warn().
				Str("source", raw.SourceName).
				Str("mission", raw.MissionName).
				Err(err).
				Msg("Rejected record")
			result.Rejected = append(result.Rejected, Rejection{Record: raw, Err: err})
			continue
		}
		for _, warning := range candidate.Warnings {
			logging.Warn().
				Str("source", raw.SourceName).
				Str("slug", candidate.Record.Slug).
				Msg(warning)
		}
		result.Warnings += len(candidate.Warnings)
		result.Candidates = append(result.Candidates, candidate)
	}
	return result
}

// Record validates one raw record.
func (v *Validator) Record(raw launches.RawRecord) (Candidate, error) {
	now := v.now().UTC()

	missionName := strings.TrimSpace(sanitizeText(raw.MissionName))
	if missionName == "" {
		return Candidate{}, errors.NewValidationError("mission_name", raw.MissionName, "mission name is required")
	}

	rec := launches.LaunchRecord{
		MissionName: missionName,
		VehicleType: strings.TrimSpace(sanitizeText(raw.VehicleType)),
		Orbit:       strings.TrimSpace(sanitizeText(raw.Orbit)),
		Details:     strings.TrimSpace(sanitizeText(raw.Details)),
		PatchURL:    strings.TrimSpace(raw.PatchURL),
		WebcastURL:  strings.TrimSpace(raw.WebcastURL),
	}

	var warnings []string

	if raw.LaunchDate != "" {
		if date, err := ParseLaunchDate(raw.LaunchDate); err == nil {
			rec.LaunchDate = &date
			if date.After(now.Add(farFutureHorizon)) {
				warnings = append(warnings, fmt.Sprintf("Launch date %s is more than a decade out", date.Format(time.RFC3339)))
			}
		} else {
			// Unparseable dates become null rather than rejecting the record.
			logging.Debug().
				Str("source", raw.SourceName).
				Str("launch_date", raw.LaunchDate).
				Msg("Could not parse launch date")
		}
	}

	if raw.PayloadMass != "" {
		if mass, err := ParsePayloadMass(raw.PayloadMass); err == nil {
			if mass < 0 {
				return Candidate{}, errors.NewValidationError("payload_mass", raw.PayloadMass, fmt.Sprintf("mass %v is negative", mass))
			}
			rec.PayloadMass = &mass
			if mass > implausibleMassKg {
				warnings = append(warnings, fmt.Sprintf("Payload mass %.0f kg exceeds plausible range", mass))
			}
		} else {
			// Unparseable masses become null, same as dates.
			warnings = append(warnings, fmt.Sprintf("Could not parse payload mass %q", raw.PayloadMass))
			logging.Debug().
				Str("source", raw.SourceName).
				Str("payload_mass", raw.PayloadMass).
				Msg("Could not parse payload mass")
		}
	}

	rec.Status = launches.NormalizeStatus(raw.OutcomeText)
	if rec.Status == launches.StatusUnknown {
		rec.Status = launches.ClassifyOutcome(raw.OutcomeText, rec.LaunchDate, now)
	}
	if rec.Status == launches.StatusUpcoming && rec.LaunchDate != nil && rec.LaunchDate.Before(now) {
		warnings = append(warnings, "Marked upcoming but launch date has passed")
	}

	slug := strings.TrimSpace(raw.Slug)
	if slug != "" {
		slug = launches.Slugify(slug)
	} else {
		slug = launches.DeriveSlug(missionName, raw.LaunchDate)
	}
	if slug == "" {
		return Candidate{}, errors.NewValidationError("slug", raw.Slug, "could not derive a slug")
	}
	rec.Slug = slug

	return Candidate{
		Record:       rec,
		SourceName:   raw.SourceName,
		SourceURL:    raw.SourceURL,
		ScrapedAt:    raw.ScrapedAt,
		QualityScore: raw.QualityScore,
		Warnings:     warnings,
	}, nil
}

// ParseLaunchDate parses a source-formatted launch date and normalizes it to
// UTC.
func ParseLaunchDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}

// ParsePayloadMass parses a payload mass in kilograms from source text such
// as "5,500 kg". Sign is preserved; plausibility is the caller's concern.
func ParsePayloadMass(value string) (float64, error) {
	match := massPattern.FindString(value)
	if match == "" {
		return 0, fmt.Errorf("no numeric mass in %q", value)
	}
	mass, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parse mass %q: %w", match, err)
	}
	return mass, nil
}

// sanitizeText strips markup and script blocks from free text.
func sanitizeText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	s = scriptPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
