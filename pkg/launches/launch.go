// Package launches defines the data model for the reconciliation pipeline:
// raw per-source scrape records, the canonical launch record they are merged
// into, per-source provenance, and field-level conflicts.
package launches

import (
	"time"
)

// RawRecord is the unvalidated output of a single source adapter for one
// launch. Field values are kept loosely typed; the validator is responsible
// for parsing and normalization. Raw records are ephemeral and are not
// persisted beyond their provenance summary.
type RawRecord struct {
	SourceName   string    `json:"source_name" yaml:"source_name"`
	SourceURL    string    `json:"source_url" yaml:"source_url"`
	ScrapedAt    time.Time `json:"scraped_at" yaml:"scraped_at"`
	QualityScore float64   `json:"quality_score" yaml:"quality_score"` // 0.0 to 1.0

	Slug        string `json:"slug,omitempty" yaml:"slug,omitempty"`
	MissionName string `json:"mission_name" yaml:"mission_name"`
	LaunchDate  string `json:"launch_date,omitempty" yaml:"launch_date,omitempty"`
	VehicleType string `json:"vehicle_type,omitempty" yaml:"vehicle_type,omitempty"`
	PayloadMass string `json:"payload_mass,omitempty" yaml:"payload_mass,omitempty"`
	Orbit       string `json:"orbit,omitempty" yaml:"orbit,omitempty"`
	OutcomeText string `json:"outcome_text,omitempty" yaml:"outcome_text,omitempty"`
	Details     string `json:"details,omitempty" yaml:"details,omitempty"`
	PatchURL    string `json:"patch_url,omitempty" yaml:"patch_url,omitempty"`
	WebcastURL  string `json:"webcast_url,omitempty" yaml:"webcast_url,omitempty"`
}

// LaunchRecord is the canonical, reconciled representation of one launch.
// Slug is the stable identity key; records are created on first successful
// reconciliation and mutated on every subsequent run, never deleted by the
// pipeline.
type LaunchRecord struct {
	ID          int64      `json:"id,omitempty" yaml:"id,omitempty"`
	Slug        string     `json:"slug" yaml:"slug"`
	MissionName string     `json:"mission_name" yaml:"mission_name"`
	LaunchDate  *time.Time `json:"launch_date,omitempty" yaml:"launch_date,omitempty"` // UTC
	VehicleType string     `json:"vehicle_type,omitempty" yaml:"vehicle_type,omitempty"`
	PayloadMass *float64   `json:"payload_mass,omitempty" yaml:"payload_mass,omitempty"` // kg
	Orbit       string     `json:"orbit,omitempty" yaml:"orbit,omitempty"`
	Status      Status     `json:"status,omitempty" yaml:"status,omitempty"`
	Details     string     `json:"details,omitempty" yaml:"details,omitempty"`
	PatchURL    string     `json:"patch_url,omitempty" yaml:"patch_url,omitempty"`
	WebcastURL  string     `json:"webcast_url,omitempty" yaml:"webcast_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Provenance records one source's contribution to a canonical record during
// one run. Provenance rows are append-only.
type Provenance struct {
	ID           int64     `json:"id,omitempty"`
	LaunchID     int64     `json:"launch_id"`
	SourceName   string    `json:"source_name"`
	SourceURL    string    `json:"source_url,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
	QualityScore float64   `json:"quality_score"`
}

// Conflict is a recorded disagreement between two sources on one field's
// value. An unresolved conflict for the same (launch, field) is refreshed
// with new values rather than duplicated. A resolved conflict is immutable
// until explicitly reopened.
type Conflict struct {
	ID              int64      `json:"id"`
	LaunchID        int64      `json:"launch_id"`
	Slug            string     `json:"slug,omitempty"`
	FieldName       string     `json:"field_name"`
	Source1Value    string     `json:"source1_value"`
	Source2Value    string     `json:"source2_value"`
	Resolved        bool       `json:"resolved"`
	ResolutionValue string     `json:"resolution_value,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Reconcilable field names. These are the stored column names and also the
// field_name values recorded on conflicts.
const (
	FieldMissionName = "mission_name"
	FieldLaunchDate  = "launch_date"
	FieldVehicleType = "vehicle_type"
	FieldPayloadMass = "payload_mass"
	FieldOrbit       = "orbit"
	FieldStatus      = "status"
	FieldDetails     = "details"
	FieldPatchURL    = "patch_url"
	FieldWebcastURL  = "webcast_url"
)

// ReconcilableFields returns the fields the reconciler resolves across
// sources, in a fixed order for reproducible processing.
func ReconcilableFields() []string {
	return []string{
		FieldMissionName,
		FieldLaunchDate,
		FieldVehicleType,
		FieldPayloadMass,
		FieldOrbit,
		FieldStatus,
		FieldDetails,
		FieldPatchURL,
		FieldWebcastURL,
	}
}

// FieldValue returns the value of a reconcilable field, or nil if the field
// is unset. Text fields return string, launch_date returns time.Time,
// payload_mass returns float64, status returns Status.
func (r *LaunchRecord) FieldValue(field string) any {
	switch field {
	case FieldMissionName:
		return nonEmpty(r.MissionName)
	case FieldLaunchDate:
		if r.LaunchDate == nil {
			return nil
		}
		return *r.LaunchDate
	case FieldVehicleType:
		return nonEmpty(r.VehicleType)
	case FieldPayloadMass:
		if r.PayloadMass == nil {
			return nil
		}
		return *r.PayloadMass
	case FieldOrbit:
		return nonEmpty(r.Orbit)
	case FieldStatus:
		if r.Status == StatusUnknown {
			return nil
		}
		return r.Status
	case FieldDetails:
		return nonEmpty(r.Details)
	case FieldPatchURL:
		return nonEmpty(r.PatchURL)
	case FieldWebcastURL:
		return nonEmpty(r.WebcastURL)
	}
	return nil
}

// SetFieldValue sets a reconcilable field from a value previously obtained
// through FieldValue. Unknown fields and nil values are ignored.
func (r *LaunchRecord) SetFieldValue(field string, value any) {
	if value == nil {
		return
	}
	switch field {
	case FieldMissionName:
		if s, ok := value.(string); ok {
			r.MissionName = s
		}
	case FieldLaunchDate:
		if t, ok := value.(time.Time); ok {
			utc := t.UTC()
			r.LaunchDate = &utc
		}
	case FieldVehicleType:
		if s, ok := value.(string); ok {
			r.VehicleType = s
		}
	case FieldPayloadMass:
		if f, ok := value.(float64); ok {
			r.PayloadMass = &f
		}
	case FieldOrbit:
		if s, ok := value.(string); ok {
			r.Orbit = s
		}
	case FieldStatus:
		switch v := value.(type) {
		case Status:
			r.Status = v
		case string:
			r.Status = Status(v)
		}
	case FieldDetails:
		if s, ok := value.(string); ok {
			r.Details = s
		}
	case FieldPatchURL:
		if s, ok := value.(string); ok {
			r.PatchURL = s
		}
	case FieldWebcastURL:
		if s, ok := value.(string); ok {
			r.WebcastURL = s
		}
	}
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
