// Package validate applies schema and business-rule checks to extracted
// centre records and computes a per-record quality score.
package validate

import (
	"fmt"
	"strings"
	"time"

	"mallcrawl/internal/crawler"
)

// Normalized property types.
const (
	TypeSuperRegional = "super_regional_centre"
	TypeRegional      = "regional_centre"
	TypeCommunity     = "community_centre"
	TypeNeighbourhood = "neighbourhood_centre"
	TypeRetailPark    = "retail_park"
	TypeOutlet        = "outlet_centre"
	TypeLifestyle     = "lifestyle_centre"
	TypePower         = "power_centre"
	TypeUnknown       = "unknown"
)

// Normalized centre statuses.
const (
	StatusExisting          = "existing"
	StatusUpcoming          = "upcoming"
	StatusUnderConstruction = "under_construction"
	StatusClosed            = "closed"
	StatusUnknown           = "unknown"
)

var propertyTypeAliases = map[string]string{
	"super regional centre": TypeSuperRegional,
	"super regional center": TypeSuperRegional,
	"super-regional centre": TypeSuperRegional,
	"regional centre":       TypeRegional,
	"regional center":       TypeRegional,
	"community centre":      TypeCommunity,
	"community center":      TypeCommunity,
	"neighbourhood centre":  TypeNeighbourhood,
	"neighborhood centre":   TypeNeighbourhood,
	"retail park":           TypeRetailPark,
	"outlet centre":         TypeOutlet,
	"outlet center":         TypeOutlet,
	"lifestyle centre":      TypeLifestyle,
	"lifestyle center":      TypeLifestyle,
	"power centre":          TypePower,
	"power center":          TypePower,
}

var statusAliases = map[string]string{
	"existing":           StatusExisting,
	"existing mall":      StatusExisting,
	"upcoming":           StatusUpcoming,
	"upcoming mall":      StatusUpcoming,
	"under construction": StatusUnderConstruction,
	"construction":       StatusUnderConstruction,
	"closed":             StatusClosed,
	"temporarily closed": StatusClosed,
}

// Validator checks records against the directory schema. When
// StrictRules is set, business-rule violations reject the record;
// otherwise they only lower the quality score.
type Validator struct {
	StrictRules bool
}

// New creates a validator. strict promotes business rules to errors.
func New(strict bool) *Validator {
	return &Validator{StrictRules: strict}
}

// Validate normalizes enumerated fields in place, runs schema checks and
// business rules, and computes the quality score. Any schema error makes
// the record invalid regardless of score.
func (v *Validator) Validate(rec *crawler.CentreRecord) crawler.ValidationResult {
	var errs, warns []string

	// Schema checks.
	if strings.TrimSpace(rec.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(rec.SourceURL) == "" {
		errs = append(errs, "source_url is required")
	}
	if rec.Latitude != nil && (*rec.Latitude < -90 || *rec.Latitude > 90) {
		errs = append(errs, fmt.Sprintf("latitude %v out of range [-90,90]", *rec.Latitude))
	}
	if rec.Longitude != nil && (*rec.Longitude < -180 || *rec.Longitude > 180) {
		errs = append(errs, fmt.Sprintf("longitude %v out of range [-180,180]", *rec.Longitude))
	}
	for name, val := range map[string]*int{
		"gla_total_sqm":  rec.GLATotalSqm,
		"gla_retail_sqm": rec.GLARetailSqm,
		"store_count":    rec.StoreCount,
		"parking_spaces": rec.ParkingSpaces,
	} {
		if val != nil && *val < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", name))
		}
	}
	if rec.OpeningYear != nil {
		maxYear := time.Now().Year() + 10
		if *rec.OpeningYear < 1800 || *rec.OpeningYear > maxYear {
			errs = append(errs, fmt.Sprintf("opening_year %d out of range [1800,%d]", *rec.OpeningYear, maxYear))
		}
	}

	// Enum normalization: unrecognized values become "unknown" with a
	// warning rather than rejecting the record.
	if rec.PropertyType != "" {
		norm, known := propertyTypeAliases[strings.ToLower(strings.TrimSpace(rec.PropertyType))]
		if !known {
			warns = append(warns, fmt.Sprintf("unrecognized property type %q", rec.PropertyType))
			norm = TypeUnknown
		}
		rec.PropertyType = norm
	}
	if rec.Status != "" {
		norm, known := statusAliases[strings.ToLower(strings.TrimSpace(rec.Status))]
		if !known {
			warns = append(warns, fmt.Sprintf("unrecognized status %q", rec.Status))
			norm = StatusUnknown
		}
		rec.Status = norm
	}

	// Business rules: cross-field consistency.
	var ruleViolations []string
	if rec.GLATotalSqm != nil && rec.GLARetailSqm != nil && *rec.GLARetailSqm > *rec.GLATotalSqm {
		ruleViolations = append(ruleViolations, fmt.Sprintf("retail GLA %d exceeds total GLA %d", *rec.GLARetailSqm, *rec.GLATotalSqm))
	}
	if rec.StoreCount != nil && len(rec.Shops) > *rec.StoreCount {
		ruleViolations = append(ruleViolations, fmt.Sprintf("%d listed shops exceed declared store count %d", len(rec.Shops), *rec.StoreCount))
	}
	if v.StrictRules {
		errs = append(errs, ruleViolations...)
	} else {
		warns = append(warns, ruleViolations...)
	}

	return crawler.ValidationResult{
		IsValid:      len(errs) == 0,
		Errors:       errs,
		Warnings:     warns,
		QualityScore: v.qualityScore(rec, len(errs), len(warns)),
	}
}

// qualityScore is the weighted fraction of populated fields, reduced for
// every error and warning. Monotonically decreasing in both.
func (v *Validator) qualityScore(rec *crawler.CentreRecord, errCount, warnCount int) float64 {
	score, total := 0.0, 0.0

	weigh := func(weight float64, present bool) {
		if present {
			score += weight
		}
		total += weight
	}

	weigh(1.0, strings.TrimSpace(rec.Name) != "")
	weigh(1.0, strings.TrimSpace(rec.SourceURL) != "")
	weigh(0.8, rec.PropertyType != "" && rec.PropertyType != TypeUnknown)
	weigh(0.8, rec.Status != "" && rec.Status != StatusUnknown)
	weigh(0.9, rec.Latitude != nil && rec.Longitude != nil)
	weigh(0.5, rec.Country != "")
	weigh(0.5, rec.City != "")
	weigh(0.6, rec.GLATotalSqm != nil)
	weigh(0.4, rec.StoreCount != nil)
	weigh(0.3, rec.OpeningYear != nil)

	base := score / total

	// Each finding shaves a fixed fraction so the score strictly drops.
	penalty := 0.1*float64(errCount) + 0.05*float64(warnCount)
	result := base * (1 - penalty)
	if result < 0 {
		return 0
	}
	return result
}
