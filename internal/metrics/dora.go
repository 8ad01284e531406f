package metrics

import (
	"strings"
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/jira"
	"teammetrics/internal/release"
)

// Level is a DORA performance band.
type Level string

const (
	LevelElite       Level = "elite"
	LevelHigh        Level = "high"
	LevelMedium      Level = "medium"
	LevelLow         Level = "low"
	LevelUnavailable Level = "unavailable"
)

// incidentCorrelationWindow is how long after a deployment an incident is
// still attributed to it when no explicit reference exists.
const incidentCorrelationWindow = 24 * time.Hour

// DORAMetrics is the four-key set plus the overall band.
type DORAMetrics struct {
	DeploymentFrequency DeploymentFrequency `json:"deployment_frequency"`
	LeadTime            LeadTime            `json:"lead_time"`
	ChangeFailureRate   ChangeFailureRate   `json:"change_failure_rate"`
	MTTR                MTTR                `json:"mttr"`
	Overall             Level               `json:"overall"`
}

type DeploymentFrequency struct {
	Deployments int     `json:"deployments"`
	PerWeek     float64 `json:"per_week"`
	Level       Level   `json:"level"`
}

type LeadTime struct {
	MedianHours    float64 `json:"median_hours"`
	P95Hours       float64 `json:"p95_hours"`
	MappedFraction float64 `json:"mapped_fraction"`
	Level          Level   `json:"level"`
}

type ChangeFailureRate struct {
	FailedDeployments int     `json:"failed_deployments"`
	TotalDeployments  int     `json:"total_deployments"`
	Rate              float64 `json:"rate"`
	Level             Level   `json:"level"`
}

type MTTR struct {
	MedianHours float64 `json:"median_hours"`
	P95Hours    float64 `json:"p95_hours"`
	Incidents   int     `json:"incidents"`
	Level       Level   `json:"level"`
}

// ComputeDORA derives the four keys from production versions, mapped PRs and
// incidents. incidentsConfigured distinguishes "no incidents filter set up"
// (CFR and MTTR unavailable) from "filter returned nothing" (healthy zero).
func ComputeDORA(versions []jira.FixVersion, mapping MappingResult, incidents []jira.Issue, window daterange.Range, incidentsConfigured bool) DORAMetrics {
	// A version with no team-assigned issues belongs to another team sharing
	// the project; it counts toward neither DF nor the CFR denominator.
	var prod []jira.FixVersion
	for _, v := range versions {
		if v.Environment == release.Production && window.Contains(v.ReleaseDate) && len(v.Issues) > 0 {
			prod = append(prod, v)
		}
	}

	d := DORAMetrics{
		DeploymentFrequency: computeDF(prod, window),
		LeadTime:            computeLeadTime(mapping),
		ChangeFailureRate:   computeCFR(prod, incidents, incidentsConfigured),
		MTTR:                computeMTTR(incidents, incidentsConfigured),
	}
	d.Overall = overallLevel(d.DeploymentFrequency.Level, d.LeadTime.Level, d.ChangeFailureRate.Level, d.MTTR.Level)
	return d
}

func computeDF(prod []jira.FixVersion, window daterange.Range) DeploymentFrequency {
	df := DeploymentFrequency{Deployments: len(prod)}
	weeks := window.Weeks()
	if weeks > 0 {
		df.PerWeek = float64(df.Deployments) / weeks
	}

	perMonth := df.PerWeek * 52 / 12
	switch {
	case df.PerWeek >= 7:
		df.Level = LevelElite
	case df.PerWeek >= 1:
		df.Level = LevelHigh
	case perMonth >= 1:
		df.Level = LevelMedium
	default:
		df.Level = LevelLow
	}
	return df
}

func computeLeadTime(mapping MappingResult) LeadTime {
	lt := LeadTime{MappedFraction: mapping.MappedFraction}
	if len(mapping.LeadTimesHours) == 0 {
		lt.Level = LevelUnavailable
		return lt
	}

	lt.MedianHours = Median(mapping.LeadTimesHours)
	lt.P95Hours = Percentile(mapping.LeadTimesHours, 0.95)
	switch {
	case lt.MedianHours < 24:
		lt.Level = LevelElite
	case lt.MedianHours < 168:
		lt.Level = LevelHigh
	case lt.MedianHours < 720:
		lt.Level = LevelMedium
	default:
		lt.Level = LevelLow
	}
	return lt
}

// incidentReferences reports whether the incident names the version in its
// labels, summary or description.
func incidentReferences(inc jira.Issue, version string) bool {
	if version == "" {
		return false
	}
	for _, label := range inc.Labels {
		if strings.EqualFold(label, version) {
			return true
		}
	}
	lower := strings.ToLower(version)
	return strings.Contains(strings.ToLower(inc.Summary), lower) ||
		strings.Contains(strings.ToLower(inc.Description), lower)
}

func computeCFR(prod []jira.FixVersion, incidents []jira.Issue, configured bool) ChangeFailureRate {
	cfr := ChangeFailureRate{TotalDeployments: len(prod)}
	if !configured || len(prod) == 0 {
		cfr.Level = LevelUnavailable
		return cfr
	}

	for _, v := range prod {
		failed := false
		for _, inc := range incidents {
			if incidentReferences(inc, v.Name) {
				failed = true
				break
			}
			// Strictly after the deployment: an incident opened at the exact
			// release instant predates the change going live.
			delta := inc.Created.Sub(v.ReleaseDate)
			if delta > 0 && delta <= incidentCorrelationWindow {
				failed = true
				break
			}
		}
		if failed {
			cfr.FailedDeployments++
		}
	}

	cfr.Rate = float64(cfr.FailedDeployments) / float64(cfr.TotalDeployments)
	switch {
	case cfr.Rate < 0.15:
		cfr.Level = LevelElite
	case cfr.Rate < 0.20:
		cfr.Level = LevelHigh
	case cfr.Rate < 0.30:
		cfr.Level = LevelMedium
	default:
		cfr.Level = LevelLow
	}
	return cfr
}

func computeMTTR(incidents []jira.Issue, configured bool) MTTR {
	m := MTTR{Incidents: len(incidents)}
	var resolutions []float64
	for _, inc := range incidents {
		if h := inc.ResolutionTimeHours(); h > 0 {
			resolutions = append(resolutions, h)
		}
	}
	if !configured || len(resolutions) == 0 {
		m.Level = LevelUnavailable
		return m
	}

	m.MedianHours = Median(resolutions)
	m.P95Hours = Percentile(resolutions, 0.95)
	switch {
	case m.MedianHours < 1:
		m.Level = LevelElite
	case m.MedianHours < 24:
		m.Level = LevelHigh
	case m.MedianHours < 168:
		m.Level = LevelMedium
	default:
		m.Level = LevelLow
	}
	return m
}

// overallLevel folds the four bands into one. Unavailable metrics count
// toward neither side.
func overallLevel(levels ...Level) Level {
	var elite, eliteOrHigh, low, available int
	for _, l := range levels {
		switch l {
		case LevelUnavailable:
			continue
		case LevelElite:
			elite++
			eliteOrHigh++
		case LevelHigh:
			eliteOrHigh++
		case LevelLow:
			low++
		}
		available++
	}
	switch {
	case available == 0:
		return LevelUnavailable
	case elite >= 3:
		return LevelElite
	case elite >= 2 || eliteOrHigh >= 3:
		return LevelHigh
	case low >= 2:
		return LevelLow
	default:
		return LevelMedium
	}
}
