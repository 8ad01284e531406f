package metrics

import (
	"testing"
	"time"

	"teammetrics/internal/daterange"
	"teammetrics/internal/jira"
)

func septemberWindow() daterange.Range {
	return daterange.Range{
		Start: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 9, 28, 23, 59, 59, 0, time.UTC),
		Label: "custom",
	}
}

func TestComputeDF_Classification(t *testing.T) {
	window := septemberWindow() // 4 weeks

	tests := []struct {
		deployments int
		want        Level
	}{
		{28, LevelElite},  // 7/week
		{4, LevelHigh},    // 1/week
		{1, LevelMedium},  // ~1/month
		{0, LevelLow},
	}
	for _, tt := range tests {
		var prod []jira.FixVersion
		for i := 0; i < tt.deployments; i++ {
			prod = append(prod, jira.FixVersion{ReleaseDate: window.Start.Add(time.Duration(i) * time.Hour)})
		}
		df := computeDF(prod, window)
		if df.Level != tt.want {
			t.Errorf("%d deployments: level = %s, want %s", tt.deployments, df.Level, tt.want)
		}
	}
}

func TestComputeDORA_ProductionOnly(t *testing.T) {
	window := daterange.Range{
		Start: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 11, 5, 23, 59, 59, 0, time.UTC),
	}
	versions := []jira.FixVersion{
		prodVersion("Live - 6/Oct/2025", time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC), "PLT-1"),
		prodVersion("Live - 20/Oct/2025", time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), "PLT-2"),
		prodVersion("Live - 1/Nov/2025", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), "PLT-3"),
	}
	staging := prodVersion("Beta - 7/Oct/2025", time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC), "PLT-4")
	staging.Environment = "staging"
	versions = append(versions, staging)

	d := ComputeDORA(versions, MappingResult{
		LeadTimesHours: []float64{30, 48, 96},
		MappedFraction: 1,
		MergedCount:    3,
		MappedCount:    3,
	}, nil, window, false)

	if d.DeploymentFrequency.Deployments != 3 {
		t.Errorf("deployments = %d, want 3 (staging excluded)", d.DeploymentFrequency.Deployments)
	}
	if d.LeadTime.MedianHours != 48 || d.LeadTime.Level != LevelHigh {
		t.Errorf("lead time = %+v", d.LeadTime)
	}
	// No incidents filter configured: CFR and MTTR are unavailable and the
	// overall band is computed from the remaining two.
	if d.ChangeFailureRate.Level != LevelUnavailable || d.MTTR.Level != LevelUnavailable {
		t.Errorf("cfr/mttr levels = %s/%s", d.ChangeFailureRate.Level, d.MTTR.Level)
	}
}

func TestComputeDORA_SkipsZeroIssueVersions(t *testing.T) {
	window := septemberWindow()
	versions := []jira.FixVersion{
		prodVersion("Live - 5/Sep/2025", time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC), "PLT-1"),
		// Shared project: a production release carrying none of the team's
		// issues belongs to another team.
		prodVersion("Live - 12/Sep/2025", time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC)),
	}

	d := ComputeDORA(versions, MappingResult{}, nil, window, true)

	if d.DeploymentFrequency.Deployments != 1 {
		t.Errorf("deployments = %d, want 1 (zero-issue version excluded)", d.DeploymentFrequency.Deployments)
	}
	if d.ChangeFailureRate.TotalDeployments != 1 {
		t.Errorf("cfr denominator = %d, want 1", d.ChangeFailureRate.TotalDeployments)
	}
}

func TestComputeLeadTime_Unavailable(t *testing.T) {
	lt := computeLeadTime(MappingResult{MergedCount: 5})
	if lt.Level != LevelUnavailable {
		t.Errorf("level = %s, want unavailable", lt.Level)
	}

	lt = computeLeadTime(MappingResult{LeadTimesHours: []float64{10, 20, 30}, MappedFraction: 1})
	if lt.Level != LevelElite || lt.MedianHours != 20 {
		t.Errorf("lead time = %+v", lt)
	}
}

func TestComputeCFR(t *testing.T) {
	d1 := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	d3 := time.Date(2025, 9, 25, 12, 0, 0, 0, time.UTC)
	prod := []jira.FixVersion{
		{Name: "Live - 5/Sep/2025", ReleaseDate: d1},
		{Name: "Live - 15/Sep/2025", ReleaseDate: d2},
		{Name: "Live - 25/Sep/2025", ReleaseDate: d3},
	}
	incidents := []jira.Issue{
		// Explicit reference in the summary, days after the deployment.
		{Key: "OPS-1", Summary: "Rollback of live - 5/sep/2025", Created: d1.Add(72 * time.Hour)},
		// No reference, but created within 24h of the second deployment.
		{Key: "OPS-2", Summary: "Checkout down", Created: d2.Add(6 * time.Hour)},
	}

	cfr := computeCFR(prod, incidents, true)

	if cfr.FailedDeployments != 2 || cfr.TotalDeployments != 3 {
		t.Fatalf("cfr = %+v", cfr)
	}
	if cfr.Level != LevelLow {
		t.Errorf("level = %s, want low (rate %v)", cfr.Level, cfr.Rate)
	}
}

func TestComputeCFR_ExactReleaseInstantNotCorrelated(t *testing.T) {
	deployed := time.Date(2025, 9, 5, 12, 0, 0, 0, time.UTC)
	prod := []jira.FixVersion{{Name: "Live - 5/Sep/2025", ReleaseDate: deployed}}
	// Opened at the exact release instant, no explicit reference: the
	// incident predates the change going live.
	incidents := []jira.Issue{{Key: "OPS-1", Summary: "Checkout down", Created: deployed}}

	cfr := computeCFR(prod, incidents, true)
	if cfr.FailedDeployments != 0 {
		t.Errorf("failed = %d, want 0", cfr.FailedDeployments)
	}
}

func TestComputeCFR_Unconfigured(t *testing.T) {
	prod := []jira.FixVersion{{Name: "Live - 5/Sep/2025"}}
	cfr := computeCFR(prod, nil, false)
	if cfr.Level != LevelUnavailable {
		t.Errorf("level = %s, want unavailable", cfr.Level)
	}
}

func TestComputeMTTR(t *testing.T) {
	created := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	resolved := created.Add(3 * time.Hour)
	incidents := []jira.Issue{
		{Key: "OPS-1", Created: created, Resolved: &resolved},
		{Key: "OPS-2", Created: created}, // unresolved, excluded
	}

	m := computeMTTR(incidents, true)
	if m.MedianHours != 3 || m.Level != LevelHigh {
		t.Errorf("mttr = %+v", m)
	}

	if got := computeMTTR(nil, true); got.Level != LevelUnavailable {
		t.Errorf("empty mttr level = %s", got.Level)
	}
}

func TestOverallLevel(t *testing.T) {
	tests := []struct {
		levels []Level
		want   Level
	}{
		{[]Level{LevelElite, LevelElite, LevelElite, LevelLow}, LevelElite},
		{[]Level{LevelElite, LevelElite, LevelLow, LevelLow}, LevelHigh},
		{[]Level{LevelElite, LevelHigh, LevelHigh, LevelLow}, LevelHigh},
		{[]Level{LevelLow, LevelLow, LevelHigh, LevelElite}, LevelLow},
		{[]Level{LevelLow, LevelLow, LevelMedium, LevelMedium}, LevelLow},
		{[]Level{LevelMedium, LevelMedium, LevelHigh, LevelLow}, LevelMedium},
		// Unavailable entries count toward neither side.
		{[]Level{LevelElite, LevelElite, LevelElite, LevelUnavailable}, LevelElite},
		{[]Level{LevelUnavailable, LevelUnavailable, LevelUnavailable, LevelUnavailable}, LevelUnavailable},
	}
	for _, tt := range tests {
		if got := overallLevel(tt.levels...); got != tt.want {
			t.Errorf("overallLevel(%v) = %s, want %s", tt.levels, got, tt.want)
		}
	}
}
