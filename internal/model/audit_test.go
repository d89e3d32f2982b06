package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGates_DisplayCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		gates  Gates
		want   float64
		wantOK bool
	}{
		{"none", Gates{}, 100, false},
		{"https only", Gates{GateD: true}, 60, true},
		{"lowest wins", Gates{GateB: true, GateC: true, GateD: true}, 40, true},
		{"crawlers blocked", Gates{GateA: true}, 40, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tt.gates.DisplayCap()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, tt.gates.Any())
		})
	}
}

func TestPillarScores_Pillar(t *testing.T) {
	t.Parallel()

	p := PillarScores{Crawlability: 1, Structured: 2, Answerability: 3, Trust: 4, Visibility: 5}
	for i, name := range AllPillars() {
		assert.Equal(t, float64(i+1), p.Pillar(name))
	}
	assert.Zero(t, p.Pillar("speed"))
}

func TestSeverity_Rank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Zero(t, Severity("urgent").Rank())
}
