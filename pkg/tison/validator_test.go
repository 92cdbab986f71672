// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import "testing"

func plausibleStatus() *Status {
	return &Status{
		Dialect:   DialectV1,
		Running:   true,
		Step:      StepRunning,
		Altitude:  400,
		Mode:      ModeLevel,
		Level:     5,
		Voltage:   12.4,
		CaseTemp:  190,
		CabinTemp: 20,
	}
}

func TestValidateStatus_Plausible(t *testing.T) {
	if errs := ValidateStatus(plausibleStatus()); len(errs) != 0 {
		t.Errorf("expected no anomalies, got %v", errs)
	}
}

func TestValidateStatus_Anomalies(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Status)
		expected AnomalyType
	}{
		{"step out of range", func(s *Status) { s.Step = 9 }, AnomalyInvalidStep},
		{"level too high", func(s *Status) { s.Level = 40 }, AnomalyInvalidLevel},
		{"voltage too low", func(s *Status) { s.Voltage = 3.1 }, AnomalyInvalidVoltage},
		{"case temp absurd", func(s *Status) { s.CaseTemp = 900 }, AnomalyInvalidTemp},
		{"cabin temp absurd", func(s *Status) { s.CabinTemp = 200 }, AnomalyInvalidTemp},
		{"altitude absurd", func(s *Status) { s.Altitude = 12000 }, AnomalyInvalidAltitude},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := plausibleStatus()
			tt.mutate(st)

			errs := ValidateStatus(st)
			if len(errs) == 0 {
				t.Fatal("expected an anomaly")
			}
			found := false
			for _, e := range errs {
				if e.Type == tt.expected {
					found = true
				}
			}
			if !found {
				t.Errorf("expected anomaly type %d in %v", tt.expected, errs)
			}
		})
	}
}

func TestValidateStatus_PartialSkipsUndefinedFields(t *testing.T) {
	// A partial status has zero level and voltage, which must not be
	// reported as anomalies because those fields were never decoded.
	st := &Status{
		Dialect:   DialectV3Partial,
		Partial:   true,
		Running:   true,
		Step:      StepRunning,
		CaseTemp:  200,
		CabinTemp: 18,
	}
	if errs := ValidateStatus(st); len(errs) != 0 {
		t.Errorf("expected no anomalies for partial status, got %v", errs)
	}
}

// Overheating critical readings are real data, not anomalies.
func TestValidateStatus_OverheatStillPlausible(t *testing.T) {
	st := plausibleStatus()
	st.CaseTemp = 260
	if errs := ValidateStatus(st); len(errs) != 0 {
		t.Errorf("260°C must validate, got %v", errs)
	}
}
