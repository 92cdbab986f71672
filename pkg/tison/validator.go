// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import "fmt"

// AnomalyType classifies status plausibility failures.
type AnomalyType int

const (
	AnomalyInvalidStep AnomalyType = iota
	AnomalyInvalidLevel
	AnomalyInvalidVoltage
	AnomalyInvalidTemp
	AnomalyInvalidAltitude
)

// ValidationError flags a decoded field outside its plausible range. These
// frames decoded cleanly; validation catches sensor faults and protocol
// drift that the framing layer cannot.
type ValidationError struct {
	Type    AnomalyType
	Message string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return v.Message
}

// Plausibility bounds. The case temperature upper bound sits well above the
// safety-critical threshold so genuine overheat readings still validate.
const (
	minVoltage  = 8.0
	maxVoltage  = 32.0
	minTemp     = -50
	maxCaseTemp = 400
	maxCabTemp  = 80
	maxAltitude = 9000
)

// ValidateStatus checks a decoded status for anomalies.
// Returns a slice of validation errors (empty if the snapshot is plausible).
func ValidateStatus(st *Status) []ValidationError {
	errors := []ValidationError{}

	if st.Step < StepStandby || st.Step > StepCooldown {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidStep,
			Message: fmt.Sprintf("invalid running step %d (valid 0-%d)", int(st.Step), int(StepCooldown)),
		})
	}

	if st.CaseTemp < minTemp || st.CaseTemp > maxCaseTemp {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("case temperature out of range (%d°C, valid %d to %d°C)", st.CaseTemp, minTemp, maxCaseTemp),
		})
	}

	if st.CabinTemp < minTemp || st.CabinTemp > maxCabTemp {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("cabin temperature out of range (%d°C, valid %d to %d°C)", st.CabinTemp, minTemp, maxCabTemp),
		})
	}

	// Fields below are undefined on partial dialects.
	if st.Partial {
		return errors
	}

	if st.Level < MinLevel || st.Level > MaxLevel {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidLevel,
			Message: fmt.Sprintf("power level %d outside %d..%d", st.Level, MinLevel, MaxLevel),
		})
	}

	if st.Voltage < minVoltage || st.Voltage > maxVoltage {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidVoltage,
			Message: fmt.Sprintf("supply voltage out of range (%.1fV, valid %.0f to %.0fV)", st.Voltage, minVoltage, maxVoltage),
		})
	}

	if st.Altitude > maxAltitude {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidAltitude,
			Message: fmt.Sprintf("altitude out of range (%dm, max %dm)", st.Altitude, maxAltitude),
		})
	}

	return errors
}
