package models

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Resource types tallied per run
const (
	ResourcePatient             = "Patient"
	ResourceObservation         = "Observation"
	ResourceMedicationStatement = "MedicationStatement"
)

// UploadStats is the aggregate record of one batch run.
// Created fresh per run and owned by the runner; never persisted.
type UploadStats struct {
	RunID        string `json:"run_id"`
	Scanned      int    `json:"scanned"` // *.json files found at scan time
	Total        int    `json:"total"`   // Files processed, always Successful + Failed
	Successful   int    `json:"successful"`
	Failed       int    `json:"failed"`
	Patients     int    `json:"patients"`
	Observations int    `json:"observations"`
	Medications  int    `json:"medications"`

	errs *multierror.Error
}

// NewUploadStats creates an empty record for a run
func NewUploadStats(runID string, scanned int) *UploadStats {
	return &UploadStats{
		RunID:   runID,
		Scanned: scanned,
	}
}

// FileOutcome is the result of processing a single bundle file.
// Either Err is nil and Response holds the server's reply, or Err describes the failure.
type FileOutcome struct {
	FileName string
	Response map[string]any
	Err      error
}

// Succeeded reports whether the upload was accepted
func (o FileOutcome) Succeeded() bool {
	return o.Err == nil
}

// Record folds one file outcome into the stats
func (s *UploadStats) Record(outcome FileOutcome) {
	s.Total++
	if outcome.Succeeded() {
		s.Successful++
		return
	}

	s.Failed++
	s.errs = multierror.Append(s.errs, fmt.Errorf("%s: %w", outcome.FileName, outcome.Err))
}

// AddResourceCounts adds per-type entry counts taken from a bundle's content.
// Counts are independent of the upload outcome and only ever grow.
func (s *UploadStats) AddResourceCounts(counts map[string]int) {
	for resourceType, n := range counts {
		if n <= 0 {
			continue
		}
		switch resourceType {
		case ResourcePatient:
			s.Patients += n
		case ResourceObservation:
			s.Observations += n
		case ResourceMedicationStatement:
			s.Medications += n
		}
	}
}

// SuccessRate returns the successful share of processed files as a percentage.
// An empty run has a rate of 0.
func (s *UploadStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// IsConsistent checks Total == Successful + Failed
func (s *UploadStats) IsConsistent() bool {
	return s.Total == s.Successful+s.Failed
}

// Errors returns the per-file failures collected during the run, or nil
func (s *UploadStats) Errors() error {
	return s.errs.ErrorOrNil()
}

// FailureMessages returns one line per failed file, in processing order
func (s *UploadStats) FailureMessages() []string {
	if s.errs == nil {
		return nil
	}
	msgs := make([]string, 0, len(s.errs.Errors))
	for _, err := range s.errs.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}
