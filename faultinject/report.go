// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package faultinject

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Report tallies fault outcomes. Failed holds the starting bit offset of
// every fault that was not repaired.
type Report struct {
	Trials   int
	Repaired int
	Detected int
	Missed   int
	Failed   *roaring.Bitmap
}

func newReport() Report {
	return Report{Failed: roaring.New()}
}

func (report *Report) add(outcome Outcome, bit uint32) {
	report.Trials++
	switch outcome {
	case Repaired:
		report.Repaired++
	case Detected:
		report.Detected++
		report.Failed.Add(bit)
	case Missed:
		report.Missed++
		report.Failed.Add(bit)
	}
}

func (report *Report) merge(other Report) {
	report.Trials += other.Trials
	report.Repaired += other.Repaired
	report.Detected += other.Detected
	report.Missed += other.Missed
	report.Failed.Or(other.Failed)
}

// RepairRate is the fraction of trials that ended repaired.
func (report Report) RepairRate() float64 {
	if report.Trials == 0 {
		return 0
	}
	return float64(report.Repaired) / float64(report.Trials)
}

// DetectionRate is the fraction of trials that did not go unnoticed.
func (report Report) DetectionRate() float64 {
	if report.Trials == 0 {
		return 0
	}
	return float64(report.Repaired+report.Detected) / float64(report.Trials)
}

func (report Report) String() string {
	return fmt.Sprintf("trials=%d repaired=%d detected=%d missed=%d repair=%.4f detection=%.4f",
		report.Trials, report.Repaired, report.Detected, report.Missed,
		report.RepairRate(), report.DetectionRate())
}
