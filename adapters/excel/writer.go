// Package excel exports measurement reports as XLSX workbooks.
package excel

import (
	"fmt"
	"io"
	"sort"

	"bondfuzz/adapters/report"
	"bondfuzz/domain/bond"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the exported workbook
const (
	SheetSummary    = "Summary"
	SheetTransforms = "Transforms"
	SheetCurves     = "Curves"
	SheetDeviations = "Deviations"
)

// WorkbookWriter builds a workbook with one row per evaluator on the summary sheet and
// per-transform, curve and deviation detail sheets
type WorkbookWriter struct {
	doc *report.Document
}

// NewWorkbookWriter creates a writer for doc
func NewWorkbookWriter(doc *report.Document) *WorkbookWriter {
	return &WorkbookWriter{doc: doc}
}

// SaveAs writes the workbook to path
func (w *WorkbookWriter) SaveAs(path string) error {
	f, err := w.build()
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

// WriteTo streams the workbook to out
func (w *WorkbookWriter) WriteTo(out io.Writer) (int64, error) {
	f, err := w.build()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteTo(out)
}

func (w *WorkbookWriter) build() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetTransforms, SheetCurves, SheetDeviations} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	steps := []func(*excelize.File) error{w.summary, w.transforms, w.curves, w.deviations}
	for _, step := range steps {
		if err := step(f); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func (w *WorkbookWriter) summary(f *excelize.File) error {
	header := []interface{}{"Evaluator", "Bond Index", "Tier", "Expected Min", "Expected Max",
		"Mean Ω", "P75", "P95", "Tests", "Failures", "Failure Rate", "Evaluator Errors",
		"Mean Threshold", "Partial"}
	if err := setRow(f, SheetSummary, 1, header); err != nil {
		return err
	}
	for i, r := range w.doc.Results {
		var bd interface{} = "undefined"
		if v, ok := r.Index(); ok {
			bd = v
		}
		var lo, hi interface{} = "", ""
		if r.ExpectedRange != nil {
			lo, hi = r.ExpectedRange.Min, r.ExpectedRange.Max
		}
		row := []interface{}{r.Evaluator, bd, string(r.Tier), lo, hi,
			r.Omega.Mean, r.Omega.P75, r.Omega.P95, r.TotalTests, r.Failures, r.FailureRate,
			r.EvaluatorErrors, r.MeanAdversarialThreshold, r.Partial}
		if err := setRow(f, SheetSummary, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// transforms lays out one column per evaluator so evaluators can be compared side by side
func (w *WorkbookWriter) transforms(f *excelize.File) error {
	header := []interface{}{"Transform", "Kind"}
	for _, r := range w.doc.Results {
		header = append(header, r.Evaluator)
	}
	if err := setRow(f, SheetTransforms, 1, header); err != nil {
		return err
	}

	rowNum := 2
	for _, group := range []struct {
		kind  string
		means func(*bond.MeasurementResult) map[string]float64
	}{
		{"invariant", func(r *bond.MeasurementResult) map[string]float64 { return r.TransformMeans }},
		{"stress", func(r *bond.MeasurementResult) map[string]float64 { return r.StressMeans }},
		{"chain", func(r *bond.MeasurementResult) map[string]float64 { return r.ChainMeans }},
	} {
		for _, name := range names(w.doc.Results, group.means) {
			row := []interface{}{name, group.kind}
			for _, r := range w.doc.Results {
				if v, ok := group.means(r)[name]; ok {
					row = append(row, v)
				} else {
					row = append(row, "")
				}
			}
			if err := setRow(f, SheetTransforms, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func (w *WorkbookWriter) curves(f *excelize.File) error {
	if err := setRow(f, SheetCurves, 1, []interface{}{"Evaluator", "Transform", "Intensity", "Mean Ω", "Flip Rate", "Samples"}); err != nil {
		return err
	}
	rowNum := 2
	for _, r := range w.doc.Results {
		for _, p := range r.Curve.Points {
			row := []interface{}{r.Evaluator, r.Curve.Transform, p.Intensity, p.MeanOmega, p.FlipRate, p.Samples}
			if err := setRow(f, SheetCurves, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func (w *WorkbookWriter) deviations(f *excelize.File) error {
	header := []interface{}{"Evaluator", "Scenario", "Transform", "Intensity", "Chain", "Baseline", "Perturbed", "Ω"}
	if err := setRow(f, SheetDeviations, 1, header); err != nil {
		return err
	}
	rowNum := 2
	for _, r := range w.doc.Results {
		for _, d := range r.WorstDeviations {
			row := []interface{}{r.Evaluator, d.ScenarioID, d.Transform, d.Intensity, d.Chain,
				d.BaselineSelection, d.PerturbedSelection, d.Omega}
			if err := setRow(f, SheetDeviations, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet %s row %d: %w", sheet, row, err)
	}
	return nil
}

// names is the sorted union of keys across results
func names(results []*bond.MeasurementResult, means func(*bond.MeasurementResult) map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, r := range results {
		for k := range means(r) {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
