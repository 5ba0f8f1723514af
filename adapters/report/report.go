// Package report renders measurement results as JSON, Markdown and HTML.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bondfuzz/domain/bond"
	"bondfuzz/internal/calibration"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Document is everything a report shows for one campaign
type Document struct {
	Title      string                    `json:"title"`
	RunID      string                    `json:"run_id,omitempty"`
	Seed       int64                     `json:"seed"`
	CorpusSize int                       `json:"corpus_size"`
	Results    []*bond.MeasurementResult `json:"results"`
	Checks     []calibration.Check       `json:"checks,omitempty"`
}

// WriteJSON writes the document as indented JSON
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Markdown renders the document
func Markdown(doc *Document) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if doc.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, seed %d, %d scenarios.\n\n", doc.RunID, doc.Seed, doc.CorpusSize)
	} else {
		fmt.Fprintf(&b, "Seed %d, %d scenarios.\n\n", doc.Seed, doc.CorpusSize)
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Evaluator | Bond Index | Tier | Expected | Failures | Errors | Mean threshold |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
	for _, r := range doc.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d (%.1f%%) | %d | %.3f |\n",
			r.Evaluator, FormatIndex(r), r.Tier, formatRange(r.ExpectedRange),
			r.Failures, 100*r.FailureRate, r.EvaluatorErrors, r.MeanAdversarialThreshold)
	}
	b.WriteString("\n")

	if len(doc.Checks) > 0 {
		b.WriteString("## Calibration checks\n\n")
		for _, c := range doc.Checks {
			mark := "PASS"
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&b, "- **%s** %s: %s\n", mark, c.Name, c.Detail)
		}
		b.WriteString("\n")
	}

	for _, r := range doc.Results {
		writeResult(&b, r)
	}
	return b.Bytes()
}

func writeResult(b *bytes.Buffer, r *bond.MeasurementResult) {
	fmt.Fprintf(b, "## %s\n\n", r.Evaluator)
	if r.Partial {
		b.WriteString("_Partial result: the campaign deadline expired._\n\n")
	}
	fmt.Fprintf(b, "Ω mean %.4f, p75 %.4f, p95 %.4f over %d samples. %d tests, evaluator error rate %.2f%% of samples, %d failed baselines.\n\n",
		r.Omega.Mean, r.Omega.P75, r.Omega.P95, r.Omega.Count, r.TotalTests, 100*r.EvaluatorErrorRate, r.FailedBaselines)

	b.WriteString("### Transforms\n\n| Transform | Mean Ω | Ω at 1.0 |\n| --- | --- | --- |\n")
	for _, name := range sortedKeys(r.TransformMeans) {
		fmt.Fprintf(b, "| %s | %.4f | %.4f |\n", name, r.TransformMeans[name], r.Sensitivity[name])
	}
	for _, name := range sortedKeys(r.StressMeans) {
		fmt.Fprintf(b, "| %s (stress) | %.4f | %.4f |\n", name, r.StressMeans[name], r.Sensitivity[name])
	}
	b.WriteString("\n")

	if len(r.Curve.Points) > 0 {
		fmt.Fprintf(b, "### Intensity response: %s\n\n| Intensity | Mean Ω | Flip rate |\n| --- | --- | --- |\n", r.Curve.Transform)
		for _, p := range r.Curve.Points {
			fmt.Fprintf(b, "| %.2f | %.4f | %.2f |\n", p.Intensity, p.MeanOmega, p.FlipRate)
		}
		b.WriteString("\n")
	}

	if len(r.WorstDeviations) > 0 {
		b.WriteString("### Worst deviations\n\n| Scenario | Transform | Intensity | Baseline | Perturbed | Ω |\n| --- | --- | --- | --- | --- | --- |\n")
		for _, d := range r.WorstDeviations {
			fmt.Fprintf(b, "| %s | %s | %.2f | %s | %s | %.4f |\n",
				d.ScenarioID, d.Transform, d.Intensity, escape(d.BaselineSelection), escape(d.PerturbedSelection), d.Omega)
		}
		b.WriteString("\n")
	}

	if len(r.SkippedScenarios) > 0 {
		fmt.Fprintf(b, "Skipped invalid scenarios: %s\n\n", strings.Join(r.SkippedScenarios, ", "))
	}
}

// HTML renders markdown to a standalone HTML page
func HTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank | html.SkipHTML,
		Title: "bondfuzz report",
	})
	return markdown.ToHTML(md, p, renderer)
}

// HTMLFragment renders markdown without the page wrapper, for embedding
func HTMLFragment(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML})
	return markdown.ToHTML(md, p, renderer)
}

// WriteFiles writes base.json, base.md and base.html into dir for the requested formats
// and returns the written paths. xlsx is left to the excel adapter.
func WriteFiles(dir, base string, formats []string, doc *Document) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, format := range formats {
		path := filepath.Join(dir, base+"."+format)
		var data []byte
		switch format {
		case "json":
			var buf bytes.Buffer
			if err := WriteJSON(&buf, doc); err != nil {
				return written, err
			}
			data = buf.Bytes()
		case "md":
			data = Markdown(doc)
		case "html":
			data = HTML(Markdown(doc))
		default:
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// FormatIndex prints a Bond Index or "undefined"
func FormatIndex(r *bond.MeasurementResult) string {
	bd, ok := r.Index()
	if !ok {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", bd)
}

func formatRange(r *bond.Range) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("[%.2f, %.2f]", r.Min, r.Max)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// escape keeps evaluator selections from breaking markdown tables or injecting markup
var escaper = strings.NewReplacer("|", `\|`, "&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string {
	return escaper.Replace(s)
}
