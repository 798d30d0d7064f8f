package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"exocompare/domain/compare"
	"exocompare/domain/run"
)

const reportTitle = "Exoplanet Method Comparison Report"

// Input is everything a report is rendered from. Figures are file names
// inside the run's figures directory, in display order.
type Input struct {
	Run     *run.RunLog
	Result  *compare.Result
	Figures []string
}

// RenderMarkdown renders the full report. The output always ends with a newline.
func RenderMarkdown(in Input) (string, error) {
	if in.Run == nil || in.Result == nil {
		return "", fmt.Errorf("report needs both a run log and a result")
	}
	b := &builder{in: in, res: in.Result, log: in.Run}
	b.raw("# " + reportTitle)
	b.blank()

	b.takeaway()
	b.metadata()
	b.dataSource()
	b.dataContract()
	b.cleaning()
	b.missingness()
	b.figures()
	b.method()
	b.results()
	b.provenance()
	b.interpretation()
	b.reproduce()
	b.appendix()

	out := b.sb.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

type builder struct {
	in  Input
	res *compare.Result
	log *run.RunLog
	sb  strings.Builder
}

func (b *builder) line(format string, args ...any) {
	fmt.Fprintf(&b.sb, format, args...)
	b.sb.WriteByte('\n')
}

func (b *builder) raw(s string) {
	b.sb.WriteString(s)
	b.sb.WriteByte('\n')
}

func (b *builder) blank() { b.sb.WriteByte('\n') }

func (b *builder) heading(level int, title string) {
	b.raw(strings.Repeat("#", level) + " " + title)
	b.blank()
}

func (b *builder) tbl(header table.Row, rows []table.Row) {
	b.raw(markdownTable(header, rows))
	b.blank()
}

func (b *builder) isTAP() bool {
	src := stringValue(b.log.DataSource, run.KeySource)
	if src == "" {
		return stringValue(b.log.DataSource, run.KeyADQL) != "" || stringValue(b.log.DataSource, run.KeyURL) != ""
	}
	return strings.EqualFold(src, run.SourceTAP)
}

func (b *builder) figuresDir() string {
	dir := b.log.Outputs[run.OutputFiguresDir]
	if dir == "" {
		dir = "artifacts/figures"
	}
	return strings.TrimSuffix(dir, "/") + "/"
}

func (b *builder) candidates() []string {
	out := make([]string, 0, len(b.res.MethodOrder))
	for _, m := range b.res.MethodOrder {
		if m != b.res.BaselineMethod {
			out = append(out, m)
		}
	}
	return out
}

func ciString(e compare.EffectEstimate) string {
	if !e.HasInterval() {
		return insufficientN
	}
	return fmt.Sprintf("[%s, %s]", formatFloat(e.CILow), formatFloat(e.CIHigh))
}

// takeaway names, per measurement, the candidate whose median sits furthest from the baseline.
func (b *builder) takeaway() {
	b.heading(2, "1. One-line takeaway")
	wrote := false
	for _, metric := range b.res.Metrics.Keys() {
		block, _ := b.res.Metrics.Get(metric)
		best, bestAbs := "", -1.0
		var bestEst compare.EffectEstimate
		for _, m := range b.candidates() {
			e, ok := block.DiffVsBaseline.Get(m)
			if !ok || e.Point == nil {
				continue
			}
			if a := math.Abs(*e.Point); a > bestAbs {
				best, bestAbs, bestEst = m, a, e
			}
		}
		if best == "" {
			continue
		}
		b.line("- `%s`: largest median difference vs %s is %s (%s, CI %s).",
			metric, b.res.BaselineMethod, best, formatFloat(bestEst.Point), ciString(bestEst))
		wrote = true
	}
	if !wrote {
		b.line("- No measurement has a median difference for any candidate method.")
	}
	b.blank()
}

func (b *builder) metadata() {
	bs := b.log.Bootstrap
	b.heading(2, "2. Run metadata")
	b.line("- Run id: `%s`", b.log.RunID)
	b.line("- Generated (UTC): **%s**", b.log.GeneratedUTC)
	b.line("- Git commit: **%s**", b.log.GitCommit)
	b.line("- Source table: `%s`", stringValue(b.log.DataSource, run.KeyTable))
	b.line("- Rows: raw **%s** / clean **%s**", b.rowCount("raw"), b.rowCount("clean"))
	b.line("- Baseline method: **%s**", b.res.BaselineMethod)
	b.line("- Bootstrap: seed **%d**, resamples **%d**, CI **%g**", bs.Seed, bs.NResamples, bs.CI)
	b.line("  - Quantile method: **%s**", bs.QuantileMethod)
	b.line("  - CI eligibility threshold: **n_nonnull >= %d**", bs.MinGroupSizeForCI)
	b.line("- Config schema hash: `%s`", b.log.SchemaHash)
	b.blank()
}

func (b *builder) rowCount(key string) string {
	if n, ok := b.log.RowCounts[key]; ok {
		return formatCount(n)
	}
	return formatCount(nil)
}

func (b *builder) dataSource() {
	ds := b.log.DataSource
	b.heading(2, "3. Data source")
	if b.isTAP() {
		b.line("- NASA Exoplanet Archive (TAP)")
		if v := stringValue(ds, run.KeyTAPMode); v != "" {
			b.line("  - Mode: %s", formatInline(v))
		}
		if v := stringValue(ds, run.KeyTAPEndpoint); v != "" {
			b.line("  - Endpoint: %s", formatInline(v))
		}
		b.line("  - Query: see Appendix A/B")
	} else {
		reason := stringValue(ds, run.KeyReason)
		if reason == "" {
			reason = "offline re-run"
		}
		clean := b.log.Snapshots[run.SnapshotClean]
		b.line("- NASA Exoplanet Archive (%s)", reason)
		b.line("  - Input: %s", formatInline(stringValue(ds, run.KeyInputPath)))
		b.line("  - Input sha256: %s", formatInline(clean.SHA256))
	}
	b.line("- `pscomppars` has one row per planet, which suits method-wise summaries.")
	b.line("- Caveat: `pscomppars` is a composite table; values in one row may come from different references and need not be self-consistent.")
	b.blank()
}

func (b *builder) dataContract() {
	raw := b.log.Snapshots[run.SnapshotRaw]
	clean := b.log.Snapshots[run.SnapshotClean]
	warehouse := b.log.Outputs[run.OutputWarehouse]
	if warehouse == "" {
		warehouse = "warehouse/warehouse.db"
	}
	b.heading(2, "4. Data contract")
	b.line("- Raw snapshot: %s", formatInline(raw.Path))
	b.line("- Clean dataset: %s", formatInline(clean.Path))
	b.line("- Clean sha256: %s", formatInline(clean.SHA256))
	b.line("- Warehouse: `%s`", warehouse)
	if cols := stringList(b.log.Columns, "used"); len(cols) > 0 {
		b.line("- Columns used:")
		for _, c := range cols {
			b.line("  - `%s`", c)
		}
	}
	b.blank()
}

func (b *builder) cleaning() {
	b.heading(2, "5. Cleaning & validation")
	b.line("- Rows are **not dropped** only because a metric is null.")
	b.line("- Each metric must be finite and `> 0`; other values become null.")
	b.line("- `disc_year` is descriptive only; invalid values become null.")
	b.blank()
}

func (b *builder) missingness() {
	b.heading(2, "6. Missingness (per metric x method)")
	miss := b.log.Missingness
	for _, metric := range b.res.Metrics.Keys() {
		rows := make([]table.Row, 0, len(b.res.MethodOrder))
		for _, m := range b.res.MethodOrder {
			var mc compare.MissingCount
			found := false
			if miss != nil {
				if byMetric, ok := miss.Get(m); ok && byMetric != nil {
					mc, found = byMetric.Get(metric)
				}
			}
			if !found {
				block, _ := b.res.Metrics.Get(metric)
				if ms, ok := block.ByMethod.Get(m); ok {
					mc = compare.MissingCount{NTotal: ms.NTotal, NNonNull: ms.NNonNull, MissingRate: ms.MissingRate}
				}
			}
			rows = append(rows, table.Row{m, mc.NTotal, mc.NNonNull, formatFloat(mc.MissingRate)})
		}
		b.heading(3, metric)
		b.tbl(table.Row{"Method", "n_total", "n_nonnull", "missing_rate"}, rows)
	}
	b.line("- Note: missingness may be non-random and can bias comparisons.")
	b.blank()
}

func (b *builder) figures() {
	dir := b.figuresDir()
	b.heading(2, "7. Exploratory analysis")
	if len(b.in.Figures) == 0 {
		b.line("- No figures were produced for this run.")
		b.blank()
		return
	}
	b.line("- Figures (see `%s`):", dir)
	for _, f := range b.in.Figures {
		b.line("  - `%s%s`", dir, f)
	}
	b.blank()
}

func (b *builder) method() {
	a := b.res.Analysis
	b.heading(2, "8. Statistical analysis")
	b.line("- Primary summaries: quantiles (p05/p25/p50/p75/p95) on non-null values, `%s` interpolation.", a.QuantileMethod)
	b.line("- Diagnostics: mean, std (ddof=%d), min, max on non-null values.", a.StdDDOF)
	b.line("- Delta(m) = median(metric | m) - median(metric | baseline).")
	b.line("- A %g percentile bootstrap interval (%d resamples) is computed only when both groups have n_nonnull >= %d.",
		a.CI, a.Resamples, a.MinGroupSizeForCI)
	b.blank()
}

func (b *builder) results() {
	b.heading(2, "9. Results")
	b.line("- Footnotes:")
	b.line("  - Mean and std are sensitive to heavy tails; primary comparisons use medians and quantiles.")
	b.line("  - For small `n_nonnull`, tail quantiles (p05/p95) approach min/max; interpret cautiously.")
	b.blank()

	for _, metric := range b.res.Metrics.Keys() {
		block, _ := b.res.Metrics.Get(metric)
		title := metric
		if block.Units != "" {
			title = fmt.Sprintf("%s (%s)", metric, block.Units)
		}

		quantiles := make([]table.Row, 0, len(b.res.MethodOrder))
		diagnostics := make([]table.Row, 0, len(b.res.MethodOrder))
		for _, m := range b.res.MethodOrder {
			ms, _ := block.ByMethod.Get(m)
			quantiles = append(quantiles, table.Row{m, ms.NNonNull,
				formatFloat(ms.P05), formatFloat(ms.P25), formatFloat(ms.P50), formatFloat(ms.P75), formatFloat(ms.P95)})
			diagnostics = append(diagnostics, table.Row{m,
				formatFloat(ms.Mean), formatFloat(ms.Std), formatFloat(ms.Min), formatFloat(ms.Max)})
		}
		b.heading(3, title+": quantiles (primary)")
		b.tbl(table.Row{"Method", "n_nonnull", "p05", "p25", "p50", "p75", "p95"}, quantiles)
		b.heading(3, title+": diagnostics")
		b.tbl(table.Row{"Method", "mean", "std", "min", "max"}, diagnostics)

		diffs := make([]table.Row, 0, len(b.res.MethodOrder))
		for _, m := range b.candidates() {
			e, _ := block.DiffVsBaseline.Get(m)
			diffs = append(diffs, table.Row{m, formatFloat(e.Point), ciString(e)})
		}
		b.heading(3, title+": difference vs baseline")
		b.tbl(table.Row{"Method", "point (median diff)", "CI"}, diffs)
		b.line("---")
		b.blank()
	}
}

func (b *builder) provenance() {
	tallies := b.res.MassProvenance.ByMethod
	if tallies == nil || tallies.Len() == 0 {
		return
	}
	b.heading(2, "10. Mass provenance")
	var categories []string
	seen := map[string]bool{}
	for _, m := range tallies.Keys() {
		t, _ := tallies.Get(m)
		for _, c := range t.Keys() {
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
	}
	header := table.Row{"Method"}
	for _, c := range categories {
		header = append(header, c)
	}
	rows := make([]table.Row, 0, tallies.Len())
	for _, m := range tallies.Keys() {
		t, _ := tallies.Get(m)
		row := table.Row{m}
		for _, c := range categories {
			n, _ := t.Get(c)
			row = append(row, n)
		}
		rows = append(rows, row)
	}
	b.tbl(header, rows)
	b.line("- `Msini` masses are minimum masses (unknown inclination); compare mass medians with this mix in mind.")
	b.blank()
}

func (b *builder) interpretation() {
	b.heading(2, "11. Interpretation & limitations")
	b.line("- Differences are descriptive selection and detection effects; no causal claims are made.")
	b.line("- Composite table caveat (`pscomppars` is not necessarily self-consistent).")
	b.line("- Missingness can be non-random across methods.")
	b.line("- Group imbalance means larger uncertainty for small-n methods and metrics.")
	b.blank()
}

func (b *builder) reproduce() {
	b.heading(2, "12. How to reproduce")
	b.line("```bash")
	switch {
	case b.isTAP():
		b.line("exocompare run")
	case stringValue(b.log.DataSource, run.KeyInputPath) != "":
		b.line("exocompare offline --clean %s", stringValue(b.log.DataSource, run.KeyInputPath))
	default:
		b.line("exocompare offline --clean <PATH_TO_CLEAN_CSV>")
	}
	b.line("```")
	b.blank()
}

func (b *builder) appendix() {
	ds := b.log.DataSource
	b.heading(2, "13. Appendix")
	b.heading(3, "A. Full ADQL")
	b.fenced("sql", stringValue(ds, run.KeyADQL))
	b.heading(3, "B. TAP sync URL (CSV)")
	b.fenced("text", stringValue(ds, run.KeyURL))
}

func (b *builder) fenced(lang, body string) {
	b.raw("```" + lang)
	if b.isTAP() && body != "" {
		b.raw(body)
	} else {
		b.line("N/A (offline run)")
	}
	b.line("```")
	b.blank()
}
