package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"exocompare/domain/compare"
	"exocompare/internal"
	apperrors "exocompare/internal/errors"
)

var figureLogger = internal.DefaultLogger.WithComponent("figures")

const (
	MethodCountsFigure = "method_counts.png"
	MissingnessFigure  = "missingness.png"
)

// MetricFigure is the file name of a measurement's median-by-method chart.
func MetricFigure(metric string) string { return metric + "_by_method.png" }

// DefaultLogScaleMetrics span several orders of magnitude and are plotted as log10.
var DefaultLogScaleMetrics = map[string]bool{
	"pl_orbper": true,
	"pl_bmasse": true,
}

// FigureWriter renders the run's PNG charts into one directory.
type FigureWriter struct {
	dir      string
	logScale map[string]bool
	width    int
	height   int
}

// NewFigureWriter creates a writer with the default log-scaled metrics
func NewFigureWriter(dir string) *FigureWriter {
	return &FigureWriter{dir: dir, logScale: DefaultLogScaleMetrics, width: 1024, height: 512}
}

// WithLogScale replaces the set of metrics plotted as log10
func (w *FigureWriter) WithLogScale(metrics map[string]bool) *FigureWriter {
	w.logScale = metrics
	return w
}

// WriteAll renders every figure for a result and returns the written file
// names in display order. A chart with no plottable values is skipped.
func (w *FigureWriter) WriteAll(res *compare.Result) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, "create figures directory")
	}
	var written []string
	add := func(name string, bars []chart.Value, title, yName string) error {
		ok, err := w.writeBars(name, bars, title, yName)
		if err != nil {
			return err
		}
		if ok {
			written = append(written, name)
		}
		return nil
	}

	if err := add(MethodCountsFigure, methodCountBars(res), "Planets per discovery method", "planets"); err != nil {
		return written, err
	}
	if err := add(MissingnessFigure, missingBars(res), "Missing rate by method and metric", "missing rate"); err != nil {
		return written, err
	}
	for _, metric := range res.Metrics.Keys() {
		block, _ := res.Metrics.Get(metric)
		yName := fmt.Sprintf("median %s", metric)
		if block.Units != "" {
			yName = fmt.Sprintf("median %s [%s]", metric, block.Units)
		}
		logged := w.logScale[metric]
		if logged {
			yName = "log10 " + yName
		}
		title := fmt.Sprintf("%s by discovery method", metric)
		if err := add(MetricFigure(metric), medianBars(res, block, logged), title, yName); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (w *FigureWriter) writeBars(name string, bars []chart.Value, title, yName string) (bool, error) {
	if len(bars) == 0 {
		figureLogger.Debug("skipping %s: nothing to plot", name)
		return false, nil
	}
	graph := chart.BarChart{
		Title:  title,
		Width:  w.width,
		Height: w.height,
		Background: chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
			FillColor: drawing.ColorWhite,
		},
		BarWidth:     barWidth(w.width, len(bars)),
		UseBaseValue: true,
		BaseValue:    0,
		XAxis:        chart.Style{FontSize: 8},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: valueRange(bars),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.3g", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return false, apperrors.Wrapf(err, "render %s", name)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), buf.Bytes(), 0o644); err != nil {
		return false, apperrors.Wrapf(err, "write %s", name)
	}
	figureLogger.Debug("wrote %s (%d bars)", name, len(bars))
	return true, nil
}

// valueRange always includes zero and never collapses to an empty span.
func valueRange(bars []chart.Value) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi-lo == 0 {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.05
	if lo < 0 {
		lo -= pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi + pad}
}

func barWidth(width, n int) int {
	bw := (width - 120) / (n + 1)
	return max(8, min(bw, 80))
}

func methodCountBars(res *compare.Result) []chart.Value {
	keys := res.Metrics.Keys()
	if len(keys) == 0 {
		return nil
	}
	block, _ := res.Metrics.Get(keys[0])
	bars := make([]chart.Value, 0, len(res.MethodOrder))
	for _, m := range res.MethodOrder {
		ms, _ := block.ByMethod.Get(m)
		bars = append(bars, chart.Value{Label: m, Value: float64(ms.NTotal)})
	}
	return bars
}

func missingBars(res *compare.Result) []chart.Value {
	var bars []chart.Value
	for i, metric := range res.Metrics.Keys() {
		block, _ := res.Metrics.Get(metric)
		color := chart.DefaultColorPalette.GetSeriesColor(i)
		for _, m := range res.MethodOrder {
			ms, _ := block.ByMethod.Get(m)
			if ms.MissingRate == nil {
				continue
			}
			bars = append(bars, chart.Value{
				Label: m + "/" + metric,
				Value: *ms.MissingRate,
				Style: chart.Style{FillColor: color, StrokeColor: color},
			})
		}
	}
	return bars
}

func medianBars(res *compare.Result, block *compare.MetricBlock, logged bool) []chart.Value {
	var bars []chart.Value
	for _, m := range res.MethodOrder {
		ms, _ := block.ByMethod.Get(m)
		if ms.P50 == nil {
			continue
		}
		v := *ms.P50
		if logged {
			if v <= 0 {
				continue
			}
			v = math.Log10(v)
		}
		bar := chart.Value{Label: m, Value: v}
		if m == res.BaselineMethod {
			bar.Style = chart.Style{FillColor: drawing.ColorBlue, StrokeColor: drawing.ColorBlue}
		}
		bars = append(bars, bar)
	}
	return bars
}
