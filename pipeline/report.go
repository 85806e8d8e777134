package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hfoutcome/bootstrap"
	"hfoutcome/forward"
	"hfoutcome/importance"
)

// metricOrder fixes the report column order.
var metricOrder = []string{"auc", "mse", "aucpr", "f1", "precision", "recall"}

// Round3 rounds to 3 decimal places. Applied only at this reporting boundary;
// everything upstream works at full precision.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Cell is one formatted metric: a point estimate with an optional interval.
type Cell struct {
	Point float64
	Lower float64
	Upper float64
	HasCI bool
}

// String renders `<point> (<lower>, <upper>)` with 3-decimal rounding.
func (c Cell) String() string {
	if !c.HasCI {
		return fmt.Sprintf("%.3f", Round3(c.Point))
	}
	return fmt.Sprintf("%.3f (%.3f, %.3f)", Round3(c.Point), Round3(c.Lower), Round3(c.Upper))
}

// OutcomeRow is one report row: the outcome's model and its metric cells.
type OutcomeRow struct {
	Model string
	Cells map[string]Cell
}

// SubgroupReport is the consolidated table for one patient subgroup, one row
// per outcome label.
type SubgroupReport struct {
	Subgroup string
	Rows     []OutcomeRow
}

// newOutcomeRow assembles a row from a bootstrap report.
func newOutcomeRow(outcome string, br *bootstrap.Report) OutcomeRow {
	cells := make(map[string]Cell, len(metricOrder))
	for _, entry := range br.Point.Vector() {
		cell := Cell{Point: entry.Value}
		if iv, ok := br.Intervals[entry.Name]; ok {
			cell.Lower, cell.Upper, cell.HasCI = iv.Lower, iv.Upper, true
		}
		cells[entry.Name] = cell
	}
	return OutcomeRow{Model: outcome, Cells: cells}
}

// Render writes the subgroup table as tab-separated text with the contract
// columns {model, auc, mse, aucpr, f1, precision, recall}.
func (r *SubgroupReport) Render() string {
	var b strings.Builder
	b.WriteString("model")
	for _, name := range metricOrder {
		b.WriteByte('\t')
		b.WriteString(name)
	}
	b.WriteByte('\n')

	for _, row := range r.Rows {
		b.WriteString(row.Model)
		for _, name := range metricOrder {
			b.WriteByte('\t')
			b.WriteString(row.Cells[name].String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderImportance writes the two ranked explanation tables, {variable,
// importance} then {variable, mean_shap}.
func RenderImportance(tables *importance.Tables) string {
	var b strings.Builder
	b.WriteString("variable\timportance\n")
	for _, e := range tables.Importance {
		fmt.Fprintf(&b, "%s\t%.3f\n", e.Feature, Round3(e.Score))
	}
	b.WriteString("\nvariable\tmean_shap\n")
	for _, e := range tables.MeanShap {
		fmt.Fprintf(&b, "%s\t%.3f\n", e.Feature, Round3(e.Score))
	}
	return b.String()
}

// RenderSelection writes the forward-selection history as {model, auc, mse,
// time} rows in acceptance order.
func RenderSelection(state *forward.State) string {
	var b strings.Builder
	b.WriteString("model\tauc\tmse\ttime\n")
	for _, row := range state.History {
		fmt.Fprintf(&b, "%s\t%.3f\t%.3f\t%s\n",
			row.Domain, Round3(row.AUC), Round3(row.MSE), row.Elapsed.Round(time.Millisecond))
	}
	return b.String()
}
