// Package report renders crossing-count summaries as browser charts
// and calibration histograms as PNG files for threshold tuning.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/gate"
)

// RenderCountsChart writes an HTML page with a grouped bar chart of
// crossing counts per gate and direction.
func RenderCountsChart(w io.Writer, title string, counts []agg.CrossingCount) error {
	gateIDs := make([]int64, 0, len(counts))
	seen := make(map[int64]bool)
	for _, cc := range counts {
		if !seen[cc.GateID] {
			seen[cc.GateID] = true
			gateIDs = append(gateIDs, cc.GateID)
		}
	}
	sort.Slice(gateIDs, func(i, j int) bool { return gateIDs[i] < gateIDs[j] })

	byKey := make(map[int64]map[gate.Direction]int, len(gateIDs))
	for _, cc := range counts {
		if byKey[cc.GateID] == nil {
			byKey[cc.GateID] = make(map[gate.Direction]int, 2)
		}
		byKey[cc.GateID][cc.Direction] = cc.Count
	}

	xAxis := make([]string, 0, len(gateIDs))
	lr := make([]opts.BarData, 0, len(gateIDs))
	rl := make([]opts.BarData, 0, len(gateIDs))
	for _, id := range gateIDs {
		xAxis = append(xAxis, fmt.Sprintf("gate %d", id))
		lr = append(lr, opts.BarData{Value: byKey[id][gate.DirectionLR]})
		rl = append(rl, opts.BarData{Value: byKey[id][gate.DirectionRL]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("gates=%d", len(gateIDs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xAxis).
		AddSeries("LR", lr,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("RL", rl,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}
