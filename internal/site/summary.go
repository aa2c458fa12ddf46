// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package site

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// summaryChartID is fixed so that the page does not change between runs.
const summaryChartID = "paraviewer_summary"

// renderSummary writes a bar chart of rows and degraded rows per region, in
// the order regions first appear in d.
func renderSummary(w io.Writer, d *Dataset, title string) error {
	var regions []string
	counts := make(map[string][2]int)
	for _, row := range d.Rows {
		c, seen := counts[row.Region]
		if !seen {
			regions = append(regions, row.Region)
		}
		c[0]++
		if row.Degraded {
			c[1]++
		}
		counts[row.Region] = c
	}
	rows := make([]opts.BarData, len(regions))
	degraded := make([]opts.BarData, len(regions))
	for i, region := range regions {
		rows[i] = opts.BarData{Value: counts[region][0]}
		degraded[i] = opts.BarData{Value: counts[region][1]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title + " summary", ChartID: summaryChartID, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Rows per region", Subtitle: d.Genome + " " + d.Pipeline}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(regions).
		AddSeries("rows", rows,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("degraded", degraded,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar.Render(w)
}
