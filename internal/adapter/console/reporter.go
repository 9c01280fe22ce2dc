// Package console renders a congestion comparison as plain text.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/traffic-congestion/internal/domain"
)

// Reporter writes the textual report to an io.Writer, normally stdout.
type Reporter struct {
	w io.Writer
}

// NewReporter creates a Reporter writing to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Name identifies the reporter in logs and metrics.
func (r *Reporter) Name() string { return "console" }

// Report writes one block per dataset followed by the comparison lines.
func (r *Reporter) Report(_ context.Context, c domain.Comparison) error {
	var b strings.Builder
	for _, s := range c.Summaries {
		writeSummary(&b, s)
		b.WriteString("\n")
	}
	writeComparison(&b, c)

	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("write console report: %w", err)
	}
	return nil
}

func writeSummary(b *strings.Builder, s domain.DatasetSummary) {
	fmt.Fprintf(b, "Results for %s:\n", s.Dataset)
	fmt.Fprintf(b, "Time span: %s\n", s.TimeSpan)
	fmt.Fprintf(b, "Number of sensors: %d\n", s.NumSensors)
	fmt.Fprintf(b, "Overall congestion ratio: %s\n", domain.FormatRate(s.OverallRate))
	if total := s.Valid + s.Missing; s.Missing > 0 && total > 0 {
		fmt.Fprintf(b, "Missing readings: %d of %d (%s)\n", s.Missing, total, domain.FormatRate(float64(s.Missing)/float64(total)))
	}

	if len(s.TopSensors) == 0 {
		b.WriteString("No sensor has a valid reading.\n")
		return
	}
	fmt.Fprintf(b, "Top %d most congested sensors:\n", len(s.TopSensors))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for i, sensor := range s.TopSensors {
		fmt.Fprintf(tw, "  %d.\t%s\t%s\t%s\n", i+1, sensor.SensorID, domain.FormatRate(sensor.Rate), describeLocation(sensor.Location))
	}
	_ = tw.Flush()
}

func describeLocation(loc *domain.SensorLocation) string {
	switch {
	case loc == nil:
		return ""
	case loc.PlaceName != "":
		return loc.PlaceName
	case loc.FormattedAddress != "":
		return loc.FormattedAddress
	default:
		return strconv.FormatFloat(loc.Lat, 'f', 5, 64) + ", " + strconv.FormatFloat(loc.Lon, 'f', 5, 64)
	}
}

func writeComparison(b *strings.Builder, c domain.Comparison) {
	fmt.Fprintf(b, "Comparison (congested below %s mph):\n", strconv.FormatFloat(c.Threshold, 'f', -1, 64))
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	for _, s := range c.Summaries {
		fmt.Fprintf(tw, "  %s\t%s\t%d sensors\n", s.Dataset, domain.FormatRate(s.OverallRate), s.NumSensors)
	}
	_ = tw.Flush()

	if len(c.Summaries) >= 2 {
		ranked := c.Summaries[0]
		for _, s := range c.Summaries[1:] {
			if s.OverallRate > ranked.OverallRate {
				ranked = s
			}
		}
		fmt.Fprintf(b, "Most congested dataset: %s (%s)\n", ranked.Dataset, domain.FormatRate(ranked.OverallRate))
	}

	if len(c.Failures) > 0 {
		b.WriteString("Unavailable datasets:\n")
		for _, f := range c.Failures {
			fmt.Fprintf(b, "  %s: %s\n", f.Dataset, f.Error)
		}
	}
}
