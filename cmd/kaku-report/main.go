// kaku-report renders an offline PNG report from the daily statistics
// table: step counts and health score over the last N days. Useful for
// checking on a pet's routine without the device in hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jaspreeeet/kaku/internal/db"
	"github.com/jaspreeeet/kaku/internal/pet"
)

var (
	dbFile  = flag.String("db", "kaku.db", "Path to the SQLite database")
	days    = flag.Int("days", 30, "Number of days to include")
	outFile = flag.String("out", "kaku-report.png", "Output PNG path")
)

func main() {
	flag.Parse()

	if _, err := os.Stat(*dbFile); err != nil {
		log.Fatalf("database not found: %v", err)
	}
	database, err := db.OpenDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	stats, err := database.ListDailyStats(context.Background(), *days)
	if err != nil {
		log.Fatalf("failed to read daily stats: %v", err)
	}
	if len(stats) == 0 {
		log.Fatal("no daily stats recorded yet")
	}

	if err := renderReport(stats, *outFile); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote %s covering %d days", *outFile, len(stats))
}

// renderReport plots steps and health on one chart. Health is scaled to
// per-mille of its maximum so both series share an axis.
func renderReport(stats []pet.DailyRecord, outFile string) error {
	p := plot.New()
	p.Title.Text = "Pet activity and health"
	p.X.Label.Text = "days ago"
	p.Y.Label.Text = "steps / scaled health"

	// ListDailyStats returns newest first; plot oldest to newest with
	// "days ago" decreasing toward zero.
	stepPts := make(plotter.XYs, 0, len(stats))
	healthPts := make(plotter.XYs, 0, len(stats))
	for i := len(stats) - 1; i >= 0; i-- {
		x := float64(-i)
		stepPts = append(stepPts, plotter.XY{X: x, Y: float64(stats[i].Steps)})
		healthPts = append(healthPts, plotter.XY{
			X: x,
			Y: float64(stats[i].HealthScore) / float64(pet.HealthMax) * 1000,
		})
	}

	stepLine, err := plotter.NewLine(stepPts)
	if err != nil {
		return fmt.Errorf("failed to build steps series: %w", err)
	}
	stepLine.Width = vg.Points(1)
	stepLine.Color = color.RGBA{B: 255, A: 255}
	p.Add(stepLine)
	p.Legend.Add("steps", stepLine)

	healthLine, err := plotter.NewLine(healthPts)
	if err != nil {
		return fmt.Errorf("failed to build health series: %w", err)
	}
	healthLine.Width = vg.Points(1)
	healthLine.Color = color.RGBA{R: 255, A: 255}
	p.Add(healthLine)
	p.Legend.Add("health (per mille)", healthLine)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, outFile); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
