package cmd

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ftahirops/xrewind/config"
	"github.com/ftahirops/xrewind/engine"
	"github.com/ftahirops/xrewind/source"
	"github.com/ftahirops/xrewind/ui"
	"github.com/ftahirops/xrewind/util"
)

// Version is set at build time via ldflags.
var Version = "0.3.0"

func printUsage() {
	fmt.Fprintf(os.Stderr, `xrewind v%s — historical process and resource replay console

Usage:
  xrewind [OPTIONS]

Data sources (exactly one):
  -input PATH       Replay a recorded archive (gzip or plain NDJSON / JSON array)
  -machine ID       Fetch telemetry for a machine from the API
                    (requires SPYDERBAT_API_KEY in the environment)

Options:
  -url URL          API base URL (default: from config)
  -org ID           Organization id for API queries (default: from config)
  -time WHEN        Start time: epoch seconds, RFC 3339, "2006-01-02 15:04:05",
                    or an offset like -5m / -2h / -1d (default: start of data
                    for archives, 15 minutes ago for the API)
  -output PATH      Tee every fetched record into a gzip archive
  -rate N           Play-mode speed multiplier (default: from config)
  -debug PATH       Write debug logs to PATH
  -version          Print version and exit
`, Version)
}

// Run parses flags and launches the TUI. It returns an error instead of
// exiting so main owns the process exit code.
func Run() error {
	cfg := config.Load()

	var (
		inputPath   string
		outputPath  string
		apiURL      string
		orgUID      string
		machineID   string
		startSpec   string
		playRate    float64
		debugPath   string
		showVersion bool
	)
	flag.StringVar(&inputPath, "input", "", "Replay a recorded archive file")
	flag.StringVar(&outputPath, "output", "", "Tee fetched records into a gzip archive")
	flag.StringVar(&apiURL, "url", cfg.APIURL, "API base URL")
	flag.StringVar(&orgUID, "org", cfg.OrgUID, "Organization id for API queries")
	flag.StringVar(&machineID, "machine", cfg.MachineID, "Machine id to fetch from the API")
	flag.StringVar(&startSpec, "time", "", "Start time (epoch, RFC 3339, or -5m style offset)")
	flag.Float64Var(&playRate, "rate", cfg.PlayRate, "Play-mode speed multiplier")
	flag.StringVar(&debugPath, "debug", "", "Write debug logs to this file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("xrewind v%s\n", Version)
		return nil
	}

	if debugPath != "" {
		f, err := tea.LogToFile(debugPath, "xrewind")
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
	}

	var src source.Source
	switch {
	case inputPath != "" && machineID != "":
		return fmt.Errorf("-input and -machine are mutually exclusive")
	case inputPath != "":
		src = source.NewFileSource(inputPath)
	case machineID != "":
		apiKey := os.Getenv("SPYDERBAT_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("-machine requires SPYDERBAT_API_KEY in the environment")
		}
		if orgUID == "" {
			return fmt.Errorf("-machine requires -org (or org_uid in the config)")
		}
		src = source.NewAPISource(apiURL, apiKey, orgUID)
	default:
		printUsage()
		return fmt.Errorf("either -input or -machine is required")
	}

	var startTime float64
	if startSpec != "" {
		t, err := util.ParseTime(startSpec, time.Now())
		if err != nil {
			return err
		}
		startTime = t
	} else if machineID != "" {
		// API sessions default to the recent past; archives start at their
		// first snapshot.
		startTime = float64(time.Now().Add(-15*time.Minute).Unix())
	}

	eng := engine.NewEngine(src, machineID)
	if outputPath != "" {
		w, err := source.NewArchiveWriter(outputPath)
		if err != nil {
			return fmt.Errorf("open output archive: %w", err)
		}
		defer w.Close()
		eng.SetArchiveWriter(w)
	}

	opts := ui.Options{
		PlayRate:    playRate,
		SnapshotSec: cfg.DurationSec,
		TreeView:    cfg.TreeView,
	}
	p := tea.NewProgram(ui.NewModel(eng, startTime, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}
	return nil
}
