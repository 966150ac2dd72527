// backtest evaluates a signals JSON file against a bars CSV without a server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/evaluator"
	"github.com/betbot/signaldesk/internal/marketdata"
	"github.com/betbot/signaldesk/internal/normalizer"
	"github.com/betbot/signaldesk/internal/report"
	"github.com/betbot/signaldesk/pkg/logger"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

type options struct {
	signalsPath string
	barsPath    string
	asset       string
	expiry      time.Duration
	now         string
	outPath     string
	interactive bool
}

func main() {
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.signalsPath, "signals", "", "signals JSON file (array or {\"signals\":[...]})")
	flag.StringVar(&o.barsPath, "bars", "", "bars CSV file (timestamp,open,high,low,close[,volume])")
	flag.StringVar(&o.asset, "asset", "", "only evaluate signals for this asset")
	flag.DurationVar(&o.expiry, "expiry", 0, "signal expiry window, 0 disables expiry")
	flag.StringVar(&o.now, "now", "", "reference time for expiry (default: last bar)")
	flag.StringVar(&o.outPath, "out", "", "write results CSV to this path")
	flag.BoolVar(&o.interactive, "tui", false, "browse results in an interactive viewer")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: *level, NoColor: true}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	if o.signalsPath == "" || o.barsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	results, rejected, err := evaluateFiles(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
	if rejected > 0 {
		logger.Warnf("dropped %d invalid signal records", rejected)
	}

	if o.outPath != "" {
		if err := writeResults(o.outPath, results); err != nil {
			fmt.Fprintf(os.Stderr, "write csv: %v\n", err)
			os.Exit(1)
		}
	}

	summary := evaluator.Summarize(results)
	if o.interactive {
		if _, err := tea.NewProgram(newViewer(results, summary), tea.WithAltScreen()).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "viewer: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(renderTable(results))
	fmt.Println(renderSummary(summary))
}

func evaluateFiles(o options) ([]domain.AnalysisResult, int, error) {
	body, err := os.ReadFile(o.signalsPath)
	if err != nil {
		return nil, 0, err
	}
	batch, err := normalizer.ParseManual(body)
	if err != nil {
		return nil, 0, fmt.Errorf("parse signals: %w", err)
	}

	f, err := os.Open(o.barsPath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	bars, err := marketdata.ParseCSV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("parse bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, 0, fmt.Errorf("no bars in %s", o.barsPath)
	}

	opts := evaluator.Options{ExpiryWindow: o.expiry}
	if o.now != "" {
		if opts.Now, err = normalizer.ParseTimestamp(o.now); err != nil {
			return nil, 0, fmt.Errorf("invalid -now: %w", err)
		}
	}

	signals := filterAsset(batch.Signals, o.asset)
	if len(signals) == 0 {
		return nil, batch.Rejected, fmt.Errorf("no signals to evaluate")
	}
	return evaluator.EvaluateAll(signals, bars, opts), batch.Rejected, nil
}

func filterAsset(signals []domain.TradeSignal, asset string) []domain.TradeSignal {
	if asset == "" {
		return signals
	}
	want := marketdata.NormalizeSymbol(asset)
	out := signals[:0:0]
	for _, s := range signals {
		if marketdata.NormalizeSymbol(s.Asset) == want {
			out = append(out, s)
		}
	}
	return out
}

func writeResults(path string, results []domain.AnalysisResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
