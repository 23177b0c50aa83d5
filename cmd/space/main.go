package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"netmhc/internal/app"
	"netmhc/internal/config"
	"netmhc/internal/fasta"
	"netmhc/internal/listfile"
	"netmhc/internal/logging"
	"netmhc/internal/netmhc"
	"netmhc/internal/peptide"
	"netmhc/internal/schema"
	"netmhc/internal/store"
	"netmhc/internal/table"

	"github.com/charmbracelet/log"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// bounds returns the window lengths used for class unless overridden.
// A high bound of 0 means the full sequence length.
func bounds(c schema.Class, nLow, nHigh int) (int, int) {
	lo, hi := 8, 10
	if c == schema.ClassII {
		lo, hi = 9, 0
	}
	if nLow > 0 {
		lo = nLow
	}
	if nHigh >= 0 {
		hi = nHigh
	}
	return lo, hi
}

// spaceFileName names a peptide-space file after the hour it was built and
// its class.
func spaceFileName(now time.Time, c schema.Class) string {
	return fmt.Sprintf("peptides_%s_class_%s.txt", now.Format("2006010215"), c)
}

func batchPath(dir, stem string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_predictions_%d.csv", stem, i))
}

func collatedPath(dir, stem string) string {
	return filepath.Join(dir, stem+"_predictions.csv")
}

// writeSpace streams the peptide space of cs to path and returns its size.
func writeSpace(path string, cs []peptide.Consensus, lo, hi int) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := listfile.NewWriter(f)
	if err := peptide.WalkPeptideSpace(cs, lo, hi, w.Write); err != nil {
		f.Close()
		return 0, err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, err
	}
	return w.Count(), f.Close()
}

func main() {
	consensusFlag := flag.String("consensus", "", "consensus sequences (FASTA or one per line)")
	delimFlag := flag.String("delim", "/", "delimiter between alternative residues; empty for plain sequences")
	mhcFlag := flag.String("mhc", "I", "MHC class: I or II")
	nLow := flag.Int("n-low", 0, "shortest window (default 8 for class I, 9 for class II)")
	nHigh := flag.Int("n-high", -1, "longest window, 0 for full length (default 10 for class I, full length for class II)")
	spacesDir := flag.String("spaces-dir", "peptide_spaces", "directory for peptide-space files")
	outFlag := flag.String("out", "", "peptide-space file (default: <spaces-dir>/peptides_<YYYYMMDDHH>_class_<mhc>.txt)")
	allelesFlag := flag.String("alleles", "", "comma-separated allele files; one job per file")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	overwrite := flag.Bool("overwrite", false, "replace existing persisted tables")
	dryRun := flag.Bool("dry-run", false, "build the peptide space without submitting jobs")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("space", version)
		return
	}

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger, closeLog := logging.New(logging.Options{LogFile: cfg.LogFile, Level: cfg.LogLevel, Verbose: *verbose})
	defer closeLog()

	class, err := schema.ParseClass(*mhcFlag)
	if err != nil {
		logger.Fatal("invalid -mhc", "err", err)
	}
	if *consensusFlag == "" {
		logger.Fatal("-consensus is required")
	}

	recs, err := fasta.ReadFile(*consensusFlag)
	if err != nil {
		logger.Fatal("failed to read consensus sequences", "path", *consensusFlag, "err", err)
	}
	cs, err := fasta.Consensus(recs, *delimFlag)
	if err != nil {
		logger.Fatal("invalid consensus sequence", "err", err)
	}
	expanded := 0
	for _, c := range cs {
		expanded += c.Count()
	}
	logger.Info("parsed consensus sequences", "path", *consensusFlag, "records", len(cs), "expanded", expanded)

	lo, hi := bounds(class, *nLow, *nHigh)
	spacePath := *outFlag
	if spacePath == "" {
		spacePath = filepath.Join(*spacesDir, spaceFileName(time.Now(), class))
	}
	start := time.Now()
	n, err := writeSpace(spacePath, cs, lo, hi)
	if err != nil {
		logger.Fatal("failed to write peptide space", "path", spacePath, "err", err)
	}
	logger.Info("wrote peptide space", "path", spacePath, "peptides", n, "n_low", lo, "n_high", hi, "duration_ms", time.Since(start).Milliseconds())

	if *allelesFlag == "" {
		return
	}
	alleleFiles := strings.Split(*allelesFlag, ",")
	if *dryRun {
		logger.Info("dry-run: skipping submission", "allele_files", len(alleleFiles))
		return
	}
	if n > netmhc.MaxPeptides {
		logger.Warn("peptide space exceeds the per-job limit; submissions will be rejected", "peptides", n, "limit", netmhc.MaxPeptides)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.JobStore, cfg.JobStorePath)
	if err != nil {
		logger.Warn("job store unavailable; jobs will not be recorded", "kind", cfg.JobStore, "path", cfg.JobStorePath, "err", err)
	} else {
		defer st.Close()
	}
	r := app.New(cfg, class, st, logger)
	r.Overwrite = *overwrite

	peptides, err := listfile.ReadFile(spacePath)
	if err != nil {
		logger.Fatal("failed to read peptide space", "path", spacePath, "err", err)
	}
	stem := strings.TrimSuffix(filepath.Base(spacePath), filepath.Ext(spacePath))
	tables, failed := runBatches(ctx, r, peptides, alleleFiles, stem, cfg.ResultsDir, logger)

	if len(tables) > 0 {
		all, err := table.Concat(tables...)
		if err != nil {
			logger.Fatal("failed to collate predictions", "err", err)
		}
		out := collatedPath(cfg.ResultsDir, stem)
		if _, err := table.SaveFile(out, all, true); err != nil {
			logger.Fatal("failed to write collated predictions", "path", out, "err", err)
		}
		logger.Info("wrote collated predictions", "path", out, "batches", len(tables), "rows", all.Len())
	}
	if failed > 0 {
		logger.Error("some batches failed", "failed", failed, "total", len(alleleFiles))
		os.Exit(1)
	}
}

// runBatches submits the peptide space once per allele file, in order, and
// persists each batch table. It returns the tables that completed and the
// number of batches that did not.
func runBatches(ctx context.Context, r *app.Runner, peptides, alleleFiles []string, stem, dir string, logger *log.Logger) ([]*table.Table, int) {
	var (
		tables []*table.Table
		failed int
	)
	for i, path := range alleleFiles {
		path = strings.TrimSpace(path)
		lg := logger.With("batch", i, "alleles_file", path)
		alleles, err := listfile.ReadFile(path)
		if err != nil {
			lg.Error("failed to read alleles", "err", err)
			failed++
			continue
		}
		h, t, err := r.Run(ctx, peptides, alleles)
		if err != nil {
			switch {
			case errors.Is(err, netmhc.ErrPollTimedOut):
				lg.Error("no result yet; resume later with netmhc -job", "job_id", h.ID)
			case ctx.Err() != nil:
				lg.Error("interrupted", "err", err)
				return tables, failed + len(alleleFiles) - i
			default:
				lg.Error("batch failed", "err", err)
			}
			failed++
			continue
		}
		out := batchPath(dir, stem, i)
		if _, err := table.SaveFile(out, t, r.Overwrite); err != nil {
			lg.Warn("failed to write batch predictions", "path", out, "err", err)
		} else {
			lg.Info("batch done", "job_id", h.ID, "rows", t.Len(), "path", out)
		}
		tables = append(tables, t)
	}
	return tables, failed
}
