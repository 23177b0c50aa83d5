package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"netmhc/internal/app"
	"netmhc/internal/config"
	"netmhc/internal/listfile"
	"netmhc/internal/logging"
	"netmhc/internal/netmhc"
	"netmhc/internal/schema"
	"netmhc/internal/store"
	"netmhc/internal/table"

	"github.com/charmbracelet/log"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// exit codes
const (
	exitErr     = 1
	exitUsage   = 2
	exitTimeout = 3
)

func main() {
	peptidesFlag := flag.String("peptides", "", "file with one peptide per line")
	allelesFlag := flag.String("alleles", "", "file with one allele per line")
	mhcFlag := flag.String("mhc", "I", "MHC class: I or II")
	outFlag := flag.String("out", "", "write the prediction table to this CSV (default: stdout)")
	jobFlag := flag.String("job", "", "resume polling an already submitted job id instead of submitting")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	thresholdFlag := flag.Float64("threshold", 0, "report hits with affinity (nM) at or below this value")
	fullFlag := flag.String("full", "", "file of full sequences the peptides were cut from, for hit origins")
	parseModeFlag := flag.String("parse-mode", "", "result page parsing: strict or indented")
	overwrite := flag.Bool("overwrite", false, "replace existing persisted tables")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("netmhc", version)
		return
	}

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(exitUsage)
	}
	if *parseModeFlag != "" {
		cfg.ParseMode = *parseModeFlag
	}

	logger, closeLog := logging.New(logging.Options{LogFile: cfg.LogFile, Level: cfg.LogLevel, Verbose: *verbose})
	defer closeLog()

	class, err := schema.ParseClass(*mhcFlag)
	if err != nil {
		logger.Error("invalid -mhc", "err", err)
		os.Exit(exitUsage)
	}
	if *jobFlag == "" && (*peptidesFlag == "" || *allelesFlag == "") {
		logger.Error("either -job or both -peptides and -alleles are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	logger.Debug("loaded config", "job_url", cfg.JobURL, "results_url", cfg.ResultsURL, "job_store", cfg.JobStore, "job_store_path", cfg.JobStorePath, "results_dir", cfg.ResultsDir, "parse_mode", cfg.ParseMode)
	logger.Info("starting netmhc", "class", class, "job", *jobFlag, "peptides", *peptidesFlag, "alleles", *allelesFlag)

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

	var h netmhc.JobHandle
	if *jobFlag != "" {
		h = r.Handle(ctx, *jobFlag)
		logger.Info("resuming job", "job_id", h.ID, "class", h.Class)
	} else {
		peptides, err := listfile.ReadFile(*peptidesFlag)
		if err != nil {
			logger.Error("failed to read peptides", "path", *peptidesFlag, "err", err)
			os.Exit(exitErr)
		}
		alleles, err := listfile.ReadFile(*allelesFlag)
		if err != nil {
			logger.Error("failed to read alleles", "path", *allelesFlag, "err", err)
			os.Exit(exitErr)
		}
		h, err = r.Submit(ctx, peptides, alleles)
		if err != nil {
			logger.Error("submission failed", "err", err)
			os.Exit(exitErr)
		}
		logger.Info("submitted job", "job_id", h.ID, "peptides", len(peptides), "alleles", len(alleles))
	}

	t, err := r.Await(ctx, h)
	if err != nil {
		if errors.Is(err, netmhc.ErrPollTimedOut) {
			logger.Error("no result yet; try again later", "job_id", h.ID, "resume", "-job "+h.ID)
			os.Exit(exitTimeout)
		}
		logger.Error("failed to get results", "job_id", h.ID, "err", err)
		if t == nil {
			os.Exit(exitErr)
		}
	}

	if err := writeTable(*outFlag, t, *overwrite, logger); err != nil {
		logger.Error("failed to write table", "path", *outFlag, "err", err)
		os.Exit(exitErr)
	}

	if *thresholdFlag > 0 {
		var full []string
		if *fullFlag != "" {
			if full, err = listfile.ReadFile(*fullFlag); err != nil {
				logger.Warn("failed to read full sequences; hit origins omitted", "path", *fullFlag, "err", err)
			}
		}
		hits := table.Hits(t, *thresholdFlag, full)
		logger.Info("hits", "threshold_nm", *thresholdFlag, "count", len(hits))
		printHits(os.Stdout, hits)
	}
}

func writeTable(out string, t *table.Table, overwrite bool, logger *log.Logger) error {
	if out == "" {
		return table.WriteCSV(os.Stdout, t)
	}
	wrote, err := table.SaveFile(out, t, overwrite)
	if err != nil {
		return err
	}
	if wrote {
		logger.Info("wrote prediction table", "path", out, "rows", t.Len())
	} else {
		logger.Info("prediction table not written (exists or empty)", "path", out, "rows", t.Len())
	}
	return nil
}

func printHits(w io.Writer, hits []table.Hit) {
	for _, h := range hits {
		origin := h.FullSequence
		if origin == "" {
			origin = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.Peptide, h.Allele, h.Affinity.Raw, h.ScoreBA.Raw, strings.TrimSpace(origin))
	}
}
