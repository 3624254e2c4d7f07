package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/tangzhangming/vasm/internal/abi"
	"github.com/tangzhangming/vasm/internal/config"
	"github.com/tangzhangming/vasm/internal/vir"
	"github.com/tangzhangming/vasm/internal/xls"
)

var (
	configPath  = flag.String("config", "", "path to a vasm.toml run configuration (defaults built in if omitted)")
	archName    = flag.String("arch", "", "target architecture, overrides the config file's run.arch")
	profileFlag = flag.Bool("profile", false, "print per-pass timing after allocation")
	traceFlag   = flag.Bool("trace", false, "print the allocation event trace after allocation")
	verbose     = flag.Bool("v", false, "enable debug-level pass logging")
	output      = flag.String("o", "", "write the rewritten unit as JSON to this path instead of stdout")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	log := newLogger(*verbose)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "xlsc: %v\n", err)
		os.Exit(1)
	}
	if *archName != "" {
		cfg.Run.Arch = *archName
	}
	if *profileFlag {
		cfg.Run.Profile = true
	}
	if *traceFlag {
		cfg.Run.Trace = true
	}

	target, err := abi.For(cfg.Run.Arch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xlsc: %v\n", err)
		os.Exit(1)
	}

	unit, err := readUnit(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "xlsc: %v\n", err)
		os.Exit(1)
	}

	result, err := xls.Allocate(unit, target, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xlsc: allocation punted: %v\n", err)
		if result != nil && result.Diag.HasPunts() {
			fmt.Fprint(os.Stderr, result.Diag.Dump())
		}
		os.Exit(1)
	}

	if err := writeUnit(unit); err != nil {
		fmt.Fprintf(os.Stderr, "xlsc: %v\n", err)
		os.Exit(1)
	}

	if *profileFlag {
		fmt.Println("=== pass timing ===")
		result.Profile.Report(os.Stdout)
	}
	if *traceFlag {
		fmt.Println("=== allocation trace ===")
		for _, ev := range result.Trace.Events() {
			fmt.Println(ev)
		}
	}
	if result.Diag.HasPunts() {
		fmt.Fprint(os.Stderr, result.Diag.Dump())
	}
}

func loadConfig() (config.RunConfig, error) {
	if *configPath == "" {
		return config.Default(), nil
	}
	return config.Load(*configPath)
}

func readUnit(path string) (*vir.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	u := vir.NewUnit()
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return u, nil
}

func writeUnit(u *vir.Unit) error {
	if *output == "" {
		fmt.Print(u.Dump())
		return nil
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *output, err)
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func printUsage() {
	fmt.Println("xlsc - extended linear-scan register allocator driver")
	fmt.Println()
	fmt.Println("Usage: xlsc [options] <unit.json>")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
}
