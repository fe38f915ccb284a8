// cmd/worldforge/main.go
//
// Entry point for the worldforge CLI.
//
// Flow:
// 1. Read the environment (.env first) and verify the three input files
// 2. Pick the content backend and wrap it with tracing and the call delay
// 3. Hand everything to the orchestrator and print what it produced

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

	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
	"github.com/kingrea/worldforge/internal/content/hosted"
	"github.com/kingrea/worldforge/internal/content/selfhosted"
	"github.com/kingrea/worldforge/internal/ledger"
	"github.com/kingrea/worldforge/internal/logbook"
	"github.com/kingrea/worldforge/internal/orchestrator"
	"github.com/kingrea/worldforge/internal/telemetry"
	"github.com/kingrea/worldforge/internal/tui"
	"github.com/kingrea/worldforge/internal/workflow"
)

func main() {
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	outDir := flag.String("out", "", "output directory (overrides WORLDFORGE_OUTPUT_DIR)")
	sets := keyValueFlag{}
	flag.Var(&sets, "set", "settings override (visual_style|writing_style|cover_style=value, repeatable)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 3 {
		usage()
		os.Exit(1)
	}

	environment, err := config.LoadEnv(".env")
	if err != nil {
		die("%v", err)
	}
	if strings.TrimSpace(*outDir) != "" {
		environment.OutputDir = *outDir
	}
	cfg, err := config.Load(config.Inputs{
		ContextPath:  flag.Arg(0),
		MapPath:      flag.Arg(1),
		SettingsPath: flag.Arg(2),
	}, environment)
	if err != nil {
		die("%v", err)
	}
	if err := applyOverrides(&cfg.Settings, sets); err != nil {
		die("-set: %v", err)
	}

	summary, err := run(cfg, *yes)
	if errors.Is(err, orchestrator.ErrAborted) {
		fmt.Println("Process stopped by user.")
		return
	}
	if err != nil {
		die("worldforge: %v", err)
	}
	printSummary(summary)
}

func run(cfg *config.Config, autoConfirm bool) (orchestrator.Summary, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wf := workflow.New(cfg.OutputDir())
	book, err := logbook.New(wf.LogPath(), logbook.WithMirror(os.Stderr))
	if err != nil {
		return orchestrator.Summary{}, err
	}

	shutdown, err := telemetry.Setup(ctx, "worldforge", cfg.Env.OTelEndpoint)
	if err != nil {
		return orchestrator.Summary{}, err
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			book.Warn("telemetry: shutdown: %v", err)
		}
	}()

	registry := content.NewRegistry()
	registry.MustRegister(config.BackendHosted, hosted.Factory)
	registry.MustRegister(config.BackendSelfHosted, selfhosted.Factory)
	svc, err := registry.Resolve(cfg.Env)
	if err != nil {
		return orchestrator.Summary{}, err
	}
	svc = content.Throttle(content.Trace(svc, cfg.Backend()), cfg.Env.CallDelay)

	led, err := ledger.Open(ctx, wf.LedgerPath())
	if err != nil {
		return orchestrator.Summary{}, err
	}
	defer led.Close()

	orch := orchestrator.New(cfg, svc,
		orchestrator.WithPrompter(tui.NewTerminal(os.Stdin, os.Stdout)),
		orchestrator.WithLedger(led),
		orchestrator.WithLogger(book),
		orchestrator.WithAutoConfirm(autoConfirm),
		orchestrator.WithTitle(title(cfg.Inputs.ContextPath)),
	)
	if cfg.Debug() {
		book.Info("debug mode: every region gets 1 location, 1 character and 1 quest")
	}
	return orch.Run(ctx)
}

func printSummary(s orchestrator.Summary) {
	fmt.Printf("Run %s complete: %d region(s) built\n", s.RunID, s.Regions)
	for _, failure := range s.Failures {
		fmt.Printf("  failed: %s: %v\n", failure.Region, failure.Err)
	}
	if s.Images.Requested > 0 {
		fmt.Printf("Images: %d saved, %d missed\n", s.Images.Saved, s.Images.Missed)
	}
	for _, doc := range s.Documents {
		fmt.Printf("  %s\n", doc)
	}
	if s.Book != "" {
		fmt.Printf("World book: %s\n", s.Book)
	}
}

// title turns the context file name into the world book title.
func title(contextPath string) string {
	base := filepath.Base(contextPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <context-file> <map-image> <settings-file>\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// applyOverrides replaces settings values named on the command line.
func applyOverrides(settings *config.Settings, overrides keyValueFlag) error {
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "visual_style":
			settings.VisualStyle = value
		case "writing_style":
			settings.WritingStyle = value
		case "cover_style":
			settings.CoverStyle = value
		default:
			return fmt.Errorf("unknown settings key %q", key)
		}
	}
	return nil
}

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}
