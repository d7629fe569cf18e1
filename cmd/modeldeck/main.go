package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeanpaul/modeldeck/internal/config"
	"github.com/jeanpaul/modeldeck/internal/health"
	"github.com/jeanpaul/modeldeck/internal/models"
	"github.com/jeanpaul/modeldeck/internal/provider"
	"github.com/jeanpaul/modeldeck/internal/pull"
	"github.com/jeanpaul/modeldeck/internal/runtime"
	"github.com/jeanpaul/modeldeck/internal/tui"
	"github.com/jeanpaul/modeldeck/pkg/version"
)

func main() {
	endpointFlag := flag.String("endpoint", "", "Daemon endpoint (default from config)")
	modelFlag := flag.String("model", "", "Default chat model")
	versionFlag := flag.Bool("version", false, "Print version")
	helpFlag := flag.Bool("help", false, "Show help")
	flag.BoolVar(helpFlag, "h", false, "Show help")

	flag.Usage = showHelp
	flag.Parse()

	if *helpFlag {
		showHelp()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("modeldeck %s (%s)\n", version.Version, version.Commit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("config error: %s", err)
	}
	if *endpointFlag != "" {
		cfg.Endpoint = *endpointFlag
	}
	if *modelFlag != "" {
		cfg.DefaultModel = *modelFlag
	}

	client := runtime.NewClient(cfg.Endpoint, time.Duration(cfg.RequestTimeout)*time.Second)

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "models":
			cmdModels(client)
			return
		case "running":
			cmdRunning(client)
			return
		case "pull":
			if len(args) < 2 {
				fatal("usage: modeldeck pull <model>")
			}
			cmdPull(client, args[1])
			return
		case "remove":
			if len(args) < 2 {
				fatal("usage: modeldeck remove <model>")
			}
			cmdRemove(client, args[1])
			return
		case "create":
			if len(args) < 3 {
				fatal("usage: modeldeck create <name> <modelfile-path>")
			}
			cmdCreate(client, args[1], args[2])
			return
		case "show":
			if len(args) < 2 {
				fatal("usage: modeldeck show <model>")
			}
			cmdShow(client, args[1])
			return
		case "doctor":
			cmdDoctor(cfg)
			return
		case "config":
			if len(args) > 1 && args[1] == "init" {
				cmdConfigInit(cfg)
				return
			}
			fatal("usage: modeldeck config init")
		case "help":
			showHelp()
			return
		default:
			fatal("unknown command %q (see: modeldeck help)", args[0])
		}
	}

	launchDashboard(cfg, client)
}

func launchDashboard(cfg *config.Config, client *runtime.Client) {
	fmt.Print(tui.BannerStyle.Render(tui.Banner))
	fmt.Printf("  %s", tui.SpinnerStyle.Render("● Checking daemon connectivity..."))
	status := health.Check(context.Background(), cfg.Endpoint)
	if !status.Reachable {
		fmt.Printf("\r  %s\n", tui.ErrorStyle.Render("✗ "+status.Error))
		fmt.Printf("  %s\n\n", tui.HelpStyle.Render("Run 'modeldeck doctor' for diagnostics"))
		os.Exit(1)
	}
	fmt.Printf("\r  %s (%s, %d models)\n\n",
		tui.SuccessStyle.Render("✓ Connected to "+cfg.Endpoint),
		status.Latency.Round(time.Millisecond),
		status.ModelCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := models.NewAggregator(client, time.Duration(cfg.RefreshSeconds)*time.Second)
	reg := pull.NewRegistry(client, func(string) { agg.RequestRefresh() })
	go agg.Run(ctx)

	prov := provider.WithRetry(provider.NewOllama(cfg.Endpoint), 3)

	m := tui.NewModel(reg, agg, client, prov, cfg.DefaultModel)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if isTerminal() {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		fatal("dashboard error: %s", err)
	}
}

func cmdModels(client *runtime.Client) {
	list, err := client.ListInstalled(context.Background())
	if err != nil {
		fatal("failed to list models: %s", err)
	}
	fmt.Println(tui.BannerStyle.Render("  Installed Models"))
	fmt.Println()
	if len(list) == 0 {
		fmt.Println(tui.HelpStyle.Render("  (none; try: modeldeck pull llama3.2)"))
		return
	}
	for _, m := range list {
		size := float64(m.SizeBytes) / (1024 * 1024 * 1024)
		fmt.Printf("  %-36s %8.1f GB  %s\n",
			tui.UserLabelStyle.Render(m.Name),
			size,
			tui.HelpStyle.Render(m.Details.ParameterSize),
		)
	}
}

func cmdRunning(client *runtime.Client) {
	list, err := client.ListRunning(context.Background())
	if err != nil {
		fatal("failed to list running models: %s", err)
	}
	fmt.Println(tui.BannerStyle.Render("  Loaded Models"))
	fmt.Println()
	if len(list) == 0 {
		fmt.Println(tui.HelpStyle.Render("  (nothing loaded)"))
		return
	}
	const gb = 1024 * 1024 * 1024
	for _, m := range list {
		expiry := "never"
		if m.ExpiresAt != nil {
			expiry = time.Until(*m.ExpiresAt).Round(time.Second).String()
		}
		fmt.Printf("  %-36s vram %.1f GB  ram %.1f GB  expires %s\n",
			tui.UserLabelStyle.Render(m.ModelName),
			float64(m.VRAMBytes)/gb,
			float64(m.RAMBytes)/gb,
			expiry,
		)
	}
}

func cmdPull(client *runtime.Client, name string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("%s Pulling %s...\n", tui.SpinnerStyle.Render("●"), name)
	body, err := client.StreamPull(ctx, name)
	if err != nil {
		fatal("pull failed: %s", err)
	}
	defer body.Close()

	dec := pull.NewDecoder(body)
	lastStatus := ""
	for {
		ev, ok := dec.Next()
		if !ok {
			break
		}
		if ev.Err != "" {
			fmt.Println()
			fatal("pull failed: %s", ev.Err)
		}
		if ev.TerminalSuccess() {
			fmt.Println()
			fmt.Println(tui.SuccessStyle.Render("  ✓ Done"))
			return
		}
		if ev.Total > 0 {
			pct := float64(ev.Completed) / float64(ev.Total) * 100
			bar := int(pct / 2)
			fmt.Printf("\r  %-24s [%s%s] %3.0f%%",
				ev.Status,
				tui.SuccessStyle.Render(strings.Repeat("█", bar)),
				strings.Repeat("░", 50-bar),
				pct,
			)
		} else if ev.Status != lastStatus {
			fmt.Printf("\r  %-80s", ev.Status)
		}
		lastStatus = ev.Status
	}
	fmt.Println()
	if ctx.Err() != nil {
		fatal("pull cancelled")
	}
	if err := dec.Err(); err != nil {
		fatal("pull failed: %s", err)
	}
	fatal("pull failed: stream ended before the daemon reported success")
}

func cmdRemove(client *runtime.Client, name string) {
	if err := client.Delete(context.Background(), name); err != nil {
		fatal("remove failed: %s", err)
	}
	fmt.Println(tui.SuccessStyle.Render("  ✓ Removed " + name))
}

func cmdCreate(client *runtime.Client, name, modelfilePath string) {
	data, err := os.ReadFile(modelfilePath)
	if err != nil {
		fatal("cannot read modelfile: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("%s Creating %s...\n", tui.SpinnerStyle.Render("●"), name)
	if err := client.Create(ctx, name, string(data)); err != nil {
		fatal("create failed: %s", err)
	}
	fmt.Println(tui.SuccessStyle.Render("  ✓ Created " + name))
}

func cmdShow(client *runtime.Client, name string) {
	result, err := client.Show(context.Background(), name)
	if err != nil {
		fatal("show failed: %s", err)
	}
	fmt.Println(tui.BannerStyle.Render("  " + name))
	fmt.Println()
	if result.Details.Family != "" {
		fmt.Printf("  family:       %s\n", result.Details.Family)
	}
	if result.Details.ParameterSize != "" {
		fmt.Printf("  parameters:   %s\n", result.Details.ParameterSize)
	}
	if result.Details.QuantizationLevel != "" {
		fmt.Printf("  quantization: %s\n", result.Details.QuantizationLevel)
	}
	if result.Details.Format != "" {
		fmt.Printf("  format:       %s\n", result.Details.Format)
	}
	if result.Parameters != "" {
		fmt.Println()
		fmt.Println(tui.HelpStyle.Render("  Parameters:"))
		for _, line := range strings.Split(strings.TrimSpace(result.Parameters), "\n") {
			fmt.Println("    " + line)
		}
	}
	if result.Modelfile != "" {
		fmt.Println()
		fmt.Println(tui.HelpStyle.Render("  Modelfile:"))
		for _, line := range strings.Split(strings.TrimSpace(result.Modelfile), "\n") {
			fmt.Println("    " + line)
		}
	}
}

func cmdDoctor(cfg *config.Config) {
	fmt.Print(tui.BannerStyle.Render(tui.Banner))
	fmt.Println(tui.BannerStyle.Render("  Health Check"))
	fmt.Println()

	fmt.Printf("  %s %s ... ", tui.HelpStyle.Render("●"), tui.UserLabelStyle.Render("daemon"))
	status := health.Check(context.Background(), cfg.Endpoint)
	if status.Reachable {
		ver := ""
		if status.Version != "" {
			ver = " v" + status.Version
		}
		fmt.Printf("%s%s (%d models, %s)\n",
			tui.SuccessStyle.Render("✓ OK"),
			tui.HelpStyle.Render(ver),
			status.ModelCount,
			status.Latency.Round(time.Millisecond),
		)
	} else {
		fmt.Printf("%s\n", tui.ErrorStyle.Render("✗ "+status.Error))
	}

	fmt.Printf("  %s %s ... ", tui.HelpStyle.Render("●"), tui.UserLabelStyle.Render("config"))
	if _, err := os.Stat(config.Path()); err == nil {
		fmt.Println(tui.SuccessStyle.Render("✓ " + config.Path()))
	} else {
		fmt.Println(tui.HelpStyle.Render("- using defaults (run: modeldeck config init)"))
	}

	fmt.Println()
	if status.Reachable {
		fmt.Println(tui.SuccessStyle.Render("  All healthy!"))
	} else {
		fmt.Println(tui.ErrorStyle.Render("  Daemon is unreachable."))
		fmt.Println(tui.HelpStyle.Render("  Start it with: ollama serve"))
	}
}

func cmdConfigInit(cfg *config.Config) {
	path, err := cfg.Write()
	if err != nil {
		fatal("cannot write config: %s", err)
	}
	fmt.Println(tui.SuccessStyle.Render("  ✓ Wrote " + path))
}

func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("error: "+msg))
	os.Exit(1)
}

func showHelp() {
	help := `
` + tui.BannerStyle.Render("ModelDeck") + ` - dashboard for your local model daemon

` + tui.UserLabelStyle.Render("USAGE:") + `
  modeldeck [flags]           Launch the dashboard
  modeldeck <command> [args]  Run a command

` + tui.UserLabelStyle.Render("COMMANDS:") + `
  models                      List installed models
  running                     List models currently loaded in memory
  pull <model>                Download a model (e.g. llama3.2, deepseek-r1)
  remove <model>              Delete an installed model
  create <name> <modelfile>   Build a model from a Modelfile
  show <model>                Show a model's details and Modelfile
  doctor                      Check daemon health
  config init                 Write a default config file
  help                        Show this help

` + tui.UserLabelStyle.Render("FLAGS:") + `
  --endpoint <url>            Daemon endpoint (default http://localhost:11434)
  --model <name>              Default chat model for the dashboard
  --version                   Show version
  --help, -h                  Show this help

` + tui.UserLabelStyle.Render("DASHBOARD KEYS:") + `
  1/2/3, Tab                  Switch between Models, Downloads and Chat
  Enter                       Chat with the selected model
  p                           Pull a model
  d                           Delete the selected model
  c / x / C                   Cancel / remove / clear downloads
  r                           Refresh now
  q, Esc                      Quit

` + tui.HelpStyle.Render("Config: "+config.Path()+"  (env: MODELDECK_ENDPOINT, ...)") + `
`
	fmt.Println(help)
}
