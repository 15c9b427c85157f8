package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildmend/mend/internal/airepair"
	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/config"
	"github.com/buildmend/mend/internal/fixgraph"
	fixgraphneo4j "github.com/buildmend/mend/internal/fixgraph/neo4j"
	"github.com/buildmend/mend/internal/fixmemory"
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/llmutil"
	"github.com/buildmend/mend/internal/metrics"
	"github.com/buildmend/mend/internal/observability"
	"github.com/buildmend/mend/internal/qualitygate"
	"github.com/buildmend/mend/internal/quickfix"
	"github.com/buildmend/mend/internal/repair"
	"github.com/buildmend/mend/internal/source"
	"github.com/buildmend/mend/internal/validator"
)

func main() {
	var (
		configPath string
		inputPath  string
		outputPath string
		logPath    string
		jsonReport bool
	)

	rootCmd := &cobra.Command{
		Use:   "mend",
		Short: "Self-healing build repair for generated web projects",
	}

	repairCmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair a source tree until its build passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(configPath, inputPath, outputPath, logPath, jsonReport)
		},
	}
	repairCmd.Flags().StringVar(&inputPath, "input", "", "Directory holding the broken source tree")
	repairCmd.Flags().StringVar(&outputPath, "output", "", "Directory for the repaired tree (defaults to --input)")
	repairCmd.Flags().StringVar(&logPath, "build-log", "", "Optional file with a build failure already observed")
	repairCmd.Flags().StringVar(&configPath, "config", "configs/mend.yaml", "Config file path")
	repairCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the session report as JSON")
	_ = repairCmd.MarkFlagRequired("input")

	var classifyPath string
	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a build log into structured errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(classifyPath)
		},
	}
	classifyCmd.Flags().StringVar(&classifyPath, "build-log", "", "Build log file (defaults to stdin)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-14s %s\n", name, url)
			}
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println("  none           (quick fixes only, no model escalation)")
			fmt.Println()
			fmt.Println("Configure in mend.yaml or via environment:")
			fmt.Println("  MEND_LLM_PROVIDER=groq")
			fmt.Println("  MEND_LLM_API_KEY=gsk_...")
			fmt.Println("  MEND_LLM_MODEL=llama-3.3-70b-versatile")
		},
	}

	rootCmd.AddCommand(repairCmd, classifyCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRepair(configPath, inputPath, outputPath, logPath string, jsonReport bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if outputPath == "" {
		outputPath = inputPath
	}

	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:  "mend",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		Environment:  cfg.Tracing.Environment,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tp.Shutdown(ctx)

	audit, err := observability.NewAuditLogger(&observability.AuditConfig{
		Enabled:    cfg.Audit.Enabled,
		OutputPath: cfg.Audit.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	defer audit.Close()

	tree, err := source.Load(inputPath)
	if err != nil {
		return fmt.Errorf("loading tree: %w", err)
	}

	primary, secondary, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	if primary == nil {
		fmt.Println("Running without a model provider (quick fixes only)")
	} else {
		fmt.Printf("Using model provider: %s\n", primary.Name())
	}

	// Fix memory and outcome graph are optional collaborators; the
	// pipeline degrades to running without them.
	var memory airepair.Memory
	var recorder *fixmemory.Recorder
	if cfg.Memory.Host != "" && primary != nil {
		repo, err := fixmemory.NewQdrant(ctx, cfg.Memory.Host, cfg.Memory.Port, cfg.Memory.Collection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: fix memory unavailable: %v\n", err)
		} else {
			defer repo.Close()
			recorder = fixmemory.NewRecorder(primary, repo)
			memory = recorder
		}
	}

	var graphRepo fixgraph.Repository
	if cfg.Graph.URI != "" {
		repo, err := fixgraphneo4j.New(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: outcome graph unavailable: %v\n", err)
		} else {
			defer repo.Close(ctx)
			graphRepo = repo
		}
	}

	m := metrics.New()
	usedSecondary := false

	var generator *airepair.Generator
	if primary != nil || secondary != nil {
		generator = airepair.NewGenerator(primary, secondary, memory)
		generator.Observer = func(r *airepair.Result) {
			m.AddLLMCall(r.Provider, r.InputTokens, r.OutputTokens)
			if r.Fallback {
				usedSecondary = true
			}
		}
	}

	totalBytes := 0
	for _, p := range tree.Paths() {
		totalBytes += len(tree[p])
	}
	m.CollectInput(len(tree), totalBytes)

	orch := repair.NewOrchestrator(
		buildValidator(cfg),
		quickfix.NewEngine(),
		generator,
		repair.WithAttemptObserver(func(a repair.Attempt) {
			audit.Log(observability.AuditEventBuildRun, false,
				fmt.Sprintf("attempt %d resolved by %s", a.Number, a.Engine),
				map[string]any{"errors": len(a.Errors), "changes": len(a.Changes)})
		}),
	)

	opts := repair.Options{
		MaxAttempts: cfg.Repair.MaxAttempts,
		Timeout:     cfg.Repair.Timeout,
	}
	if logPath != "" {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return fmt.Errorf("reading build log: %w", err)
		}
		opts.InitialOutput = string(data)
	}

	sessCtx, span := observability.StartSessionSpan(ctx, len(tree))
	audit.Log(observability.AuditEventSessionStart, true, "repair session started",
		map[string]any{"files": len(tree)})

	result, err := orch.Repair(sessCtx, tree, opts)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		audit.LogError(observability.AuditEventSessionEnd, "session aborted", err)
		return fmt.Errorf("repair session: %w", err)
	}
	observability.RecordSessionResult(span, string(result.Outcome), result.Success, len(result.Attempts))
	span.End()
	audit.LogDuration(observability.AuditEventSessionEnd, result.Success, result.Message, result.Elapsed)

	m.Finish(result)

	if result.Success {
		if err := result.FinalTree.Write(outputPath); err != nil {
			return fmt.Errorf("writing repaired tree: %w", err)
		}
		recordSession(ctx, result, recorder, graphRepo, audit)
	}

	if jsonReport {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		m.PrintSummary(os.Stdout)
	}

	gates := qualitygate.BuildPipeline(qualitygate.DefaultConfig())
	gateRes := gates.Run(evalContext(cfg, result, m, usedSecondary))
	fmt.Println(gateRes.Summary)

	if !result.Success || gateRes.Status == qualitygate.GateFailed {
		return fmt.Errorf("repair failed: %s", result.Message)
	}
	return nil
}

// recordSession feeds a confirmed-successful session back into the fix
// memory and the outcome graph. Failures here never fail the repair.
func recordSession(ctx context.Context, result *repair.Result, recorder *fixmemory.Recorder, graphRepo fixgraph.Repository, audit *observability.AuditLogger) {
	if recorder != nil {
		var fixes []fixmemory.Fix
		for _, a := range result.Attempts {
			if a.Engine == repair.EngineNone {
				continue
			}
			for i, e := range a.Errors {
				desc := ""
				if i < len(a.Changes) {
					desc = a.Changes[i].Description
				} else if len(a.Changes) > 0 {
					desc = a.Changes[0].Description
				}
				fixes = append(fixes, fixmemory.Fix{
					Error:       e,
					Engine:      string(a.Engine),
					Description: desc,
				})
			}
		}
		if err := recorder.Record(ctx, fixes); err != nil {
			audit.LogError(observability.AuditEventMemoryRecord, "recording fixes", err)
		} else {
			audit.Log(observability.AuditEventMemoryRecord, true,
				fmt.Sprintf("recorded %d fix(es)", len(fixes)), nil)
		}
	}

	if graphRepo != nil {
		outcomes := fixgraph.FromResult(result, "")
		if err := graphRepo.RecordOutcomes(ctx, outcomes); err != nil {
			audit.LogError(observability.AuditEventMemoryRecord, "recording outcomes", err)
		}
	}
}

func evalContext(cfg *config.Config, result *repair.Result, m *metrics.SessionMetrics, usedSecondary bool) *qualitygate.EvalContext {
	filesChanged := map[string]bool{}
	for _, a := range result.Attempts {
		for _, c := range a.Changes {
			filesChanged[c.File] = true
		}
	}

	var unresolved []string
	if !result.Success && len(result.Attempts) > 0 {
		last := result.Attempts[len(result.Attempts)-1]
		for _, e := range last.Errors {
			unresolved = append(unresolved, e.Message)
		}
	}

	return &qualitygate.EvalContext{
		Outcome:       string(result.Outcome),
		BuildOK:       result.Success,
		AttemptsUsed:  len(result.Attempts),
		MaxAttempts:   cfg.Repair.MaxAttempts,
		LLMCalls:      m.LLM.Calls,
		TotalTokens:   m.LLM.InputTokens + m.LLM.OutputTokens,
		UsedSecondary: usedSecondary,
		FilesChanged:  len(filesChanged),
		Errors:        unresolved,
	}
}

func buildValidator(cfg *config.Config) validator.Validator {
	vcfg := validator.DefaultConfig()
	if cfg.Build.Command != "" {
		vcfg.Build = splitCommand(cfg.Build.Command)
	}
	if cfg.Build.InstallCommand != "" {
		install := splitCommand(cfg.Build.InstallCommand)
		vcfg.Install = &install
	} else {
		vcfg.Install = nil
	}
	if cfg.Build.Timeout > 0 {
		vcfg.Timeout = cfg.Build.Timeout
	}
	return validator.NewCommandValidator(vcfg)
}

func splitCommand(s string) validator.Command {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return validator.Command{}
	}
	return validator.Command{Cmd: fields[0], Args: fields[1:]}
}

// buildProviders creates the primary and secondary model providers from
// configuration, both wrapped with retry and rate limiting.
func buildProviders(cfg *config.Config) (llm.Provider, llm.Provider, error) {
	factory := llm.NewFactory()
	llmutil.RegisterDefaultProviders(factory)

	primary, err := factory.Create(llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		BaseURL:    cfg.LLM.BaseURL,
		EmbedModel: cfg.LLM.EmbedModel,
		Timeout:    2 * time.Minute,
		MaxRetries: 2,
		RetryDelay: time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating primary provider: %w", err)
	}
	if primary != nil {
		primary = llm.WithRateLimit(primary, llm.DefaultRateLimitConfig())
	}

	var secondary llm.Provider
	if secCfg, ok := cfg.LLM.ResolveSecondary(); ok {
		secondary, err = factory.Create(llm.ProviderConfig{
			Provider:   secCfg.Provider,
			APIKey:     secCfg.APIKey,
			Model:      secCfg.Model,
			BaseURL:    secCfg.BaseURL,
			Timeout:    2 * time.Minute,
			MaxRetries: 2,
			RetryDelay: time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating secondary provider: %w", err)
		}
		if secondary != nil {
			secondary = llm.WithRateLimit(secondary, llm.DefaultRateLimitConfig())
		}
	}

	return primary, secondary, nil
}

func runClassify(path string) error {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading build log: %w", err)
	}

	errs := buildlog.Classify(string(data))
	out, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "%d error(s) classified\n", len(errs))
	return nil
}
