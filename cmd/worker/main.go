package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/buildmend/mend/internal/airepair"
	"github.com/buildmend/mend/internal/config"
	"github.com/buildmend/mend/internal/fixmemory"
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/llmutil"
	"github.com/buildmend/mend/internal/observability"
	"github.com/buildmend/mend/internal/quickfix"
	temporalmod "github.com/buildmend/mend/internal/temporal"
	"github.com/buildmend/mend/internal/validator"
)

func main() {
	configPath := "configs/mend.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:  "mend-worker",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		Environment:  cfg.Tracing.Environment,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	defer tp.Shutdown(ctx)

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
		log.Fatalf("creating primary provider: %v", err)
	}
	if primary != nil {
		primary = llm.WithRateLimit(primary, llm.DefaultRateLimitConfig())
	}

	var secondary llm.Provider
	if secCfg, ok := cfg.LLM.ResolveSecondary(); ok {
		secondary, err = factory.Create(llm.ProviderConfig{
			Provider: secCfg.Provider,
			APIKey:   secCfg.APIKey,
			Model:    secCfg.Model,
			BaseURL:  secCfg.BaseURL,
			Timeout:  2 * time.Minute,
		})
		if err != nil {
			log.Fatalf("creating secondary provider: %v", err)
		}
		if secondary != nil {
			secondary = llm.WithRateLimit(secondary, llm.DefaultRateLimitConfig())
		}
	}

	var memory airepair.Memory
	if cfg.Memory.Host != "" && primary != nil {
		repo, err := fixmemory.NewQdrant(ctx, cfg.Memory.Host, cfg.Memory.Port, cfg.Memory.Collection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: fix memory unavailable: %v\n", err)
		} else {
			defer repo.Close()
			memory = fixmemory.NewRecorder(primary, repo)
		}
	}

	var generator *airepair.Generator
	if primary != nil || secondary != nil {
		generator = airepair.NewGenerator(primary, secondary, memory)
	}

	registry := observability.NewMetricsRegistry()
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: metrics endpoint: %v\n", err)
			}
		}()
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Validator: buildValidator(cfg),
		QuickFix:  quickfix.NewEngine(),
		Generator: generator,
		Metrics:   observability.NewPipelineMetrics(registry),
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	w.Stop()
	fmt.Println("Worker stopped")
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
