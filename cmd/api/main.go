package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"thumbforge/internal/adapter/repo"
	"thumbforge/internal/catalog"
	"thumbforge/internal/domain"
	"thumbforge/internal/http/handlers"
	"thumbforge/internal/http/httpapi"
	"thumbforge/internal/infra"
	"thumbforge/internal/infra/credentials"
	"thumbforge/internal/ledger"
	"thumbforge/internal/pipeline"
	"thumbforge/internal/providers/render"
	"thumbforge/internal/providers/synth"
	"thumbforge/internal/providers/vision"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer dbpool.Close()

	sql := infra.NewSQLRunner(dbpool, logger)
	generations := repo.NewGenerationRepository(sql)
	credits := repo.NewCreditRepository(sql)
	references := repo.NewReferenceRepository(sql)

	creds := credentials.NewStore(sql)
	analyzer := buildAnalyzer(ctx, cfg, creds, logger)
	synthesizers := buildSynthesizers(ctx, cfg, creds, logger)
	renderer := buildRenderer(ctx, cfg, creds, logger)

	led := ledger.New(credits, cfg.CreditCostPerGeneration, logger)
	cat := catalog.New(references, cfg.CatalogTTL, logger)
	pipe := pipeline.New(pipeline.Options{
		Generations:  generations,
		Ledger:       led,
		Catalog:      cat,
		Analyzer:     analyzer,
		Synthesizers: synthesizers,
		Renderer:     renderer,
		Logger:       logger,
		StageTimeout: cfg.StageTimeout,
	})

	app := &handlers.App{
		Config:      cfg,
		Logger:      logger,
		Pipeline:    pipe,
		Generations: generations,
		Credits:     credits,
		Ledger:      led,
		Catalog:     cat,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("api: listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: server stopped")
}

// buildAnalyzer prefers Gemini when a key is configured and always keeps
// the keyword analyzer as the fallback path.
func buildAnalyzer(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) vision.Analyzer {
	keyword := vision.NewKeywordAnalyzer()

	key, err := creds.APIKey(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: load gemini credential")
		key = cfg.GeminiAPIKey
	}
	if key == "" {
		logger.Info().Msg("api: no gemini key, analysis uses the keyword analyzer")
		return keyword
	}
	analyzer, err := vision.NewGeminiAnalyzer(vision.GeminiOptions{
		APIKey:   key,
		Model:    cfg.GeminiModel,
		BaseURL:  cfg.GeminiBaseURL,
		Logger:   logger,
		Fallback: keyword,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("api: gemini analyzer unavailable, using keyword analyzer")
		return keyword
	}
	return analyzer
}

// buildSynthesizers registers one synthesizer per configured provider.
// Models without a provider key land on the deterministic static
// synthesizer so the pipeline stays usable in development.
func buildSynthesizers(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) *synth.Registry {
	retry := synth.RetryOptions{
		MaxAttempts: cfg.SynthMaxAttempts,
		BaseDelay:   cfg.SynthRetryBaseDelay,
		Logger:      &logger,
	}
	registry := synth.NewRegistry(synth.NewStaticSynthesizer(cfg.StaticAssetBaseURL))

	falKey, err := creds.APIKey(ctx, credentials.ProviderFal, cfg.FalAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: load fal credential")
		falKey = cfg.FalAPIKey
	}
	if falKey != "" {
		fal, err := synth.NewFalClient(synth.FalOptions{
			APIKey:  falKey,
			BaseURL: cfg.FalBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("api: fal synthesizer unavailable")
		} else {
			flux := synth.WithRetry(fal, retry)
			registry.Register(domain.ModelFluxSchnell, flux)
			registry.Register(domain.ModelFluxDev, flux)
		}
	} else {
		logger.Info().Msg("api: no fal key, flux models use the static synthesizer")
	}

	openaiKey, err := creds.APIKey(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: load openai credential")
		openaiKey = cfg.OpenAIAPIKey
	}
	if openaiKey != "" {
		oa, err := synth.NewOpenAIClient(synth.OpenAIOptions{
			APIKey:  openaiKey,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("api: openai synthesizer unavailable")
		} else {
			registry.Register(domain.ModelDallE3, synth.WithRetry(oa, retry))
		}
	} else {
		logger.Info().Msg("api: no openai key, dall-e-3 uses the static synthesizer")
	}

	return registry
}

// buildRenderer selects the HTTP renderer when configured, the static
// one otherwise.
func buildRenderer(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger infra.Logger) render.Renderer {
	key, err := creds.APIKey(ctx, credentials.ProviderRender, cfg.RenderAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("api: load render credential")
		key = cfg.RenderAPIKey
	}
	if key == "" || cfg.RenderBaseURL == "" {
		logger.Info().Msg("api: no renderer configured, post-processing uses the static renderer")
		return render.NewStaticRenderer()
	}
	client, err := render.NewClient(render.Options{
		APIKey:  key,
		BaseURL: cfg.RenderBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("api: renderer unavailable, using static renderer")
		return render.NewStaticRenderer()
	}
	return client
}
