package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/espp-forecast/internal/animation"
	"github.com/iwvelando/espp-forecast/internal/config"
	"github.com/iwvelando/espp-forecast/internal/scenario"
	"github.com/iwvelando/espp-forecast/internal/server"
	"github.com/iwvelando/espp-forecast/pkg/constants"
	"github.com/iwvelando/espp-forecast/pkg/currency"
	"github.com/iwvelando/espp-forecast/pkg/output"
	"github.com/iwvelando/espp-forecast/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	serverConfigLocation := flag.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file (serve mode)")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	currencyFlag := flag.String("currency", "", "display currency override: USD, EUR, HUF")
	mode := flag.String("mode", constants.ModeReport, "run mode: report, animate, serve")
	maxBodySize := flag.String("max-body-size", "", "request body limit override for serve mode, e.g. 128K")
	flag.Parse()

	conf, err := loadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	var srvConf *server.Config
	loggingConfig := conf.Logging
	if *mode == constants.ModeServe {
		srvConf, err = server.LoadConfig(*serverConfigLocation)
		if err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *serverConfigLocation, err)
			os.Exit(1)
		}
		if err := applyBodySizeOverride(srvConf, *maxBodySize); err != nil {
			fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"invalid -max-body-size\", \"error\": \"%v\"}\n", err)
			os.Exit(1)
		}
		if srvConf.Logging != (config.LoggingConfig{}) {
			loggingConfig = srvConf.Logging
		}
	}

	// Initialize logging based on config and CLI override
	logger, err := initializeLogger(loggingConfig, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := validation.ValidateMode(*mode); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}
	if err := validation.ValidateCurrency(*currencyFlag); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(), zap.String("op", "main"))
	}

	// Validate configuration and display any warnings
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	opts, err := conf.ModelOptions()
	if err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	pacing, err := conf.Pacing()
	if err != nil {
		logger.Fatal("invalid animation configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	model, err := scenario.New(logger, opts)
	if err != nil {
		logger.Fatal("failed to build scenario model",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if *currencyFlag != "" {
		code, _ := currency.ParseCode(*currencyFlag)
		if err := model.SetCurrency(code); err != nil {
			logger.Fatal("failed to switch display currency",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case constants.ModeReport:
		err = report(model, outputFormat)
	case constants.ModeAnimate:
		err = animate(ctx, logger, model, pacing)
	case constants.ModeServe:
		err = serve(ctx, logger, model, pacing, srvConf)
	}
	if err != nil {
		logger.Fatal("run failed",
			zap.String("op", "main"),
			zap.String("mode", *mode),
			zap.Error(err),
		)
	}
}

// loadConfiguration falls back to built-in defaults when the default config
// file is absent. An explicitly named file must exist.
func loadConfiguration(path string) (*config.Configuration, error) {
	if path == constants.DefaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.LoadConfiguration(path)
}

// applyBodySizeOverride replaces the configured request body limit when the
// flag is set.
func applyBodySizeOverride(srvConf *server.Config, value string) error {
	if value == "" {
		return nil
	}
	size, err := server.ParseSize(value)
	if err != nil {
		return err
	}
	srvConf.SetBodySizeBytes(size)
	return nil
}

func report(model *scenario.Model, outputFormat string) error {
	r := output.NewReport(model)
	switch outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(os.Stdout, r)
	default:
		return output.PrettyFormat(os.Stdout, r)
	}
}

// animate plays the timeline once on the wall clock, printing a line per
// step, until it completes or ctx is cancelled.
func animate(ctx context.Context, logger *zap.Logger, model *scenario.Model, pacing animation.Pacing) error {
	done := make(chan struct{})
	code := model.Currency()

	scheduler := animation.New(logger, model.Timeline,
		animation.WithPacing(pacing),
		animation.OnSnapshot(func(s animation.Snapshot) {
			fmt.Println(output.FrameLine(s, code))
		}),
		animation.OnComplete(func(animation.Snapshot) {
			close(done)
		}),
	)
	if !scheduler.Start(ctx) {
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		scheduler.Stop()
		logger.Info("animation interrupted",
			zap.String("op", "main.animate"),
			zap.Int("step", scheduler.Step()),
		)
		return nil
	}
}

func serve(ctx context.Context, logger *zap.Logger, model *scenario.Model, pacing animation.Pacing, srvConf *server.Config) error {
	handler := server.NewHandler(logger, model, server.Options{
		Version:        version,
		MaxBodySize:    srvConf.BodySizeBytes(),
		AllowedOrigins: srvConf.AllowedOrigins,
		Pacing:         pacing,
	})
	srv := &http.Server{
		Addr:              srvConf.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("op", "main.serve"),
			zap.String("address", srvConf.Address),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		handler.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info("server stopped", zap.String("op", "main.serve"))
		return nil
	})
	return g.Wait()
}
