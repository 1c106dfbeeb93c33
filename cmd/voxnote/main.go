package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/voxnote/voxnote/internal/aggregate"
	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/filestore"
	"github.com/voxnote/voxnote/internal/handler"
	"github.com/voxnote/voxnote/internal/job"
	"github.com/voxnote/voxnote/internal/middleware"
	"github.com/voxnote/voxnote/internal/notify"
	"github.com/voxnote/voxnote/internal/promote"
	"github.com/voxnote/voxnote/internal/recorder"
	"github.com/voxnote/voxnote/internal/repo"
	"github.com/voxnote/voxnote/internal/schedule"
	"github.com/voxnote/voxnote/internal/sequence"
	"github.com/voxnote/voxnote/internal/transcribe"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "voxnote",
		Short: "chunked voice recording and transcription pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(recordCmd(&configPath))
	rootCmd.AddCommand(uploadCmd(&configPath))
	rootCmd.AddCommand(promoteCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the ingest server and pipeline jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}
}

type pipeline struct {
	transcriber *transcribe.Service
	promoter    *promote.Promoter
	voice       filestore.Store
}

func buildPipeline(cfg *config.Config, db *sql.DB) (*pipeline, error) {
	voice, err := filestore.New(cfg.Stores.Voice)
	if err != nil {
		return nil, fmt.Errorf("init voice store: %w", err)
	}
	text, err := filestore.New(cfg.Stores.Text)
	if err != nil {
		return nil, fmt.Errorf("init text store: %w", err)
	}
	docs, err := filestore.New(cfg.Stores.Docs)
	if err != nil {
		return nil, fmt.Errorf("init docs store: %w", err)
	}
	archive, err := filestore.New(cfg.Stores.Archive)
	if err != nil {
		return nil, fmt.Errorf("init archive store: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	caller, err := ai.NewCaller(provider, ai.CallerConfig{
		Models:     cfg.AI.Models,
		MaxRetries: cfg.AI.MaxRetries,
		RetryDelay: time.Duration(cfg.AI.RetryDelayMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init ai caller: %w", err)
	}

	allocator := sequence.NewAllocator(repo.NewSequenceRepo(db), text, archive)
	aggregator := aggregate.NewAggregator(allocator, text)
	transcriber := transcribe.NewService(voice, aggregator, caller)
	notifier := notify.NewSMTPNotifier(cfg.Mail)
	promoter := promote.NewPromoter(text, docs, archive, caller, notifier,
		time.Duration(cfg.Jobs.StabilityMinutes)*time.Minute)

	return &pipeline{transcriber: transcriber, promoter: promoter, voice: voice}, nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("voice_store", cfg.Stores.Voice.Type),
	)

	pipe, err := buildPipeline(cfg, db)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Ingest: handler.NewIngestHandler(pipe.voice, job.NewReport(pipe.transcriber, pipe.promoter)),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewTranscribeJob(pipe.transcriber), cfg.Jobs.TranscribeCron); err != nil {
		return fmt.Errorf("schedule transcribe job: %w", err)
	}
	if err := scheduler.AddJob(job.NewPromoteJob(pipe.promoter), cfg.Jobs.PromoteCron); err != nil {
		return fmt.Errorf("schedule promote job: %w", err)
	}
	scheduler.Start(ctx)

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	return nil
}

func recordCmd(configPath *string) *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "record",
		Short: "record a session, sealing and uploading chunks as it runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateRecord(); err != nil {
				return err
			}

			states, err := recorder.NewStateStore(cfg.Record.StateDir)
			if err != nil {
				return err
			}
			uploader, err := recorder.NewPipeline(cfg.Record.Endpoint, cfg.Record.FallbackDir)
			if err != nil {
				return err
			}
			factory := func() (recorder.Capture, error) {
				return recorder.NewCommandCapture(cfg.Record.CaptureCommand)
			}
			orc := recorder.NewOrchestrator(recorder.OrchestratorConfig{
				ChunkDuration: time.Duration(cfg.Record.ChunkDurationMs) * time.Millisecond,
				MaxDuration:   time.Duration(cfg.Record.MaxDurationMs) * time.Millisecond,
				MaxChunks:     cfg.Record.MaxChunks,
				MimeType:      cfg.Record.MimeType,
			}, factory, states, uploader)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := orc.Start(ctx, resume); err != nil {
				return err
			}
			fmt.Println("recording... press Enter or Ctrl-C to stop")
			go func() {
				reader := bufio.NewReader(os.Stdin)
				if _, err := reader.ReadString('\n'); err == nil {
					_ = orc.Stop()
				}
			}()
			<-orc.Done()
			err = orc.Stop()
			if sess, lerr := states.Load(); lerr == nil {
				fmt.Printf("session %s stopped; resume with --resume (next chunk %d)\n", sess.ID, sess.NextChunkIndex)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the persisted session instead of starting a new one")
	return cmd
}

func uploadCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <chunk-file>...",
		Short: "resubmit chunks saved by the local fallback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateRecord(); err != nil {
				return err
			}
			uploader, err := recorder.NewPipeline(cfg.Record.Endpoint, cfg.Record.FallbackDir)
			if err != nil {
				return err
			}
			ctx := context.Background()
			for _, path := range args {
				if err := uploader.UploadFile(ctx, path); err != nil {
					return fmt.Errorf("upload %s: %w", path, err)
				}
			}
			return nil
		},
	}
}

func promoteCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "run one transcription sweep and promotion pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			pipe, err := buildPipeline(cfg, db)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := pipe.transcriber.Sweep(ctx); err != nil {
				return fmt.Errorf("transcribe sweep: %w", err)
			}
			return pipe.promoter.Process(ctx, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "promote even inside the stability window")
	return cmd
}
