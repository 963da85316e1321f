package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aldirahman/toolradar/internal/config"
	"github.com/aldirahman/toolradar/internal/domain/fiber/handler"
	"github.com/aldirahman/toolradar/internal/middleware"
	"github.com/aldirahman/toolradar/internal/repository"
	"github.com/aldirahman/toolradar/internal/service"
	"github.com/aldirahman/toolradar/internal/skiplist"
	"github.com/aldirahman/toolradar/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// defaultSearchTerms seeds an empty search_terms table on first boot.
// Operators change the set through the table afterwards.
var defaultSearchTerms = []string{
	"sales development representative",
	"business development representative",
	"account executive",
	"sales operations",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	pipelineConfig := config.LoadPipelineConfig()

	db, err := repository.Connect()
	if err != nil {
		log.Fatal(err)
	}

	postingRepo := repository.NewPostingRepository(db)
	detectionRepo := repository.NewDetectionRepository(db)
	termRepo := repository.NewSearchTermRepository(db)

	if err := termRepo.SeedIfEmpty(searchTermsFromEnv()); err != nil {
		log.Fatal("seed search terms: ", err)
	}

	scraper, err := service.NewScraperService()
	if err != nil {
		log.Fatal(err)
	}
	gemini, err := service.NewGeminiService(ctx)
	if err != nil {
		log.Fatal(err)
	}

	ingest := usecase.NewIngestUsecase(scraper, postingRepo, config.LoadScraperConfig().Platform, pipelineConfig.IngestBatchSize)
	analyzer := usecase.NewAnalyzerUsecase(postingRepo, detectionRepo, gemini, newSkipList(ctx), usecase.AnalyzerOptions{
		BatchSize: pipelineConfig.AnalyzerBatchSize,
		CallDelay: pipelineConfig.AnalyzerCallDelay,
		IdleDelay: pipelineConfig.AnalyzerIdleDelay,
	})
	scheduler := usecase.NewSchedulerUsecase(termRepo, ingest, usecase.SchedulerOptions{
		MaxItemsPerTerm: pipelineConfig.MaxItemsPerTerm,
		ScrapeInterval:  pipelineConfig.ScrapeInterval,
		InterTermDelay:  pipelineConfig.InterTermDelay,
		CheckInterval:   pipelineConfig.CheckInterval,
		ErrorBackoff:    pipelineConfig.ErrorBackoff,
	})

	app := fiber.New(fiber.Config{
		AppName: appConfig.Name,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}
			return ctx.Status(code).JSON(fiber.Map{"error": message})
		},
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appConfig.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	pipelineHandler := handler.NewPipelineHandler(ingest, postingRepo, detectionRepo, termRepo, pipelineConfig.MaxItemsPerTerm)
	pipelineHandler.RegisterRoutes(app)

	// Background workers: the analyzer drains the posting queue, the
	// scheduler runs the weekly scrape. Both stop on ctx.
	go func() {
		if err := analyzer.RunForever(ctx); err != nil {
			log.Printf("Analyzer worker exited: %v", err)
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Printf("Scheduler exited: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Println("Server running on ", appConfig.Port)
	if err := app.Listen(appConfig.Port); err != nil {
		log.Fatal(err)
	}
}

// newSkipList prefers Redis when configured so multiple analyzer processes
// share one never-analyze set; otherwise it falls back to process memory.
func newSkipList(ctx context.Context) skiplist.Checker {
	redisConfig := config.LoadRedisConfig()
	if redisConfig.URL == "" {
		return skiplist.NewMemorySet()
	}
	opts, err := redis.ParseURL(redisConfig.URL)
	if err != nil {
		log.Printf("Invalid REDIS_URL (%v), using in-memory skip list", err)
		return skiplist.NewMemorySet()
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable (%v), using in-memory skip list", err)
		return skiplist.NewMemorySet()
	}
	return skiplist.NewRedisSet(rdb)
}

func searchTermsFromEnv() []string {
	raw := os.Getenv("SEARCH_TERMS")
	if raw == "" {
		return defaultSearchTerms
	}
	var terms []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return defaultSearchTerms
	}
	return terms
}
