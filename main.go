package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teamhub254/Homeseeker-sub000/internal/api"
	"github.com/teamhub254/Homeseeker-sub000/internal/cache"
	"github.com/teamhub254/Homeseeker-sub000/internal/config"
	"github.com/teamhub254/Homeseeker-sub000/internal/db"
	"github.com/teamhub254/Homeseeker-sub000/internal/email"
	"github.com/teamhub254/Homeseeker-sub000/internal/realtime"
	"github.com/teamhub254/Homeseeker-sub000/internal/services"
	"github.com/teamhub254/Homeseeker-sub000/internal/storage"
	"github.com/teamhub254/Homeseeker-sub000/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runAPI, runBg, runImg := false, false, false
	switch cfg.RunMode {
	case "api":
		runAPI = true
	case "bg":
		runBg = true
	case "img":
		runImg = true
	case "all":
		runAPI, runBg, runImg = true, true, true
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	// Cancelled on shutdown; stops config listeners and limiter cleanup.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	var objectStorage storage.IObjectStorage
	switch cfg.StorageBackend {
	case config.StorageBackendGridFS:
		log.Println("Using GridFS object storage.")
		objectStorage = storage.NewGridFSStorage(mongoDb, cfg.PublicBaseURL)
	default:
		objectStorage, err = storage.NewS3Storage(appCtx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
	}

	compositeSender := email.NewCompositeEmailSender()
	if cfg.MockServices {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		compositeSender.AddSender(email.NewRedisSender(redisClient))
	} else {
		compositeSender.AddSender(email.NewSMTPSender(cfg))
	}
	if cfg.LogEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(cfg.LogEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", cfg.LogEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("LOG_EMAILS set, copying outgoing email to '%s'.", cfg.LogEmailsPath)
		}
	}

	feed := realtime.NewRedisFeed(redisClient)
	hub := realtime.NewHub()
	configSvc := services.NewConfigService(appCtx, mongoDb, cfg, redisClient)

	profileService := services.NewProfileService(mongoDb)
	propertyService := services.NewPropertyService(mongoDb, cfg, profileService)
	inquiryService := services.NewInquiryService(mongoDb, cfg, propertyService)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	taskClient := tasks.NewClient(redisClient)
	defer func() {
		if err := taskClient.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}()
	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, objectStorage, propertyService, inquiryService, emailTemplateService)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
		fmt.Println("Service API server stopped.")
	}()

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	var mainApiSrv *http.Server
	if runAPI {
		router, err := api.SetupRouter(appCtx, cfg, api.Deps{
			DB:            mongoDb,
			Redis:         redisClient,
			TaskClient:    taskClient,
			ConfigService: configSvc,
			Storage:       objectStorage,
			Feed:          feed,
			Hub:           hub,
		})
		if err != nil {
			log.Fatalf("Failed to set up API router: %v", err)
		}
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	// Start, not Run: Run installs its own signal handling and would not
	// return on a Service API shutdown.
	taskSrv, taskMux := tasks.SetupServer(redisClient, taskProcessor, runImg, runBg)
	if taskSrv != nil {
		fmt.Println("Task server starting...")
		if err := taskSrv.Start(taskMux); err != nil {
			log.Fatalf("Task server error: %v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	fmt.Println("Shutting down Service API server...")
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		// Hijacked websocket connections are not tracked by http.Server.
		hub.Shutdown()
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}

	if taskSrv != nil {
		fmt.Println("Shutting down Task server...")
		taskSrv.Shutdown()
	}

	cancelApp()

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
