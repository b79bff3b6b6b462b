package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BloggingApp/currents-service/internal/config"
	"github.com/BloggingApp/currents-service/internal/handler"
	"github.com/BloggingApp/currents-service/internal/metrics"
	"github.com/BloggingApp/currents-service/internal/rabbitmq"
	"github.com/BloggingApp/currents-service/internal/repository"
	"github.com/BloggingApp/currents-service/internal/repository/memory"
	"github.com/BloggingApp/currents-service/internal/repository/postgres"
	"github.com/BloggingApp/currents-service/internal/repository/redisrepo"
	"github.com/BloggingApp/currents-service/internal/server"
	"github.com/BloggingApp/currents-service/internal/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := loadEnv(); err != nil {
		logger.Sugar().Warnf("failed to load .env file, using process environment: %s", err.Error())
	}

	if err := initConfig(); err != nil {
		logger.Sugar().Panicf("failed to initialize yaml config: %s", err.Error())
	}

	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Sugar().Panicf("failed to load app config: %s", err.Error())
	}

	m := metrics.New()

	var (
		repos  *repository.Repository
		broker service.Broker
	)
	switch appConfig.Storage {
	case config.StorageMemory:
		store := memory.New()
		repos = repository.New(store.Post, store.User, redisrepo.NewMemory())
		logger.Info("Using in-memory storage")
	default:
		dbConfig := config.DBConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     os.Getenv("POSTGRES_PORT"),
			DBName:   os.Getenv("POSTGRES_DATABASE"),
			SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
		}
		db, err := postgres.DB(ctx, dbConfig)
		if err != nil {
			logger.Sugar().Panicf("failed to connect to postgres: %s", err.Error())
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			logger.Sugar().Panicf("failed to ping postgres: %s", err.Error())
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Sugar().Panicf("failed to migrate postgres: %s", err.Error())
		}
		logger.Info("Successfully connected to PostgreSQL")

		redisOptions := &redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		}
		rdb := redis.NewClient(redisOptions)
		defer rdb.Close()
		pong, err := rdb.Ping(ctx).Result()
		if err != nil {
			logger.Sugar().Panicf("failed to ping redis: %s", err.Error())
		}
		logger.Sugar().Infof("Successfully connected to Redis: %s", pong)

		mq, err := rabbitmq.New(os.Getenv("RABBITMQ_CONN_STRING"))
		if err != nil {
			logger.Sugar().Panicf("failed to connect to rabbitmq: %s", err.Error())
		}
		defer mq.Close()
		broker = mq
		logger.Info("Successfully connected to RabbitMQ")

		pg := postgres.New(logger, db)
		repos = repository.New(pg.Post, pg.User, redisrepo.New(rdb))
	}

	services := service.New(logger, repos, broker, m, service.Options{
		StoreTimeout:   appConfig.StoreTimeout,
		CacheTTL:       appConfig.CacheTTL,
		UserServiceAPI: appConfig.UserServiceAPI,
	})
	handlers := handler.New(logger, services, m, handler.Options{
		AccessSecret:   []byte(os.Getenv("ACCESS_SECRET")),
		ClientOrigin:   appConfig.ClientOrigin,
		RateLimitRPS:   appConfig.RateLimitRPS,
		RateLimitBurst: appConfig.RateLimitBurst,
	})

	srv := server.New()
	serverConfig := config.ServerConfig{
		Port:           appConfig.Port,
		Handler:        handlers.InitRoutes(),
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    time.Second * 10,
		WriteTimeout:   time.Second * 10,
	}
	go func() {
		if err := srv.Run(serverConfig); err != nil {
			logger.Sugar().Panicf("failed to run http server: %s", err.Error())
		}
	}()

	go services.StartConsumeAll(ctx)

	logger.Sugar().Infof("Server started on port %s", appConfig.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("failed to shutdown http server: %s", err.Error())
	}
}

func loadEnv() error {
	return godotenv.Load()
}

func initConfig() error {
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetConfigName("app")
	return viper.ReadInConfig()
}
