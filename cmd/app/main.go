package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"activity_lottery_bot/internal/api"
	"activity_lottery_bot/internal/bot"
	"activity_lottery_bot/internal/notifier"
	"activity_lottery_bot/internal/repository"
	"activity_lottery_bot/internal/scheduler"
	"activity_lottery_bot/internal/service"
	"activity_lottery_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Local overrides; the file is optional.
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	loc, err := time.LoadLocation(cfg.Lottery.Timezone)
	if err != nil {
		zapLogger.Fatal("Failed to load timezone", zap.String("timezone", cfg.Lottery.Timezone), zap.Error(err))
	}

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	client := &http.Client{Timeout: cfg.Telegram.GetRequestTimeout()}
	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		zapLogger.Fatal("Failed to initialize bot API", zap.Error(err))
	}
	botAPI.Debug = cfg.Telegram.Debug

	lotteryService := service.NewLotteryService(repo, repo, notifier.NewTelegram(botAPI), service.LotteryConfig{
		Prize:             cfg.Lottery.Prize,
		MinWinners:        cfg.Lottery.MinWinners,
		WinnerFraction:    cfg.Lottery.WinnerFraction,
		ActivityThreshold: cfg.Lottery.ActivityThreshold,
		DrawHour:          cfg.Lottery.DrawHour,
		DrawMinute:        cfg.Lottery.DrawMinute,
		Location:          loc,
	})
	activityService := service.NewActivityService(repo, service.ActivityConfig{
		DailyPointCap:     cfg.Lottery.DailyPointCap,
		MinMessageLength:  cfg.Lottery.MinMessageLength,
		ActivityThreshold: cfg.Lottery.ActivityThreshold,
		Location:          loc,
	})
	services := service.NewService(lotteryService, activityService)

	schedulerConfig := scheduler.Config{
		Location:   loc,
		CreateSpec: "0 0 * * *",
		DrawSpec:   fmt.Sprintf("%d %d * * *", cfg.Lottery.DrawMinute, cfg.Lottery.DrawHour),
		JobTimeout: time.Minute,
	}
	registry := scheduler.NewRegistry(func(chatID int64) *scheduler.Driver {
		return scheduler.NewDriver(chatID, services, schedulerConfig)
	})
	defer registry.StopAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.New(botAPI, services, services, registry)
	go b.Run(ctx)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a := router.Group("/api/v1")
	api.NewLotteryRoutes(a, services)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
