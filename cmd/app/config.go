package main

import (
	"fmt"
	"strings"
	"time"

	"activity_lottery_bot/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	Telegram TelegramConfig `yaml:"telegram"`
	Lottery  LotteryConfig  `yaml:"lottery"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramConfig struct {
	BotToken       string `yaml:"botToken"`
	Debug          bool   `yaml:"debug"`
	RequestTimeout int    `yaml:"requestTimeout"`
}

type LotteryConfig struct {
	Prize             int     `yaml:"prize"`
	MinWinners        int     `yaml:"minWinners"`
	WinnerFraction    float64 `yaml:"winnerFraction"`
	ActivityThreshold int     `yaml:"activityThreshold"`
	DailyPointCap     int     `yaml:"dailyPointCap"`
	MinMessageLength  int     `yaml:"minMessageLength"`
	Timezone          string  `yaml:"timezone"`
	DrawHour          int     `yaml:"drawHour"`
	DrawMinute        int     `yaml:"drawMinute"`
}

func (c *TelegramConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.SetDefault("lottery.prize", 30)
	viper.SetDefault("lottery.minWinners", 2)
	viper.SetDefault("lottery.winnerFraction", 0.5)
	viper.SetDefault("lottery.activityThreshold", 10)
	viper.SetDefault("lottery.dailyPointCap", 50)
	viper.SetDefault("lottery.minMessageLength", 4)
	viper.SetDefault("lottery.timezone", "Asia/Shanghai")
	viper.SetDefault("lottery.drawHour", 23)
	viper.SetDefault("lottery.drawMinute", 30)
	viper.SetDefault("telegram.requestTimeout", 30)
	viper.SetDefault("logLevel", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
