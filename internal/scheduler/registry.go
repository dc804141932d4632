package scheduler

import (
	"context"
	"sync"

	"activity_lottery_bot/pkg/logger"

	"go.uber.org/zap"
)

// Registry owns the per-chat drivers for the process lifetime. Drivers are
// created lazily on the first qualifying event for a chat and never torn
// down individually. A single process is assumed to own all chats.
type Registry struct {
	mu        sync.Mutex
	drivers   map[int64]*Driver
	newDriver func(chatID int64) *Driver
}

func NewRegistry(newDriver func(chatID int64) *Driver) *Registry {
	return &Registry{
		drivers:   make(map[int64]*Driver),
		newDriver: newDriver,
	}
}

// Ensure returns the chat's driver, creating and starting it on first use.
func (r *Registry) Ensure(ctx context.Context, chatID int64) *Driver {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.drivers[chatID]; ok {
		return d
	}

	d := r.newDriver(chatID)
	if err := d.Start(ctx); err != nil {
		logger.Logger().Error("failed to start lottery scheduler", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	r.drivers[chatID] = d
	logger.Logger().Info("lottery scheduler registered", zap.Int64("chat_id", chatID))

	return d
}

func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.drivers {
		d.Stop()
	}
}
