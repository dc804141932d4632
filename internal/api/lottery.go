package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"activity_lottery_bot/internal/service"
	"activity_lottery_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type lotteryRoutes struct {
	ls service.LotteryServiceI
}

// NewLotteryRoutes exposes a read-only view of the lottery state for
// operators; all mutations go through the scheduler and the bot.
func NewLotteryRoutes(handler *gin.RouterGroup, ls service.LotteryServiceI) {
	r := &lotteryRoutes{ls: ls}
	h := handler.Group("/lotteries")
	{
		h.GET("/:chat_id/current", r.GetCurrentLottery)
	}
}

type ParticipantResponse struct {
	UserID       int64 `json:"user_id"`
	MessageCount int   `json:"message_count"`
}

type LotteryResponse struct {
	ID           string                `json:"id"`
	ChatID       int64                 `json:"chat_id"`
	Prize        int                   `json:"prize"`
	CreatedAt    time.Time             `json:"created_at"`
	Deadline     time.Time             `json:"deadline"`
	Participants []ParticipantResponse `json:"participants"`
	Drawn        bool                  `json:"drawn"`
}

func (r *lotteryRoutes) GetCurrentLottery(c *gin.Context) {
	log := logger.Logger()

	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		log.Error("failed to parse chat_id", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat_id"})
		return
	}

	lot, err := r.ls.Active(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, service.ErrNoOpenLottery) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no open lottery for this chat"})
			return
		}
		log.Error("failed to get current lottery", zap.Int64("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	participants := make([]ParticipantResponse, len(lot.Participants))
	for i, p := range lot.Participants {
		participants[i] = ParticipantResponse{
			UserID:       p.UserID,
			MessageCount: p.MessageCount,
		}
	}

	c.JSON(http.StatusOK, LotteryResponse{
		ID:           lot.ID,
		ChatID:       lot.ChatID,
		Prize:        lot.Prize,
		CreatedAt:    lot.CreatedAt,
		Deadline:     lot.Deadline,
		Participants: participants,
		Drawn:        lot.Drawn,
	})
}
