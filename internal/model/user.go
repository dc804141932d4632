package model

import "time"

type User struct {
	TelegramID         int64
	Username           string
	FirstName          string
	LastName           string
	Points             int
	DailyPoints        int
	LotteryPoints      int
	NotifiedForLottery bool
	LastActiveDate     string
	JoinedAt           time.Time
}
