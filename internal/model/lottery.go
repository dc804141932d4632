package model

import "time"

// Participant is one admitted user inside a lottery, with the activity
// count snapshotted at admission time.
type Participant struct {
	UserID       int64
	MessageCount int
}

// Lottery is one (chat, day) draw cycle. Drawn is terminal: once set it
// never goes back to false and the document is kept as history.
type Lottery struct {
	ID           string
	ChatID       int64
	Prize        int
	CreatedAt    time.Time
	Deadline     time.Time
	Participants []Participant
	Winners      []int64
	Drawn        bool
}

func (l *Lottery) HasParticipant(userID int64) bool {
	for _, p := range l.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
