package game

import (
	"time"

	"github.com/abhisek/anamnesis/internal/client"
)

// chatLoadedMsg is sent once the chat and its transcript are available.
type chatLoadedMsg struct {
	Chat     *client.Chat
	Messages []client.Message
	Err      error
}

// replyMsg carries the patient's answer to a doctor message.
type replyMsg struct {
	Reply *client.Message
	Err   error
}

// gameEndedMsg carries the evaluation of a submitted diagnosis.
type gameEndedMsg struct {
	Answer string
	Result *client.Result
	Err    error
}

// spinnerTickMsg animates the waiting indicator.
type spinnerTickMsg time.Time
