package repository

import (
	"database/sql"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

type Repo struct {
	db       *sql.DB
	defaults queue.Policy
}

// Settings holds per-guild overrides. A nil policy means the process-wide
// default applies.
type Settings struct {
	GuildID            string
	DrainPolicy        *queue.Teardown
	StopPolicy         *queue.Teardown
	LeaveIfNoListeners bool
	QAddEphemeral      bool
}

type Favorite struct {
	ID      int64
	GuildID string
	Author  string
	Name    string
	Query   string
}
