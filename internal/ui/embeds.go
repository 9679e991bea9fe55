package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/jukebot/internal/queue"
	"github.com/sonroyaalmerol/jukebot/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorIdle    = 0x992222

	// Discord caps embed descriptions at 4096 characters.
	maxTitleRunes = 80
)

var (
	ErrEmptyQueue   = errors.New("queue is empty")
	ErrPageTooLarge = errors.New("the queue isn't that big")
)

func songLink(s queue.Song) string {
	title := utils.EscapeMd(utils.Truncate(s.Title, maxTitleRunes))
	if s.SourceURL == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, s.SourceURL)
}

func songLength(s queue.Song) string {
	if s.IsLive {
		return "live"
	}
	if s.Duration <= 0 {
		return "?"
	}
	return utils.PrettyTime(s.Duration)
}

func requester(s queue.Song) string {
	if s.RequestedBy == "" {
		return ""
	}
	return fmt.Sprintf("\nRequested by: <@%s>", s.RequestedBy)
}

func BuildNowPlayingEmbed(cur *queue.Song) *discordgo.MessageEmbed {
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "nothing playing",
			Color:       colorIdle,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("**%s**%s\n\n▶️ `[ %s ]`", songLink(*cur), requester(*cur), songLength(*cur)),
		Color:       colorPlaying,
	}
}

// PageCount returns how many pages of pageSize the songs fill.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// BuildQueueEmbed lists songs in play order, numbered from 1 with the song
// at the front first. Pages are 1-based.
func BuildQueueEmbed(songs []queue.Song, playing bool, page, pageSize int) (*discordgo.MessageEmbed, error) {
	if len(songs) == 0 {
		return nil, ErrEmptyQueue
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}
	maxPage := PageCount(len(songs), pageSize)
	if page > maxPage {
		return nil, ErrPageTooLarge
	}

	begin := (page - 1) * pageSize
	end := min(begin+pageSize, len(songs))

	var b strings.Builder
	for i, s := range songs[begin:end] {
		n := begin + i + 1
		marker := ""
		if n == 1 && playing {
			marker = " ▶️"
		}
		fmt.Fprintf(&b, "`%d.` %s `[ %s ]`%s\n", n, songLink(s), songLength(s), marker)
	}

	totalLen := 0
	hasLive := false
	for _, s := range songs {
		totalLen += s.Duration
		hasLive = hasLive || s.IsLive
	}
	lenStr := totalLenStr(totalLen)
	if hasLive {
		lenStr += " + live"
	}

	title := "Queue"
	color := colorIdle
	if playing {
		title = "Now Playing"
		color = colorPlaying
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: b.String(),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: queueInfo(len(songs)), Inline: true},
			{Name: "Total length", Value: lenStr, Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, maxPage), Inline: true},
		},
	}, nil
}

func queueInfo(n int) string {
	if n == 1 {
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func totalLenStr(sec int) string {
	if sec <= 0 {
		return "-"
	}
	return utils.PrettyTime(sec)
}
