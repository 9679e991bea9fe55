package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/sonroyaalmerol/jukebot/internal/queue"
)

var ErrDuplicateFavorite = errors.New("favorite with that name already exists")

func NewRepo(db *sql.DB, defaults queue.Policy) *Repo {
	return &Repo{db: db, defaults: defaults}
}

func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, drain_policy, stop_policy, leave_if_no_listeners, queue_add_ephemeral
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var drain, stop sql.NullString
	var leave, ephemeral int
	if err := row.Scan(&s.GuildID, &drain, &stop, &leave, &ephemeral); err != nil {
		return nil, err
	}
	s.DrainPolicy = parseNullTeardown(drain)
	s.StopPolicy = parseNullTeardown(stop)
	s.LeaveIfNoListeners = leave != 0
	s.QAddEphemeral = ephemeral != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(guild_id, drain_policy, stop_policy, leave_if_no_listeners, queue_add_ephemeral)
		VALUES (?,?,?,?,?)
		ON CONFLICT(guild_id) DO UPDATE SET
		  drain_policy=excluded.drain_policy,
		  stop_policy=excluded.stop_policy,
		  leave_if_no_listeners=excluded.leave_if_no_listeners,
		  queue_add_ephemeral=excluded.queue_add_ephemeral`,
		s.GuildID, nullTeardown(s.DrainPolicy), nullTeardown(s.StopPolicy),
		boolToInt(s.LeaveIfNoListeners), boolToInt(s.QAddEphemeral),
	)
	return err
}

// PolicyFor merges a guild's overrides onto the configured defaults. Lookup
// failures fall back to the defaults so a broken database never blocks play.
func (r *Repo) PolicyFor(ctx context.Context, guildID string) queue.Policy {
	p := r.defaults
	s, err := r.GetSettings(ctx, guildID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("settings lookup failed, using defaults", "guildID", guildID, "err", err)
		}
		return p
	}
	if s.DrainPolicy != nil {
		p.OnDrain = *s.DrainPolicy
	}
	if s.StopPolicy != nil {
		p.OnStop = *s.StopPolicy
	}
	return p
}

func (r *Repo) Defaults() queue.Policy { return r.defaults }

func (r *Repo) AddFavorite(ctx context.Context, f *Favorite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites(guild_id, author_id, name, query) VALUES (?,?,?,?)`,
		f.GuildID, f.Author, f.Name, f.Query,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateFavorite
	}
	return nil
}

func (r *Repo) RemoveFavorite(ctx context.Context, guild, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) FindFavorite(ctx context.Context, guild, name string) (*Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	var f Favorite
	if err := row.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repo) ListFavorites(ctx context.Context, guild string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? ORDER BY name ASC`, guild)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func parseNullTeardown(ns sql.NullString) *queue.Teardown {
	if !ns.Valid {
		return nil
	}
	t, err := queue.ParseTeardown(ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullTeardown(t *queue.Teardown) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
