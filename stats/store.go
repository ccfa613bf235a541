package stats

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// Stats is a player's persisted match record.
type Stats struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Store persists player identities and win/loss records in SQLite.
// It lives entirely outside the simulation; callers treat writes as
// fire-and-forget.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers anyway; a single pooled connection also
	// keeps ":memory:" databases coherent.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		player_id TEXT PRIMARY KEY REFERENCES players(id),
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// EnsurePlayer creates the player and stats rows if they do not exist.
func (s *Store) EnsurePlayer(playerID, username string, guest bool) error {
	guestFlag := 0
	if guest {
		guestFlag = 1
	}
	if _, err := s.conn.Exec(
		"INSERT OR IGNORE INTO players (id, username, is_guest) VALUES (?, ?, ?)",
		playerID, username, guestFlag,
	); err != nil {
		return err
	}
	_, err := s.conn.Exec("INSERT OR IGNORE INTO stats (player_id) VALUES (?)", playerID)
	return err
}

// RecordResult bumps the player's win or loss counter and returns the
// updated totals.
func (s *Store) RecordResult(playerID string, won bool) (wins, losses int, err error) {
	column := "losses"
	if won {
		column = "wins"
	}
	if _, err = s.conn.Exec(
		"UPDATE stats SET "+column+" = "+column+" + 1 WHERE player_id = ?",
		playerID,
	); err != nil {
		return 0, 0, err
	}

	row := s.conn.QueryRow("SELECT wins, losses FROM stats WHERE player_id = ?", playerID)
	if err = row.Scan(&wins, &losses); err != nil {
		return 0, 0, err
	}
	return wins, losses, nil
}

// GetStats returns a player's record, or nil when the player is
// unknown.
func (s *Store) GetStats(playerID string) (*Stats, error) {
	row := s.conn.QueryRow(
		`SELECT p.id, p.username, st.wins, st.losses
		 FROM players p JOIN stats st ON st.player_id = p.id
		 WHERE p.id = ?`,
		playerID,
	)
	st := &Stats{}
	err := row.Scan(&st.PlayerID, &st.Username, &st.Wins, &st.Losses)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Leaderboard returns the top players by win count.
func (s *Store) Leaderboard(limit int) ([]Stats, error) {
	rows, err := s.conn.Query(
		`SELECT p.id, p.username, st.wins, st.losses
		 FROM players p JOIN stats st ON st.player_id = p.id
		 ORDER BY st.wins DESC, st.losses ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Stats
	for rows.Next() {
		var st Stats
		if err := rows.Scan(&st.PlayerID, &st.Username, &st.Wins, &st.Losses); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}
