package store

import (
	"fmt"
	"time"
)

// Stats computes the aggregate view over the archive. "Today" and the
// trailing 30-day activity window use the store's reference clock with UTC
// day boundaries. Days without messages do not appear in DailyActivity.
func (db *DB) Stats() (*Stats, error) {
	now := db.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Unix()
	dayEnd := dayStart + 86400
	windowStart := dayStart - 29*86400

	s := &Stats{}

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&s.TotalMessages, `SELECT COUNT(*) FROM messages`, nil},
		{&s.TodayMessages, `SELECT COUNT(*) FROM messages WHERE timestamp >= ? AND timestamp < ?`, []any{dayStart, dayEnd}},
		{&s.GroupMessages, `SELECT COUNT(*) FROM messages WHERE is_group = 1`, nil},
		{&s.MediaMessages, `SELECT COUNT(*) FROM messages WHERE has_media = 1`, nil},
	}
	for _, c := range counts {
		if err := db.QueryRow(c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("stats count: %w", err)
		}
	}

	rows, err := db.Query(`
		SELECT sender_id, sender_name, COUNT(*) AS message_count
		FROM messages
		GROUP BY sender_id, sender_name
		ORDER BY message_count DESC, sender_id ASC
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("top senders: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var ss SenderStat
		if err := rows.Scan(&ss.Sender, &ss.SenderName, &ss.Count); err != nil {
			return nil, fmt.Errorf("scan top sender: %w", err)
		}
		s.TopSenders = append(s.TopSenders, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	daily, err := db.Query(`
		SELECT date(timestamp, 'unixepoch') AS day, COUNT(*) AS message_count
		FROM messages
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY day
		ORDER BY day DESC`, windowStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("daily activity: %w", err)
	}
	defer func() { _ = daily.Close() }()
	for daily.Next() {
		var d DailyStat
		if err := daily.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		s.DailyActivity = append(s.DailyActivity, d)
	}
	if err := daily.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

// ListSenders returns distinct senders with their message counts, ordered by
// display name.
func (db *DB) ListSenders() ([]SenderStat, error) {
	rows, err := db.Query(`
		SELECT sender_id, sender_name, COUNT(*) AS message_count
		FROM messages
		GROUP BY sender_id, sender_name
		ORDER BY sender_name`)
	if err != nil {
		return nil, fmt.Errorf("list senders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var senders []SenderStat
	for rows.Next() {
		var s SenderStat
		if err := rows.Scan(&s.Sender, &s.SenderName, &s.Count); err != nil {
			return nil, fmt.Errorf("scan sender: %w", err)
		}
		senders = append(senders, s)
	}
	return senders, rows.Err()
}
