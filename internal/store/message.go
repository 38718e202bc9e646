package store

import "fmt"

// InsertMessage persists a message, keyed uniquely by message_id. A duplicate
// id is a silent no-op: the first row wins and inserted is false. Concurrent
// inserts of the same id are resolved by the UNIQUE constraint, not by
// application locking. stored_at is assigned here.
func (db *DB) InsertMessage(m *Message) (inserted bool, err error) {
	storedAt := db.now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO messages (message_id, sender_id, sender_name, body, message_type,
			timestamp, is_group, group_name, from_me, has_media, media_filename, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING`,
		m.MessageID, m.SenderID, m.SenderName, m.Body, m.MessageType,
		m.Timestamp, m.IsGroup, m.GroupName, m.FromMe, m.HasMedia, m.MediaFilename, storedAt)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		m.StoredAt = storedAt
	}
	return n > 0, nil
}

// CountMessages returns the total number of archived messages.
func (db *DB) CountMessages() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
