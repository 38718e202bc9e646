package store

import (
	"fmt"
	"strings"
)

// QueryMessages returns one page of messages matching the given filters,
// newest first. Ties on timestamp are broken by insertion order so repeated
// queries paginate deterministically.
func (db *DB) QueryMessages(f Filters, page, limit int) (*Page, error) {
	if page <= 0 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", ErrValidation, page)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", ErrValidation, limit)
	}

	where, args := buildWhere(f)

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	query := `
		SELECT id, message_id, sender_id, sender_name, body, message_type,
			timestamp, is_group, group_name, from_me, has_media, media_filename, stored_at
		FROM messages` + where + `
		ORDER BY timestamp DESC, stored_at ASC, id ASC
		LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.MessageID, &m.SenderID, &m.SenderName, &m.Body,
			&m.MessageType, &m.Timestamp, &m.IsGroup, &m.GroupName, &m.FromMe,
			&m.HasMedia, &m.MediaFilename, &m.StoredAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Records: msgs,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Pages:   (total + limit - 1) / limit,
	}, nil
}

// buildWhere assembles the AND-combined filter clause shared by the count and
// select queries.
func buildWhere(f Filters) (string, []any) {
	var conds []string
	var args []any

	if f.Sender != "" {
		conds = append(conds, "sender_id = ?")
		args = append(args, f.Sender)
	}
	if f.IsGroup != nil {
		conds = append(conds, "is_group = ?")
		args = append(args, *f.IsGroup)
	}
	if f.MessageType != "" {
		conds = append(conds, "message_type = ?")
		args = append(args, f.MessageType)
	}
	if f.Search != "" {
		// instr over lowered text: substring match without LIKE wildcard
		// interpretation of user input.
		conds = append(conds, "instr(lower(body), lower(?)) > 0")
		args = append(args, f.Search)
	}
	if f.StartDate != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		conds = append(conds, "timestamp <= ?")
		args = append(args, *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
