package store

import "errors"

// ErrValidation marks caller errors (bad pagination parameters) surfaced
// before any query reaches the database.
var ErrValidation = errors.New("validation")

// Message type values.
const (
	TypeText  = "text"
	TypeMedia = "media"
	TypeOther = "other"
)

// Message is the canonical archived message record. GroupName is set only for
// group messages; MediaFilename only when a media download succeeded.
type Message struct {
	ID            int64
	MessageID     string
	SenderID      string
	SenderName    string
	Body          string
	MessageType   string
	Timestamp     int64 // platform send time, epoch seconds
	IsGroup       bool
	GroupName     *string
	FromMe        bool
	HasMedia      bool
	MediaFilename *string
	StoredAt      int64 // insert time, epoch milliseconds
}

// Filters narrows a message query. Zero values mean "no filter";
// all set filters are AND-combined.
type Filters struct {
	Sender      string // exact sender_id match
	IsGroup     *bool
	MessageType string
	Search      string // case-insensitive substring over body
	StartDate   *int64 // inclusive, epoch seconds
	EndDate     *int64 // inclusive, epoch seconds
}

// Page is one page of query results.
type Page struct {
	Records []Message
	Total   int
	Page    int
	Limit   int
	Pages   int
}

// SenderStat is a per-sender message count.
type SenderStat struct {
	Sender     string
	SenderName string
	Count      int
}

// DailyStat is the message count for one calendar day (UTC, YYYY-MM-DD).
type DailyStat struct {
	Date  string
	Count int
}

// Stats is the on-demand aggregate view over the archive.
type Stats struct {
	TotalMessages int
	TodayMessages int
	GroupMessages int
	MediaMessages int
	TopSenders    []SenderStat
	DailyActivity []DailyStat
}
