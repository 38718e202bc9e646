package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMessage(id string, ts int64) *Message {
	return &Message{
		MessageID:   id,
		SenderID:    "5511999000111@s.whatsapp.net",
		SenderName:  "Alice",
		Body:        "hello",
		MessageType: TypeText,
		Timestamp:   ts,
	}
}

func mustInsert(t *testing.T, db *DB, m *Message) {
	t.Helper()
	inserted, err := db.InsertMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatalf("message %q not inserted", m.MessageID)
	}
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(v int64) *int64 { return &v }

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so run it again to check idempotency.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestInsertMessageIdempotent(t *testing.T) {
	db := testDB(t)

	m := testMessage("m1", 1000)
	m.Body = "hi"
	inserted, err := db.InsertMessage(m)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Error("first insert: inserted = false, want true")
	}

	// Same id again, different body: no-op, first row wins.
	dup := testMessage("m1", 2000)
	dup.Body = "changed"
	inserted, err = db.InsertMessage(dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("duplicate insert: inserted = true, want false")
	}

	page, err := db.QueryMessages(Filters{}, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}
	if page.Records[0].Body != "hi" {
		t.Errorf("body = %q, want %q (first write must not be overwritten)", page.Records[0].Body, "hi")
	}
}

func TestInsertMessageNullableFields(t *testing.T) {
	db := testDB(t)

	group := "Team Chat"
	m := testMessage("g1", 1000)
	m.SenderID = "12036304@g.us"
	m.IsGroup = true
	m.GroupName = &group
	m.HasMedia = true
	m.MediaFilename = nil // download failed; media presence is still recorded
	mustInsert(t, db, m)

	page, err := db.QueryMessages(Filters{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := page.Records[0]
	if got.GroupName == nil || *got.GroupName != "Team Chat" {
		t.Errorf("group name = %v, want Team Chat", got.GroupName)
	}
	if !got.HasMedia {
		t.Error("has_media = false, want true")
	}
	if got.MediaFilename != nil {
		t.Errorf("media_filename = %v, want nil", got.MediaFilename)
	}
}

func TestQueryOrdering(t *testing.T) {
	db := testDB(t)

	// Two messages share a timestamp; insertion order breaks the tie.
	clock := time.Unix(1700000000, 0)
	db.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	mustInsert(t, db, testMessage("old", 1000))
	mustInsert(t, db, testMessage("tie-first", 2000))
	mustInsert(t, db, testMessage("tie-second", 2000))
	mustInsert(t, db, testMessage("new", 3000))

	page, err := db.QueryMessages(Filters{}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, m := range page.Records {
		order = append(order, m.MessageID)
	}
	want := []string{"new", "tie-first", "tie-second", "old"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestQueryFilters(t *testing.T) {
	db := testDB(t)

	a := testMessage("m1", 1000)
	a.SenderID = "alice@s.whatsapp.net"
	a.Body = "Say hi there"
	mustInsert(t, db, a)

	b := testMessage("m2", 2000)
	b.SenderID = "12036304@g.us"
	b.IsGroup = true
	b.MessageType = TypeMedia
	b.HasMedia = true
	b.Body = "photo"
	mustInsert(t, db, b)

	c := testMessage("m3", 3000)
	c.SenderID = "alice@s.whatsapp.net"
	c.Body = "later message"
	mustInsert(t, db, c)

	tests := []struct {
		name    string
		filters Filters
		wantIDs []string
	}{
		{"no filters", Filters{}, []string{"m3", "m2", "m1"}},
		{"sender exact", Filters{Sender: "alice@s.whatsapp.net"}, []string{"m3", "m1"}},
		{"group only", Filters{IsGroup: boolPtr(true)}, []string{"m2"}},
		{"individual only", Filters{IsGroup: boolPtr(false)}, []string{"m3", "m1"}},
		{"message type", Filters{MessageType: TypeMedia}, []string{"m2"}},
		{"search case-insensitive", Filters{Search: "Hi"}, []string{"m1"}},
		{"search no match", Filters{Search: "bye"}, nil},
		{"date range inclusive", Filters{StartDate: int64Ptr(1000), EndDate: int64Ptr(2000)}, []string{"m2", "m1"}},
		{"combined", Filters{Sender: "alice@s.whatsapp.net", EndDate: int64Ptr(1500)}, []string{"m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := db.QueryMessages(tt.filters, 1, 50)
			if err != nil {
				t.Fatal(err)
			}
			if len(page.Records) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(page.Records), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if page.Records[i].MessageID != want {
					t.Errorf("record[%d] = %q, want %q", i, page.Records[i].MessageID, want)
				}
			}
			if page.Total != len(tt.wantIDs) {
				t.Errorf("total = %d, want %d", page.Total, len(tt.wantIDs))
			}
		})
	}
}

func TestQueryPaginationConsistency(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 7; i++ {
		mustInsert(t, db, testMessage(fmt.Sprintf("m%d", i), int64(1000+i)))
	}

	limit := 3
	page1, err := db.QueryMessages(Filters{}, 1, limit)
	if err != nil {
		t.Fatal(err)
	}
	if page1.Pages != 3 {
		t.Errorf("pages = %d, want 3 (ceil(7/3))", page1.Pages)
	}

	seen := 0
	for p := 1; p <= page1.Pages; p++ {
		page, err := db.QueryMessages(Filters{}, p, limit)
		if err != nil {
			t.Fatal(err)
		}
		seen += len(page.Records)
		if page.Total != 7 {
			t.Errorf("page %d total = %d, want 7", p, page.Total)
		}
	}
	if seen != 7 {
		t.Errorf("sum of records across pages = %d, want total 7", seen)
	}

	// Past the last page: empty records, same total.
	past, err := db.QueryMessages(Filters{}, 4, limit)
	if err != nil {
		t.Fatal(err)
	}
	if len(past.Records) != 0 || past.Total != 7 {
		t.Errorf("past-end page: %d records total %d, want 0 records total 7", len(past.Records), past.Total)
	}
}

func TestQueryValidation(t *testing.T) {
	db := testDB(t)

	for _, tt := range []struct{ page, limit int }{
		{0, 50}, {-1, 50}, {1, 0}, {1, -5},
	} {
		_, err := db.QueryMessages(Filters{}, tt.page, tt.limit)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("QueryMessages(page=%d, limit=%d) error = %v, want ErrValidation", tt.page, tt.limit, err)
		}
	}
}

func TestStats(t *testing.T) {
	db := testDB(t)

	// Fixed reference clock: 2025-06-15 12:00 UTC.
	ref := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return ref }

	dayStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC).Unix()

	// 7 group messages, 3 individual. Two of today's, one with media.
	for i := 0; i < 7; i++ {
		m := testMessage(fmt.Sprintf("g%d", i), dayStart-int64(i+1)*86400)
		m.SenderID = "12036304@g.us"
		m.IsGroup = true
		mustInsert(t, db, m)
	}
	for i := 0; i < 3; i++ {
		m := testMessage(fmt.Sprintf("i%d", i), dayStart+int64(i))
		m.SenderID = "bob@s.whatsapp.net"
		m.SenderName = "Bob"
		mustInsert(t, db, m)
	}
	media := testMessage("media1", dayStart-40*86400) // outside the 30-day window
	media.HasMedia = true
	media.MessageType = TypeMedia
	media.SenderID = "carol@s.whatsapp.net"
	media.SenderName = "Carol"
	mustInsert(t, db, media)

	s, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}

	if s.TotalMessages != 11 {
		t.Errorf("total = %d, want 11", s.TotalMessages)
	}
	if s.GroupMessages != 7 {
		t.Errorf("group = %d, want 7", s.GroupMessages)
	}
	if s.MediaMessages != 1 {
		t.Errorf("media = %d, want 1", s.MediaMessages)
	}
	if s.TodayMessages != 3 {
		t.Errorf("today = %d, want 3", s.TodayMessages)
	}

	// Top senders: group sender has 7, bob 3, carol 1.
	if len(s.TopSenders) != 3 {
		t.Fatalf("top senders = %d, want 3", len(s.TopSenders))
	}
	if s.TopSenders[0].Sender != "12036304@g.us" || s.TopSenders[0].Count != 7 {
		t.Errorf("top sender = %+v, want group with 7", s.TopSenders[0])
	}
	if s.TopSenders[1].Sender != "bob@s.whatsapp.net" || s.TopSenders[1].Count != 3 {
		t.Errorf("second sender = %+v, want bob with 3", s.TopSenders[1])
	}

	// Daily activity covers only the trailing 30 days: the 40-day-old media
	// message must not appear. 7 group days + today = 8 distinct days.
	if len(s.DailyActivity) != 8 {
		t.Errorf("daily activity entries = %d, want 8", len(s.DailyActivity))
	}
	for _, d := range s.DailyActivity {
		if d.Count <= 0 {
			t.Errorf("day %s has count %d; zero-message days must be absent", d.Date, d.Count)
		}
	}
	if s.DailyActivity[0].Date != "2025-06-15" || s.DailyActivity[0].Count != 3 {
		t.Errorf("newest day = %+v, want 2025-06-15 with 3", s.DailyActivity[0])
	}
}

func TestTopSendersTieBreak(t *testing.T) {
	db := testDB(t)

	// Equal counts: order falls back to sender id ascending.
	m1 := testMessage("t1", 1000)
	m1.SenderID = "bbb@s.whatsapp.net"
	mustInsert(t, db, m1)
	m2 := testMessage("t2", 2000)
	m2.SenderID = "aaa@s.whatsapp.net"
	mustInsert(t, db, m2)

	s, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if s.TopSenders[0].Sender != "aaa@s.whatsapp.net" {
		t.Errorf("tie-break order = %v, want aaa first", s.TopSenders)
	}
}

func TestListSenders(t *testing.T) {
	db := testDB(t)

	m1 := testMessage("m1", 1000)
	m1.SenderID = "zed@s.whatsapp.net"
	m1.SenderName = "Zed"
	mustInsert(t, db, m1)

	m2 := testMessage("m2", 2000)
	m2.SenderID = "amy@s.whatsapp.net"
	m2.SenderName = "Amy"
	mustInsert(t, db, m2)

	m3 := testMessage("m3", 3000)
	m3.SenderID = "amy@s.whatsapp.net"
	m3.SenderName = "Amy"
	mustInsert(t, db, m3)

	senders, err := db.ListSenders()
	if err != nil {
		t.Fatal(err)
	}
	if len(senders) != 2 {
		t.Fatalf("got %d senders, want 2", len(senders))
	}
	if senders[0].SenderName != "Amy" || senders[0].Count != 2 {
		t.Errorf("first sender = %+v, want Amy with 2", senders[0])
	}
	if senders[1].SenderName != "Zed" || senders[1].Count != 1 {
		t.Errorf("second sender = %+v, want Zed with 1", senders[1])
	}
}
