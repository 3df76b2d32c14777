package event

import "time"

// Event はイベントエンティティを表す
type Event struct {
	ID           int64
	Name         string
	Venue        string
	EventDate    time.Time
	TotalTickets int
	CreatedAt    time.Time
}

// WithAvailability はイベントに空席数を添えた読み取り専用ビュー。
// availableTickets は永続化しない（I4）。チケットテーブルから都度算出する
type WithAvailability struct {
	Event
	AvailableTickets int
}

// NewEvent は新しいイベントを作成する
func NewEvent(name, venue string, eventDate time.Time, totalTickets int) *Event {
	return &Event{
		Name:         name,
		Venue:        venue,
		EventDate:    eventDate,
		TotalTickets: totalTickets,
	}
}

// Validate はイベントの検証を行う（§3 の制約）。違反は全てまとめて返す
func (e *Event) Validate(now time.Time) error {
	var violations []string

	if n := len([]rune(e.Name)); n < 3 || n > 100 {
		violations = append(violations, "name must be between 3 and 100 characters")
	}
	if v := len([]rune(e.Venue)); v < 3 || v > 255 {
		violations = append(violations, "venue must be between 3 and 255 characters")
	}
	if !e.EventDate.After(now) {
		violations = append(violations, "eventDate must be strictly in the future")
	}
	if e.TotalTickets < 1 {
		violations = append(violations, "totalTickets must be at least 1")
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
