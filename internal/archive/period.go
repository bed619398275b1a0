package archive

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Period задаёт частоту архивации стены
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// ParsePeriod проверяет значение из конфигурации.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodDaily, PeriodWeekly:
		return p, nil
	case "":
		return PeriodDaily, nil
	default:
		return "", fmt.Errorf("unknown archive period %q (want daily or weekly)", s)
	}
}

// Key возвращает ключ периода для момента t в зоне t:
// для daily: календарная дата, для weekly, дата понедельника ISO-недели.
func (p Period) Key(t time.Time) string {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if p == PeriodWeekly {
		offset := (int(day.Weekday()) + 6) % 7
		day = day.AddDate(0, 0, -offset)
	}
	return day.Format(dateLayout)
}

// KeyOfDate считает ключ периода по дате архива.
// Учитываются только первые 10 символов (дата), время суток не сравнивается.
func (p Period) KeyOfDate(date string, loc *time.Location) (string, error) {
	if len(date) < len(dateLayout) {
		return "", fmt.Errorf("date too short")
	}
	day, err := time.ParseInLocation(dateLayout, date[:len(dateLayout)], loc)
	if err != nil {
		return "", err
	}
	return p.Key(day), nil
}
