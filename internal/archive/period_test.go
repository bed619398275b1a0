package archive

import (
	"testing"
	"time"
)

// TestPeriodKey проверяет ключи дневного и недельного периодов.
func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name   string
		period Period
		at     time.Time
		want   string
	}{
		{"daily morning", PeriodDaily, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), "2026-10-18"},
		{"daily late", PeriodDaily, time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC), "2026-10-18"},
		{"weekly monday", PeriodWeekly, time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC), "2026-10-19"},
		{"weekly sunday", PeriodWeekly, time.Date(2026, 10, 25, 23, 0, 0, 0, time.UTC), "2026-10-19"},
		{"weekly across month", PeriodWeekly, time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC), "2026-10-26"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.Key(tt.at); got != tt.want {
				t.Fatalf("ожидался ключ %s, получен %s", tt.want, got)
			}
		})
	}
}

// TestKeyOfDateIgnoresTime проверяет, что сравнивается только дата архива.
func TestKeyOfDateIgnoresTime(t *testing.T) {
	got, err := PeriodDaily.KeyOfDate("2026-10-18T23:59:59.999Z", time.UTC)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if got != "2026-10-18" {
		t.Fatalf("ожидалось 2026-10-18, получено %s", got)
	}
	if _, err := PeriodDaily.KeyOfDate("18.10.2026", time.UTC); err == nil {
		t.Fatalf("ожидалась ошибка для чужого формата")
	}
}

// TestParsePeriod проверяет значения из конфигурации.
func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != PeriodDaily {
		t.Fatalf("пустое значение должно означать daily: %v %v", p, err)
	}
	if p, err := ParsePeriod("weekly"); err != nil || p != PeriodWeekly {
		t.Fatalf("weekly не распознан: %v %v", p, err)
	}
	if _, err := ParsePeriod("hourly"); err == nil {
		t.Fatalf("ожидалась ошибка для hourly")
	}
}
