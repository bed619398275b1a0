package notify

import (
	"strings"
	"testing"

	"scribsy/models"

	"github.com/gotd/td/tg"
)

func strPtr(s string) *string { return &s }

// TestExtractUsername проверяет поддерживаемые формы записи канала.
func TestExtractUsername(t *testing.T) {
	cases := map[string]string{
		"@scribsy":              "scribsy",
		"scribsy":               "scribsy",
		"https://t.me/scribsy":  "scribsy",
		"https://t.me/scribsy/": "scribsy",
	}
	for in, want := range cases {
		got, err := ExtractUsername(in)
		if err != nil {
			t.Fatalf("%q: неожиданная ошибка: %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: ожидалось %q, получено %q", in, want, got)
		}
	}
	for _, bad := range []string{"", "@", "https://t.me/c/123/45"} {
		if _, err := ExtractUsername(bad); err == nil {
			t.Fatalf("%q: ожидалась ошибка", bad)
		}
	}
}

// TestArchiveAnnouncementQuotesTopPost проверяет, что в анонс попадает самый популярный текстовый пост.
func TestArchiveAnnouncementQuotesTopPost(t *testing.T) {
	batch := models.ArchiveBatch{
		Date: "2026-10-18T16:00:00.000Z",
		Posts: []models.Post{
			{ID: "img", Type: models.PostTypeImage, Image: strPtr("data:"), Name: "Anonymous", Reactions: map[string]int{"🔥": 50}},
			{ID: "b", Type: models.PostTypeText, Text: strPtr("second"), Name: "Bob", Reactions: map[string]int{"🔥": 2, "😂": 3}},
			{ID: "a", Type: models.PostTypeText, Text: strPtr("first"), Name: "Ann", Reactions: map[string]int{"❤️": 1}},
		},
	}

	msg := ArchiveAnnouncement(batch)
	if !strings.HasPrefix(msg, "📦 Scribsy wall archived on 2026-10-18: 3 posts") {
		t.Fatalf("неверный заголовок анонса: %s", msg)
	}
	if !strings.Contains(msg, "«second»") || !strings.Contains(msg, "(5 reactions), by Bob") {
		t.Fatalf("в анонсе нет лучшего поста: %s", msg)
	}
}

// TestArchiveAnnouncementWithoutReactions проверяет анонс без цитаты и единственное число.
func TestArchiveAnnouncementWithoutReactions(t *testing.T) {
	batch := models.ArchiveBatch{
		Date:  "2026-10-18T16:00:00.000Z",
		Posts: []models.Post{{ID: "a", Type: models.PostTypeText, Text: strPtr("x"), Reactions: map[string]int{}}},
	}
	msg := ArchiveAnnouncement(batch)
	if msg != "📦 Scribsy wall archived on 2026-10-18: 1 post" {
		t.Fatalf("неожиданный анонс: %q", msg)
	}
}

// TestArchiveAnnouncementTruncatesQuote проверяет обрезку длинной цитаты по символам.
func TestArchiveAnnouncementTruncatesQuote(t *testing.T) {
	long := strings.Repeat("ж", quoteLimit+10)
	batch := models.ArchiveBatch{
		Date:  "2026-10-18",
		Posts: []models.Post{{ID: "a", Text: &long, Name: "Anonymous", Reactions: map[string]int{"🔥": 1}}},
	}
	msg := ArchiveAnnouncement(batch)
	if !strings.Contains(msg, strings.Repeat("ж", quoteLimit)+"…»") {
		t.Fatalf("цитата не обрезана: %s", msg)
	}
}

// TestFindChannel проверяет выбор канала среди чатов ответа.
func TestFindChannel(t *testing.T) {
	chats := []tg.ChatClass{&tg.Chat{ID: 1}, &tg.Channel{ID: 2, AccessHash: 42}}
	ch, err := findChannel(chats)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if ch.ID != 2 {
		t.Fatalf("ожидался канал 2, получен %d", ch.ID)
	}
	if _, err := findChannel([]tg.ChatClass{&tg.Chat{ID: 1}}); err == nil {
		t.Fatalf("ожидалась ошибка, но её нет")
	}
}
