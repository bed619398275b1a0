package models

// ArchiveBatch: неизменяемый снимок стены, снятый архиватором.
// Date хранится строкой ISO-8601 с зоной, первые 10 символов: календарная дата.
type ArchiveBatch struct {
	Date  string `json:"date"`
	Posts []Post `json:"posts"`
}
