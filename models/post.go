package models

// Типы постов на стене
const (
	PostTypeText  = "text"
	PostTypeImage = "image"
)

// Значения по умолчанию для анонимных публикаций
const (
	DefaultName = "Anonymous"
	DefaultMood = "default"
)

// Post: запись на общей стене.
// Ровно одно из полей Text/Image заполнено, и оно соответствует Type.
// Image хранит закодированный рисунок (data URL), CreatedAt: миллисекунды Unix.
type Post struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Text      *string        `json:"text"`
	Image     *string        `json:"image"`
	Name      string         `json:"name"`
	Mood      string         `json:"mood"`
	CreatedAt int64          `json:"createdAt"`
	Reactions map[string]int `json:"reactions"`
}

// Normalize заполняет отсутствующие поля старых записей,
// чтобы клиенту никогда не приходил reactions = null.
func (p *Post) Normalize() {
	if p.Reactions == nil {
		p.Reactions = map[string]int{}
	}
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Mood == "" {
		p.Mood = DefaultMood
	}
}

// Clone возвращает копию поста с собственной картой реакций.
func (p Post) Clone() Post {
	reactions := make(map[string]int, len(p.Reactions))
	for k, v := range p.Reactions {
		reactions[k] = v
	}
	p.Reactions = reactions
	return p
}
