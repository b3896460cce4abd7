package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TobiSchelling/itnewsbot/internal/news"
)

const maxPromptContent = 4000

// Tags the oracle may choose from.
var allowedTags = []string{
	"#ИИ", "#Финансы", "#Безопасность", "#Гаджеты", "#Разработка", "#Соцсети",
	"#Компании", "#Интернет", "#Игры", "#Инструкция", "#Россия", "#Законы",
}

const classifyPrompt = `Ты модератор русскоязычного Telegram-канала об IT и технологиях. Реши, стоит ли публиковать эту новость.

ПУБЛИКУЙ: заметные новости технологий, искусственного интеллекта, разработки, информационной безопасности, гаджетов, крупных IT-компаний, интернета и игровой индустрии, полезные инструкции.

ОТКЛОНЯЙ: рекламу и пресс-релизы без содержания, слухи без источника, мелкие обновления, новости не про IT, а также новости, которые повторяют уже опубликованные ниже.

Уже опубликовано за последние дни:
%s

Новость:
Заголовок: %s
Источник: %s
Ссылка: %s
Текст:
%s

Если новость подходит, придумай короткий заголовок и перескажи суть на русском в 2-4 предложениях. Ссылки в текст не вставляй; если нужно сослаться на источник, напиши %s.
Выбери от 1 до 3 тегов только из списка: %s

Ответь ТОЛЬКО этим JSON:
{
    "approved": true или false,
    "reason": "одно предложение о причине решения",
    "title": "заголовок, только если approved",
    "summary": "пересказ, только если approved",
    "tags": ["#Тег"]
}`

type recentItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

func buildPrompt(a news.Article, recent []news.ApprovedRecord, placeholder string) string {
	items := make([]recentItem, 0, len(recent))
	for _, r := range recent {
		items = append(items, recentItem{Title: r.Title, Link: r.Link})
	}
	recentJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		recentJSON = []byte("[]")
	}

	content := strings.TrimSpace(a.Content)
	if content == "" {
		content = a.Title
	}
	if runes := []rune(content); len(runes) > maxPromptContent {
		content = string(runes[:maxPromptContent]) + "..."
	}

	source := a.Source
	if source == "" {
		source = "Unknown"
	}

	return fmt.Sprintf(classifyPrompt,
		string(recentJSON), a.Title, source, a.Link, content,
		placeholder, strings.Join(allowedTags, ", "),
	)
}
