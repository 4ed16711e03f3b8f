package support

// Policy toggles the optional parts of the dialogue.
type Policy struct {
	Classification  bool
	Recommendations bool
	Ratings         bool
	OperatorHandoff bool
}

// Link is a site section recommended next to an answer.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Config holds runtime knobs for the orchestrator.
type Config struct {
	Policy          Policy
	SystemPrompt    string
	ClassifyPrompt  string
	RecommendPrompt string
	// Links maps recommendation tags to site sections.
	Links map[string]Link
}

const defaultSystemPrompt = `Ты виртуальный помощник службы поддержки банка. Отвечай вежливо и кратко (1-3 предложения для простых вопросов), при необходимости давай нумерованные шаги.
Отвечай только на вопросы о продуктах и сервисах банка. Не давай инвестиционных и юридических советов. Никогда не запрашивай пароли, CVV или PIN.
Опирайся на контекст из базы знаний. Если контекст не отвечает на вопрос, предложи обратиться к оператору.`

const defaultClassifyPrompt = `Определи, относится ли вопрос клиента к продуктам и сервисам банка (карты, вклады, кредиты, ипотека, платежи, переводы, страхование, инвестиции, поддержка).
Ответь ровно одним словом: BANK или NON_BANK.`

const defaultRecommendPrompt = `По вопросу клиента и ответу выбери от нуля до трёх разделов сайта, которые стоит порекомендовать.
Допустимые теги: cards, deposits, mortgage, credits, payments, transfers, insurance, investments, support.
Ответь тегами через запятую без пояснений или словом NONE.`

// DefaultLinks returns the recommendation targets used when none are
// configured.
func DefaultLinks() map[string]Link {
	return map[string]Link{
		"cards":       {Title: "Карты", URL: "https://www.sberbank.ru/ru/person/bank_cards"},
		"deposits":    {Title: "Вклады", URL: "https://www.sberbank.ru/ru/person/contributions"},
		"mortgage":    {Title: "Ипотека", URL: "https://www.sberbank.ru/ru/person/mortgagelending"},
		"credits":     {Title: "Кредиты", URL: "https://www.sberbank.ru/ru/person/credits"},
		"payments":    {Title: "Платежи", URL: "https://www.sberbank.ru/ru/person/payments"},
		"transfers":   {Title: "Переводы", URL: "https://www.sberbank.ru/ru/person/transfers"},
		"insurance":   {Title: "Страхование", URL: "https://www.sberbank.ru/ru/person/insurance"},
		"investments": {Title: "Инвестиции", URL: "https://www.sberbank.ru/ru/person/investments"},
		"support":     {Title: "Поддержка", URL: "https://www.sberbank.ru/ru/person/paymentsandtransfers/help"},
	}
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.ClassifyPrompt == "" {
		c.ClassifyPrompt = defaultClassifyPrompt
	}
	if c.RecommendPrompt == "" {
		c.RecommendPrompt = defaultRecommendPrompt
	}
	if len(c.Links) == 0 {
		c.Links = DefaultLinks()
	}
	return c
}
