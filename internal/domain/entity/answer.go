package entity

// Source 回答中引用的来源，按 URL 去重
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score,omitempty"`
}

// RagAnswer 管线问答结果
type RagAnswer struct {
	Question string   `json:"question"`
	Context  []string `json:"context"`
	Answer   string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// ChatAnswer 对话式问答结果，带安全门控标记
type ChatAnswer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Safe     bool     `json:"safe"`
	Reason   string   `json:"reason"`
	Sources  []Source `json:"sources"`
}
