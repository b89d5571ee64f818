package model

// FetchRepoMessage là yêu cầu fetch toàn bộ một repo, gửi qua Kafka
type FetchRepoMessage struct {
	NaturalKey string `json:"natural_key"`
}

// FetchItemMessage là yêu cầu fetch đúng một PR hoặc issue theo number
type FetchItemMessage struct {
	NaturalKey string `json:"natural_key"`
	Kind       string `json:"kind"` // "pull_request" | "issue"
	Number     int    `json:"number"`
}
