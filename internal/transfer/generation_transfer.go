package transfer

import "github.com/maheshrc27/threadcraft/internal/models"

type ScheduleOptions struct {
	AccountID    int64    `json:"accountId"`
	ScheduledFor string   `json:"scheduledFor"`
	Timezone     string   `json:"timezone"`
	MediaURLs    []string `json:"mediaUrls"`
}

type GenerateRequest struct {
	Prompt          string           `json:"prompt"`
	Style           string           `json:"style"`
	IsThread        bool             `json:"isThread"`
	KeySource       string           `json:"keySource"`
	Schedule        bool             `json:"schedule"`
	ScheduleOptions *ScheduleOptions `json:"scheduleOptions,omitempty"`
}

type StrategyRequest struct {
	Idea        string `json:"idea"`
	Instruction string `json:"instruction"`
	Context     string `json:"context"`
	Style       string `json:"style"`
	IsThread    bool   `json:"isThread"`
	KeySource   string `json:"keySource"`
}

type GenerateResponse struct {
	Content          string          `json:"content"`
	Thread           []string        `json:"thread"`
	Provider         string          `json:"provider"`
	ThreadCount      int             `json:"threadCount"`
	EstimatedThreads int             `json:"estimatedThreads"`
	CreditsUsed      models.Credits  `json:"creditsUsed"`
	CreditSource     string          `json:"creditSource"`
	KeySource        string          `json:"keySource"`
	Scheduled        bool            `json:"scheduled"`
	ScheduledResult  *ScheduleResult `json:"scheduledResult,omitempty"`
	ScheduleError    string          `json:"scheduleError,omitempty"`
	Quality          *QualityReport  `json:"quality,omitempty"`
}

type QualityReport struct {
	Passed  bool     `json:"passed"`
	Retried bool     `json:"retried"`
	Issues  []string `json:"issues,omitempty"`
}
