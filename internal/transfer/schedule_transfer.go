package transfer

import "time"

type ScheduleRequest struct {
	AccountID    int64    `json:"accountId"`
	Content      string   `json:"content"`
	Thread       []string `json:"thread"`
	ScheduledFor string   `json:"scheduledFor"`
	Timezone     string   `json:"timezone"`
	MediaURLs    []string `json:"mediaUrls"`
}

type ScheduleResult struct {
	ScheduledID   int64     `json:"scheduledId"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

type CancelRequest struct {
	ScheduledID int64 `json:"scheduledId"`
}
