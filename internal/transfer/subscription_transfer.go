package transfer

import "time"

type Customer struct {
	Email string `json:"email"`
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SubscriptionObject struct {
	ID                   string    `json:"id"`
	Status               string    `json:"status"`
	CurrentPeriodEndDate time.Time `json:"current_period_end_date"`
	Customer             Customer  `json:"customer"`
	Product              Product   `json:"product"`
}

type SubscriptionEvent struct {
	EventType string             `json:"eventType"`
	Object    SubscriptionObject `json:"object"`
}
