package dto

type SweepResponse struct {
	Enqueued int `json:"enqueued"`
}

type InvalidateCacheResponse struct {
	Dropped int `json:"dropped"`
}

type OnboardingResponse struct {
	AccountID   int64 `json:"account_id"`
	Provisioned bool  `json:"provisioned"`
}
