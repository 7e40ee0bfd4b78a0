package callback

// RetryPolicy is the versioned retry configuration. Each request snapshots
// MaxRetries and RetryIntervalMinutes at creation; later policy changes do
// not touch existing requests.
type RetryPolicy struct {
	Version              int `json:"version" yaml:"version"`
	MaxRetries           int `json:"max_retries" yaml:"max_retries"`
	RetryIntervalMinutes int `json:"retry_interval_minutes" yaml:"retry_interval_minutes"`
}

const CurrentPolicyVersion = 1

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Version:              CurrentPolicyVersion,
		MaxRetries:           3,
		RetryIntervalMinutes: 5,
	}
}
