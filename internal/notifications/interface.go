package notifications

// Notifier delivers operator alerts.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message.
	SendAlert(level, message string) error
}

// Nop discards all alerts. Used when no notifier is configured.
type Nop struct{}

func (Nop) SendAlert(string, string) error { return nil }
