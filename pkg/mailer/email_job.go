package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue by the API and
// consumed by cmd/mailworker. Text is always set; the worker additionally
// renders the action-link HTML template around it.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Text     string         `json:"text"`
	Template string         `json:"template,omitempty"` // e.g. "action_link"
	Data     map[string]any `json:"data,omitempty"`
}
