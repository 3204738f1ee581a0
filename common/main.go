package common

import (
	"strconv"
	"strings"
	"time"

	"github.com/mcnijman/go-emailaddress"
)

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
	QueueName    string
}

// Enabled returns true if enough settings are present to connect to the AMQP exchange.
func (s *AMQPSettings) Enabled() bool {
	return s != nil && s.URI != "" && s.ExchangeName != ""
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}

// NormalizeEmailAddress trims and lower-cases an email address after validating it.
func NormalizeEmailAddress(emailAddress string) (string, error) {
	trimmed := strings.TrimSpace(emailAddress)
	if err := ValidateEmailAddress(trimmed); err != nil {
		return "", err
	}
	return strings.ToLower(trimmed), nil
}

// FormatTimestamp formats a timestamp as the number of milliseconds since the epoch.
func FormatTimestamp(timestamp time.Time) string {
	return strconv.FormatInt(timestamp.UnixNano()/int64(time.Millisecond), 10)
}
