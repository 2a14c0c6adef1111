// Package notification delivers trade and system alerts to external
// channels (Telegram, webhooks).
package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/XavierD3728/stockquant/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// TradeExecuted builds the alert for an automated strategy execution.
func TradeExecuted(strategyID int64, trade model.Trade) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Strategy %d %s %s", strategyID, trade.Side, trade.Code),
		Message: fmt.Sprintf("%s %d x %s @ %s (commission %s)",
			trade.Side, trade.Quantity, trade.Code, trade.Price, trade.Commission),
	}
}

// TradeFailed builds the alert for an automated execution that errored.
func TradeFailed(strategyID int64, code string, err error) Alert {
	return Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("Strategy %d trade failed on %s", strategyID, code),
		Message: err.Error(),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts; the fallback when no channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends; errors are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
