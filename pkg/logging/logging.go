package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

type Fields struct {
	Service    string `json:"service"`
	OrderID    string `json:"order_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

var logger atomic.Pointer[slog.Logger]

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects every subsequent record to w as JSON lines.
func SetOutput(w io.Writer) {
	logger.Store(slog.New(slog.NewJSONHandler(w, nil)))
}

func Log(fields Fields) {
	attrs := []slog.Attr{slog.String("service", fields.Service)}
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	add("order_id", fields.OrderID)
	add("event_id", fields.EventID)
	add("user_id", fields.UserID)
	add("product_id", fields.ProductID)
	add("step", fields.Step)
	add("status", fields.Status)
	if fields.DurationMS > 0 {
		attrs = append(attrs, slog.Int64("duration_ms", fields.DurationMS))
	}
	add("error", fields.Error)

	level := slog.LevelInfo
	if fields.Error != "" {
		level = slog.LevelError
	}
	logger.Load().LogAttrs(context.Background(), level, fields.Message, attrs...)
}
