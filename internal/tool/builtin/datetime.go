package builtin

import (
	"context"
	"time"
)

// DateTime reports the current local date and time.
type DateTime struct {
	now func() time.Time
}

func NewDateTime(now func() time.Time) *DateTime {
	if now == nil {
		now = time.Now
	}
	return &DateTime{now: now}
}

func (tool *DateTime) Name() string { return "get_current_datetime" }
func (tool *DateTime) Description() string {
	return "Returns the current local date, time, weekday and time zone."
}
func (tool *DateTime) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (tool *DateTime) Execute(_ context.Context, _ string) (string, error) {
	return tool.now().Format("2006-01-02 15:04:05 (Monday) MST"), nil
}
