package tools

import (
	"context"
	"time"

	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// Clock reports the current date and time in a fixed location
type Clock struct {
	location *time.Location
	now      func() time.Time
}

var _ repositories.Tool = (*Clock)(nil)

func NewClock(location *time.Location) *Clock {
	if location == nil {
		location = time.Local
	}
	return &Clock{location: location, now: time.Now}
}

func (c *Clock) Name() string { return "getCurrentTime" }

func (c *Clock) Description() string {
	return "Get the current local date and time"
}

func (c *Clock) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (c *Clock) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	now := c.now().In(c.location)
	return map[string]interface{}{
		"date":     now.Format("Monday, January 2, 2006"),
		"time":     now.Format("3:04 PM"),
		"timezone": c.location.String(),
	}, nil
}
