package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryDispatcher(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventLicenseDenied, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.ID)
		return errors.New("webhook down")
	})
	d.Subscribe(EventLicenseDenied, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.ID)
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e1", Type: EventLicenseDenied})
	assert.EqualError(t, err, "webhook down")
	assert.Equal(t, []string{"first:e1", "second:e1"}, seen)

	assert.NoError(t, d.Publish(context.Background(), Event{ID: "e2", Type: EventLicenseVerified}))
	assert.Len(t, seen, 2)
}
