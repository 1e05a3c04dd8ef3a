package publisher

import (
	"context"

	"github.com/vivekgangdhar11/wakeme/module/core/domain"
)

// AlarmPublisher fans alarm transitions and trip lifecycle events out to
// listeners outside the tracking process.
type AlarmPublisher interface {
	PublishEvent(ctx context.Context, event *domain.AlarmEvent) error
}
