package content

import (
	"context"
	"time"
)

// Throttle wraps svc so every text call is followed by a fixed pause in the
// calling goroutine. With N workers the aggregate rate is roughly N calls per
// delay. Image calls are not delayed.
func Throttle(svc Service, delay time.Duration) Service {
	if delay <= 0 {
		return svc
	}
	return &throttled{next: svc, delay: delay, sleep: sleepContext}
}

type throttled struct {
	next  Service
	delay time.Duration
	sleep func(context.Context, time.Duration) error
}

func (t *throttled) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	out, err := t.next.GenerateText(ctx, req)
	if err != nil {
		return out, err
	}
	if sleepErr := t.sleep(ctx, t.delay); sleepErr != nil {
		return out, sleepErr
	}
	return out, nil
}

func (t *throttled) GenerateImage(ctx context.Context, req ImageRequest) (Picture, error) {
	return t.next.GenerateImage(ctx, req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
