package maintenance

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const BackfillActivationExpiry = "backfill-activation-expiry"

type activationExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Tasks maps task names to their implementations.
type Tasks map[string]TaskFunc

// DefaultTasks returns the tasks runnable from cmd/migrate.
func DefaultTasks(activations activationExpirer, clock func() time.Time) Tasks {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return Tasks{
		// Stored status is advisory; readers derive expiry from expires_at.
		BackfillActivationExpiry: func(ctx context.Context) (int64, error) {
			return activations.ExpireStale(ctx, clock())
		},
	}
}

func (t Tasks) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run looks up name and runs it once through runner.
func (t Tasks) Run(ctx context.Context, runner *Runner, name string) (Result, error) {
	fn, ok := t[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown maintenance task %q (known: %v)", name, t.Names())
	}
	return runner.RunOnce(ctx, name, fn)
}
