// ABOUTME: Unlock command clearing the outreach run lock
// ABOUTME: Recovers from a crashed run without waiting for the lease to expire
package cli

import (
	"context"
	"flag"

	"github.com/mb2470/onsite-affiliate-sdr-agent/db"
	"github.com/mb2470/onsite-affiliate-sdr-agent/engine"
)

// UnlockCommand force-releases the outreach run lock. Only run it when no
// other auto, send-batch or serve process is alive.
func UnlockCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("unlock", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	released, err := db.NewLeaseLocker(app.Store, lockTTL).ForceRelease(ctx, engine.LockName)
	if err != nil {
		return err
	}
	if !released {
		app.println("No run lock held")
		return nil
	}
	app.Logger.Warn("run lock force-released", "name", engine.LockName)
	app.println("✓ Released stale run lock")
	return nil
}
