//go:build no_bubbletea

package top

import (
	"context"
	"fmt"
	"time"
)

// Run prints the overview every interval until ctx is done.
func Run(ctx context.Context, src Source, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		o, err := src.SystemOverview(ctx)
		if err != nil {
			fmt.Println("Error:", err)
		} else {
			fmt.Printf("%s  success %.1f%%\n\n", summary(o), successRate(o)*100)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
