package health

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkRunner_Run measures a run over checks that return at once.
func BenchmarkRunner_Run(b *testing.B) {
	for _, size := range []int{1, 3, 10} {
		b.Run(fmt.Sprintf("checks=%d", size), func(b *testing.B) {
			r := NewRunner(Config{})
			for i := 0; i < size; i++ {
				r.Register(fixed(fmt.Sprintf("check-%d", i), Healthy("ok")))
			}
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = r.Run(ctx)
			}
		})
	}
}

// BenchmarkOverall measures folding statuses into one.
func BenchmarkOverall(b *testing.B) {
	statuses := []Status{StatusHealthy, StatusDegraded, StatusHealthy, StatusUnhealthy}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Overall(statuses...)
	}
}
