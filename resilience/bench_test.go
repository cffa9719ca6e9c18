package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// BenchmarkThrottlingCache_IsThrottled measures the pre-flight check made
// by every silent refresh.
func BenchmarkThrottlingCache_IsThrottled(b *testing.B) {
	c := NewThrottlingCache(ThrottlingConfig{})
	_, _ = c.Throttle("request:throttled", time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.IsThrottled("request:throttled")
		_ = c.IsThrottled("request:open")
	}
}

// BenchmarkThrottlingCache_Throttle measures opening windows past the
// sweep threshold.
func BenchmarkThrottlingCache_Throttle(b *testing.B) {
	c := NewThrottlingCache(ThrottlingConfig{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Throttle(fmt.Sprintf("request:%d", i%200), time.Minute)
	}
}

// BenchmarkInteractionCache_Get measures replay lookups.
func BenchmarkInteractionCache_Get(b *testing.B) {
	c := NewInteractionCache(InteractionConfig{})
	_ = c.Set("request:recorded", errors.New("interaction required"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Get("request:recorded")
	}
}

// BenchmarkInteractionCache_Concurrent measures parallel replay lookups.
func BenchmarkInteractionCache_Concurrent(b *testing.B) {
	c := NewInteractionCache(InteractionConfig{})
	_ = c.Set("request:recorded", errors.New("interaction required"))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = c.Get("request:recorded")
		}
	})
}

// BenchmarkRetry_NoRetries measures retry with immediate success.
func BenchmarkRetry_NoRetries(b *testing.B) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, func(context.Context) error { return nil })
	}
}
