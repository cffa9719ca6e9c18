// Package health diagnoses a token cache deployment.
//
// A Checker inspects one component and reports a Result: Healthy, Degraded
// or Unhealthy. A Runner runs its checkers concurrently under one timeout
// and folds their results into a Report.
//
//	r := health.NewRunner(health.Config{Timeout: 10 * time.Second})
//	r.Register(health.CacheReadable(persist.NewFileStore(path)))
//	r.Register(health.SignInState(store))
//	r.Register(health.AuthorityDiscovery(resolver, "login.microsoftonline.com"))
//
//	report := r.Run(ctx)
//	if report.Status == health.StatusUnhealthy {
//		// at least one check failed
//	}
//
// The built-in checks cover the three things that keep silent acquisition
// from working: a cache that cannot be read, accounts left without a refresh
// token, and an authority whose aliases cannot be discovered.
package health
