// Package persist keeps a tokencache.Store in sync with durable storage.
//
// A Medium stores the cache's serialized form as a single blob. NewHook turns
// a Medium into a tokencache.Hook: every store access first reloads the blob
// and every mutating access writes it back.
//
//	hook := persist.NewHook(persist.NewFileStore(path), logger)
//	client, err := auth.New(cfg, auth.WithCacheHook(hook))
//
// A Hook runs one access at a time, so goroutines sharing it never lose each
// other's writes. Media that also implement Locker are held locked from
// BeforeAccess to AfterAccess, which extends that to processes sharing one
// cache file. FileStore does this with an advisory file lock.
package persist
