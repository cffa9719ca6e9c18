// Package tokencache holds the in-memory token cache: the entity model
// (accounts, access/refresh/ID tokens, app metadata), the deterministic cache
// key scheme shared with other MSAL-compatible implementations, the Store with
// alias-aware lookups, and the JSON serialization contract used by
// persistence layers.
//
// The Store owns every entity. Lookups return copies, so callers can never
// mutate cached state outside the Store's write path. Persistence is not done
// here: a Hook registered on the Store is told before and after each access
// and may Serialize or Deserialize the Store against its own medium.
package tokencache
