// Package client is the user-side half of the todo app: a session
// manager that signs users in against the identity provider and keeps
// their session on disk, an HTTP client for the todo API that attaches
// (and refreshes) the access token on every call, and an in-memory todo
// store that applies changes optimistically.
//
// Every todo operation goes through the API server, which verifies the
// token again before touching data. The client never queries the data
// store directly.
//
// Optimistic changes follow a small state machine per mutation:
//
//	Pending --(server ok)--> Confirmed
//	Pending --(failure)----> RolledBack
//
// A Pending mutation has already been applied to the local list; the
// server's answer either replaces the local guess or undoes it.
package client
