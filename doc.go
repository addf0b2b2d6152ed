// Package loadable manages the lifecycle of asynchronously produced values:
// loading, success, error, staleness and re-fetch, decoupled from any
// particular UI or transport.
//
// # Overview
//
// Loadable organizes code around three core concepts:
//
//  1. Controllers: state machines owning one asynchronous value
//  2. Refreshers: pluggable triggers that request re-fetches under a policy
//  3. Derived controllers: transforms and pagination layered over a base fetch
//
// # Basic Usage
//
// Create a controller around a fetch operation:
//
//	users := loadable.New(func(ctx context.Context) ([]User, error) {
//	    return api.ListUsers(ctx)
//	})
//
// Nothing is fetched until someone looks. Registering the first observer
// activates the controller and issues the initial fetch; registering more
// observers never issues additional fetches:
//
//	sub := users.Observe(func(s loadable.Snapshot[[]User]) {
//	    switch s.Phase {
//	    case loadable.PhaseHasData:
//	        render(s.Value)
//	    case loadable.PhaseFailed:
//	        showError(s.Err)
//	    }
//	})
//	defer sub.Cancel()
//
// Read the current state at any time:
//
//	snap := users.Read()
//	if snap.Loading { ... }
//
// Cancelling the last subscription deactivates the controller without
// clearing its state; a fetch already in flight still completes and
// commits.
//
// # Single-Flight Fetching
//
// At most one fetch's result is ever committed per controller. Starting a
// new fetch cancels the previous attempt's token; a superseded fetch may
// run to completion in the background but its result is discarded at the
// commit boundary. Cancellation is advisory: the fetch operation receives a
// context cancelled on supersession and may check it at its own internal
// steps if early abort is desired.
//
// On failure the prior value is retained alongside the new error
// (stale-while-error), and Phase reports PhaseHasData as long as a usable
// value is held, letting presentation layers show stale content with an
// error banner.
//
// # Refresh Policies
//
// Request re-fetches through policies:
//
//	users.RequestRefresh(loadable.RefreshAlways)     // force a fresh attempt
//	users.RequestRefresh(loadable.RefreshIfErrored)  // retry only after failure
//	users.RequestRefresh(loadable.RefreshIfIdle)     // skip if already loading
//	users.RequestRefresh(loadable.RefreshReset)      // clear state, start over
//
// # Refreshers
//
// Refreshers trigger refreshes while the controller is observed and go
// quiet when it is not. Concrete triggers live in the refreshers
// subpackage:
//
//	users.AttachRefresher(refreshers.NewPeriodic(ctx, time.Minute, loadable.RefreshIfIdle))
//	users.AttachRefresher(refreshers.NewFileWatch(ctx, loadable.RefreshAlways, "/etc/app/config.yaml"))
//
// # Derived Controllers
//
// Mapped controllers cache an expensive base fetch independently of a cheap
// transform, so transform-only changes never re-hit the base source:
//
//	results := loadable.NewMapped(fetchCatalog,
//	    func(ctx context.Context, c Catalog) ([]Item, error) {
//	        return c.Search(query), nil
//	    })
//
//	query = "shoes"
//	results.SetNeedsTransform() // re-runs the transform over the cached catalog
//	results.Refresh()           // user-initiated: always re-hits the base source
//
// NewFiltering is the same shape for sequence results, where an empty
// successful result classifies as PhaseNoData instead of PhaseHasData.
//
// # Paged Controllers
//
// Paged controllers accumulate pages into a running sequence and track the
// authoritative total count:
//
//	feed := loadable.NewPaged(fetchPage, 20,
//	    loadable.WithPrefetchThreshold[Post](5))
//
//	feed.LoadNextPage()  // append the next page
//	feed.MarkAccess(i)   // prefetch when i nears the end of the loaded items
//
// A failed page fetch keeps the already-accumulated items; retry with
// LoadNextPage or start over with Refresh.
//
// # Notifications
//
// All notifications flow through a per-controller FIFO queue: observers are
// notified in registration order, never synchronously from within Observe,
// and a "started loading" notification always precedes the completion
// notification for the same attempt.
//
// # Thread Safety
//
// All operations are thread-safe:
//   - Controllers can be used from multiple goroutines
//   - Fetch operations run in their own goroutine and commit under the
//     controller's lock
//   - Observers run on the notification queue's worker goroutine
package loadable
