// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package registry implements the SMP registry managers on top of the
// storage collections.
//
// # Consistency
//
// A participant's state spans several collections (service group, service
// information, redirects, business card) and an external SML registration.
// The managers keep them consistent:
//
//   - the SML hook is called before the local commit; if the commit fails
//     the hook call is compensated with its undo counterpart
//   - deleting a service group cascades to its service information and
//     redirects; a failure restores everything that was removed
//   - for one participant and document type at most one of service
//     information and redirect exists; writing one removes the other
//
// Compensation failures are logged and not reported to the caller.
//
// # Concurrency
//
// Mutations of one participant are serialised by a striped lock shared by
// all managers. Collection locks are only taken inside storage calls and are
// never nested. Hook calls and observer notifications run outside every
// collection lock; observers are notified after the participant lock is
// released.
package registry
