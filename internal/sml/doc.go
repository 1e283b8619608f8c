// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package sml integrates the registry with the Service Metadata Locator,
// the central directory that maps participant identifiers to the SMP
// serving them.
//
// The registry talks to the SML through the [Hook] contract. Hook calls
// happen before the local commit, and every successful call has an undo
// counterpart used for compensation when the local write fails.
//
// Implementations:
//
//   - [NoopHook] when SML integration is disabled
//   - [MemoryHook] records calls, used for dry runs and tests
//   - [Client] talks to a BDMSL ManageParticipantIdentifier SOAP endpoint
//     over mutual-TLS HTTPS
//
// [DNSVerifier] checks the DNS side of a registration: the SML publishes
// every registered participant in its DNS zone, either as a Peppol
// B-<md5> CNAME or as a U-NAPTR record under a base32 SHA-256 label.
package sml
