// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gosmp implements the registry core of a Service Metadata Publisher
(SMP) as used in the Peppol and eDelivery networks.

# Overview

An SMP publishes, per participant, which document types it accepts and at
which access point endpoints. go-smp keeps that registry consistent with the
Service Metadata Locator (SML): creating or deleting a service group
registers or deregisters the participant in the SML, and a failed local
write compensates the SML change.

# Specifications

  - OASIS Service Metadata Publishing 1.0: https://docs.oasis-open.org/bdxr/bdx-smp/v1.0/
  - Peppol Policy for use of Identifiers 4.x
  - BDMSL ManageParticipantIdentifier SOAP interface
  - OASIS BDXL 1.0 (U-NAPTR lookup of SMP locations)

# Package Structure

	github.com/sirosfoundation/go-smp/pkg/identifier       - Participant, document type and process identifiers
	github.com/sirosfoundation/go-smp/internal/storage     - Registry collections with write-through persistence
	github.com/sirosfoundation/go-smp/internal/storage/mongodb - MongoDB persistence
	github.com/sirosfoundation/go-smp/internal/sml         - SML registration hook, SOAP client, DNS verification
	github.com/sirosfoundation/go-smp/internal/directory   - Business card directory indexer
	github.com/sirosfoundation/go-smp/internal/registry    - Service group, service information, redirect and business card managers
	github.com/sirosfoundation/go-smp/internal/bulk        - Parallel bulk import and deterministic export
	github.com/sirosfoundation/go-smp/internal/server      - Health, readiness, metrics and admin endpoints
	github.com/sirosfoundation/go-smp/cmd/smpctl           - Command line tool

# Quick Start

	managers := registry.New(registry.Options{
	    Store: storage.NewMemoryRegistry(logger),
	    Hook:  smlClient,
	})

	pid := identifier.MustParseParticipant("iso6523-actorid-upis::9915:test")
	sg, err := managers.ServiceGroups.Create(ctx, "admin", pid, "", true)

	importer := bulk.NewImporter(bulk.Config{Managers: managers})
	result, err := importer.ImportReader(ctx, file, bulk.Options{Overwrite: true})

# Consistency

All changes of one participant are serialised. Deleting a service group
removes its redirects and service information; if any of that fails the
removed objects are restored and the SML deregistration is undone. Service
information and a redirect for the same document type never coexist.

# License

BSD-2-Clause License
*/
package gosmp
