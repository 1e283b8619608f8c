// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package identifier implements the scheme+value identifiers used as keys
throughout the SMP registry.

# Identifier Kinds

  - [Participant]: the business entity registered in the SMP, e.g.
    iso6523-actorid-upis::9915:test
  - [DocumentType]: the document type a participant can receive, e.g.
    busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##...
  - [Process]: the business process a document type is exchanged in, e.g.
    cenbii-procid-ubl::urn:fdc:peppol.eu:2017:poacc:billing:01:1.0

# Case Handling

Some identifier schemes compare values case-insensitively. For those
schemes the value is lower-cased when the identifier is constructed, so
two identifiers that differ only in case produce the same registry key:

	a, _ := identifier.ParseParticipant("iso6523-actorid-upis::9930:de203827312")
	b, _ := identifier.ParseParticipant("iso6523-actorid-upis::9930:DE203827312")
	a.Equal(b) // true

The set of case-insensitive schemes is held by a [Factory]. The package
level helpers use [DefaultFactory], which follows the Peppol policy:
participant identifiers in the iso6523-actorid-upis scheme are
case-insensitive, document type and process identifiers are not.
*/
package identifier
