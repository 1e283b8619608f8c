package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrInvalidIdentifier is returned when an identifier cannot be parsed
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrEmptyScheme is returned when the identifier scheme is missing
	ErrEmptyScheme = errors.New("identifier scheme is empty")
	// ErrEmptyValue is returned when the identifier value is missing
	ErrEmptyValue = errors.New("identifier value is empty")
)

// URISeparator separates scheme and value in the URI encoded form.
const URISeparator = "::"

// Well-known schemes
const (
	// SchemeParticipantISO6523 is the Peppol participant identifier scheme
	SchemeParticipantISO6523 = "iso6523-actorid-upis"
	// SchemeDocTypeBusdox is the Peppol document type scheme
	SchemeDocTypeBusdox = "busdox-docid-qns"
	// SchemeDocTypeWildcard is the Peppol wildcard document type scheme
	SchemeDocTypeWildcard = "peppol-doctype-wildcard"
	// SchemeProcessCENBII is the Peppol process identifier scheme
	SchemeProcessCENBII = "cenbii-procid-ubl"
)

// Participant identifies a business entity registered in the SMP.
type Participant struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// DocumentType identifies a document type a participant can receive.
type DocumentType struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// Process identifies a business process.
type Process struct {
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// URIEncoded returns scheme::value
func (p Participant) URIEncoded() string { return encode(p.Scheme, p.Value) }

// String implements fmt.Stringer
func (p Participant) String() string { return p.URIEncoded() }

// IsZero reports whether p is the zero identifier
func (p Participant) IsZero() bool { return p.Scheme == "" && p.Value == "" }

// Equal compares two already normalized identifiers
func (p Participant) Equal(o Participant) bool {
	return p.Scheme == o.Scheme && p.Value == o.Value
}

// URIEncoded returns scheme::value
func (d DocumentType) URIEncoded() string { return encode(d.Scheme, d.Value) }

// String implements fmt.Stringer
func (d DocumentType) String() string { return d.URIEncoded() }

// IsZero reports whether d is the zero identifier
func (d DocumentType) IsZero() bool { return d.Scheme == "" && d.Value == "" }

// Equal compares two already normalized identifiers
func (d DocumentType) Equal(o DocumentType) bool {
	return d.Scheme == o.Scheme && d.Value == o.Value
}

// URIEncoded returns scheme::value
func (p Process) URIEncoded() string { return encode(p.Scheme, p.Value) }

// String implements fmt.Stringer
func (p Process) String() string { return p.URIEncoded() }

// Equal compares two already normalized identifiers
func (p Process) Equal(o Process) bool {
	return p.Scheme == o.Scheme && p.Value == o.Value
}

func encode(scheme, value string) string {
	return scheme + URISeparator + value
}

// splitURI splits scheme::value. The value may itself contain "::" (document
// type identifiers do), so only the first separator counts.
func splitURI(uri string) (scheme, value string, err error) {
	idx := strings.Index(uri, URISeparator)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: missing %q in %q", ErrInvalidIdentifier, URISeparator, uri)
	}
	return uri[:idx], uri[idx+len(URISeparator):], nil
}

func check(scheme, value string) error {
	if strings.TrimSpace(scheme) == "" {
		return ErrEmptyScheme
	}
	if strings.TrimSpace(value) == "" {
		return ErrEmptyValue
	}
	return nil
}
