package identifier

import (
	"fmt"
	"strings"
)

// Factory creates normalized identifiers. It is safe for concurrent use
// once constructed.
type Factory struct {
	participantSchemes map[string]struct{}
	documentSchemes    map[string]struct{}
	processSchemes     map[string]struct{}
}

// FactoryConfig lists the schemes whose values compare case-insensitively
type FactoryConfig struct {
	CaseInsensitiveParticipantSchemes []string
	CaseInsensitiveDocumentSchemes    []string
	CaseInsensitiveProcessSchemes     []string
}

// DefaultFactory follows the Peppol identifier policy
var DefaultFactory = NewFactory(FactoryConfig{
	CaseInsensitiveParticipantSchemes: []string{SchemeParticipantISO6523},
})

// NewFactory creates a factory from the given configuration
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{
		participantSchemes: toSet(cfg.CaseInsensitiveParticipantSchemes),
		documentSchemes:    toSet(cfg.CaseInsensitiveDocumentSchemes),
		processSchemes:     toSet(cfg.CaseInsensitiveProcessSchemes),
	}
}

func toSet(schemes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(schemes))
	for _, s := range schemes {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

func normalize(set map[string]struct{}, scheme, value string) (string, string) {
	scheme = strings.TrimSpace(scheme)
	value = strings.TrimSpace(value)
	if _, ok := set[strings.ToLower(scheme)]; ok {
		return strings.ToLower(scheme), strings.ToLower(value)
	}
	return scheme, value
}

// Participant creates a normalized participant identifier
func (f *Factory) Participant(scheme, value string) (Participant, error) {
	if err := check(scheme, value); err != nil {
		return Participant{}, fmt.Errorf("participant identifier: %w", err)
	}
	s, v := normalize(f.participantSchemes, scheme, value)
	return Participant{Scheme: s, Value: v}, nil
}

// ParseParticipant parses scheme::value into a normalized participant identifier
func (f *Factory) ParseParticipant(uri string) (Participant, error) {
	scheme, value, err := splitURI(uri)
	if err != nil {
		return Participant{}, err
	}
	return f.Participant(scheme, value)
}

// NormalizeParticipant re-applies the normalization rules to p
func (f *Factory) NormalizeParticipant(p Participant) Participant {
	s, v := normalize(f.participantSchemes, p.Scheme, p.Value)
	return Participant{Scheme: s, Value: v}
}

// DocumentType creates a normalized document type identifier
func (f *Factory) DocumentType(scheme, value string) (DocumentType, error) {
	if err := check(scheme, value); err != nil {
		return DocumentType{}, fmt.Errorf("document type identifier: %w", err)
	}
	s, v := normalize(f.documentSchemes, scheme, value)
	return DocumentType{Scheme: s, Value: v}, nil
}

// ParseDocumentType parses scheme::value into a normalized document type identifier
func (f *Factory) ParseDocumentType(uri string) (DocumentType, error) {
	scheme, value, err := splitURI(uri)
	if err != nil {
		return DocumentType{}, err
	}
	return f.DocumentType(scheme, value)
}

// Process creates a normalized process identifier
func (f *Factory) Process(scheme, value string) (Process, error) {
	if err := check(scheme, value); err != nil {
		return Process{}, fmt.Errorf("process identifier: %w", err)
	}
	s, v := normalize(f.processSchemes, scheme, value)
	return Process{Scheme: s, Value: v}, nil
}

// ParseProcess parses scheme::value into a normalized process identifier
func (f *Factory) ParseProcess(uri string) (Process, error) {
	scheme, value, err := splitURI(uri)
	if err != nil {
		return Process{}, err
	}
	return f.Process(scheme, value)
}

// ParseParticipant parses with DefaultFactory
func ParseParticipant(uri string) (Participant, error) {
	return DefaultFactory.ParseParticipant(uri)
}

// MustParseParticipant parses with DefaultFactory and panics on error.
// Intended for tests and constants.
func MustParseParticipant(uri string) Participant {
	p, err := DefaultFactory.ParseParticipant(uri)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseDocumentType parses with DefaultFactory
func ParseDocumentType(uri string) (DocumentType, error) {
	return DefaultFactory.ParseDocumentType(uri)
}

// MustParseDocumentType parses with DefaultFactory and panics on error
func MustParseDocumentType(uri string) DocumentType {
	d, err := DefaultFactory.ParseDocumentType(uri)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseProcess parses with DefaultFactory
func ParseProcess(uri string) (Process, error) {
	return DefaultFactory.ParseProcess(uri)
}

// MustParseProcess parses with DefaultFactory and panics on error
func MustParseProcess(uri string) Process {
	p, err := DefaultFactory.ParseProcess(uri)
	if err != nil {
		panic(err)
	}
	return p
}
