package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// KeySeparator joins the parts of composite keys
const KeySeparator = "|"

// ServiceGroupKey returns the collection key of a participant's service group
func ServiceGroupKey(pid identifier.Participant) string {
	return pid.URIEncoded()
}

// DocumentKey returns the collection key shared by service information and
// redirects of one participant and document type
func DocumentKey(pid identifier.Participant, docType identifier.DocumentType) string {
	return pid.URIEncoded() + KeySeparator + docType.URIEncoded()
}

// ServiceGroup is the registry record of one participant
type ServiceGroup struct {
	ParticipantID identifier.Participant `bson:"participant_id" json:"participantId"`
	OwnerID       string                 `bson:"owner_id" json:"ownerId"`
	Extension     string                 `bson:"extension,omitempty" json:"extension,omitempty"`
	CreatedAt     time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time              `bson:"updated_at" json:"updatedAt"`
}

// Key implements Entity
func (sg *ServiceGroup) Key() string { return ServiceGroupKey(sg.ParticipantID) }

// Clone implements Entity
func (sg *ServiceGroup) Clone() *ServiceGroup {
	c := *sg
	return &c
}

// ServiceInformation is the direct registration of one document type
type ServiceInformation struct {
	ServiceGroupID identifier.Participant  `bson:"service_group_id" json:"serviceGroupId"`
	DocumentTypeID identifier.DocumentType `bson:"document_type_id" json:"documentTypeId"`
	Processes      []*Process              `bson:"processes" json:"processes"`
	Extension      string                  `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Key implements Entity
func (si *ServiceInformation) Key() string { return DocumentKey(si.ServiceGroupID, si.DocumentTypeID) }

// Clone implements Entity
func (si *ServiceInformation) Clone() *ServiceInformation {
	c := *si
	c.Processes = make([]*Process, len(si.Processes))
	for i, p := range si.Processes {
		c.Processes[i] = p.Clone()
	}
	return &c
}

// GetProcess returns the process with the given ID
func (si *ServiceInformation) GetProcess(id identifier.Process) (*Process, bool) {
	for _, p := range si.Processes {
		if p.ProcessID.Equal(id) {
			return p, true
		}
	}
	return nil, false
}

// AddProcess appends a process. Duplicate process IDs are rejected.
func (si *ServiceInformation) AddProcess(p *Process) error {
	if _, ok := si.GetProcess(p.ProcessID); ok {
		return fmt.Errorf("%w: process %s already exists in %s", ErrConflict, p.ProcessID, si.DocumentTypeID)
	}
	si.Processes = append(si.Processes, p)
	return nil
}

// SetProcess adds p or replaces the process with the same ID in place
func (si *ServiceInformation) SetProcess(p *Process) {
	for i, existing := range si.Processes {
		if existing.ProcessID.Equal(p.ProcessID) {
			si.Processes[i] = p
			return
		}
	}
	si.Processes = append(si.Processes, p)
}

// DeleteProcess removes the process with the given ID
func (si *ServiceInformation) DeleteProcess(id identifier.Process) bool {
	n := len(si.Processes)
	si.Processes = slices.DeleteFunc(si.Processes, func(p *Process) bool {
		return p.ProcessID.Equal(id)
	})
	return len(si.Processes) != n
}

// EndpointCount returns the number of endpoints over all processes
func (si *ServiceInformation) EndpointCount() int {
	n := 0
	for _, p := range si.Processes {
		n += len(p.Endpoints)
	}
	return n
}

// Process holds the endpoints of one business process
type Process struct {
	ProcessID identifier.Process `bson:"process_id" json:"processId"`
	Endpoints []*Endpoint        `bson:"endpoints" json:"endpoints"`
	Extension string             `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Clone returns a deep copy
func (p *Process) Clone() *Process {
	c := *p
	c.Endpoints = make([]*Endpoint, len(p.Endpoints))
	for i, e := range p.Endpoints {
		c.Endpoints[i] = e.Clone()
	}
	return &c
}

// GetEndpoint returns the endpoint for a transport profile
func (p *Process) GetEndpoint(transportProfile string) (*Endpoint, bool) {
	for _, e := range p.Endpoints {
		if e.TransportProfile == transportProfile {
			return e, true
		}
	}
	return nil, false
}

// AddEndpoint appends an endpoint. Duplicate transport profiles are rejected.
func (p *Process) AddEndpoint(e *Endpoint) error {
	if _, ok := p.GetEndpoint(e.TransportProfile); ok {
		return fmt.Errorf("%w: endpoint for transport profile %s already exists in process %s", ErrConflict, e.TransportProfile, p.ProcessID)
	}
	p.Endpoints = append(p.Endpoints, e)
	return nil
}

// SetEndpoint adds e or overwrites the endpoint with the same transport profile
func (p *Process) SetEndpoint(e *Endpoint) {
	for i, existing := range p.Endpoints {
		if existing.TransportProfile == e.TransportProfile {
			p.Endpoints[i] = e
			return
		}
	}
	p.Endpoints = append(p.Endpoints, e)
}

// DeleteEndpoint removes the endpoint for a transport profile
func (p *Process) DeleteEndpoint(transportProfile string) bool {
	n := len(p.Endpoints)
	p.Endpoints = slices.DeleteFunc(p.Endpoints, func(e *Endpoint) bool {
		return e.TransportProfile == transportProfile
	})
	return len(p.Endpoints) != n
}

// Endpoint is a technical endpoint of a process
type Endpoint struct {
	// TransportProfile is the transport protocol (e.g., "peppol-transport-as4-v2_0")
	TransportProfile string `bson:"transport_profile" json:"transportProfile"`
	// EndpointReference is the URL of the access point
	EndpointReference string `bson:"endpoint_reference" json:"endpointReference"`
	// Certificate is the endpoint certificate (base64 DER or PEM)
	Certificate                   string     `bson:"certificate" json:"certificate"`
	RequireBusinessLevelSignature bool       `bson:"require_business_level_signature" json:"requireBusinessLevelSignature"`
	MinimumAuthenticationLevel    string     `bson:"minimum_authentication_level,omitempty" json:"minimumAuthenticationLevel,omitempty"`
	ServiceActivation             *time.Time `bson:"service_activation,omitempty" json:"serviceActivation,omitempty"`
	ServiceExpiration             *time.Time `bson:"service_expiration,omitempty" json:"serviceExpiration,omitempty"`
	ServiceDescription            string     `bson:"service_description,omitempty" json:"serviceDescription,omitempty"`
	TechnicalContactURL           string     `bson:"technical_contact_url,omitempty" json:"technicalContactUrl,omitempty"`
	TechnicalInformationURL       string     `bson:"technical_information_url,omitempty" json:"technicalInformationUrl,omitempty"`
	Extension                     string     `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Clone returns a deep copy
func (e *Endpoint) Clone() *Endpoint {
	c := *e
	if e.ServiceActivation != nil {
		t := *e.ServiceActivation
		c.ServiceActivation = &t
	}
	if e.ServiceExpiration != nil {
		t := *e.ServiceExpiration
		c.ServiceExpiration = &t
	}
	return &c
}

// IsActiveAt reports whether t lies inside the activation window
func (e *Endpoint) IsActiveAt(t time.Time) bool {
	if e.ServiceActivation != nil && e.ServiceActivation.After(t) {
		return false
	}
	if e.ServiceExpiration != nil && e.ServiceExpiration.Before(t) {
		return false
	}
	return true
}

// Redirect points a document type of a participant to another SMP
type Redirect struct {
	ServiceGroupID          identifier.Participant  `bson:"service_group_id" json:"serviceGroupId"`
	DocumentTypeID          identifier.DocumentType `bson:"document_type_id" json:"documentTypeId"`
	TargetHref              string                  `bson:"target_href" json:"targetHref"`
	SubjectUniqueIdentifier string                  `bson:"subject_unique_identifier" json:"subjectUniqueIdentifier"`
	Certificate             string                  `bson:"certificate,omitempty" json:"certificate,omitempty"`
	Extension               string                  `bson:"extension,omitempty" json:"extension,omitempty"`
}

// Key implements Entity
func (r *Redirect) Key() string { return DocumentKey(r.ServiceGroupID, r.DocumentTypeID) }

// Clone implements Entity
func (r *Redirect) Clone() *Redirect {
	c := *r
	return &c
}

// BusinessCard holds the human readable listing data of a participant
type BusinessCard struct {
	ServiceGroupID identifier.Participant `bson:"service_group_id" json:"serviceGroupId"`
	Entities       []*BusinessCardEntity  `bson:"entities" json:"entities"`
}

// Key implements Entity
func (bc *BusinessCard) Key() string { return ServiceGroupKey(bc.ServiceGroupID) }

// Clone implements Entity
func (bc *BusinessCard) Clone() *BusinessCard {
	c := *bc
	c.Entities = make([]*BusinessCardEntity, len(bc.Entities))
	for i, e := range bc.Entities {
		c.Entities[i] = e.Clone()
	}
	return &c
}

// BusinessCardEntity is one legal entity listed on a business card
type BusinessCardEntity struct {
	ID                      string                   `bson:"id" json:"id"`
	Names                   []BusinessCardName       `bson:"names" json:"names"`
	CountryCode             string                   `bson:"country_code" json:"countryCode"`
	GeographicalInformation string                   `bson:"geographical_information,omitempty" json:"geographicalInformation,omitempty"`
	Identifiers             []BusinessCardIdentifier `bson:"identifiers,omitempty" json:"identifiers,omitempty"`
	WebsiteURIs             []string                 `bson:"website_uris,omitempty" json:"websiteUris,omitempty"`
	Contacts                []BusinessCardContact    `bson:"contacts,omitempty" json:"contacts,omitempty"`
	AdditionalInformation   string                   `bson:"additional_information,omitempty" json:"additionalInformation,omitempty"`
	RegistrationDate        *time.Time               `bson:"registration_date,omitempty" json:"registrationDate,omitempty"`
}

// Clone returns a deep copy
func (e *BusinessCardEntity) Clone() *BusinessCardEntity {
	c := *e
	c.Names = slices.Clone(e.Names)
	c.Identifiers = slices.Clone(e.Identifiers)
	c.WebsiteURIs = slices.Clone(e.WebsiteURIs)
	c.Contacts = slices.Clone(e.Contacts)
	if e.RegistrationDate != nil {
		t := *e.RegistrationDate
		c.RegistrationDate = &t
	}
	return &c
}

// BusinessCardName is a name in an optional language
type BusinessCardName struct {
	Name     string `bson:"name" json:"name"`
	Language string `bson:"language,omitempty" json:"language,omitempty"`
}

// BusinessCardIdentifier is an additional identifier of an entity
type BusinessCardIdentifier struct {
	ID     string `bson:"id" json:"id"`
	Scheme string `bson:"scheme" json:"scheme"`
	Value  string `bson:"value" json:"value"`
}

// BusinessCardContact is a contact point of an entity
type BusinessCardContact struct {
	ID          string `bson:"id" json:"id"`
	Type        string `bson:"type,omitempty" json:"type,omitempty"`
	Name        string `bson:"name,omitempty" json:"name,omitempty"`
	PhoneNumber string `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
}
