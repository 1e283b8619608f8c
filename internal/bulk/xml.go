package bulk

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Element and attribute names of the exchange format
const (
	ElemRoot               = "smp-data"
	ElemServiceGroup       = "servicegroup"
	ElemServiceInformation = "serviceinformation"
	ElemProcess            = "process"
	ElemEndpoint           = "endpoint"
	ElemRedirect           = "redirect"
	ElemBusinessCard       = "businesscard"
	ElemEntity             = "entity"
	ElemName               = "name"
	ElemGeoInfo            = "geoinfo"
	ElemIdentifier         = "identifier"
	ElemWebsite            = "website"
	ElemContact            = "contact"
	ElemAdditionalInfo     = "additionalinfo"

	AttrVersion                       = "version"
	AttrParticipant                   = "participantidentifier"
	AttrOwner                         = "owner"
	AttrExtension                     = "extension"
	AttrDocumentType                  = "documenttypeidentifier"
	AttrProcess                       = "processidentifier"
	AttrTransportProfile              = "transportprofile"
	AttrEndpointReference             = "endpointreference"
	AttrRequireBusinessLevelSignature = "requirebusinesslevelsignature"
	AttrMinimumAuthenticationLevel    = "minimumauthenticationlevel"
	AttrServiceActivation             = "serviceactivation"
	AttrServiceExpiration             = "serviceexpiration"
	AttrCertificate                   = "certificate"
	AttrServiceDescription            = "servicedescription"
	AttrTechnicalContactURL           = "technicalcontacturl"
	AttrTechnicalInformationURL       = "technicalinformationurl"
	AttrHref                          = "href"
	AttrSubjectUniqueIdentifier       = "subjectuniqueidentifier"
	AttrID                            = "id"
	AttrCountryCode                   = "countrycode"
	AttrRegistrationDate              = "registrationdate"
	AttrLanguage                      = "language"
	AttrScheme                        = "scheme"
	AttrValue                         = "value"
	AttrType                          = "type"
	AttrName                          = "name"
	AttrPhone                         = "phone"
	AttrEmail                         = "email"

	// FormatVersion is written by the exporter and accepted by the importer
	FormatVersion = "1.0"

	dateLayout = "2006-01-02"
)

// ErrFormat is returned for documents that do not follow the exchange format
var ErrFormat = errors.New("invalid SMP data document")

// ServiceGroupData is one parsed <servicegroup> with its children
type ServiceGroupData struct {
	Participant identifier.Participant
	Owner       string
	Extension   string
	Infos       []*storage.ServiceInformation
	Redirects   []*storage.Redirect
}

// ReadDocument parses r and returns the <smp-data> root element
func ReadDocument(r io.Reader) (*etree.Element, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	root := doc.Root()
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	return root, nil
}

func checkRoot(root *etree.Element) error {
	if root == nil {
		return fmt.Errorf("%w: empty document", ErrFormat)
	}
	if root.Tag != ElemRoot {
		return fmt.Errorf("%w: unexpected root element %q", ErrFormat, root.Tag)
	}
	if v := root.SelectAttrValue(AttrVersion, FormatVersion); v != FormatVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrFormat, v)
	}
	return nil
}

func requiredAttr(e *etree.Element, name string) (string, error) {
	v := strings.TrimSpace(e.SelectAttrValue(name, ""))
	if v == "" {
		return "", fmt.Errorf("<%s> is missing attribute %q", e.Tag, name)
	}
	return v, nil
}

func optionalTime(e *etree.Element, name string) (*time.Time, error) {
	v := strings.TrimSpace(e.SelectAttrValue(name, ""))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("<%s> attribute %q: %w", e.Tag, name, err)
	}
	return &t, nil
}

// ParseParticipant reads the participant attribute of a <servicegroup> or
// <businesscard> element
func ParseParticipant(f *identifier.Factory, e *etree.Element) (identifier.Participant, error) {
	v, err := requiredAttr(e, AttrParticipant)
	if err != nil {
		return identifier.Participant{}, err
	}
	return f.ParseParticipant(v)
}

// ParseServiceGroup parses a <servicegroup> element
func ParseServiceGroup(f *identifier.Factory, e *etree.Element) (*ServiceGroupData, error) {
	pid, err := ParseParticipant(f, e)
	if err != nil {
		return nil, err
	}
	data := &ServiceGroupData{
		Participant: pid,
		Owner:       strings.TrimSpace(e.SelectAttrValue(AttrOwner, "")),
		Extension:   e.SelectAttrValue(AttrExtension, ""),
	}

	for _, child := range e.ChildElements() {
		switch child.Tag {
		case ElemServiceInformation:
			si, err := parseServiceInformation(f, pid, child)
			if err != nil {
				return nil, err
			}
			data.Infos = append(data.Infos, si)
		case ElemRedirect:
			r, err := parseRedirect(f, pid, child)
			if err != nil {
				return nil, err
			}
			data.Redirects = append(data.Redirects, r)
		default:
			return nil, fmt.Errorf("unexpected element <%s> in <%s>", child.Tag, ElemServiceGroup)
		}
	}
	return data, nil
}

func parseServiceInformation(f *identifier.Factory, pid identifier.Participant, e *etree.Element) (*storage.ServiceInformation, error) {
	v, err := requiredAttr(e, AttrDocumentType)
	if err != nil {
		return nil, err
	}
	docType, err := f.ParseDocumentType(v)
	if err != nil {
		return nil, err
	}

	si := &storage.ServiceInformation{
		ServiceGroupID: pid,
		DocumentTypeID: docType,
		Extension:      e.SelectAttrValue(AttrExtension, ""),
	}
	for _, pe := range e.SelectElements(ElemProcess) {
		p, err := parseProcess(f, pe)
		if err != nil {
			return nil, fmt.Errorf("document type %s: %w", docType, err)
		}
		if err := si.AddProcess(p); err != nil {
			return nil, fmt.Errorf("document type %s: %w", docType, err)
		}
	}
	return si, nil
}

func parseProcess(f *identifier.Factory, e *etree.Element) (*storage.Process, error) {
	v, err := requiredAttr(e, AttrProcess)
	if err != nil {
		return nil, err
	}
	procID, err := f.ParseProcess(v)
	if err != nil {
		return nil, err
	}

	p := &storage.Process{ProcessID: procID, Extension: e.SelectAttrValue(AttrExtension, "")}
	for _, ee := range e.SelectElements(ElemEndpoint) {
		ep, err := parseEndpoint(ee)
		if err != nil {
			return nil, fmt.Errorf("process %s: %w", procID, err)
		}
		if err := p.AddEndpoint(ep); err != nil {
			return nil, fmt.Errorf("process %s: %w", procID, err)
		}
	}
	return p, nil
}

func parseEndpoint(e *etree.Element) (*storage.Endpoint, error) {
	profile, err := requiredAttr(e, AttrTransportProfile)
	if err != nil {
		return nil, err
	}
	ref, err := requiredAttr(e, AttrEndpointReference)
	if err != nil {
		return nil, err
	}

	ep := &storage.Endpoint{
		TransportProfile:           profile,
		EndpointReference:          ref,
		Certificate:                strings.TrimSpace(e.SelectAttrValue(AttrCertificate, "")),
		MinimumAuthenticationLevel: e.SelectAttrValue(AttrMinimumAuthenticationLevel, ""),
		ServiceDescription:         e.SelectAttrValue(AttrServiceDescription, ""),
		TechnicalContactURL:        e.SelectAttrValue(AttrTechnicalContactURL, ""),
		TechnicalInformationURL:    e.SelectAttrValue(AttrTechnicalInformationURL, ""),
		Extension:                  e.SelectAttrValue(AttrExtension, ""),
	}

	if v := e.SelectAttrValue(AttrRequireBusinessLevelSignature, ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("<%s> attribute %q: %w", e.Tag, AttrRequireBusinessLevelSignature, err)
		}
		ep.RequireBusinessLevelSignature = b
	}
	if ep.ServiceActivation, err = optionalTime(e, AttrServiceActivation); err != nil {
		return nil, err
	}
	if ep.ServiceExpiration, err = optionalTime(e, AttrServiceExpiration); err != nil {
		return nil, err
	}
	return ep, nil
}

func parseRedirect(f *identifier.Factory, pid identifier.Participant, e *etree.Element) (*storage.Redirect, error) {
	v, err := requiredAttr(e, AttrDocumentType)
	if err != nil {
		return nil, err
	}
	docType, err := f.ParseDocumentType(v)
	if err != nil {
		return nil, err
	}
	href, err := requiredAttr(e, AttrHref)
	if err != nil {
		return nil, err
	}
	subject, err := requiredAttr(e, AttrSubjectUniqueIdentifier)
	if err != nil {
		return nil, err
	}
	return &storage.Redirect{
		ServiceGroupID:          pid,
		DocumentTypeID:          docType,
		TargetHref:              href,
		SubjectUniqueIdentifier: subject,
		Certificate:             strings.TrimSpace(e.SelectAttrValue(AttrCertificate, "")),
		Extension:               e.SelectAttrValue(AttrExtension, ""),
	}, nil
}

// ParseBusinessCard parses a <businesscard> element
func ParseBusinessCard(f *identifier.Factory, e *etree.Element) (*storage.BusinessCard, error) {
	pid, err := ParseParticipant(f, e)
	if err != nil {
		return nil, err
	}
	bc := &storage.BusinessCard{ServiceGroupID: pid}
	for _, ee := range e.SelectElements(ElemEntity) {
		entity, err := parseEntity(ee)
		if err != nil {
			return nil, err
		}
		bc.Entities = append(bc.Entities, entity)
	}
	return bc, nil
}

func parseEntity(e *etree.Element) (*storage.BusinessCardEntity, error) {
	entity := &storage.BusinessCardEntity{
		ID:          e.SelectAttrValue(AttrID, ""),
		CountryCode: e.SelectAttrValue(AttrCountryCode, ""),
	}
	if v := e.SelectAttrValue(AttrRegistrationDate, ""); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("<%s> attribute %q: %w", e.Tag, AttrRegistrationDate, err)
		}
		entity.RegistrationDate = &t
	}

	for _, child := range e.ChildElements() {
		switch child.Tag {
		case ElemName:
			entity.Names = append(entity.Names, storage.BusinessCardName{
				Name:     child.Text(),
				Language: child.SelectAttrValue(AttrLanguage, ""),
			})
		case ElemGeoInfo:
			entity.GeographicalInformation = child.Text()
		case ElemIdentifier:
			entity.Identifiers = append(entity.Identifiers, storage.BusinessCardIdentifier{
				ID:     child.SelectAttrValue(AttrID, ""),
				Scheme: child.SelectAttrValue(AttrScheme, ""),
				Value:  child.SelectAttrValue(AttrValue, ""),
			})
		case ElemWebsite:
			entity.WebsiteURIs = append(entity.WebsiteURIs, child.Text())
		case ElemContact:
			entity.Contacts = append(entity.Contacts, storage.BusinessCardContact{
				ID:          child.SelectAttrValue(AttrID, ""),
				Type:        child.SelectAttrValue(AttrType, ""),
				Name:        child.SelectAttrValue(AttrName, ""),
				PhoneNumber: child.SelectAttrValue(AttrPhone, ""),
				Email:       child.SelectAttrValue(AttrEmail, ""),
			})
		case ElemAdditionalInfo:
			entity.AdditionalInformation = child.Text()
		default:
			return nil, fmt.Errorf("unexpected element <%s> in <%s>", child.Tag, ElemEntity)
		}
	}
	return entity, nil
}

// NewDocument creates an empty exchange document
func NewDocument() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(ElemRoot)
	root.CreateAttr(AttrVersion, FormatVersion)
	return doc, root
}

func setOptional(e *etree.Element, name, value string) {
	if value != "" {
		e.CreateAttr(name, value)
	}
}

// WriteServiceGroup appends a <servicegroup> element to parent
func WriteServiceGroup(parent *etree.Element, sg *storage.ServiceGroup, infos []*storage.ServiceInformation, redirects []*storage.Redirect) *etree.Element {
	e := parent.CreateElement(ElemServiceGroup)
	e.CreateAttr(AttrParticipant, sg.ParticipantID.URIEncoded())
	e.CreateAttr(AttrOwner, sg.OwnerID)
	setOptional(e, AttrExtension, sg.Extension)

	for _, si := range infos {
		sie := e.CreateElement(ElemServiceInformation)
		sie.CreateAttr(AttrDocumentType, si.DocumentTypeID.URIEncoded())
		setOptional(sie, AttrExtension, si.Extension)
		for _, p := range si.Processes {
			writeProcess(sie, p)
		}
	}
	for _, r := range redirects {
		re := e.CreateElement(ElemRedirect)
		re.CreateAttr(AttrDocumentType, r.DocumentTypeID.URIEncoded())
		re.CreateAttr(AttrHref, r.TargetHref)
		re.CreateAttr(AttrSubjectUniqueIdentifier, r.SubjectUniqueIdentifier)
		setOptional(re, AttrCertificate, r.Certificate)
		setOptional(re, AttrExtension, r.Extension)
	}
	return e
}

func writeProcess(parent *etree.Element, p *storage.Process) {
	pe := parent.CreateElement(ElemProcess)
	pe.CreateAttr(AttrProcess, p.ProcessID.URIEncoded())
	setOptional(pe, AttrExtension, p.Extension)

	for _, ep := range p.Endpoints {
		ee := pe.CreateElement(ElemEndpoint)
		ee.CreateAttr(AttrTransportProfile, ep.TransportProfile)
		ee.CreateAttr(AttrEndpointReference, ep.EndpointReference)
		ee.CreateAttr(AttrRequireBusinessLevelSignature, strconv.FormatBool(ep.RequireBusinessLevelSignature))
		setOptional(ee, AttrMinimumAuthenticationLevel, ep.MinimumAuthenticationLevel)
		if ep.ServiceActivation != nil {
			ee.CreateAttr(AttrServiceActivation, ep.ServiceActivation.UTC().Format(time.RFC3339))
		}
		if ep.ServiceExpiration != nil {
			ee.CreateAttr(AttrServiceExpiration, ep.ServiceExpiration.UTC().Format(time.RFC3339))
		}
		setOptional(ee, AttrCertificate, ep.Certificate)
		setOptional(ee, AttrServiceDescription, ep.ServiceDescription)
		setOptional(ee, AttrTechnicalContactURL, ep.TechnicalContactURL)
		setOptional(ee, AttrTechnicalInformationURL, ep.TechnicalInformationURL)
		setOptional(ee, AttrExtension, ep.Extension)
	}
}

// WriteBusinessCard appends a <businesscard> element to parent
func WriteBusinessCard(parent *etree.Element, bc *storage.BusinessCard) *etree.Element {
	e := parent.CreateElement(ElemBusinessCard)
	e.CreateAttr(AttrParticipant, bc.ServiceGroupID.URIEncoded())

	for _, entity := range bc.Entities {
		ee := e.CreateElement(ElemEntity)
		setOptional(ee, AttrID, entity.ID)
		setOptional(ee, AttrCountryCode, entity.CountryCode)
		if entity.RegistrationDate != nil {
			ee.CreateAttr(AttrRegistrationDate, entity.RegistrationDate.Format(dateLayout))
		}
		for _, n := range entity.Names {
			ne := ee.CreateElement(ElemName)
			setOptional(ne, AttrLanguage, n.Language)
			ne.SetText(n.Name)
		}
		if entity.GeographicalInformation != "" {
			ee.CreateElement(ElemGeoInfo).SetText(entity.GeographicalInformation)
		}
		for _, id := range entity.Identifiers {
			ie := ee.CreateElement(ElemIdentifier)
			setOptional(ie, AttrID, id.ID)
			ie.CreateAttr(AttrScheme, id.Scheme)
			ie.CreateAttr(AttrValue, id.Value)
		}
		for _, uri := range entity.WebsiteURIs {
			ee.CreateElement(ElemWebsite).SetText(uri)
		}
		for _, c := range entity.Contacts {
			ce := ee.CreateElement(ElemContact)
			setOptional(ce, AttrID, c.ID)
			setOptional(ce, AttrType, c.Type)
			setOptional(ce, AttrName, c.Name)
			setOptional(ce, AttrPhone, c.PhoneNumber)
			setOptional(ce, AttrEmail, c.Email)
		}
		if entity.AdditionalInformation != "" {
			ee.CreateElement(ElemAdditionalInfo).SetText(entity.AdditionalInformation)
		}
	}
	return e
}
