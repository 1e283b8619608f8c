package bulk

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

const fullDocument = `<?xml version="1.0" encoding="UTF-8"?>
<smp-data version="1.0">
  <servicegroup participantidentifier="iso6523-actorid-upis::9915:ABC" owner="alice" extension="&lt;x/&gt;">
    <serviceinformation documenttypeidentifier="busdox-docid-qns::urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##UBL-2.1">
      <process processidentifier="cenbii-procid-ubl::P1">
        <endpoint transportprofile="busdox-transport-as2" endpointreference="https://ap.example.org/as2"
                  requirebusinesslevelsignature="true" minimumauthenticationlevel="2"
                  serviceactivation="2024-01-01T00:00:00Z" serviceexpiration="2030-01-01T00:00:00Z"
                  certificate="MIIB" servicedescription="AP" technicalcontacturl="mailto:ops@example.org"
                  technicalinformationurl="https://example.org/info"/>
        <endpoint transportprofile="peppol-transport-as4-v2_0" endpointreference="https://ap.example.org/as4"/>
      </process>
    </serviceinformation>
    <redirect documenttypeidentifier="busdox-docid-qns::D2" href="https://other.example.org" subjectuniqueidentifier="CN=other"/>
  </servicegroup>
  <businesscard participantidentifier="iso6523-actorid-upis::9915:abc">
    <entity countrycode="SE" registrationdate="2020-05-17">
      <name language="sv">ACME AB</name>
      <name>ACME Ltd</name>
      <geoinfo>Stockholm</geoinfo>
      <identifier scheme="VAT" value="SE123"/>
      <website>https://acme.example.org</website>
      <contact type="support" name="Ops" phone="+46 8 123" email="ops@acme.example.org"/>
      <additionalinfo>none</additionalinfo>
    </entity>
  </businesscard>
</smp-data>`

func TestReadDocumentAndParse(t *testing.T) {
	root, err := ReadDocument(strings.NewReader(fullDocument))
	require.NoError(t, err)

	groups := root.SelectElements(ElemServiceGroup)
	require.Len(t, groups, 1)

	data, err := ParseServiceGroup(identifier.DefaultFactory, groups[0])
	require.NoError(t, err)
	assert.Equal(t, "iso6523-actorid-upis::9915:abc", data.Participant.URIEncoded())
	assert.Equal(t, "alice", data.Owner)
	assert.Equal(t, "<x/>", data.Extension)

	require.Len(t, data.Infos, 1)
	si := data.Infos[0]
	assert.Equal(t, "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##UBL-2.1", si.DocumentTypeID.Value)
	require.Len(t, si.Processes, 1)
	require.Len(t, si.Processes[0].Endpoints, 2)

	ep := si.Processes[0].Endpoints[0]
	assert.True(t, ep.RequireBusinessLevelSignature)
	assert.Equal(t, "2", ep.MinimumAuthenticationLevel)
	require.NotNil(t, ep.ServiceActivation)
	assert.Equal(t, 2024, ep.ServiceActivation.Year())
	assert.Equal(t, "MIIB", ep.Certificate)
	assert.Equal(t, "https://example.org/info", ep.TechnicalInformationURL)

	require.Len(t, data.Redirects, 1)
	assert.Equal(t, "CN=other", data.Redirects[0].SubjectUniqueIdentifier)

	cards := root.SelectElements(ElemBusinessCard)
	require.Len(t, cards, 1)
	bc, err := ParseBusinessCard(identifier.DefaultFactory, cards[0])
	require.NoError(t, err)
	require.Len(t, bc.Entities, 1)
	entity := bc.Entities[0]
	assert.Len(t, entity.Names, 2)
	assert.Equal(t, "sv", entity.Names[0].Language)
	assert.Equal(t, "Stockholm", entity.GeographicalInformation)
	assert.Equal(t, []storage.BusinessCardIdentifier{{Scheme: "VAT", Value: "SE123"}}, entity.Identifiers)
	assert.Equal(t, "Ops", entity.Contacts[0].Name)
	require.NotNil(t, entity.RegistrationDate)
	assert.Equal(t, "2020-05-17", entity.RegistrationDate.Format("2006-01-02"))
}

func TestReadDocument_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "this is not xml <"},
		{"empty", ""},
		{"wrong root", `<smp version="1.0"/>`},
		{"wrong version", `<smp-data version="2.0"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDocument(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestParseServiceGroup_Errors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"missing participant", `<servicegroup owner="alice"/>`},
		{"bad participant", `<servicegroup participantidentifier="no-separator"/>`},
		{"missing document type", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a"><serviceinformation/></servicegroup>`},
		{"missing endpoint reference", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a">
			<serviceinformation documenttypeidentifier="busdox-docid-qns::D1">
			<process processidentifier="cenbii-procid-ubl::P1"><endpoint transportprofile="busdox-transport-as2"/></process>
			</serviceinformation></servicegroup>`},
		{"bad boolean", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a">
			<serviceinformation documenttypeidentifier="busdox-docid-qns::D1">
			<process processidentifier="cenbii-procid-ubl::P1"><endpoint transportprofile="t" endpointreference="u" requirebusinesslevelsignature="maybe"/></process>
			</serviceinformation></servicegroup>`},
		{"bad activation", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a">
			<serviceinformation documenttypeidentifier="busdox-docid-qns::D1">
			<process processidentifier="cenbii-procid-ubl::P1"><endpoint transportprofile="t" endpointreference="u" serviceactivation="yesterday"/></process>
			</serviceinformation></servicegroup>`},
		{"duplicate process", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a">
			<serviceinformation documenttypeidentifier="busdox-docid-qns::D1">
			<process processidentifier="cenbii-procid-ubl::P1"/><process processidentifier="cenbii-procid-ubl::P1"/>
			</serviceinformation></servicegroup>`},
		{"redirect without href", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a">
			<redirect documenttypeidentifier="busdox-docid-qns::D1" subjectuniqueidentifier="CN=x"/></servicegroup>`},
		{"unknown child", `<servicegroup participantidentifier="iso6523-actorid-upis::9915:a"><bogus/></servicegroup>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := etree.NewDocument()
			require.NoError(t, doc.ReadFromString(tt.xml))
			_, err := ParseServiceGroup(identifier.DefaultFactory, doc.Root())
			assert.Error(t, err)
		})
	}
}
