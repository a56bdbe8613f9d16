package siri

import (
	"encoding/xml"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	soapNamespace    = "http://schemas.xmlsoap.org/soap/envelope/"
	siriNamespace    = "http://www.siri.org.uk/siri"
	serviceNamespace = "http://new.webservice.namespace"
	xsiNamespace     = "http://www.w3.org/2001/XMLSchema-instance"

	requestVersion = "IL2.71"
)

type soapEnvelope struct {
	XMLName xml.Name `xml:"SOAP-ENV:Envelope"`
	EnvNS   string   `xml:"xmlns:SOAP-ENV,attr"`
	XsiNS   string   `xml:"xmlns:xsi,attr"`
	Header  struct{} `xml:"SOAP-ENV:Header"`
	Body    soapBody `xml:"SOAP-ENV:Body"`
}

type soapBody struct {
	Service monitoringService `xml:"siriWS:GetStopMonitoringService"`
}

type monitoringService struct {
	ServiceNS string         `xml:"xmlns:siriWS,attr"`
	SiriNS    string         `xml:"xmlns:siri,attr"`
	Request   serviceRequest `xml:"Request"`
}

type serviceRequest struct {
	Type         string        `xml:"xsi:type,attr"`
	Timestamp    string        `xml:"siri:RequestTimestamp"`
	RequestorRef typedValue    `xml:"siri:RequestorRef"`
	MessageID    typedValue    `xml:"siri:MessageIdentifier"`
	StopRequests []stopRequest `xml:"siri:StopMonitoringRequest"`
}

type stopRequest struct {
	Version         string     `xml:"version,attr"`
	Type            string     `xml:"xsi:type,attr"`
	Timestamp       string     `xml:"siri:RequestTimestamp"`
	MessageID       typedValue `xml:"siri:MessageIdentifier"`
	PreviewInterval string     `xml:"siri:PreviewInterval"`
	MonitoringRef   typedValue `xml:"siri:MonitoringRef"`
	MaxStopVisits   int        `xml:"siri:MaximumStopVisits"`
}

type typedValue struct {
	Type  string `xml:"xsi:type,attr"`
	Value string `xml:",chardata"`
}

// RequestEncoder builds SOAP stop-monitoring requests. Message identifiers
// increase monotonically across calls so concurrent batches stay
// distinguishable in provider logs.
type RequestEncoder struct {
	RequestorRef    string
	PreviewInterval string
	Now             func() time.Time

	msgID atomic.Int64
}

// NewRequestEncoder returns an encoder stamping requests with the given
// requestor reference and per-stop preview interval.
func NewRequestEncoder(requestorRef, previewInterval string) *RequestEncoder {
	return &RequestEncoder{
		RequestorRef:    requestorRef,
		PreviewInterval: previewInterval,
		Now:             time.Now,
	}
}

// Encode renders one batched request carrying a StopMonitoringRequest per
// stop code, each capped at maxVisits upcoming visits.
func (e *RequestEncoder) Encode(stopCodes []string, maxVisits int) ([]byte, error) {
	now := e.Now().Format(time.RFC3339)
	req := serviceRequest{
		Type:         "siri:ServiceRequestStructure",
		Timestamp:    now,
		RequestorRef: typedValue{Type: "siri:ParticipantRefStructure", Value: e.RequestorRef},
		MessageID:    typedValue{Type: "siri:MessageQualifierStructure", Value: e.nextID()},
	}
	for _, code := range stopCodes {
		req.StopRequests = append(req.StopRequests, stopRequest{
			Version:         requestVersion,
			Type:            "siri:StopMonitoringRequestStructure",
			Timestamp:       now,
			MessageID:       typedValue{Type: "siri:MessageQualifierStructure", Value: e.nextID()},
			PreviewInterval: e.PreviewInterval,
			MonitoringRef:   typedValue{Type: "siri:MonitoringRefStructure", Value: code},
			MaxStopVisits:   maxVisits,
		})
	}
	env := soapEnvelope{
		EnvNS: soapNamespace,
		XsiNS: xsiNamespace,
		Body: soapBody{
			Service: monitoringService{
				ServiceNS: serviceNamespace,
				SiriNS:    siriNamespace,
				Request:   req,
			},
		},
	}
	out, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func (e *RequestEncoder) nextID() string {
	return strconv.FormatInt(e.msgID.Add(1), 10)
}
