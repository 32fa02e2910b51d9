package provider

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

const soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	EnvNS   string     `xml:"xmlns:soapenv,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Header  struct{}   `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

// Content takes its element name from the XMLName of the operation struct
type soapBody struct {
	Content any
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type soapResponse struct {
	Body struct {
		Fault   *soapFault `xml:"Fault"`
		Content []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

// EncodeSOAP wraps an operation in a SOAP 1.1 envelope. When prefix is set
// the envelope declares xmlns:<prefix>=namespace for the operation element.
func EncodeSOAP(prefix, namespace string, operation any) ([]byte, error) {
	env := soapEnvelope{EnvNS: soapEnvelopeNS, Body: soapBody{Content: operation}}
	if prefix != "" {
		env.Attrs = []xml.Attr{{Name: xml.Name{Local: "xmlns:" + prefix}, Value: namespace}}
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SOAP envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// DecodeSOAP unmarshals the first element of the SOAP body into out.
// A SOAP fault or an unreadable envelope is reported as ErrRejected.
func DecodeSOAP(data []byte, out any) error {
	var env soapResponse
	if err := xml.Unmarshal(data, &env); err != nil {
		return Rejectedf("malformed SOAP response: %v", err)
	}
	if fault := env.Body.Fault; fault != nil {
		return Rejectedf("SOAP fault %s: %s", strings.TrimSpace(fault.Code), strings.TrimSpace(fault.String))
	}
	if err := xml.Unmarshal(env.Body.Content, out); err != nil {
		return Rejectedf("unexpected SOAP body: %v", err)
	}
	return nil
}

// IsSOAPFault reports a 500 answer carrying a SOAP fault. Faults are final
// and must not be retried.
func IsSOAPFault(statusCode int, body []byte) bool {
	return statusCode == 500 && (bytes.Contains(body, []byte(":Fault>")) || bytes.Contains(body, []byte("<Fault>")))
}

// SOAPFaultError prefers the fault text of a rejected SOAP answer over the bare HTTP error
func SOAPFaultError(resp *HTTPResponse, err error) error {
	if resp == nil || !IsSOAPFault(resp.StatusCode, resp.Body) {
		return err
	}
	if faultErr := DecodeSOAP(resp.Body, &struct{}{}); faultErr != nil {
		return faultErr
	}
	return err
}
