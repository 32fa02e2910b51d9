// Package provider is the shared kernel of the payment and shipping gateways.
//
// It holds what every gateway integration needs and nothing specific to one:
//
//   - Registry: name and alias lookup behind the payment and shipping factories
//   - ProviderHTTPClient: JSON, form, XML and SOAP calls with retries for idempotent requests
//   - Signer: the HMAC and SHA digests gateways use to sign requests and callbacks
//   - Idempotent: replay of completed operations and de-duplication of concurrent ones
//   - ProviderCache: reuse of built gateways while their settings are unchanged
//   - the error taxonomy (ErrInvalidConfig, ErrTimeout, ErrOutcomeUnknown, ...)
//
// Gateways wrap failures in *Error so callers can tell the operation and the
// provider apart while errors.Is still reaches the sentinel:
//
//	resp, err := client.SendJSON(ctx, &provider.HTTPRequest{
//	    Method:         http.MethodPost,
//	    Endpoint:       "/shipments",
//	    Body:           payload,
//	    IdempotencyKey: orderID,
//	})
//	if err != nil {
//	    return nil, provider.NewError("DHL", "createShipment", "failed to create DHL shipment", err)
//	}
package provider
