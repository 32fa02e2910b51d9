// Package handler implements the HTTP API of storegate.
//
// Handlers decode and validate request bodies, resolve the payment gateway or
// carrier named in the URL and translate provider errors into HTTP answers:
//
//	unsupported provider      404
//	provider not configured   503
//	invalid configuration     422
//	invalid request           400
//	outcome unknown           202 (errorCode "outcome_unknown")
//	timeout                   504
//	anything else             502
//
// Successful creates answer 201. A replayed idempotent result answers 200 and
// carries the Idempotent-Replayed header.
//
// Routes are wired in router/v1:
//
//	r.Post("/payments/{provider}", paymentHandler.CreatePayment)
//	r.Post("/shipping/{provider}/shipments", shippingHandler.CreateShipment)
package handler
