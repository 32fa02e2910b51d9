// Package storegate is a storefront gateway that puts payment providers and
// shipping carriers behind one HTTP API.
//
// # Providers
//
// Payments:
//   - PayTR: hosted iframe checkout with hash-verified callbacks
//   - VakıfBank: virtual POS with 3D Secure enrollment
//   - Kuveyt Türk: 3D Secure virtual POS over XML
//
// Shipping:
//   - DHL Express: REST rates, shipments and tracking
//   - Yurtiçi Kargo: SOAP shipments, local tariff
//   - PTT Kargo: SOAP shipments, value priced tariff
//
// Each integration lives under payment/{provider} or shipping/{carrier} and
// registers itself from an init function, so a blank import is enough:
//
//	import _ "github.com/mstgnz/storegate/shipping/yurtici"
//
// # Configuration
//
// Provider credentials are read from the environment at startup
// (PAYTR_MERCHANT_ID, YURTICI_USERNAME, ...) and may be changed at runtime
// through /v1/config/{kind}/{provider}. Runtime settings are persisted in SQLite.
//
// # HTTP API
//
//	GET    /v1/payments/providers
//	POST   /v1/payments/{provider}
//	GET    /v1/payments/{provider}/{paymentID}
//	POST   /v1/payments/{provider}/{paymentID}/refund
//	POST   /v1/callback/{provider}
//
//	GET    /v1/shipping/providers
//	POST   /v1/shipping/{provider}/rates
//	POST   /v1/shipping/{provider}/shipments
//	GET    /v1/shipping/{provider}/tracking/{trackingNumber}
//
// Payment and shipment creation are idempotent per provider and order id.
// A repeated request returns the first result with the Idempotent-Replayed header.
//
// # Logging
//
// Every provider call is logged to stdout and, with ENABLE_OPENSEARCH_LOGGING=true,
// indexed in OpenSearch where /v1/logs can search it.
//
// See examples/ for library usage without the HTTP server.
package storegate
