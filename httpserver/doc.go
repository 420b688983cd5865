/*
Package httpserver serves a read-only JSON API over the music registry.

It exposes the cached fee schedule, the record catalog and the access rules,
so clients without a ledger connection can browse registrations and learn
what a certificate costs. Payments are never made by the server; a viewer who
owes the access fee gets 402 Payment Required with the amount and pays from
their own wallet.

# Endpoints

  - GET /api/fees - registration and access fee in wei (503 until loaded)
  - GET /api/songs[?registrant=0x...] - records, newest first, without content ids
  - GET /api/songs/{id} - a single record
  - GET /api/songs/{id}/access?viewer=0x... - free or fee due
  - POST /api/challenge?viewer=0x... - one-time nonce and message to sign
  - GET /api/songs/{id}/certificate - certificate or 402, for a signed challenge
  - POST /api/refresh - reload fees and catalog, when enabled
  - GET /livez, /readyz, /drain, /undrain - health and load balancer control
  - /debug/pprof - when enabled

A certificate request carries X-Viewer-Nonce and X-Viewer-Signature, the
viewer's personal_sign over the challenge message. Each nonce works once.

Errors are returned as {"error": "..."} with a status derived from the
registry error: 404 for unknown ids, 401 when the viewer is missing or not
proven, 503 while fees or the catalog are not loaded.
*/
package httpserver
