// Package miniauth implements the authentication and session-continuity layer
// for a Telegram mini-app deployment: credential issuance and verification,
// the identity exchange that upserts users, and the building blocks consumed
// by the route gate and the embedded client.
//
// Token verification:
//   - TokenService signs and validates HS256 session credentials. Validation
//     never panics on malformed input; it returns ErrTokenMalformed or
//     ErrTokenExpired.
//   - UnverifiedDecoder is the trust-reduced path for runtimes where the HMAC
//     primitive is unavailable. It decodes the payload and checks expiry only.
//     Wire it exclusively through NewProbedVerifier so deployments with a
//     working primitive never downgrade silently.
//
// Exchange:
//   - Exchanger consumes a validated ExternalIdentity, upserts the user keyed
//     by telegram_id inside a transaction, and mints a fresh credential. The
//     operation is idempotent per external identity; repeated calls update
//     display fields and report IsNewUser=false.
//
// The route gate lives in middleware/gate and the host-side orchestrator in
// client; both depend on the primitives defined here.
package miniauth
