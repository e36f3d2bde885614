// Package auth implements the stateless authentication and authorization
// core of a multi-tenant REST API: credential verification, JWT issuance
// (short-lived access plus long-lived refresh tokens), per-request token
// validation, role gating, and brute-force lockout bookkeeping.
//
// Lockout:
//   - Users carry a LoginAttempts counter persisted via Bun. Failed logins
//     increment it, successful logins reset it, and once it reaches the
//     configured threshold the account stops being operable on the
//     authorization path. Login keeps answering with the uniform invalid
//     credentials error so callers cannot probe for locked accounts.
//
// Token validation:
//   - TokenService issues and validates HMAC-signed tokens. Claims are only
//     reachable through Validate; there is no API that reads a claim out of
//     a token without verifying its signature and expiry first.
//
// Principal resolution:
//   - The request middleware resolves a Principal from a fresh store lookup
//     and threads it through context.Context. Missing, expired, or invalid
//     tokens degrade the request to anonymous; the Gate is the single place
//     that rejects anonymous or under-privileged access.
package auth
