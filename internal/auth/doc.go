// Package auth verifies API callers.
//
// Tokens are HS256 JWTs issued by the account service and checked by
// signature only. Three roles exist:
//   - organizer: dashboard, teardown, alert acknowledgement, audit trail
//   - participant: tracking writes for its own participant id (the subject)
//   - service: tracking writes for any participant and teardown
//
// The role-permission map is static; HasPermission and CanWriteParticipant
// are the only checks the API needs.
package auth
