package dynamo

// DynamoDB attribute names used in update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldIdentifier   = "identifier"
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldPhone        = "phone"
	fieldOTPDigest    = "otp_digest"
	fieldOTPExpiresAt = "otp_expires_at"
	fieldIsVerified   = "is_verified"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"

	indexUserID = "user_id-index"
)
