// Package common contains shared constants, sentinel errors and small helpers
// used across chatauth components.
package common

// BearerScheme is the authorization scheme expected in front of access tokens.
const BearerScheme = "Bearer"
