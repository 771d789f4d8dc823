package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the scheme prefix expected in the authorization header.
const BearerPrefix = "Bearer "

// DefaultVisibility is assigned to mods and projects that do not state one.
const DefaultVisibility = "public"
