// Package jwt issues and verifies HS256 designer access tokens using
// github.com/golang-jwt/jwt/v5. The token subject is the owner (designer) id
// and the "plan" claim selects the quota plan.
package jwt
