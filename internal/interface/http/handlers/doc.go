// Package handlers contains reusable HTTP building blocks: bearer token
// verification, dependency health checks and middleware.
//
// # Authentication
//
// The JWTAuthenticator verifies HS256 or RS256 tokens issued by the identity
// provider and puts a shared.Principal into the request context:
//
//	auth, err := handlers.NewJWTAuthenticator(handlers.AuthConfig{HMACSecret: secret})
//	api := auth.Middleware(onAuthError)(mux)
//
//	p, ok := handlers.PrincipalFrom(r.Context())
//
// The token subject is the user id; the "role" claim is "user" or "admin".
//
// # Health Checks
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.PingCheck(pool))
//	checker.AddOptionalCheck("redis", handlers.PingCheck(cache)) // degraded, not down
package handlers
