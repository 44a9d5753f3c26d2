package gate

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// tokenExtractor pulls a raw credential out of a request; empty string means
// the source did not carry one.
type tokenExtractor func(ctx *fiber.Ctx) string

// tokenFromCookie returns a function that extracts the token from the named
// cookie.
func tokenFromCookie(name string) tokenExtractor {
	return func(ctx *fiber.Ctx) string {
		return ctx.Cookies(name)
	}
}

// tokenFromHeader returns a function that extracts the token from the given
// header, stripping the auth scheme prefix.
func tokenFromHeader(header, authScheme string) tokenExtractor {
	prefix := authScheme + " "
	return func(ctx *fiber.Ctx) string {
		value := ctx.Get(header)
		if value == "" {
			return ""
		}
		if authScheme == "" {
			return value
		}
		if strings.HasPrefix(value, prefix) {
			return strings.TrimSpace(value[len(prefix):])
		}
		return ""
	}
}
