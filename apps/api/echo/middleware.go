package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// instructorMiddleware lets teachers and admins through; `roles` further restricts admins.
func instructorMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsTeacher || (claims.IsAdmin && contextHasAnyRole(ctx, roles)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
