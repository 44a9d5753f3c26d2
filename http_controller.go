package miniauth

import (
	"bytes"
	"encoding/json"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// HeaderMiniApp is the explicit native-client request marker.
const HeaderMiniApp = "X-Telegram-Mini-App"

// ExchangePayload is the wire schema of the native-client auth exchange.
// Unknown keys are rejected at decode time; field rules live in Validate.
type ExchangePayload struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name,omitempty"`
	Username   string `json:"username,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	AuthDate   int64  `json:"auth_date"`
	Hash       string `json:"hash,omitempty"`
	ClientType string `json:"client_type"`
	IsPremium  bool   `json:"is_premium,omitempty"`
}

// Validate applies the identity schema rules.
func (r ExchangePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Min(1)),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Username, validation.Length(0, 64)),
		validation.Field(&r.AuthDate, validation.Required, validation.Min(1)),
		validation.Field(
			&r.ClientType,
			validation.Required,
			validation.In(ClientTypeMiniApp),
		),
	)
}

// Identity converts the validated payload to the normalized identity.
func (r ExchangePayload) Identity() ExternalIdentity {
	return ExternalIdentity{
		TelegramID: r.ID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Username:   r.Username,
		PhotoURL:   r.PhotoURL,
		IsPremium:  r.IsPremium,
		AuthDate:   r.AuthDate,
	}
}

type AuthControllerRoutes struct {
	Exchange string
	Check    string
	Logout   string
}

type AuthController struct {
	Logger     Logger
	Exchanger  Exchange
	Routes     *AuthControllerRoutes
	CookieName string
	now        func() time.Time
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(exchanger Exchange, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		Exchanger:  exchanger,
		CookieName: CookieName,
		now:        time.Now,
		Routes: &AuthControllerRoutes{
			Exchange: "/api/auth/telegram",
			Check:    "/api/auth/telegram/check",
			Logout:   "/api/auth/logout",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerClock injects a custom clock (useful for tests).
func WithControllerClock(clock func() time.Time) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if clock != nil {
			c.now = clock
		}
		return c
	}
}

// RegisterAuthRoutes mounts the exchange, liveness, health, and logout
// endpoints.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) *AuthController {
	app.Post(controller.Routes.Exchange, controller.ExchangePost)
	app.Get(controller.Routes.Exchange, controller.ExchangeStatus)
	app.Get(controller.Routes.Check, controller.HealthCheck)
	app.Post(controller.Routes.Logout, controller.LogoutPost)

	return controller
}

type exchangeUserResponse struct {
	*User
	IsNewUser bool `json:"isNewUser"`
}

type exchangeResponse struct {
	Success bool                 `json:"success"`
	User    exchangeUserResponse `json:"user"`
	Token   string               `json:"token"`
}

// ExchangePost handles the native-client auth exchange: strict schema
// validation, upsert-and-issue, and credential cookie.
func (a *AuthController) ExchangePost(ctx *fiber.Ctx) error {
	payload := ExchangePayload{}

	dec := json.NewDecoder(bytes.NewReader(ctx.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		a.Logger.Info("Exchange payload rejected: %v", err)
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation error",
			"details": err.Error(),
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Info("Exchange payload failed validation: %v", err)
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation error",
			"details": err,
		})
	}

	result, err := a.Exchanger.Exchange(ctx.Context(), payload.Identity())
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Validation error",
				"details": richErr.Message,
			})
		}

		a.Logger.Error("Exchange failed: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Auth failed",
			"details": err.Error(),
		})
	}

	a.setCookieToken(ctx, result.Token)

	return ctx.JSON(exchangeResponse{
		Success: true,
		User: exchangeUserResponse{
			User:      result.User,
			IsNewUser: result.IsNewUser,
		},
		Token: result.Token,
	})
}

// ExchangeStatus is the trivial liveness payload on GET of the exchange path.
func (a *AuthController) ExchangeStatus(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"status": "ok"})
}

// HealthCheck reports backend reachability; the client calls it after host
// initialization.
func (a *AuthController) HealthCheck(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
}

// LogoutPost clears the credential cookie. The token itself stays valid until
// expiry; there is no server-side revocation.
func (a *AuthController) LogoutPost(ctx *fiber.Ctx) error {
	ctx.Cookie(&fiber.Cookie{
		Name:     a.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  a.now().Add(-time.Hour * 24 * 365),
		SameSite: fiber.CookieSameSiteNoneMode,
		Secure:   ctx.Secure(),
	})

	return ctx.JSON(fiber.Map{"success": true})
}

func (a *AuthController) setCookieToken(ctx *fiber.Ctx, val string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     a.CookieName,
		Value:    val,
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		SameSite: fiber.CookieSameSiteNoneMode,
		Secure:   ctx.Secure(),
	})
}
