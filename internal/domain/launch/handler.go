package launch

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler serves the /launch endpoint the EHR redirects into.
type Handler struct {
	negotiator  *Negotiator
	sessions    *Store
	redirectURI string
	logger      zerolog.Logger
}

func NewHandler(negotiator *Negotiator, sessions *Store, redirectURI string, logger zerolog.Logger) *Handler {
	return &Handler{
		negotiator:  negotiator,
		sessions:    sessions,
		redirectURI: redirectURI,
		logger:      logger,
	}
}

// RegisterRoutes registers the launch route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/launch", h.Launch)
}

// Launch begins a SMART launch: resolve the issuer's client identity,
// discover its authorization endpoints, store the launch context under
// the browser session, and redirect to the authorization server.
func (h *Handler) Launch(c echo.Context) error {
	issuer := c.QueryParam("iss")
	launchToken := c.QueryParam("launch")

	identity := h.negotiator.ResolveClient(issuer)
	if identity.Absent() {
		// Fail-open: the launch proceeds without a client identity and
		// is rejected by the authorization server instead.
		h.logger.Warn().Str("iss", issuer).Msg("no client registration matches issuer")
	}

	endpoints, err := h.negotiator.Discover(c.Request().Context(), issuer)
	if err != nil {
		h.logger.Error().Err(err).Str("iss", issuer).Msg("launch failed: endpoint discovery")
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	state := uuid.NewString()
	h.sessions.Create(SessionID(c), &Context{
		ClientID:     identity.ClientID,
		Scopes:       identity.Scopes,
		FHIRURL:      issuer,
		AuthorizeURL: endpoints.AuthorizeURL,
		TokenURL:     endpoints.TokenURL,
		State:        state,
	})

	redirect := AuthorizeURL(endpoints.AuthorizeURL, AuthorizeRequest{
		ClientID:    identity.ClientID,
		RedirectURI: h.redirectURI,
		Scope:       identity.Scopes,
		Launch:      launchToken,
		State:       state,
		Audience:    issuer,
	})

	h.logger.Info().
		Str("iss", issuer).
		Str("client_id", identity.ClientID).
		Msg("redirecting to authorization server")

	return c.Redirect(http.StatusFound, redirect)
}
