package record

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scorecard/scorecard/internal/domain/launch"
	"github.com/scorecard/scorecard/internal/platform/scorecard"
	"github.com/scorecard/scorecard/internal/platform/web"
)

// Handler serves /app, the OAuth2 redirect URI. It consumes the launch
// context stored at /launch, completes the token exchange, assembles
// the patient record, and renders the scorecard.
type Handler struct {
	sessions    *launch.Store
	tokens      *TokenClient
	assembler   *Assembler
	engine      *scorecard.Engine
	redirectURI string
	logger      zerolog.Logger
}

func NewHandler(sessions *launch.Store, tokens *TokenClient, assembler *Assembler, engine *scorecard.Engine, redirectURI string, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions:    sessions,
		tokens:      tokens,
		assembler:   assembler,
		engine:      engine,
		redirectURI: redirectURI,
		logger:      logger,
	}
}

// RegisterRoutes registers the app route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/app", h.App)
}

// App handles the authorization callback. Branches in order: an error
// parameter short-circuits everything, then the anti-forgery state is
// checked before any outbound call, then the code is exchanged and the
// record fetched and scored.
func (h *Handler) App(c echo.Context) error {
	if errCode := c.QueryParam("error"); errCode != "" {
		if errURI := c.QueryParam("error_uri"); errURI != "" {
			return c.Redirect(http.StatusFound, errURI)
		}
		h.logger.Warn().Str("error", errCode).Msg("authorization server returned an error")
		return c.HTML(http.StatusOK, web.NewPage("Invalid Launch!").
			Section("Invalid Launch!", queryRows(c)).Close())
	}

	launchCtx, err := h.sessions.Consume(launch.SessionID(c))
	if err != nil {
		if errors.Is(err, launch.ErrNoLaunch) {
			return c.HTML(http.StatusOK, web.NewPage("No Launch Context").
				Section("No Launch Context", queryRows(c)).Close())
		}
		return err
	}

	if state := c.QueryParam("state"); state != "" && state != launchCtx.State {
		mismatch := &StateMismatchError{Got: state, Want: launchCtx.State}
		h.logger.Warn().Err(mismatch).Msg("rejecting authorization callback")
		return c.HTML(http.StatusOK, web.NewPage("Invalid Launch State!").
			Section("Invalid Launch State!", queryRows(c)).Close())
	}

	ctx := c.Request().Context()
	token, err := h.tokens.Exchange(ctx, launchCtx.TokenURL, c.QueryParam("code"), h.redirectURI, launchCtx.ClientID)
	if err != nil {
		h.logger.Error().Err(err).Msg("token exchange failed")
		return c.HTML(http.StatusBadGateway, web.NewPage("Launch Failed").
			Section("Token Exchange Failed", []web.Row{{Key: "error", Value: err.Error()}}).Close())
	}

	assembly, err := h.assembler.Fetch(ctx, launchCtx.FHIRURL, token.AccessToken, token.Patient)
	if err != nil {
		h.logger.Error().Err(err).Msg("record fetch failed")
		return c.HTML(http.StatusBadGateway, web.NewPage("Launch Failed").
			Section("Record Fetch Failed", []web.Row{{Key: "error", Value: err.Error()}}).Close())
	}

	bundleJSON, err := json.Marshal(assembly.Record)
	if err != nil {
		return err
	}
	report, err := h.engine.Score(bundleJSON, scorecard.IGNone)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("patient", assembly.Patient.ID).
		Int("conditions", assembly.ConditionCount).
		Int("medications", assembly.MedicationCount).
		Int("score", report.Points).
		Msg("scored patient record")

	return c.HTML(http.StatusOK, h.renderReport(c, token, assembly, report))
}

func (h *Handler) renderReport(c echo.Context, token *TokenResponse, assembly *Assembly, report *scorecard.Report) string {
	page := web.NewPage("Patient Scorecard")
	page.Section("params", queryRows(c))
	page.Section("token response", tokenRows(token))

	if token.IDToken != "" {
		if claims, err := IDTokenClaims(token.IDToken); err == nil {
			rows := make([]web.Row, len(claims))
			for i, claim := range claims {
				rows[i] = web.Row{Key: claim[0], Value: claim[1]}
			}
			page.Section("id_token claims", rows)
		} else {
			h.logger.Warn().Err(err).Msg("could not decode id_token")
		}
	}

	page.Section("patient", []web.Row{
		{Key: "id", Value: assembly.Patient.ID},
		{Key: "name", Value: assembly.Patient.Name},
		{Key: "gender", Value: assembly.Patient.Gender},
		{Key: "birthDate", Value: assembly.Patient.BirthDate},
	})

	rows := make([][]string, 0, len(report.Rubrics)+1)
	rows = append(rows, []string{"score", strconv.Itoa(report.Points), "total points"})
	for _, rubric := range report.Rubrics {
		rows = append(rows, []string{rubric.Name, strconv.Itoa(rubric.Points), rubric.Message})
	}
	page.Table("scorecard", []string{"rubric", "points", "description"}, rows)

	return page.Close()
}

func queryRows(c echo.Context) []web.Row {
	params := c.QueryParams()
	rows := make([]web.Row, 0, len(params))
	for _, key := range []string{"code", "state", "error", "error_uri", "error_description"} {
		if params.Has(key) {
			rows = append(rows, web.Row{Key: key, Value: params.Get(key)})
		}
	}
	for key, values := range params {
		switch key {
		case "code", "state", "error", "error_uri", "error_description":
			continue
		}
		for _, v := range values {
			rows = append(rows, web.Row{Key: key, Value: v})
		}
	}
	return rows
}

func tokenRows(token *TokenResponse) []web.Row {
	rows := []web.Row{
		{Key: "access_token", Value: token.AccessToken},
		{Key: "token_type", Value: token.TokenType},
		{Key: "expires_in", Value: strconv.Itoa(token.ExpiresIn)},
		{Key: "scope", Value: token.Scope},
		{Key: "patient", Value: token.Patient},
	}
	if token.IDToken != "" {
		rows = append(rows, web.Row{Key: "id_token", Value: token.IDToken})
	}
	return rows
}
