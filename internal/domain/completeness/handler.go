package completeness

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/scorecard/scorecard/internal/platform/fhir"
	"github.com/scorecard/scorecard/internal/platform/scorecard"
)

const (
	diagnosticsBadInput = "This operation requires a FHIR Parameters Resource containing a single parameter named `record` containing a FHIR Bundle."
)

// Handler serves the $completeness operation and its conformance
// resources.
type Handler struct {
	engine *scorecard.Engine
	logger zerolog.Logger
}

func NewHandler(engine *scorecard.Engine, logger zerolog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes registers the FHIR routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/fhir", h.Root)
	e.GET("/fhir/metadata", h.Metadata)
	e.GET("/fhir/OperationDefinition", h.OperationDefinitions)
	e.GET("/fhir/OperationDefinition/Patient-completeness", h.OperationDefinition)
	e.POST("/fhir/$completeness", h.Completeness)
}

// Root redirects to the capability statement.
func (h *Handler) Root(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/fhir/metadata")
}

// Metadata serves the static CapabilityStatement.
func (h *Handler) Metadata(c echo.Context) error {
	return respond(c, http.StatusOK, capabilityStatement())
}

// OperationDefinitions serves a searchset Bundle holding the
// completeness OperationDefinition.
func (h *Handler) OperationDefinitions(c echo.Context) error {
	op, err := json.Marshal(operationDefinition())
	if err != nil {
		return err
	}
	fullURL := baseURL(c) + operationDefinitionPath
	bundle := fhir.NewSearchsetBundle([]json.RawMessage{op}, []string{fullURL})
	return respond(c, http.StatusOK, bundle)
}

// OperationDefinition serves the completeness OperationDefinition.
func (h *Handler) OperationDefinition(c echo.Context) error {
	return respond(c, http.StatusOK, operationDefinition())
}

// Completeness scores a patient record Bundle. The request must carry
// the application/fhir+json content type and decode into the operation
// input shape; when both checks fail, the content-type outcome is the
// one reported.
func (h *Handler) Completeness(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	req, decodeErr := fhir.DecodeCompletenessRequest(body)
	if decodeErr != nil {
		h.logger.Warn().Str("reason", decodeErr.Reason).Msg("rejecting $completeness request")
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, fhir.ContentType) {
		diagnostics := "The content-type `" + contentType + "` is not supported. This service only supports `" + fhir.ContentType + "`."
		return respond(c, http.StatusUnprocessableEntity, fhir.NotSupportedOutcome(diagnostics))
	}
	if decodeErr != nil {
		return respond(c, http.StatusUnprocessableEntity, fhir.RequiredOutcome(diagnosticsBadInput))
	}

	ig, recognized := scorecard.ResolveIG(req.IGCode)
	if !recognized {
		h.logger.Warn().Str("ig", req.IGCode).Msg("unrecognized implementation guide, scoring base rubrics only")
	}

	report, err := h.engine.Score(req.Record, ig)
	if err != nil {
		h.logger.Warn().Err(err).Msg("record bundle failed to score")
		return respond(c, http.StatusUnprocessableEntity, fhir.RequiredOutcome(diagnosticsBadInput))
	}

	h.logger.Info().Int("score", report.Points).Str("ig", ig.String()).Msg("scored record")
	return respond(c, http.StatusOK, reportParameters(report))
}

// reportParameters converts a scorecard report to the operation output:
// the total score first, then one rubric parameter per category in
// report order.
func reportParameters(report *scorecard.Report) *fhir.Parameters {
	out := fhir.NewParameters()
	out.Parameter = append(out.Parameter, fhir.IntParameter("score", report.Points))
	for _, rubric := range report.Rubrics {
		out.Parameter = append(out.Parameter, fhir.ParametersParameter{
			Name: "rubric",
			Part: []fhir.ParametersParameter{
				fhir.IntParameter("score", rubric.Points),
				fhir.StringParameter("category", rubric.Name),
				fhir.StringParameter("description", rubric.Message),
			},
		})
	}
	return out
}

func respond(c echo.Context, status int, resource any) error {
	data, err := json.Marshal(resource)
	if err != nil {
		return err
	}
	return c.Blob(status, fhir.ContentType, data)
}

func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
