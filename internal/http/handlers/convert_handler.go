// Conversion HTTP handlers.
//
// This file exposes the three conversion endpoints:
//   - POST /api/name-to-structure   (JSON {"name"})
//   - POST /api/structure-to-name   (JSON {"smiles"})
//   - POST /api/image-to-structure  (multipart part "image", PNG/JPEG)
//
// Handlers are transport-thin: they validate input at the boundary, make
// exactly one service call, and map the Result variant to a response.
// Validation and media-type faults never reach a service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/chemvision-backend/internal/apierr"
	"github.com/tbourn/chemvision-backend/internal/domain"
	"github.com/tbourn/chemvision-backend/internal/http/middleware"
)

//
// Service contracts (context-aware)
//

// NamingService converts between chemical names and structure notation.
//
// Implementations must be safe for concurrent use and honor ctx.
type NamingService interface {
	NameToStructure(ctx context.Context, name string) domain.Result
	StructureToName(ctx context.Context, smiles string) domain.Result
}

// OCSRService recognizes a structure from an image already validated as
// PNG or JPEG.
type OCSRService interface {
	ImageToStructure(ctx context.Context, img domain.ImagePayload) domain.Result
}

// HistoryRecorder stores the outcome of a handled conversion. Errors are
// logged by the handler and otherwise ignored.
type HistoryRecorder interface {
	Record(ctx context.Context, op domain.Operation, input string, res domain.Result) error
}

//
// Handler wiring
//

// Handlers groups the conversion endpoints.
type Handlers struct {
	naming  NamingService
	ocsr    OCSRService
	history HistoryRecorder
}

// New constructs Handlers bound to the given services. history may be nil.
func New(naming NamingService, ocsr OCSRService, history HistoryRecorder) *Handlers {
	registerValidators()
	return &Handlers{naming: naming, ocsr: ocsr, history: history}
}

var validatorsOnce sync.Once

// customRules are the binding tags this package adds to Gin's validator.
var customRules = map[string]validator.Func{
	"notblank": notBlank,
}

// registerValidators reports JSON field names in validation errors and adds
// customRules to Gin's validator engine. A registration failure is a wiring
// bug and panics at startup rather than on the first request.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic(fmt.Sprintf("handlers: unexpected validator engine %T", binding.Validator.Engine()))
		}
		if err := registerRules(v, customRules); err != nil {
			panic(err)
		}
	})
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q: %w", tag, err)
		}
	}
	return nil
}

// notBlank rejects strings made only of whitespace.
func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(f.String()) != ""
}

//
// DTOs
//

// NameToStructureRequest is the JSON payload for name→structure.
type NameToStructureRequest struct {
	// Chemical name, 1–500 characters, not blank.
	Name string `json:"name" binding:"required,notblank,max=500" example:"isopentane"`
}

// StructureToNameRequest is the JSON payload for structure→name.
type StructureToNameRequest struct {
	// SMILES string, 1–1000 characters, not blank.
	Smiles string `json:"smiles" binding:"required,notblank,max=1000" example:"CC(C)CC"`
}

// StructureResponse carries a structure and its provenance.
type StructureResponse struct {
	Smiles string `json:"smiles" example:"CC(C)CC"`
	Source string `json:"source" example:"demo" enums:"demo,ml,tool"`
}

// NameResponse carries a chemical name and its provenance.
type NameResponse struct {
	Name   string `json:"name" example:"2-methylbutane"`
	Source string `json:"source" example:"ml" enums:"demo,ml,tool"`
}

//
// Handlers
//

// NameToStructure godoc
// @ID          nameToStructure
// @Summary     Convert a chemical name to SMILES
// @Description Looks the name up (trimmed, case-insensitive) in the provenance-tagged mapping table.
// @Description Names outside the table answer 501 NOT_IMPLEMENTED.
// @Tags        Conversion
// @Accept      json
// @Produce     json
//
// @Param       X-Correlation-ID  header  string  false  "Correlation id (generated when absent)"
// @Param       body              body    handlers.NameToStructureRequest  true  "Chemical name"
//
// @Success     200  {object}  handlers.StructureResponse
// @Header      200  {string}  X-Correlation-ID  "Correlation id"
// @Failure     422  {object}  apierr.Envelope  "Validation error"
// @Failure     500  {object}  apierr.Envelope  "Conversion error"
// @Failure     501  {object}  apierr.Envelope  "Not implemented"
// @Router      /api/name-to-structure [post]
func (h *Handlers) NameToStructure(c *gin.Context) {
	var req NameToStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	res := invoke(ctx, func() domain.Result { return h.naming.NameToStructure(ctx, req.Name) })
	h.respond(c, domain.OpNameToStructure, req.Name, res, func(r domain.Result) any {
		return StructureResponse{Smiles: r.Value(), Source: string(r.Provenance())}
	})
}

// StructureToName godoc
// @ID          structureToName
// @Summary     Convert SMILES to a chemical name
// @Description No naming engine is available yet; well-formed requests answer 501 NOT_IMPLEMENTED.
// @Tags        Conversion
// @Accept      json
// @Produce     json
//
// @Param       X-Correlation-ID  header  string  false  "Correlation id (generated when absent)"
// @Param       body              body    handlers.StructureToNameRequest  true  "SMILES string"
//
// @Success     200  {object}  handlers.NameResponse
// @Failure     422  {object}  apierr.Envelope  "Validation error"
// @Failure     500  {object}  apierr.Envelope  "Conversion error"
// @Failure     501  {object}  apierr.Envelope  "Not implemented"
// @Router      /api/structure-to-name [post]
func (h *Handlers) StructureToName(c *gin.Context) {
	var req StructureToNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	res := invoke(ctx, func() domain.Result { return h.naming.StructureToName(ctx, req.Smiles) })
	h.respond(c, domain.OpStructureToName, req.Smiles, res, func(r domain.Result) any {
		return NameResponse{Name: r.Value(), Source: string(r.Provenance())}
	})
}

// ImageToStructure godoc
// @ID          imageToStructure
// @Summary     Recognize a structure from an image (OCSR)
// @Description Accepts a PNG or JPEG upload in the "image" part. The declared part Content-Type is checked; bytes are not sniffed.
// @Description No recognition model is available yet; valid uploads answer 501 NOT_IMPLEMENTED.
// @Tags        Conversion
// @Accept      mpfd
// @Produce     json
//
// @Param       X-Correlation-ID  header    string  false  "Correlation id (generated when absent)"
// @Param       image             formData  file    true   "Structure image (PNG or JPEG)"
//
// @Success     200  {object}  handlers.StructureResponse
// @Failure     400  {object}  apierr.Envelope  "Invalid image type"
// @Failure     413  {object}  apierr.Envelope  "Upload too large"
// @Failure     422  {object}  apierr.Envelope  "Missing image part"
// @Failure     500  {object}  apierr.Envelope  "Conversion error"
// @Failure     501  {object}  apierr.Envelope  "Not implemented"
// @Router      /api/image-to-structure [post]
func (h *Handlers) ImageToStructure(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			tooLarge(c, mbe.Limit)
			return
		}
		invalid(c, FieldError{Field: "image", Rule: "required"})
		return
	}

	ct := fh.Header.Get("Content-Type")
	if !domain.AllowedImageType(ct) {
		apierr.Abort(c, apierr.CodeInvalidImageType, msgInvalidImageType, map[string]any{"content_type": ct})
		return
	}

	f, err := fh.Open()
	if err != nil {
		apierr.Abort(c, apierr.CodeInternal, apierr.MsgInternal, nil)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		apierr.Abort(c, apierr.CodeInternal, apierr.MsgInternal, nil)
		return
	}

	img := domain.ImagePayload{Filename: fh.Filename, ContentType: ct, Data: data}
	ctx := c.Request.Context()
	res := invoke(ctx, func() domain.Result { return h.ocsr.ImageToStructure(ctx, img) })
	h.respond(c, domain.OpImageToStructure, fh.Filename, res, func(r domain.Result) any {
		return StructureResponse{Smiles: r.Value(), Source: string(r.Provenance())}
	})
}

//
// Helpers
//

// invoke runs one service call. A panic inside the service is contained
// here and reported as a conversion Failure, keeping it apart from faults
// that escape the handler altogether.
func invoke(ctx context.Context, call func() domain.Result) (res domain.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = domain.Failure(fmt.Errorf("service panic: %v", rec))
		}
	}()
	if err := ctx.Err(); err != nil {
		return domain.Failure(err)
	}
	return call()
}

// respond maps res to the HTTP response, counts the outcome and records it
// in the conversion history.
func (h *Handlers) respond(c *gin.Context, op domain.Operation, input string, res domain.Result, body func(domain.Result) any) {
	lg := middleware.LoggerFrom(c)
	middleware.ObserveConversion(op, res.Outcome())

	if h.history != nil {
		if err := h.history.Record(c.Request.Context(), op, input, res); err != nil {
			lg.Warn().Err(err).Str("operation", string(op)).Msg("history record failed")
		}
	}

	switch res.Outcome() {
	case domain.OutcomeSuccess:
		lg.Info().
			Str("operation", string(op)).
			Str("source", string(res.Provenance())).
			Msg("conversion succeeded")
		ok(c, http.StatusOK, body(res))
	case domain.OutcomeNotImplemented:
		lg.Warn().Str("operation", string(op)).Msg("not_implemented")
		apierr.Abort(c, apierr.CodeNotImplemented, notImplementedMessage(op), nil)
	default:
		lg.Error().Err(res.Err()).Str("operation", string(op)).Msg("conversion failed")
		apierr.Abort(c, apierr.CodeConversionError, failureMessage(op), nil)
	}
}
