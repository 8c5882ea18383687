package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// OCSRService performs optical chemical structure recognition: image bytes
// in, structure notation out. No recognition model is wired yet, so every
// call yields NotImplemented.
type OCSRService struct{}

// NewOCSRService returns an OCSRService.
func NewOCSRService() *OCSRService { return &OCSRService{} }

// ImageToStructure expects an image already validated as PNG or JPEG.
func (s *OCSRService) ImageToStructure(ctx context.Context, img domain.ImagePayload) domain.Result {
	_, span := otel.Tracer("services/OCSRService").Start(ctx, "ImageToStructure",
		trace.WithAttributes(
			attribute.String("image.content_type", img.ContentType),
			attribute.Int("image.bytes", len(img.Data)),
		),
	)
	defer span.End()

	res := notBuilt(ctx)
	endSpan(span, res)
	return res
}
