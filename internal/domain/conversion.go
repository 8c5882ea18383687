package domain

// Operation names a conversion capability. Values double as metric labels
// and as the operation column of the conversion history.
type Operation string

const (
	OpNameToStructure  Operation = "name_to_structure"
	OpStructureToName  Operation = "structure_to_name"
	OpImageToStructure Operation = "image_to_structure"
)

// Title returns the human-readable operation name used in messages.
func (o Operation) Title() string {
	switch o {
	case OpNameToStructure:
		return "Name to structure conversion"
	case OpStructureToName:
		return "Structure to name conversion"
	case OpImageToStructure:
		return "Image to structure conversion (OCSR)"
	}
	return string(o)
}

// Input bounds, in characters.
const (
	MaxNameLen   = 500
	MaxSmilesLen = 1000
)

// allowedImageTypes is the set of declared media types accepted for OCSR.
// "image/jpg" is not registered but is sent by some clients.
var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/jpg":  {},
}

// ImagePayload is an uploaded structure image. ContentType is the media
// type declared by the caller; the bytes are not sniffed.
type ImagePayload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AllowedImageType reports whether the declared content type is one of the
// accepted media types. The comparison is exact: letter case and parameters
// are not normalized.
func AllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
