package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tbourn/chemvision-backend/internal/correlation"
	"github.com/tbourn/chemvision-backend/internal/domain"
	"github.com/tbourn/chemvision-backend/internal/http/middleware"
	"github.com/tbourn/chemvision-backend/internal/services"
)

//
// Fakes
//

// demoStore serves the single demo mapping.
type demoStore struct{}

func (demoStore) LookupName(_ context.Context, name string) (*domain.NameMapping, error) {
	if name == "isopentane" {
		return &domain.NameMapping{Name: name, Smiles: "CC(C)CC", Source: "demo"}, nil
	}
	return nil, services.ErrMappingNotFound
}

// fakeNaming returns fixed results and counts calls.
type fakeNaming struct {
	res   domain.Result
	panic bool
	calls atomic.Int32
}

func (f *fakeNaming) NameToStructure(context.Context, string) domain.Result { return f.call() }
func (f *fakeNaming) StructureToName(context.Context, string) domain.Result { return f.call() }
func (f *fakeNaming) call() domain.Result {
	f.calls.Add(1)
	if f.panic {
		panic("engine crashed: secret-internal-detail")
	}
	return f.res
}

type fakeOCSR struct {
	res   domain.Result
	panic bool
	calls atomic.Int32
	got   domain.ImagePayload
}

func (f *fakeOCSR) ImageToStructure(_ context.Context, img domain.ImagePayload) domain.Result {
	f.calls.Add(1)
	f.got = img
	if f.panic {
		panic("ocsr exploded: secret-internal-detail")
	}
	return f.res
}

type recordedCall struct {
	op      domain.Operation
	input   string
	outcome domain.Outcome
	cid     string
}

type fakeHistory struct {
	mu    sync.Mutex
	calls []recordedCall
	err   error
}

func (f *fakeHistory) Record(ctx context.Context, op domain.Operation, input string, res domain.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: op, input: input, outcome: res.Outcome(), cid: correlation.ID(ctx)})
	return f.err
}

//
// Helpers
//

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID(), middleware.Recovery())
	r.POST("/api/name-to-structure", h.NameToStructure)
	r.POST("/api/structure-to-name", h.StructureToName)
	r.POST("/api/image-to-structure", h.ImageToStructure)
	return r
}

func realHandlers() *Handlers {
	return New(services.NewNamingService(demoStore{}), services.NewOCSRService(), nil)
}

func postJSON(r http.Handler, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postImage(t *testing.T, r http.Handler, field, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="mol.bin"`, field))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/image-to-structure", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code          string         `json:"error_code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details"`
	CorrelationID string         `json:"correlation_id"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	if len(raw) != 4 {
		t.Fatalf("envelope must have 4 fields, got %s", w.Body.String())
	}
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	if env.CorrelationID == "" || env.CorrelationID != w.Header().Get(correlation.Header) {
		t.Fatalf("correlation id body=%q header=%q", env.CorrelationID, w.Header().Get(correlation.Header))
	}
	return env
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

//
// Name → structure
//

func TestNameToStructure_DemoNameCaseAndWhitespaceInsensitive(t *testing.T) {
	r := newRouter(realHandlers())
	for _, name := range []string{"isopentane", "ISOPENTANE", "  IsoPentane\t"} {
		w := postJSON(r, "/api/name-to-structure", fmt.Sprintf(`{"name":%q}`, name))
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status=%d body=%s", name, w.Code, w.Body.String())
		}
		var got StructureResponse
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("json: %v", err)
		}
		if got.Smiles != "CC(C)CC" || got.Source != "demo" {
			t.Fatalf("%q: unexpected body %+v", name, got)
		}
		if w.Header().Get(correlation.Header) == "" {
			t.Fatalf("missing correlation header on success")
		}
	}
}

func TestNameToStructure_UnknownName501(t *testing.T) {
	r := newRouter(realHandlers())
	w := postJSON(r, "/api/name-to-structure", `{"name":"benzene"}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Code != "NOT_IMPLEMENTED" || env.Message != "Name to structure conversion is not yet implemented" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Details != nil {
		t.Fatalf("details should be null, got %v", env.Details)
	}
}

//
// Structure → name and OCSR
//

func TestStructureToName_Always501(t *testing.T) {
	r := newRouter(realHandlers())
	for _, s := range []string{"CC(C)CC", "c1ccccc1", "not even smiles"} {
		w := postJSON(r, "/api/structure-to-name", fmt.Sprintf(`{"smiles":%q}`, s))
		if w.Code != http.StatusNotImplemented {
			t.Fatalf("%q: status=%d", s, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Code != "NOT_IMPLEMENTED" || !strings.HasPrefix(env.Message, "Structure to name conversion") {
			t.Fatalf("unexpected envelope %+v", env)
		}
	}
}

func TestImageToStructure_PNGAndJPEG501(t *testing.T) {
	r := newRouter(realHandlers())
	for _, ct := range []string{"image/png", "image/jpeg", "image/jpg"} {
		w := postImage(t, r, "image", ct, pngMagic)
		if w.Code != http.StatusNotImplemented {
			t.Fatalf("%s: status=%d body=%s", ct, w.Code, w.Body.String())
		}
		env := decodeEnvelope(t, w)
		if env.Code != "NOT_IMPLEMENTED" || !strings.Contains(env.Message, "(OCSR)") {
			t.Fatalf("unexpected envelope %+v", env)
		}
	}
}

func TestImageToStructure_NonImageType400BeforeService(t *testing.T) {
	ocsr := &fakeOCSR{res: domain.NotImplemented()}
	r := newRouter(New(&fakeNaming{}, ocsr, nil))

	for _, ct := range []string{"text/plain", "image/gif", "application/octet-stream", "IMAGE/PNG", "image/png; x=y"} {
		w := postImage(t, r, "image", ct, []byte("hello"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", ct, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Code != "INVALID_IMAGE_TYPE" || env.Message != "Only PNG and JPEG images are supported" {
			t.Fatalf("unexpected envelope %+v", env)
		}
		if env.Details["content_type"] != ct {
			t.Fatalf("details = %v", env.Details)
		}
	}
	if n := ocsr.calls.Load(); n != 0 {
		t.Fatalf("service called %d times for rejected uploads", n)
	}
}

func TestImageToStructure_DeclaredTypeTrusted(t *testing.T) {
	// A mislabeled file passes: only the declared type is checked.
	ocsr := &fakeOCSR{res: domain.NotImplemented()}
	r := newRouter(New(&fakeNaming{}, ocsr, nil))
	w := postImage(t, r, "image", "image/png", []byte("plain text, not a png"))
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", w.Code)
	}
	if ocsr.got.ContentType != "image/png" || ocsr.got.Filename != "mol.bin" || string(ocsr.got.Data) != "plain text, not a png" {
		t.Fatalf("payload = %+v", ocsr.got)
	}
}

func TestImageToStructure_MissingPart422(t *testing.T) {
	ocsr := &fakeOCSR{}
	r := newRouter(New(&fakeNaming{}, ocsr, nil))

	w := postImage(t, r, "file", "image/png", pngMagic)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	// Not multipart at all.
	w = postJSON(r, "/api/image-to-structure", `{"image":"x"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-multipart status=%d", w.Code)
	}
	if ocsr.calls.Load() != 0 {
		t.Fatalf("service must not be called")
	}
}

func TestImageToStructure_OversizedUpload413(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ocsr := &fakeOCSR{res: domain.NotImplemented()}
	h := New(&fakeNaming{}, ocsr, nil)
	r := gin.New()
	r.Use(middleware.CorrelationID(), func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 512)
		c.Next()
	})
	r.POST("/api/image-to-structure", h.ImageToStructure)

	w := postImage(t, r, "image", "image/png", bytes.Repeat([]byte{0xff}, 4096))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if env := decodeEnvelope(t, w); env.Code != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if ocsr.calls.Load() != 0 {
		t.Fatalf("service must not be called")
	}
}

//
// Validation
//

func TestValidation_422BeforeService(t *testing.T) {
	naming := &fakeNaming{res: domain.NotImplemented()}
	r := newRouter(New(naming, &fakeOCSR{}, nil))

	cases := []struct {
		path, body, field, rule string
	}{
		{"/api/name-to-structure", `{"name":""}`, "name", "required"},
		{"/api/name-to-structure", `{"name":"   "}`, "name", "notblank"},
		{"/api/name-to-structure", `{}`, "name", "required"},
		{"/api/name-to-structure", fmt.Sprintf(`{"name":%q}`, strings.Repeat("a", 501)), "name", "max"},
		{"/api/name-to-structure", `{"name":`, "body", "json"},
		{"/api/name-to-structure", `{"name":42}`, "body", "json"},
		{"/api/structure-to-name", `{"smiles":""}`, "smiles", "required"},
		{"/api/structure-to-name", `{"smiles":"\t\n"}`, "smiles", "notblank"},
		{"/api/structure-to-name", fmt.Sprintf(`{"smiles":%q}`, strings.Repeat("C", 1001)), "smiles", "max"},
	}
	for _, tc := range cases {
		w := postJSON(r, tc.path, tc.body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s %s: status=%d", tc.path, tc.body, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Code != "VALIDATION_ERROR" {
			t.Fatalf("%s: code=%s", tc.body, env.Code)
		}
		errs, _ := env.Details["errors"].([]any)
		if len(errs) == 0 {
			t.Fatalf("%s: missing details.errors: %v", tc.body, env.Details)
		}
		first, _ := errs[0].(map[string]any)
		if first["field"] != tc.field || first["rule"] != tc.rule {
			t.Fatalf("%s: details=%v, want field=%s rule=%s", tc.body, first, tc.field, tc.rule)
		}
	}
	if n := naming.calls.Load(); n != 0 {
		t.Fatalf("service called %d times for invalid input", n)
	}
}

func TestValidation_BoundariesAccepted(t *testing.T) {
	naming := &fakeNaming{res: domain.NotImplemented()}
	r := newRouter(New(naming, &fakeOCSR{}, nil))

	// Limits count characters, not bytes.
	w := postJSON(r, "/api/name-to-structure", fmt.Sprintf(`{"name":%q}`, strings.Repeat("é", 500)))
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("500-char name: status=%d", w.Code)
	}
	w = postJSON(r, "/api/structure-to-name", fmt.Sprintf(`{"smiles":%q}`, strings.Repeat("C", 1000)))
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("1000-char smiles: status=%d", w.Code)
	}
	if naming.calls.Load() != 2 {
		t.Fatalf("calls=%d", naming.calls.Load())
	}
}

//
// Faults
//

func TestServiceFault_500ConversionErrorWithoutDetail(t *testing.T) {
	fault := domain.Failure(errors.New("database exploded: secret-internal-detail"))

	for _, tc := range []struct {
		name string
		do   func(r http.Handler) *httptest.ResponseRecorder
	}{
		{"name", func(r http.Handler) *httptest.ResponseRecorder {
			return postJSON(r, "/api/name-to-structure", `{"name":"isopentane"}`)
		}},
		{"smiles", func(r http.Handler) *httptest.ResponseRecorder {
			return postJSON(r, "/api/structure-to-name", `{"smiles":"CC"}`)
		}},
		{"image", func(r http.Handler) *httptest.ResponseRecorder {
			return postImage(t, r, "image", "image/png", pngMagic)
		}},
	} {
		for _, panics := range []bool{false, true} {
			r := newRouter(New(&fakeNaming{res: fault, panic: panics}, &fakeOCSR{res: fault, panic: panics}, nil))
			w := tc.do(r)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("%s (panic=%v): status=%d", tc.name, panics, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Code != "CONVERSION_ERROR" {
				t.Fatalf("%s (panic=%v): code=%s", tc.name, panics, env.Code)
			}
			if strings.Contains(w.Body.String(), "secret-internal-detail") || !strings.HasPrefix(env.Message, "Failed to convert") {
				t.Fatalf("%s: fault detail leaked or bad message: %s", tc.name, w.Body.String())
			}
		}
	}
}

// panicHistory fails outside the service call.
type panicHistory struct{}

func (panicHistory) Record(context.Context, domain.Operation, string, domain.Result) error {
	panic("history exploded: secret-internal-detail")
}

func TestHandlerFault_OutsideServiceIsInternalError(t *testing.T) {
	r := newRouter(New(&fakeNaming{res: domain.NotImplemented()}, &fakeOCSR{}, panicHistory{}))

	w := postJSON(r, "/api/structure-to-name", `{"smiles":"CC"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Code != "INTERNAL_ERROR" || env.Message != "An unexpected error occurred" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if strings.Contains(w.Body.String(), "secret-internal-detail") {
		t.Fatalf("panic detail leaked: %s", w.Body.String())
	}
}

//
// Correlation and history
//

func TestCorrelationID_RoundTripOnErrorAndSuccess(t *testing.T) {
	r := newRouter(realHandlers())

	w := postJSON(r, "/api/structure-to-name", `{"smiles":"CC"}`, correlation.Header, "client-supplied-42")
	if w.Header().Get(correlation.Header) != "client-supplied-42" {
		t.Fatalf("header = %q", w.Header().Get(correlation.Header))
	}
	if env := decodeEnvelope(t, w); env.CorrelationID != "client-supplied-42" {
		t.Fatalf("body id = %q", env.CorrelationID)
	}

	w = postJSON(r, "/api/name-to-structure", `{"name":"isopentane"}`, correlation.Header, "client-supplied-43")
	if w.Code != http.StatusOK || w.Header().Get(correlation.Header) != "client-supplied-43" {
		t.Fatalf("success: status=%d header=%q", w.Code, w.Header().Get(correlation.Header))
	}
}

func TestCorrelationID_ConcurrentGeneratedDistinct(t *testing.T) {
	r := newRouter(realHandlers())
	const n = 40
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := postJSON(r, "/api/structure-to-name", `{"smiles":"CC"}`)
			var env envelope
			_ = json.Unmarshal(w.Body.Bytes(), &env)
			if env.CorrelationID != w.Header().Get(correlation.Header) {
				t.Errorf("body/header mismatch: %q vs %q", env.CorrelationID, w.Header().Get(correlation.Header))
			}
			ids <- env.CorrelationID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("empty or duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestHistory_RecordedPerOutcome_ErrorsIgnored(t *testing.T) {
	hist := &fakeHistory{err: errors.New("disk full")}
	h := New(services.NewNamingService(demoStore{}), services.NewOCSRService(), hist)
	r := newRouter(h)

	if w := postJSON(r, "/api/name-to-structure", `{"name":"isopentane"}`, correlation.Header, "h-1"); w.Code != http.StatusOK {
		t.Fatalf("history error must not change the response, got %d", w.Code)
	}
	postJSON(r, "/api/structure-to-name", `{"smiles":"CC"}`)
	postImage(t, r, "image", "image/png", pngMagic)
	postJSON(r, "/api/name-to-structure", `{"name":""}`) // rejected, not recorded

	hist.mu.Lock()
	defer hist.mu.Unlock()
	if len(hist.calls) != 3 {
		t.Fatalf("recorded %d calls, want 3: %+v", len(hist.calls), hist.calls)
	}
	if c := hist.calls[0]; c.op != domain.OpNameToStructure || c.outcome != domain.OutcomeSuccess || c.input != "isopentane" || c.cid != "h-1" {
		t.Fatalf("first record = %+v", c)
	}
	if c := hist.calls[1]; c.op != domain.OpStructureToName || c.outcome != domain.OutcomeNotImplemented {
		t.Fatalf("second record = %+v", c)
	}
	if c := hist.calls[2]; c.op != domain.OpImageToStructure || c.input != "mol.bin" {
		t.Fatalf("third record = %+v", c)
	}
}

func TestRegisterRules_NotBlankAndFailureSurfaces(t *testing.T) {
	v := validator.New()
	if err := registerRules(v, customRules); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := v.Var("   ", "notblank"); err == nil {
		t.Fatalf("blank string should fail notblank")
	}
	if err := v.Var(" CC ", "notblank"); err != nil {
		t.Fatalf("non-blank string rejected: %v", err)
	}

	// Reserved tags cannot be overridden; the error must come back, not vanish.
	err := registerRules(validator.New(), map[string]validator.Func{"omitempty": notBlank})
	if err == nil || !strings.Contains(err.Error(), "omitempty") {
		t.Fatalf("expected registration error, got %v", err)
	}
}
