package validators

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
)

func withParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func TestParseIDParam(t *testing.T) {
	cases := map[string]struct {
		raw     string
		want    int64
		wantErr bool
	}{
		"positive": {raw: "42", want: 42},
		"padded":   {raw: " 7 ", want: 7},
		"zero":     {raw: "0", wantErr: true},
		"negative": {raw: "-3", wantErr: true},
		"text":     {raw: "abc", wantErr: true},
		"missing":  {raw: "", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", tc.raw)
			got, err := ParseIDParam(req, "id")
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPathParamDecodesAndTrims(t *testing.T) {
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "partcode", "%20AB%2FC%20")
	got, err := PathParam(req, "partcode")
	require.NoError(t, err)
	assert.Equal(t, "AB/C", got)

	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "partcode", "%20")
	_, err = PathParam(req, "partcode")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// malformed escapes fall back to the raw segment
	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "partcode", "100%")
	got, err = PathParam(req, "partcode")
	require.NoError(t, err)
	assert.Equal(t, "100%", got)
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30", nil)
	got, err := ParseQueryInt(req, "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	got, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 50, 1, 200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=ten", nil), "limit", 50, 1, 200)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type renamePayload struct {
	Name string `json:"customer_name" validate:"required,max=5"`
}

func TestDecodeJSONBody(t *testing.T) {
	var ok renamePayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_name":"Acme"}`))
	require.NoError(t, DecodeJSONBody(req, &ok))
	assert.Equal(t, "Acme", ok.Name)

	var unknown renamePayload
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_name":"Acme","extra":1}`))
	err := DecodeJSONBody(req, &unknown)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var tooLong renamePayload
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_name":"Acme Industries"}`))
	err = DecodeJSONBody(req, &tooLong)
	require.Error(t, err)
	details, isMap := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, isMap)
	assert.Equal(t, "must be at most 5", details["customer_name"])

	var missing renamePayload
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	err = DecodeJSONBody(req, &missing)
	details, _ = pkgerrors.As(err).Details().(map[string]string)
	assert.Equal(t, "is required", details["customer_name"])
}

func TestDecodeJSONSkipsValidation(t *testing.T) {
	var payload renamePayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	require.NoError(t, DecodeJSON(req, &payload))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	assert.True(t, pkgerrors.IsCode(DecodeJSON(req, &payload), pkgerrors.CodeValidation))
}

func multipartRequest(t *testing.T, field, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, "catalog.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestMultipartFile(t *testing.T) {
	req := multipartRequest(t, "file", "kind,mat_partcode\nmaster,TAPE\n")
	file, header, err := MultipartFile(httptest.NewRecorder(), req, "file", 1<<20)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "catalog.csv", header.Filename)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "master,TAPE")

	req = multipartRequest(t, "upload", "x")
	_, _, err = MultipartFile(httptest.NewRecorder(), req, "file", 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	_, _, err = MultipartFile(httptest.NewRecorder(), req, "file", 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "tape", SanitizeString("  tape  ", 10))
	assert.Len(t, []rune(SanitizeString(strings.Repeat("é", 20), 5)), 5)
}
