package formfill

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = "\x89PNG\r\n\x1a\n0000"

type capturedRequest struct {
	method string
	path   string
	token  string
	auth   string
	parts  map[string]string
	types  map[string]string
}

func recognizeServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	var calls int32
	got := &capturedRequest{parts: map[string]string{}, types: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		got.method = r.Method
		got.path = r.URL.Path
		got.token = r.Header.Get(TokenHeader)
		got.auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for name, files := range r.MultipartForm.File {
				f, err := files[0].Open()
				if err != nil {
					continue
				}
				b, _ := io.ReadAll(f)
				f.Close()
				got.parts[name] = string(b)
				got.types[name] = files[0].Header.Get("Content-Type")
			}
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got, &calls
}

func TestClientRecognize_SendsOnlyProvidedParts(t *testing.T) {
	srv, got, calls := recognizeServer(t, http.StatusOK, `{"success":true,"data":{"owner":"张三"}}`)
	c, err := NewClient(srv.URL+"/", WithAuthToken("jwt"))
	require.NoError(t, err)

	res, err := c.Recognize(context.Background(), Images{
		LicenseFront: &Image{Filename: "front.png", Content: strings.NewReader(pngHeader)},
		Plate:        &Image{Filename: "plate.jpg", Content: strings.NewReader("plate-bytes")},
	}, "tok-123")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, DefaultEndpoint, got.path)
	assert.Equal(t, "tok-123", got.token)
	assert.Equal(t, "Bearer jwt", got.auth)
	assert.Equal(t, map[string]string{PartLicenseFront: pngHeader, PartPlate: "plate-bytes"}, got.parts)
	assert.Equal(t, "image/png", got.types[PartLicenseFront])

	v, ok := res.Value("owner")
	assert.True(t, ok)
	assert.Equal(t, "张三", v)
}

func TestClientRecognize_NoImagesSendsNothing(t *testing.T) {
	srv, _, calls := recognizeServer(t, http.StatusOK, `{"success":true}`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), Images{}, "tok")

	var v *ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "请先上传至少一张图片", v.Message)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestClientRecognize_ApplicationError(t *testing.T) {
	srv, _, _ := recognizeServer(t, http.StatusOK, `{"success":false,"message":"blurry image"}`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), Images{Plate: &Image{Content: strings.NewReader("x")}}, "tok")

	var app *ApplicationError
	require.ErrorAs(t, err, &app)
	assert.Equal(t, "blurry image", app.Error())
}

func TestClientRecognize_NonJSONIsTransportError(t *testing.T) {
	srv, _, _ := recognizeServer(t, http.StatusForbidden, `<html>CSRF verification failed</html>`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), Images{Plate: &Image{Content: strings.NewReader("x")}}, "tok")

	var tr *TransportError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, http.StatusForbidden, tr.Status)
	assert.NotContains(t, tr.Error(), "403")

	var syntaxErr *json.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, syntaxErr.Error(), tr.Error())
}

func TestClientRecognize_NetworkErrorIsTransportError(t *testing.T) {
	srv, _, _ := recognizeServer(t, http.StatusOK, `{}`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Recognize(context.Background(), Images{Plate: &Image{Content: strings.NewReader("x")}}, "tok")

	var tr *TransportError
	assert.ErrorAs(t, err, &tr)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestClientRecognize_UnreadableImage(t *testing.T) {
	srv, _, calls := recognizeServer(t, http.StatusOK, `{}`)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), Images{LicenseBack: &Image{Content: failingReader{}}}, "tok")

	assert.ErrorContains(t, err, "disk gone")
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestClientRecognize_CustomEndpoint(t *testing.T) {
	srv, got, _ := recognizeServer(t, http.StatusOK, `{"success":true,"data":{}}`)
	c, err := NewClient(srv.URL, WithEndpoint("/admin/other/ocr-recognize/"))
	require.NoError(t, err)

	_, err = c.Recognize(context.Background(), Images{Plate: &Image{Content: strings.NewReader("x")}}, "tok")
	require.NoError(t, err)
	assert.Equal(t, "/admin/other/ocr-recognize/", got.path)
}

func TestClientFetchToken_KeepsCookie(t *testing.T) {
	var sawCookie atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "abc", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"csrfmiddlewaretoken":"abc"}`)
	})
	mux.HandleFunc(DefaultEndpoint, func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("csrftoken"); err == nil {
			sawCookie.Store(ck.Value)
		}
		io.WriteString(w, `{"success":true,"data":{}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	token, err := c.FetchToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = c.Recognize(context.Background(), Images{Plate: &Image{Content: strings.NewReader("x")}}, token)
	require.NoError(t, err)
	assert.Equal(t, "abc", sawCookie.Load())
}

func TestClientFetchToken_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	_, err = c.FetchToken(context.Background())
	var tr *TransportError
	assert.ErrorAs(t, err, &tr)
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:8000")
	assert.Error(t, err)
}
