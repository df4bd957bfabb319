// Package formfill uploads license and plate photos to the admin recognize
// endpoint and writes the recognized values into a form.
package formfill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/textproto"
	"net/url"
	"strings"
)

const (
	DefaultEndpoint = "/admin/inspection/inspectionrecord/ocr-recognize/"
	TokenPath       = "/admin/csrf/"
	TokenHeader     = "X-CSRFToken"
	// TokenField is the hidden form field the admin page embeds the token in.
	TokenField = "csrfmiddlewaretoken"
)

// Multipart part names.
const (
	PartLicenseFront = "license_front_image"
	PartLicenseBack  = "license_back_image"
	PartPlate        = "plate_image"
)

type Image struct {
	Filename string
	Content  io.Reader
}

// Images holds the optional uploads of one recognize call.
type Images struct {
	LicenseFront *Image
	LicenseBack  *Image
	Plate        *Image
}

func (im Images) Empty() bool {
	return im.LicenseFront == nil && im.LicenseBack == nil && im.Plate == nil
}

func (im Images) parts() []struct {
	name string
	img  *Image
} {
	all := []struct {
		name string
		img  *Image
	}{
		{PartLicenseFront, im.LicenseFront},
		{PartLicenseBack, im.LicenseBack},
		{PartPlate, im.Plate},
	}
	present := all[:0]
	for _, p := range all {
		if p.img != nil {
			present = append(present, p)
		}
	}
	return present
}

// ValidationError means the call was rejected before any request was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ApplicationError carries the message of a success=false response.
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string { return e.Message }

// TransportError wraps network failures and unreadable responses.
// Status is the HTTP status when a response arrived, zero otherwise.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

const msgNoImage = "请先上传至少一张图片"

type Client struct {
	baseURL    *url.URL
	endpoint   string
	httpClient *http.Client
	authToken  string
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The client should carry a cookie
// jar so the anti-forgery cookie set by FetchToken is sent back.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithEndpoint(path string) Option {
	return func(c *Client) { c.endpoint = path }
}

// WithAuthToken sends the token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q needs a scheme and host", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		baseURL:    u,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) url(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// FetchToken asks the admin site for an anti-forgery token.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(TokenPath), nil)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &TransportError{Status: resp.StatusCode, Err: err}
	}
	token := body[TokenField]
	if token == "" {
		return "", &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("token response without %s", TokenField)}
	}
	return token, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Recognize sends the provided images in exactly one POST. It never retries.
func (c *Client) Recognize(ctx context.Context, images Images, token string) (Result, error) {
	if images.Empty() {
		return Result{}, &ValidationError{Message: msgNoImage}
	}

	body, contentType, err := encodeImages(images)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.endpoint), body)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(TokenHeader, token)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Result{}, &TransportError{Status: resp.StatusCode, Err: err}
	}
	if !env.Success {
		return Result{}, &ApplicationError{Message: env.Message}
	}
	result, err := ParseResult(env.Data)
	if err != nil {
		return Result{}, &TransportError{Status: resp.StatusCode, Err: err}
	}
	return result, nil
}

func encodeImages(images Images) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range images.parts() {
		content, err := io.ReadAll(p.img.Content)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", p.name, err)
		}
		filename := p.img.Filename
		if filename == "" {
			filename = p.name
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.name, escapeQuotes(filename)))
		h.Set("Content-Type", http.DetectContentType(content))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
