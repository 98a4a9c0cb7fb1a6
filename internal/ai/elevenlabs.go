package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/valyala/fasthttp"
)

const recordingName = "recording.webm"

// Audio is an uploaded recording.
type Audio struct {
	Data        []byte
	ContentType string
}

// ElevenLabsClient calls the ElevenLabs speech-to-text endpoint.
type ElevenLabsClient struct {
	client  *fasthttp.Client
	baseURL string
	model   string
	key     string
}

func NewElevenLabsClient(httpClient *fasthttp.Client, baseURL, model, key string) *ElevenLabsClient {
	if httpClient == nil {
		httpClient = &fasthttp.Client{Name: "taskflow"}
	}
	return &ElevenLabsClient{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		key:     key,
	}
}

// Transcribe uploads audio and returns the recognized text.
func (c *ElevenLabsClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if c == nil || c.key == "" {
		return "", ErrMissingCredentials
	}

	body, contentType, err := c.encode(audio)
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/v1/speech-to-text")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.Header.Set("xi-api-key", c.key)
	req.SetBody(body)

	if err := do(ctx, c.client, req, resp); err != nil {
		return "", err
	}
	if status := resp.StatusCode(); status < 200 || status > 299 {
		return "", &ProviderError{Provider: "elevenlabs", Status: status, Body: string(resp.Body())}
	}

	var out struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", err
	}
	if out.Text != "" {
		return out.Text, nil
	}
	return out.Transcript, nil
}

func (c *ElevenLabsClient) encode(audio Audio) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+recordingName+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model_id", c.model); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
