package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultCallTimeout = 60 * time.Second

// FalClient calls the fal.ai synchronous run endpoint.
type FalClient struct {
	client  *fasthttp.Client
	baseURL string
	model   string
	key     string
}

type falRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size"`
}

type falResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// NewFalClient builds a client. A nil httpClient uses a default fasthttp client.
func NewFalClient(httpClient *fasthttp.Client, baseURL, model, key string) *FalClient {
	if httpClient == nil {
		httpClient = &fasthttp.Client{Name: "taskflow"}
	}
	return &FalClient{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   strings.Trim(model, "/"),
		key:     key,
	}
}

// Generate renders a square image for prompt and returns the first image URL,
// or nil when the provider produced none.
func (c *FalClient) Generate(ctx context.Context, prompt string) (*string, error) {
	if c == nil || c.key == "" {
		return nil, ErrMissingCredentials
	}

	payload, err := json.Marshal(falRequest{Prompt: prompt, ImageSize: "square_hd"})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/" + c.model)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Key "+c.key)
	req.SetBody(payload)

	if err := do(ctx, c.client, req, resp); err != nil {
		return nil, err
	}
	if status := resp.StatusCode(); status < 200 || status > 299 {
		return nil, &ProviderError{Provider: "fal", Status: status, Body: string(resp.Body())}
	}

	var out falResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, err
	}
	if len(out.Images) == 0 || out.Images[0].URL == "" {
		return nil, nil
	}
	url := out.Images[0].URL
	return &url, nil
}

// do bounds the call by the context deadline, or defaultCallTimeout.
func do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		return client.DoDeadline(req, resp, deadline)
	}
	return client.DoTimeout(req, resp, defaultCallTimeout)
}
