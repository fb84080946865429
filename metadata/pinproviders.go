package metadata

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// PinataPinner pins content to Pinata's pinning service.
type PinataPinner struct {
	jwt  string
	http *http.Client
}

func NewPinataPinner(jwt string) *PinataPinner {
	return &PinataPinner{jwt: jwt, http: &http.Client{Timeout: 20 * time.Second}}
}

func (p *PinataPinner) ID() string { return "pinata" }

func (p *PinataPinner) Pin(ctx context.Context, cid string, body []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", cid+".json")
	if err != nil {
		return fmt.Errorf("pinata: build form: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return fmt.Errorf("pinata: write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("pinata: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.pinata.cloud/pinning/pinFileToIPFS", &buf)
	if err != nil {
		return fmt.Errorf("pinata: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinata: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pinata: status %d", resp.StatusCode)
	}
	return nil
}

// InfuraPinner pins content via Infura's IPFS API.
type InfuraPinner struct {
	basicAuth string
	http      *http.Client
}

func NewInfuraPinner(basicAuth string) *InfuraPinner {
	return &InfuraPinner{basicAuth: basicAuth, http: &http.Client{Timeout: 20 * time.Second}}
}

func (p *InfuraPinner) ID() string { return "infura" }

func (p *InfuraPinner) Pin(ctx context.Context, cid string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://ipfs.infura.io:5001/api/v0/add", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("infura: build request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+p.basicAuth)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("infura: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("infura: status %d", resp.StatusCode)
	}
	return nil
}
