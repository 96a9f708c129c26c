// Package mail sends transactional email through an HTTP mail API.
package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client sends email via a JSON mail API endpoint.
type Client struct {
	APIKey     string
	BaseURL    string
	From       string
	HTTPClient *http.Client
}

// NewClient returns a mail client for the given API endpoint and key.
func NewClient(apiKey, baseURL, from string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		From:       from,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts one email to the mail API. Does not log message bodies.
func (c *Client) Send(to, subject, textBody, htmlBody string) error {
	if c.APIKey == "" || c.BaseURL == "" {
		return fmt.Errorf("mail: API not configured")
	}
	body := map[string]interface{}{
		"from":    c.From,
		"to":      to,
		"subject": subject,
		"text":    textBody,
		"html":    htmlBody,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// SendVerificationCode sends the two-factor verification email for the given
// code. The subject carries the code and both bodies state the 10-minute expiry.
func (c *Client) SendVerificationCode(to, username, code string) error {
	subject := fmt.Sprintf("Verifica tu cuenta en Eco Puntos - Código: %s", code)
	text := fmt.Sprintf(`¡Hola %s!

Gracias por registrarte en Eco Puntos.

Tu código de verificación es: %s

Este código expira en 10 minutos.

Si no solicitaste este registro, puedes ignorar este email.

¡Bienvenido a la comunidad Eco Puntos!
`, username, code)
	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #43a047 0%%, #7cb342 100%%); padding: 30px; border-radius: 10px; text-align: center; color: white;">
    <h2>¡Bienvenido a Eco Puntos!</h2>
    <p style="font-size: 18px;">Tu código de verificación es:</p>
    <div style="background: white; color: #43a047; font-size: 32px; font-weight: bold; padding: 20px; border-radius: 10px; letter-spacing: 5px;">%s</div>
    <p style="font-size: 14px; opacity: 0.9;">Este código expira en 10 minutos</p>
  </div>
  <div style="padding: 20px; text-align: center; color: #666;">
    <p>Si no solicitaste este registro, puedes ignorar este email.</p>
  </div>
</div>`, code)
	return c.Send(to, subject, text, html)
}
