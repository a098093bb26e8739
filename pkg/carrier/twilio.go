package carrier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/restockai/voiceline/pkg/agent"
)

const twilioBaseURL = "https://api.twilio.com"

// ringTimeoutSeconds is how long the outbound call rings before giving up.
const ringTimeoutSeconds = 60

// Twilio implements Carrier against the Twilio REST API.
type Twilio struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewTwilio creates a Twilio carrier client.
func NewTwilio(accountSID, authToken, fromNumber string) *Twilio {
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{},
	}
}

// NewTwilioWithClient creates a client with a custom base URL and HTTP
// client, used by tests.
func NewTwilioWithClient(accountSID, authToken, fromNumber, baseURL string, client *http.Client) *Twilio {
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    baseURL,
		httpClient: client,
	}
}

// Name returns the carrier identifier.
func (t *Twilio) Name() string {
	return "twilio"
}

// Configured reports whether credentials are present.
func (t *Twilio) Configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.fromNumber != ""
}

// PlaceCall dials the destination with status callbacks for every
// lifecycle event. Calls are not recorded.
func (t *Twilio) PlaceCall(ctx context.Context, destination string, callbacks CallbackURLs) (string, error) {
	if !t.Configured() {
		return "", agent.NewCarrierError("twilio is not configured", nil)
	}

	form := url.Values{}
	form.Set("Url", callbacks.Answer)
	form.Set("To", destination)
	form.Set("From", t.fromNumber)
	form.Set("StatusCallback", callbacks.Status)
	form.Set("StatusCallbackMethod", "POST")
	for _, ev := range []string{"initiated", "ringing", "answered", "completed", "failed"} {
		form.Add("StatusCallbackEvent", ev)
	}
	form.Set("Timeout", fmt.Sprintf("%d", ringTimeoutSeconds))
	form.Set("Record", "false")

	var out struct {
		SID string `json:"sid"`
	}
	if err := t.do(ctx, "/Calls.json", form, &out); err != nil {
		return "", err
	}
	if out.SID == "" {
		return "", agent.NewCarrierError("twilio returned no call sid", nil)
	}
	return out.SID, nil
}

// TerminateCall completes an in-flight call.
func (t *Twilio) TerminateCall(ctx context.Context, carrierCallRef string) error {
	if !t.Configured() {
		return agent.NewCarrierError("twilio is not configured", nil)
	}
	form := url.Values{}
	form.Set("Status", "completed")
	return t.do(ctx, "/Calls/"+url.PathEscape(carrierCallRef)+".json", form, nil)
}

func (t *Twilio) do(ctx context.Context, path string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s%s", t.baseURL, url.PathEscape(t.accountSID), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return agent.NewCarrierError("create request", err)
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return agent.NewCarrierError("twilio request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return agent.NewCarrierError(
			fmt.Sprintf("twilio error %d: %s", resp.StatusCode, string(errBody)), nil)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return agent.NewCarrierError("decode response", err)
		}
	}
	return nil
}
