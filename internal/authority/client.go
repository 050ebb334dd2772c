package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"posada/internal/config"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// StatusError reports a non-2xx answer from the booking authority. The body
// is kept verbatim so callers can mirror it to their own clients.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("booking authority returned status %d", e.Status)
}

// UnparseableError reports a 2xx answer from which no reservation id could be
// extracted. The upstream status and raw body are kept so callers can mirror
// the authority's answer instead of guessing.
type UnparseableError struct {
	Status int
	Body   []byte
}

func (e *UnparseableError) Error() string {
	return "booking authority response did not contain a reservation id"
}

// BookRequest is the payload sent to the authority's book endpoint.
type BookRequest struct {
	RoomID     string `json:"roomId"`
	HoldID     string `json:"holdId"`
	GuestName  string `json:"guestName"`
	GuestEmail string `json:"guestEmail"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	GuestCount int    `json:"guestCount"`
}

// BookResponse carries the parsed reservation id plus the authority's raw
// body, which the integration surface echoes back to its callers.
type BookResponse struct {
	ReservationID int64
	RawBody       []byte
}

// Client talks to the external booking authority over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	bookPath   string
	log        zerolog.Logger
}

func NewClient(cfg config.AuthorityConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    cfg.BaseURL,
		bookPath:   cfg.BookPath,
		log:        logger.With().Str("component", "authority").Logger(),
	}
}

// Book registers the reservation with the authority. A non-2xx answer comes
// back as *StatusError with the upstream body untouched; a 2xx answer without
// a recognizable reservation id comes back as *UnparseableError.
func (c *Client) Book(ctx context.Context, req *BookRequest) (*BookResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal book request: %w", err)
	}

	url := c.baseURL + c.bookPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build book request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call booking authority: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read booking authority response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).
			Msg("booking authority rejected the request")
		return nil, &StatusError{Status: resp.StatusCode, Body: body}
	}

	id := parseReservationID(body)
	if id <= 0 {
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(body)).
			Msg("booking authority response unparseable")
		return nil, &UnparseableError{Status: resp.StatusCode, Body: body}
	}

	return &BookResponse{ReservationID: id, RawBody: body}, nil
}

// parseReservationID tolerates the field-name variants the authority has been
// seen using.
func parseReservationID(body []byte) int64 {
	for _, key := range []string{"idReserva", "IdReserva", "id_reserva"} {
		if v := gjson.GetBytes(body, key); v.Exists() {
			return v.Int()
		}
	}
	return 0
}
