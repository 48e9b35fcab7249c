package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ecarrasco/dropwatch/internal/models"
)

// FetchDroppingOdds calls the discovery endpoint and returns the
// catalog of events with declining odds.
func (c *Client) FetchDroppingOdds(ctx context.Context) ([]DiscoveryEntry, error) {
	body, err := c.get(ctx, "/api/v1/dropping-odds")
	if err != nil {
		return nil, err
	}
	var entries []DiscoveryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, models.NewKindedError(models.KindUpstreamPermanent, "decode discovery response", err)
	}
	return entries, nil
}

// FetchEventOdds calls the event-odds endpoint for a single event.
func (c *Client) FetchEventOdds(ctx context.Context, eventID int64) (*EventOddsDocument, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/events/%d/odds", eventID))
	if err != nil {
		return nil, err
	}
	doc := &EventOddsDocument{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, models.NewKindedError(models.KindUpstreamPermanent, "decode event odds", err)
	}
	return doc, nil
}

// FetchEventDetail calls the event-detail endpoint, returning the
// current status code and, when terminal, the final scoreline.
func (c *Client) FetchEventDetail(ctx context.Context, eventID int64) (*EventDetail, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/events/%d", eventID))
	if err != nil {
		return nil, err
	}
	detail := &EventDetail{}
	if err := json.Unmarshal(body, detail); err != nil {
		return nil, models.NewKindedError(models.KindUpstreamPermanent, "decode event detail", err)
	}
	return detail, nil
}
